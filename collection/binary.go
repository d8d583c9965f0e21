package collection

import (
	"fmt"
	"sort"

	"github.com/cmrt/fclink/architecture"
)

type LinkType uint16

const (
	LinkNone   = LinkType(0)
	LinkCaller = LinkType(1)
	LinkCallee = LinkType(2)

	linkTypeMask = 0x3
)

func (linkType LinkType) String() string {
	switch linkType {
	case LinkNone:
		return "none"
	case LinkCaller:
		return "caller"
	case LinkCallee:
		return "callee"
	default:
		return fmt.Sprintf("link(%d)", uint16(linkType))
	}
}

// Binary.Position value before the binary is placed in the linked output.
const Unplaced = -1

type Symbol struct {
	Name string

	// nil when the symbol is unresolved.
	Binary *Binary

	// Offset within Binary.
	Addr uint32

	// Bits 0-1 hold the defining binary's LinkType.
	Extra uint16
}

func (sym *Symbol) IsResolved() bool {
	return sym.Binary != nil
}

func (sym *Symbol) LinkType() LinkType {
	return LinkType(sym.Extra & linkTypeMask)
}

func (sym *Symbol) String() string {
	if sym.Binary == nil {
		return sym.Name + " (unresolved)"
	}
	return fmt.Sprintf("%s = bin%d+%#x", sym.Name, sym.Binary.Index, sym.Addr)
}

// A call target address patched once the final layout is known.
type Relocation struct {
	Offset uint32
	Symbol *Symbol
}

type RegAccess struct {
	Offset uint32
	Reg    architecture.Register
	DUT    architecture.DefUseToken
}

func (acc *RegAccess) IsBarrierMarker() bool {
	return acc.Reg == architecture.RegNone
}

func (acc *RegAccess) String() string {
	return fmt.Sprintf("%#x %s %s", acc.Offset, acc.Reg, acc.DUT)
}

type Token uint16

// A synchronization point computed by the dependency graph.
type SyncPoint interface {
	Offset() uint32

	// Tokens the inserted sync instructions must wait on.  Each mask is 0,
	// a single bit, or architecture.AllTokens.
	TokenMasks() (read architecture.TokenMask, write architecture.TokenMask)
}

// A contiguous machine code buffer (one kernel body).
type Binary struct {
	// Program order within the collection.
	Index int

	// Non-owning view of the code.  Replaced by the caller supplied code at
	// link time.
	Data []byte

	Name     string
	LinkType LinkType

	Relocs   []*Relocation
	InitRegs []*RegAccess
	FiniRegs []*RegAccess
	Tokens   []Token

	SyncPoints []SyncPoint

	// Byte offset in the linked output, or Unplaced.
	Position int
}

func (binary *Binary) Size() int {
	return len(binary.Data)
}

func (binary *Binary) IsCallee() bool {
	return binary.LinkType == LinkCallee
}

func (binary *Binary) AddReloc(offset uint32, sym *Symbol) *Relocation {
	reloc := &Relocation{
		Offset: offset,
		Symbol: sym,
	}
	binary.Relocs = append(binary.Relocs, reloc)
	return reloc
}

func (binary *Binary) AddInitRegAccess(
	offset uint32,
	reg architecture.Register,
	dut architecture.DefUseToken,
) *RegAccess {
	acc := &RegAccess{
		Offset: offset,
		Reg:    reg,
		DUT:    dut,
	}
	binary.InitRegs = append(binary.InitRegs, acc)
	return acc
}

func (binary *Binary) AddFiniRegAccess(
	offset uint32,
	reg architecture.Register,
	dut architecture.DefUseToken,
) *RegAccess {
	acc := &RegAccess{
		Offset: offset,
		Reg:    reg,
		DUT:    dut,
	}
	binary.FiniRegs = append(binary.FiniRegs, acc)
	return acc
}

func (binary *Binary) AddToken(token Token) {
	binary.Tokens = append(binary.Tokens, token)
}

func (binary *Binary) InsertSyncPoint(point SyncPoint) {
	binary.SyncPoints = append(binary.SyncPoints, point)
}

func (binary *Binary) ClearSyncPoints() {
	binary.SyncPoints = nil
}

func (binary *Binary) SortSyncPoints() {
	sort.SliceStable(
		binary.SyncPoints,
		func(i int, j int) bool {
			return binary.SyncPoints[i].Offset() < binary.SyncPoints[j].Offset()
		})
}

// The code starting at offset within the binary,
// or nil when out of range.
func (binary *Binary) InstructionAt(offset uint32) []byte {
	if int(offset) >= len(binary.Data) {
		return nil
	}
	return binary.Data[offset:]
}

func (binary *Binary) String() string {
	name := binary.Name
	if name == "" {
		name = "<anonymous>"
	}
	return fmt.Sprintf("bin%d (%s, %s)", binary.Index, name, binary.LinkType)
}
