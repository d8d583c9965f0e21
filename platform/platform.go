package platform

import (
	"fmt"

	"github.com/pkg/errors"
)

// Platform ids as recorded in the patch info header.
type ID uint16

const (
	Unknown = ID(0)
	SNB     = ID(1)
	IVB     = ID(2)
	HSW     = ID(3)
	BDW     = ID(4)
	CHV     = ID(5)
	SKL     = ID(6)
	BXT     = ID(7)
	CNL     = ID(9)
	ICL     = ID(10)
	ICLLP   = ID(11)
	TGL     = ID(12)
	TGLLP   = ID(13)
)

var idNames = map[ID]string{
	SNB:   "snb",
	IVB:   "ivb",
	HSW:   "hsw",
	BDW:   "bdw",
	CHV:   "chv",
	SKL:   "skl",
	BXT:   "bxt",
	CNL:   "cnl",
	ICL:   "icl",
	ICLLP: "icllp",
	TGL:   "tgl",
	TGLLP: "tgllp",
}

func (id ID) IsValid() bool {
	_, ok := idNames[id]
	return ok
}

func (id ID) String() string {
	name, ok := idNames[id]
	if !ok {
		return fmt.Sprintf("platform(%d)", uint16(id))
	}
	return name
}

func ParseID(name string) (ID, error) {
	for id, idName := range idNames {
		if idName == name {
			return id, nil
		}
	}
	return Unknown, errors.Errorf("unknown platform (%s)", name)
}

type FamilyName string

const (
	// Pre-Xe generations.  Dependencies are tracked by the hardware
	// scoreboard; there are no SWSB annotations.
	Gen9 = FamilyName("gen9")

	// Xe generations with software scoreboarding.
	Gen12 = FamilyName("gen12")
)

type SyncKind int

const (
	// Wait on a single token (or distance only when no token is given).
	SyncNop = SyncKind(iota)

	// Wait for all outstanding reads.
	SyncAllRead

	// Wait for all outstanding writes.
	SyncAllWrite
)

func (kind SyncKind) String() string {
	switch kind {
	case SyncNop:
		return "sync.nop"
	case SyncAllRead:
		return "sync.allrd"
	case SyncAllWrite:
		return "sync.allwr"
	default:
		return fmt.Sprintf("sync(%d)", int(kind))
	}
}

// Dependency class of a single token wait.
type TokenDep int

const (
	NoTokenDep = TokenDep(iota)
	ReadTokenDep
	WriteTokenDep
)

// Instruction templates for a target platform.  All returned slices are
// freshly allocated and may be modified by the caller.
type Platform interface {
	ID() ID
	FamilyName() FamilyName

	SupportsSWSB() bool

	// Full size (16 bytes) no-op instruction.
	Nop() []byte

	// Compacted (8 bytes) no-op instruction.
	CompactNop() []byte

	// A single synchronization instruction.  Only valid when SupportsSWSB.
	Sync(kind SyncKind, dep TokenDep, token uint16, distance uint8) []byte

	// The end of thread sequence.  When waitEOTToken is true, the sequence
	// first waits on the token with an outstanding write to EOTRegister.
	EndOfThread(eotToken uint16, waitEOTToken bool) []byte
}
