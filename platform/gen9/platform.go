package gen9

import (
	"github.com/cmrt/fclink/architecture"
	"github.com/cmrt/fclink/platform"
)

const (
	opcodeMov  = 0x01
	opcodeSend = 0x31
	opcodeNop  = 0x7E

	compactBit = 0x20 // byte 3, bit 29

	dstRegByte  = 4
	src0RegByte = 5
	eotByte     = 15

	eotBit = 0x80
)

// Pre-Xe platforms track dependencies in hardware.  Sync instructions are
// never emitted for them.
type Platform struct {
	id platform.ID
}

func NewPlatform(id platform.ID) platform.Platform {
	return Platform{
		id: id,
	}
}

func (p Platform) ID() platform.ID {
	return p.id
}

func (Platform) FamilyName() platform.FamilyName {
	return platform.Gen9
}

func (Platform) SupportsSWSB() bool {
	return false
}

func (Platform) Nop() []byte {
	inst := make([]byte, architecture.InstructionSize)
	inst[0] = opcodeNop
	return inst
}

func (Platform) CompactNop() []byte {
	inst := make([]byte, architecture.CompactInstructionSize)
	inst[0] = opcodeNop
	inst[3] = compactBit
	return inst
}

func (Platform) Sync(
	platform.SyncKind,
	platform.TokenDep,
	uint16,
	uint8,
) []byte {
	panic("gen9 platforms have no sync instruction")
}

// mov (8) r127.0<1>:ud r0.0<8;8,1>:ud
// send (8) null r127 EOT
func (Platform) EndOfThread(uint16, bool) []byte {
	mov := make([]byte, architecture.InstructionSize)
	mov[0] = opcodeMov
	mov[dstRegByte] = byte(architecture.EOTRegister)
	mov[src0RegByte] = 0

	send := make([]byte, architecture.InstructionSize)
	send[0] = opcodeSend
	send[src0RegByte] = byte(architecture.EOTRegister)
	send[eotByte] = eotBit

	return append(mov, send...)
}
