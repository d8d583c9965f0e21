package gen12

import (
	"github.com/cmrt/fclink/architecture"
	"github.com/cmrt/fclink/platform"
)

const (
	opcodeSync = 0x01
	opcodeSend = 0x31
	opcodeNop  = 0x60
	opcodeMov  = 0x61

	compactBit = 0x20 // byte 3, bit 29

	subFuncByte  = 3
	dstRegByte   = 4
	src0RegByte  = 5
	eotByte      = 7
	swsbByte     = 9
	tokenDepByte = 10

	eotBit = 0x80

	// SWSB encodings (byte 9)
	//   0000 0ddd : distance only
	//   0010 tttt : wait on token t, source (read) dependency
	//   0011 tttt : wait on token t, destination (write) dependency
	//   1ddd tttt : distance d combined with token t (dependency class in
	//               byte 10: 0 = read, 1 = write)
	swsbReadToken  = 0x20
	swsbWriteToken = 0x30
	swsbCombined   = 0x80

	// sync sub functions (byte 3, low nibble)
	syncFuncNop   = 0x0
	syncFuncAllRd = 0x2
	syncFuncAllWr = 0x3
)

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
	return platform.Gen12
}

func (Platform) SupportsSWSB() bool {
	return true
}

func (Platform) Nop() []byte {
	inst := make([]byte, architecture.InstructionSize)
	inst[0] = opcodeNop
	return inst
}

func (Platform) CompactNop() []byte {
	inst := make([]byte, architecture.CompactInstructionSize)
	inst[0] = opcodeNop
	inst[subFuncByte] = compactBit
	return inst
}

func (Platform) Sync(
	kind platform.SyncKind,
	dep platform.TokenDep,
	token uint16,
	distance uint8,
) []byte {
	inst := make([]byte, architecture.InstructionSize)
	inst[0] = opcodeSync

	switch kind {
	case platform.SyncAllRead:
		inst[subFuncByte] = syncFuncAllRd
	case platform.SyncAllWrite:
		inst[subFuncByte] = syncFuncAllWr
	default:
		inst[subFuncByte] = syncFuncNop
	}

	inst[swsbByte] = encodeSWSB(dep, token, distance)
	if dep == platform.WriteTokenDep {
		inst[tokenDepByte] = 1
	}
	return inst
}

func encodeSWSB(dep platform.TokenDep, token uint16, distance uint8) byte {
	if distance > architecture.MaxDistance {
		distance = architecture.MaxDistance
	}

	if dep == platform.NoTokenDep || token >= architecture.NumTokens {
		return distance
	}

	if distance > 0 {
		return swsbCombined | distance<<4 | byte(token)
	}

	if dep == platform.WriteTokenDep {
		return swsbWriteToken | byte(token)
	}
	return swsbReadToken | byte(token)
}

// mov (8) r127.0<1>:ud r0.0<8;8,1>:ud
// send (8) null r127 EOT
func (Platform) EndOfThread(eotToken uint16, waitEOTToken bool) []byte {
	mov := make([]byte, architecture.InstructionSize)
	mov[0] = opcodeMov
	mov[dstRegByte] = byte(architecture.EOTRegister)
	mov[src0RegByte] = 0
	if waitEOTToken {
		mov[swsbByte] = encodeSWSB(platform.WriteTokenDep, eotToken, 0)
		mov[tokenDepByte] = 1
	}

	send := make([]byte, architecture.InstructionSize)
	send[0] = opcodeSend
	send[src0RegByte] = byte(architecture.EOTRegister)
	send[eotByte] = eotBit
	send[swsbByte] = 1 // wait on the mov

	return append(mov, send...)
}
