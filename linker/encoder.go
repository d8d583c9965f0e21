package linker

import (
	"github.com/cmrt/fclink/architecture"
	"github.com/cmrt/fclink/platform"
)

// Emits the instruction sequences the linker splices into the output.
type Encoder struct {
	platform.Platform
}

func NewEncoder(target platform.Platform) Encoder {
	return Encoder{
		Platform: target,
	}
}

// Encodes the wait on rd (outstanding reads) followed by the wait on wr
// (outstanding writes).  Only the first instruction in the sequence carries
// a distance.
func (encoder Encoder) WriteSync(rd architecture.TokenMask, wr architecture.TokenMask) []byte {
	result := []byte{}

	distance := uint8(1)
	emit := func(kind platform.SyncKind, dep platform.TokenDep, token uint16) {
		result = append(result, encoder.Sync(kind, dep, token, distance)...)
		distance = 0
	}

	if rd.IsAll() {
		emit(platform.SyncAllRead, platform.NoTokenDep, 0)
	} else if rd != 0 {
		for _, token := range rd.Tokens() {
			emit(platform.SyncNop, platform.ReadTokenDep, token)
		}
	}

	if wr.IsAll() {
		emit(platform.SyncAllWrite, platform.NoTokenDep, 0)
	} else if wr != 0 {
		for _, token := range wr.Tokens() {
			emit(platform.SyncNop, platform.WriteTokenDep, token)
		}
	}

	return result
}

// Pads output to the next instruction boundary.
func (encoder Encoder) Align(output []byte) []byte {
	remainder := len(output) % architecture.InstructionSize
	if remainder == 0 {
		return output
	}

	padding := architecture.InstructionSize - remainder
	if padding == architecture.CompactInstructionSize {
		return append(output, encoder.CompactNop()...)
	}
	return append(output, make([]byte, padding)...)
}

// Trailing nops read by the instruction prefetcher past the last instruction.
func (encoder Encoder) PrefetchPad(output []byte) []byte {
	for i := 0; i < architecture.NumInstructions(architecture.PrefetchPadSize); i++ {
		output = append(output, encoder.Nop()...)
	}
	return output
}
