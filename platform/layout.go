package platform

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

type RelocationKind string

const (
	// 32-bit displacement relative to the start of the instruction holding
	// it (the instruction pointer), stored in the instruction's 4th dword.
	// i.e.,
	//
	// IPRel32Relocation = int32(
	//   (TargetLocation + SymbolAddress) - (CurrentLocation + RelocOffset))
	IPRel32Relocation = RelocationKind("iprel32")

	ipRel32DwordOffset = 12
)

// Patches an IPRel32Relocation into the instruction starting at instOffset.
func PatchIPRel32(buf []byte, instOffset int, displacement int32) error {
	start := instOffset + ipRel32DwordOffset
	if instOffset < 0 || start+4 > len(buf) {
		return errors.Errorf(
			"relocation at %d out of bound (buffer size %d)",
			instOffset,
			len(buf))
	}

	binary.LittleEndian.PutUint32(buf[start:start+4], uint32(displacement))
	return nil
}

func ReadIPRel32(buf []byte, instOffset int) int32 {
	start := instOffset + ipRel32DwordOffset
	return int32(binary.LittleEndian.Uint32(buf[start : start+4]))
}
