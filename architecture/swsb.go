package architecture

import (
	"fmt"
	"math/bits"
	"strings"
)

const (
	// Longest in-order wait hardware can encode.
	MaxDistance = 7

	// Number of hardware SBID tokens.
	NumTokens = 14

	// Byte within an instruction holding its SWSB annotation (bits 8-15 of
	// the second quadword).
	swsbByteOffset = 9
)

// A set of SBID tokens to wait on.  AllTokens is the "wait on everything"
// sentinel and is never treated as a plain bit set.
type TokenMask uint32

const AllTokens = ^TokenMask(0)

// Tokens outside the mask width cannot be waited on individually and degrade
// to AllTokens.
func TokenBit(token uint16) TokenMask {
	if token >= 32 {
		return AllTokens
	}
	return TokenMask(1) << token
}

func (mask TokenMask) IsAll() bool {
	return mask == AllTokens
}

func (mask TokenMask) Count() int {
	return bits.OnesCount32(uint32(mask))
}

// Collapses multi-token waits into AllTokens since hardware can only encode a
// single token per field.
func (mask TokenMask) Normalize() TokenMask {
	if mask.Count() > 1 {
		return AllTokens
	}
	return mask
}

// Individual tokens in ascending order.  Must not be called on AllTokens.
func (mask TokenMask) Tokens() []uint16 {
	if mask.IsAll() {
		panic("AllTokens has no individual tokens")
	}

	tokens := []uint16{}
	for m := uint32(mask); m != 0; m &= m - 1 {
		tokens = append(tokens, uint16(bits.TrailingZeros32(m)))
	}
	return tokens
}

func (mask TokenMask) String() string {
	if mask.IsAll() {
		return "$all"
	}
	if mask == 0 {
		return "-"
	}

	parts := []string{}
	for _, token := range mask.Tokens() {
		parts = append(parts, fmt.Sprintf("$%d", token))
	}
	return strings.Join(parts, ",")
}

// Reads back the in-order distance already encoded in the instruction
// starting at inst[0].  Returns 0 when the instruction is truncated or carries
// no distance.
func DecodeDistance(inst []byte) uint8 {
	if len(inst) <= swsbByteOffset {
		return 0
	}

	swsb := inst[swsbByteOffset]
	switch {
	case swsb&0xF0 == 0:
		return swsb & 0x07
	case swsb&0x80 != 0:
		return (swsb >> 4) & 0x07
	default:
		return 0
	}
}
