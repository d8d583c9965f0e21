package architecture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefUseToken(t *testing.T) {
	def := NewDefUseToken(FullDef, 2)
	assert.True(t, def.IsDef())
	assert.False(t, def.IsUse())
	assert.True(t, def.IsDefByToken())
	assert.False(t, def.IsDefNotByToken())

	token, ok := def.Token()
	assert.True(t, ok)
	assert.Equal(t, uint16(2), token)

	use := NewDefUseToken(PartialUse, NoToken)
	assert.True(t, use.IsUse())
	assert.True(t, use.IsUseNotByToken())
	assert.False(t, use.IsUseByToken())
	_, ok = use.Token()
	assert.False(t, ok)

	partialDef := NewDefUseToken(PartialDef, 8191)
	assert.True(t, partialDef.IsDefByToken())
	assert.Equal(t, uint16(0xDFFF), uint16(partialDef))
}

func TestTokenMask(t *testing.T) {
	assert.Equal(t, TokenMask(0x4), TokenBit(2))
	assert.Equal(t, AllTokens, TokenBit(40))

	mask := TokenBit(1) | TokenBit(3)
	assert.Equal(t, 2, mask.Count())
	assert.Equal(t, []uint16{1, 3}, mask.Tokens())
	assert.Equal(t, AllTokens, mask.Normalize())
	assert.Equal(t, TokenBit(3), TokenBit(3).Normalize())
	assert.Equal(t, TokenMask(0), TokenMask(0).Normalize())
	assert.Equal(t, "$1,$3", mask.String())
	assert.Equal(t, "$all", AllTokens.String())
}

func TestDecodeDistance(t *testing.T) {
	inst := make([]byte, InstructionSize)

	inst[9] = 0x05
	assert.Equal(t, uint8(5), DecodeDistance(inst))

	inst[9] = 0x0F
	assert.Equal(t, uint8(7), DecodeDistance(inst))

	inst[9] = 0xB2 // 1 011 0010
	assert.Equal(t, uint8(3), DecodeDistance(inst))

	inst[9] = 0x32
	assert.Equal(t, uint8(0), DecodeDistance(inst))

	assert.Equal(t, uint8(0), DecodeDistance(inst[:8]))
}

func TestAlignedSize(t *testing.T) {
	assert.Equal(t, 0, AlignedSize(0))
	assert.Equal(t, 16, AlignedSize(8))
	assert.Equal(t, 32, AlignedSize(17))
}
