package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmrt/fclink/architecture"
	"github.com/cmrt/fclink/platform"
)

type fakeSyncPoint struct {
	offset uint32
	id     int
}

func (point fakeSyncPoint) Offset() uint32 {
	return point.offset
}

func (fakeSyncPoint) TokenMasks() (architecture.TokenMask, architecture.TokenMask) {
	return 0, 0
}

func TestSetPlatform(t *testing.T) {
	collection := NewCollection()
	require.NoError(t, collection.SetPlatform(platform.TGLLP))
	require.NoError(t, collection.SetPlatform(platform.TGLLP))
	assert.Error(t, collection.SetPlatform(platform.SKL))
	assert.Equal(t, platform.TGLLP, collection.Platform)
}

func TestAddSymbolResolvesReference(t *testing.T) {
	collection := NewCollection()
	bin := collection.AddBinary(nil)

	ref := collection.AddSymbol("foo", nil, 0, 0)
	assert.False(t, ref.IsResolved())
	assert.Len(t, collection.UnresolvedSymbols(), 1)

	def := collection.AddSymbol("foo", bin, 0x10, uint16(LinkCallee))
	assert.Same(t, ref, def)
	assert.True(t, def.IsResolved())
	assert.Equal(t, uint32(0x10), def.Addr)
	assert.Equal(t, LinkCallee, def.LinkType())
	assert.Empty(t, collection.UnresolvedSymbols())

	// A later reference does not clobber the definition.
	again := collection.AddSymbol("foo", nil, 0, 0)
	assert.Same(t, def, again)
	assert.Same(t, bin, again.Binary)
}

func TestAddSymbolRenamesDuplicateDefinitions(t *testing.T) {
	collection := NewCollection()
	bin0 := collection.AddBinary(nil)
	bin1 := collection.AddBinary(nil)
	bin2 := collection.AddBinary(nil)

	first := collection.AddSymbol("kernel", bin0, 0, 0)
	second := collection.AddSymbol("kernel", bin1, 0, 0)
	third := collection.AddSymbol("kernel", bin2, 0, 0)

	assert.Equal(t, "kernel", first.Name)
	assert.Equal(t, "kernel!0", second.Name)
	assert.Equal(t, "kernel!1", third.Name)
	assert.Same(t, first, collection.Symbol("kernel"))
	assert.Same(t, second, collection.Symbol("kernel!0"))
	assert.Same(t, bin2, collection.Symbol("kernel!1").Binary)
	assert.Len(t, collection.Symbols(), 3)
}

func TestBinaryStablePointers(t *testing.T) {
	collection := NewCollection()
	bin := collection.AddBinary(make([]byte, 32))
	assert.Equal(t, Unplaced, bin.Position)

	first := bin.AddInitRegAccess(
		0,
		5,
		architecture.NewDefUseToken(architecture.FullUse, 2))
	for i := 0; i < 100; i++ {
		bin.AddInitRegAccess(
			uint32(i*16),
			architecture.Register(i),
			architecture.NewDefUseToken(architecture.FullDef, architecture.NoToken))
	}

	assert.Same(t, first, bin.InitRegs[0])
	assert.Equal(t, architecture.Register(5), first.Reg)

	for i := 0; i < 10; i++ {
		collection.AddBinary(nil)
	}
	assert.Same(t, bin, collection.Binaries[0])
}

func TestSortSyncPoints(t *testing.T) {
	bin := NewCollection().AddBinary(nil)
	bin.InsertSyncPoint(fakeSyncPoint{offset: 32, id: 0})
	bin.InsertSyncPoint(fakeSyncPoint{offset: 0, id: 1})
	bin.InsertSyncPoint(fakeSyncPoint{offset: 32, id: 2})
	bin.InsertSyncPoint(fakeSyncPoint{offset: 16, id: 3})

	bin.SortSyncPoints()

	ids := []int{}
	for _, point := range bin.SyncPoints {
		ids = append(ids, point.(fakeSyncPoint).id)
	}
	assert.Equal(t, []int{1, 3, 0, 2}, ids)

	bin.ClearSyncPoints()
	assert.Empty(t, bin.SyncPoints)
}
