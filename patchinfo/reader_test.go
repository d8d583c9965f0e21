package patchinfo

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmrt/fclink/architecture"
	"github.com/cmrt/fclink/collection"
	"github.com/cmrt/fclink/platform"
)

func dut(kind architecture.AccessKind, token uint16) architecture.DefUseToken {
	return architecture.NewDefUseToken(kind, token)
}

func callerBlob(id platform.ID) []byte {
	builder := NewBuilder(id)
	bin := builder.AddBinary(make([]byte, 48))
	builder.AddSymbol("main", bin, 0, collection.LinkCaller)
	callee := builder.AddUndefinedSymbol("callee")
	builder.AddRelocation(bin, 16, callee)
	builder.AddInitRegAccess(
		bin,
		0,
		architecture.RegNone,
		dut(architecture.FullUse, architecture.NoToken))
	builder.AddInitRegAccess(bin, 0, 3, dut(architecture.FullUse, 1))
	builder.AddFiniRegAccess(bin, 32, 5, dut(architecture.FullDef, 2))
	builder.AddToken(bin, 1)
	builder.AddToken(bin, 2)
	return builder.Bytes()
}

func calleeBlob(id platform.ID) []byte {
	builder := NewBuilder(id)
	bin := builder.AddBinary(make([]byte, 32))
	builder.AddSymbol("callee", bin, 0, collection.LinkCallee)
	return builder.Bytes()
}

func read(t *testing.T, dest *collection.Collection, buf []byte) error {
	t.Helper()
	return NewReader(buf).Read(dest)
}

func TestReadSingleBlob(t *testing.T) {
	parsed := collection.NewCollection()
	require.NoError(t, read(t, parsed, callerBlob(platform.TGLLP)))

	assert.Equal(t, platform.TGLLP, parsed.Platform)
	require.Len(t, parsed.Binaries, 1)

	bin := parsed.Binaries[0]
	assert.Equal(t, 48, bin.Size())

	main := parsed.Symbol("main")
	require.NotNil(t, main)
	assert.Same(t, bin, main.Binary)
	assert.Equal(t, collection.LinkCaller, main.LinkType())

	callee := parsed.Symbol("callee")
	require.NotNil(t, callee)
	assert.False(t, callee.IsResolved())

	require.Len(t, bin.Relocs, 1)
	assert.Equal(t, uint32(16), bin.Relocs[0].Offset)
	assert.Same(t, callee, bin.Relocs[0].Symbol)

	require.Len(t, bin.InitRegs, 2)
	assert.True(t, bin.InitRegs[0].IsBarrierMarker())
	assert.Equal(t, architecture.Register(3), bin.InitRegs[1].Reg)
	assert.True(t, bin.InitRegs[1].DUT.IsUseByToken())

	require.Len(t, bin.FiniRegs, 1)
	assert.Equal(t, uint32(32), bin.FiniRegs[0].Offset)
	assert.True(t, bin.FiniRegs[0].DUT.IsDefByToken())

	assert.Equal(t, []collection.Token{1, 2}, bin.Tokens)
}

func TestReadIncrementalResolvesAcrossBlobs(t *testing.T) {
	parsed := collection.NewCollection()
	require.NoError(t, read(t, parsed, callerBlob(platform.TGLLP)))
	require.NoError(t, read(t, parsed, calleeBlob(platform.TGLLP)))

	require.Len(t, parsed.Binaries, 2)
	callee := parsed.Symbol("callee")
	require.NotNil(t, callee)
	assert.Same(t, parsed.Binaries[1], callee.Binary)
	assert.Same(t, callee, parsed.Binaries[0].Relocs[0].Symbol)
	assert.Empty(t, parsed.UnresolvedSymbols())
}

func TestReadRenamesDuplicateDefinitions(t *testing.T) {
	parsed := collection.NewCollection()
	require.NoError(t, read(t, parsed, calleeBlob(platform.TGLLP)))
	require.NoError(t, read(t, parsed, calleeBlob(platform.TGLLP)))
	require.NoError(t, read(t, parsed, calleeBlob(platform.TGLLP)))

	assert.Same(t, parsed.Binaries[0], parsed.Symbol("callee").Binary)
	assert.Same(t, parsed.Binaries[1], parsed.Symbol("callee!0").Binary)
	assert.Same(t, parsed.Binaries[2], parsed.Symbol("callee!1").Binary)
}

func TestReadPlatformMismatch(t *testing.T) {
	parsed := collection.NewCollection()
	require.NoError(t, read(t, parsed, calleeBlob(platform.TGLLP)))

	err := read(t, parsed, calleeBlob(platform.ICL))
	require.Error(t, err)
	assert.Equal(t, ErrFormat, errors.Cause(err))
}

func TestReadSkipsUnnamedSymbols(t *testing.T) {
	builder := NewBuilder(platform.TGL)
	bin := builder.AddBinary(make([]byte, 32))
	builder.AddSymbol("", bin, 16, collection.LinkNone)
	target := builder.AddSymbol("target", bin, 0, collection.LinkNone)
	builder.AddRelocation(bin, 0, target)

	parsed := collection.NewCollection()
	require.NoError(t, read(t, parsed, builder.Bytes()))

	assert.Len(t, parsed.Symbols(), 1)
	require.Len(t, parsed.Binaries[0].Relocs, 1)
	assert.Equal(t, "target", parsed.Binaries[0].Relocs[0].Symbol.Name)
}

func TestReadRelocationToUnnamedSymbolFails(t *testing.T) {
	builder := NewBuilder(platform.TGL)
	bin := builder.AddBinary(make([]byte, 32))
	unnamed := builder.AddSymbol("", bin, 16, collection.LinkNone)
	builder.AddRelocation(bin, 0, unnamed)

	err := read(t, collection.NewCollection(), builder.Bytes())
	assert.Equal(t, ErrFormat, errors.Cause(err))
}

func TestReadMemoizesSharedSections(t *testing.T) {
	// Two relocation tables sharing a single symbol table.  The symbol table
	// (and hence the symbol definitions) must only be read once, otherwise
	// the second read would rename the definitions.
	builder := NewBuilder(platform.TGLLP)
	bin := builder.AddBinary(make([]byte, 64))
	sym := builder.AddSymbol("entry", bin, 0, collection.LinkNone)
	builder.AddRelocation(bin, 16, sym)
	buf := builder.Bytes()

	header := decodeHeader(buf)
	var relocHeader SectionHeader
	for idx := 0; idx < int(header.ShNum); idx++ {
		section := decodeSectionHeader(
			buf[int(header.ShOff)+idx*SectionHeaderSize:])
		if section.Type == SectionReloc {
			relocHeader = section
		}
	}
	require.Equal(t, SectionReloc, relocHeader.Type)

	// Append a copy of the relocation section header.
	extended := append([]byte{}, buf...)
	tableEnd := len(extended)
	extended = append(extended, make([]byte, int(header.ShNum+1)*SectionHeaderSize)...)
	copy(
		extended[tableEnd:],
		buf[header.ShOff:int(header.ShOff)+int(header.ShNum)*SectionHeaderSize])
	relocHeader.encode(extended[tableEnd+int(header.ShNum)*SectionHeaderSize:])
	binary.LittleEndian.PutUint16(extended[8:], header.ShNum+1)
	binary.LittleEndian.PutUint32(extended[12:], uint32(tableEnd))

	parsed := collection.NewCollection()
	require.NoError(t, read(t, parsed, extended))

	assert.Len(t, parsed.Symbols(), 1)
	assert.Len(t, parsed.Binaries, 1)
	assert.Len(t, parsed.Binaries[0].Relocs, 2)
}

func TestReadFormatErrors(t *testing.T) {
	valid := calleeBlob(platform.TGLLP)

	corrupt := func(mutate func([]byte) []byte) []byte {
		buf := append([]byte{}, valid...)
		return mutate(buf)
	}

	cases := map[string][]byte{
		"too small": valid[:HeaderSize-1],
		"bad magic": corrupt(func(buf []byte) []byte {
			buf[0] = 'X'
			return buf
		}),
		"bad version": corrupt(func(buf []byte) []byte {
			binary.LittleEndian.PutUint16(buf[4:], 1)
			return buf
		}),
		"unknown platform": corrupt(func(buf []byte) []byte {
			binary.LittleEndian.PutUint16(buf[6:], 8)
			return buf
		}),
		"section table out of bound": corrupt(func(buf []byte) []byte {
			binary.LittleEndian.PutUint32(buf[12:], uint32(len(buf)))
			return buf
		}),
		"section out of bound": corrupt(func(buf []byte) []byte {
			// section 1 is the binary; bump its size past the end.
			start := HeaderSize + SectionHeaderSize
			binary.LittleEndian.PutUint32(buf[start+12:], uint32(len(buf)))
			return buf
		}),
		"bad section type": corrupt(func(buf []byte) []byte {
			binary.LittleEndian.PutUint16(buf[HeaderSize:], 42)
			return buf
		}),
	}

	for name, buf := range cases {
		err := read(t, collection.NewCollection(), buf)
		assert.Error(t, err, name)
		assert.Equal(t, ErrFormat, errors.Cause(err), name)
	}
}

func TestRoundTrip(t *testing.T) {
	parsed := collection.NewCollection()
	require.NoError(t, read(t, parsed, callerBlob(platform.TGLLP)))
	require.NoError(t, read(t, parsed, calleeBlob(platform.TGLLP)))
	require.NoError(t, read(t, parsed, calleeBlob(platform.TGLLP)))

	buf, err := Marshal(parsed)
	require.NoError(t, err)

	reparsed := collection.NewCollection()
	require.NoError(t, read(t, reparsed, buf))

	assert.Equal(t, parsed.Platform, reparsed.Platform)
	require.Equal(t, len(parsed.Binaries), len(reparsed.Binaries))

	names := func(c *collection.Collection) []string {
		result := []string{}
		for _, sym := range c.Symbols() {
			result = append(result, sym.Name)
		}
		return result
	}
	assert.Equal(t, []string{"main", "callee", "callee!0"}, names(parsed))
	assert.Equal(t, names(parsed), names(reparsed))

	for idx, bin := range parsed.Binaries {
		other := reparsed.Binaries[idx]
		assert.Equal(t, bin.Data, other.Data)
		assert.Equal(t, bin.Tokens, other.Tokens)

		require.Equal(t, len(bin.InitRegs), len(other.InitRegs))
		for i, acc := range bin.InitRegs {
			assert.Equal(t, *acc, *other.InitRegs[i])
		}

		require.Equal(t, len(bin.FiniRegs), len(other.FiniRegs))
		for i, acc := range bin.FiniRegs {
			assert.Equal(t, *acc, *other.FiniRegs[i])
		}

		require.Equal(t, len(bin.Relocs), len(other.Relocs))
		for i, reloc := range bin.Relocs {
			assert.Equal(t, reloc.Offset, other.Relocs[i].Offset)
			assert.Equal(t, reloc.Symbol.Name, other.Relocs[i].Symbol.Name)
		}
	}
}

func TestCalleeInfo(t *testing.T) {
	linkType, hasRelocs, err := CalleeInfo(callerBlob(platform.TGLLP))
	require.NoError(t, err)
	assert.Equal(t, collection.LinkCaller, linkType)
	assert.True(t, hasRelocs)

	linkType, hasRelocs, err = CalleeInfo(calleeBlob(platform.TGLLP))
	require.NoError(t, err)
	assert.Equal(t, collection.LinkCallee, linkType)
	assert.False(t, hasRelocs)

	_, _, err = CalleeInfo([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDump(t *testing.T) {
	parsed := collection.NewCollection()
	require.NoError(t, read(t, parsed, callerBlob(platform.TGLLP)))

	dump := CollectionString(parsed)
	assert.Contains(t, dump, "Platform: tgllp")
	assert.Contains(t, dump, "callee (unresolved)")
	assert.Contains(t, dump, "0x10 -> callee")
	assert.Contains(t, dump, "0x20 r5 def $2")
}
