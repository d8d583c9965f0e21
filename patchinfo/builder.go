package patchinfo

import (
	"github.com/pkg/errors"

	"github.com/cmrt/fclink/architecture"
	"github.com/cmrt/fclink/collection"
	"github.com/cmrt/fclink/platform"
)

// Section index of a binary added to a Builder.
type BinaryRef uint16

// Symbol table position of a symbol added to a Builder.
type SymbolRef uint32

type builderBinary struct {
	code     []byte
	relocs   []RelocEntry
	initRegs []RegAccessEntry
	finiRegs []RegAccessEntry
	tokens   []uint16
}

// Produces conforming patch info blobs.  Section layout:
//
//	[0] NONE
//	[1..n] BINARY
//	STRTAB, SYMTAB
//	per binary (only when non-empty): REL, INITREGTAB, FINIREGTAB, TOKTAB
type Builder struct {
	platform platform.ID

	binaries []*builderBinary

	strings []byte
	symbols []SymbolEntry
}

func NewBuilder(id platform.ID) *Builder {
	return &Builder{
		platform: id,
		strings:  []byte{0}, // index 0 is the empty name
	}
}

func (builder *Builder) binary(ref BinaryRef) *builderBinary {
	idx := int(ref) - 1
	if idx < 0 || idx >= len(builder.binaries) {
		panic("invalid binary reference")
	}
	return builder.binaries[idx]
}

func (builder *Builder) AddBinary(code []byte) BinaryRef {
	builder.binaries = append(builder.binaries, &builderBinary{code: code})
	return BinaryRef(len(builder.binaries))
}

func (builder *Builder) addName(name string) uint32 {
	if name == "" {
		return 0
	}

	idx := uint32(len(builder.strings))
	builder.strings = append(builder.strings, name...)
	builder.strings = append(builder.strings, 0)
	return idx
}

// Adds a symbol defined at addr within bin.
func (builder *Builder) AddSymbol(
	name string,
	bin BinaryRef,
	addr uint32,
	linkType collection.LinkType,
) SymbolRef {
	builder.binary(bin) // validate
	return builder.addSymbol(SymbolEntry{
		Name:  builder.addName(name),
		Value: addr,
		Shndx: uint16(bin),
		Extra: uint16(linkType),
	})
}

// Adds a symbol that is only referenced by this blob.
func (builder *Builder) AddUndefinedSymbol(name string) SymbolRef {
	return builder.addSymbol(SymbolEntry{
		Name: builder.addName(name),
	})
}

func (builder *Builder) addSymbol(entry SymbolEntry) SymbolRef {
	builder.symbols = append(builder.symbols, entry)
	return SymbolRef(len(builder.symbols) - 1)
}

func (builder *Builder) AddRelocation(
	bin BinaryRef,
	offset uint32,
	sym SymbolRef,
) {
	b := builder.binary(bin)
	b.relocs = append(b.relocs, RelocEntry{Offset: offset, Symbol: uint32(sym)})
}

func (builder *Builder) AddInitRegAccess(
	bin BinaryRef,
	offset uint32,
	reg architecture.Register,
	dut architecture.DefUseToken,
) {
	b := builder.binary(bin)
	b.initRegs = append(
		b.initRegs,
		RegAccessEntry{Offset: offset, RegNo: uint16(reg), DUT: uint16(dut)})
}

func (builder *Builder) AddFiniRegAccess(
	bin BinaryRef,
	offset uint32,
	reg architecture.Register,
	dut architecture.DefUseToken,
) {
	b := builder.binary(bin)
	b.finiRegs = append(
		b.finiRegs,
		RegAccessEntry{Offset: offset, RegNo: uint16(reg), DUT: uint16(dut)})
}

func (builder *Builder) AddToken(bin BinaryRef, token uint16) {
	b := builder.binary(bin)
	b.tokens = append(b.tokens, token)
}

type pendingSection struct {
	header SectionHeader
	data   []byte
}

func (builder *Builder) Bytes() []byte {
	sections := []pendingSection{{header: SectionHeader{Type: SectionNone}}}

	for _, bin := range builder.binaries {
		sections = append(
			sections,
			pendingSection{
				header: SectionHeader{Type: SectionBinary},
				data:   bin.code,
			})
	}

	strtabIdx := uint16(len(sections))
	sections = append(
		sections,
		pendingSection{
			header: SectionHeader{Type: SectionStrings},
			data:   builder.strings,
		})

	symtabIdx := uint16(len(sections))
	symtab := make([]byte, len(builder.symbols)*SymbolEntrySize)
	for idx, entry := range builder.symbols {
		entry.encode(symtab[idx*SymbolEntrySize:])
	}
	sections = append(
		sections,
		pendingSection{
			header: SectionHeader{Type: SectionSymbols, Link: strtabIdx},
			data:   symtab,
		})

	for idx, bin := range builder.binaries {
		binIdx := uint16(idx + 1)

		if len(bin.relocs) > 0 {
			data := make([]byte, len(bin.relocs)*RelocEntrySize)
			for i, entry := range bin.relocs {
				entry.encode(data[i*RelocEntrySize:])
			}
			sections = append(
				sections,
				pendingSection{
					header: SectionHeader{
						Type:  SectionReloc,
						Link:  symtabIdx,
						Link2: binIdx,
					},
					data: data,
				})
		}

		regTables := []struct {
			sectionType SectionType
			entries     []RegAccessEntry
		}{
			{SectionInitRegs, bin.initRegs},
			{SectionFiniRegs, bin.finiRegs},
		}
		for _, table := range regTables {
			if len(table.entries) == 0 {
				continue
			}

			data := make([]byte, len(table.entries)*RegAccessSize)
			for i, entry := range table.entries {
				entry.encode(data[i*RegAccessSize:])
			}
			sections = append(
				sections,
				pendingSection{
					header: SectionHeader{Type: table.sectionType, Link: binIdx},
					data:   data,
				})
		}

		if len(bin.tokens) > 0 {
			data := make([]byte, len(bin.tokens)*TokenEntrySize)
			for i, token := range bin.tokens {
				encodeToken(data[i*TokenEntrySize:], token)
			}
			sections = append(
				sections,
				pendingSection{
					header: SectionHeader{Type: SectionTokens, Link: binIdx},
					data:   data,
				})
		}
	}

	shOff := HeaderSize
	dataOff := shOff + len(sections)*SectionHeaderSize

	size := dataOff
	for _, section := range sections {
		size += len(section.data)
	}

	buf := make([]byte, size)
	Header{
		Magic:    Magic,
		Version:  Version,
		Platform: builder.platform,
		ShNum:    uint16(len(sections)),
		ShOff:    uint32(shOff),
	}.encode(buf)

	for idx, section := range sections {
		section.header.Offset = uint32(dataOff)
		section.header.Size = uint32(len(section.data))
		section.header.encode(buf[shOff+idx*SectionHeaderSize:])

		copy(buf[dataOff:], section.data)
		dataOff += len(section.data)
	}

	return buf
}

// Serializes the collection's binaries, symbols, relocations, register
// accesses and tokens back into a single patch info blob.
func Marshal(source *collection.Collection) ([]byte, error) {
	builder := NewBuilder(source.Platform)

	refs := map[*collection.Binary]BinaryRef{}
	for _, bin := range source.Binaries {
		refs[bin] = builder.AddBinary(bin.Data)
	}

	symbols := map[*collection.Symbol]SymbolRef{}
	for _, sym := range source.Symbols() {
		if sym.Binary == nil {
			symbols[sym] = builder.AddUndefinedSymbol(sym.Name)
			continue
		}

		ref, ok := refs[sym.Binary]
		if !ok {
			return nil, errors.Errorf(
				"symbol (%s) defined in a foreign binary",
				sym.Name)
		}

		symbols[sym] = builder.addSymbol(SymbolEntry{
			Name:  builder.addName(sym.Name),
			Value: sym.Addr,
			Shndx: uint16(ref),
			Extra: sym.Extra,
		})
	}

	for _, bin := range source.Binaries {
		ref := refs[bin]

		for _, reloc := range bin.Relocs {
			symRef, ok := symbols[reloc.Symbol]
			if !ok {
				return nil, errors.Errorf(
					"relocation at %#x refers to a foreign symbol",
					reloc.Offset)
			}
			builder.AddRelocation(ref, reloc.Offset, symRef)
		}

		for _, acc := range bin.InitRegs {
			builder.AddInitRegAccess(ref, acc.Offset, acc.Reg, acc.DUT)
		}

		for _, acc := range bin.FiniRegs {
			builder.AddFiniRegAccess(ref, acc.Offset, acc.Reg, acc.DUT)
		}

		for _, token := range bin.Tokens {
			builder.AddToken(ref, uint16(token))
		}
	}

	return builder.Bytes(), nil
}
