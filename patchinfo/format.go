package patchinfo

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/cmrt/fclink/architecture"
	"github.com/cmrt/fclink/collection"
	"github.com/cmrt/fclink/platform"
)

// Patch info layout.  All fields are little endian.
//
//   header
//     u32 magic ('C', 'M', 'P', 'I')
//     u16 version
//     u16 platform
//     u16 section header count
//     u16 program header count (unused)
//     u32 section header table offset
//     u32 program header table offset
//
//   section header
//     u16 type
//     u16 link (first linked section index)
//     u16 link2 (second linked section index)
//     u16 padding
//     u32 offset
//     u32 size
const (
	Magic   = uint32(0x49504D43)
	Version = uint16(0)

	HeaderSize        = 20
	SectionHeaderSize = 16
	SymbolEntrySize   = 12
	RelocEntrySize    = 8
	RegAccessSize     = 8
	TokenEntrySize    = 2

	// Register number marking a barrier insertion point.
	RegNone = uint16(architecture.RegNone)
)

var ErrFormat = errors.New("malformed patch info")

func formatError(template string, args ...interface{}) error {
	return errors.Wrapf(ErrFormat, template, args...)
}

type SectionType uint16

const (
	SectionNone       = SectionType(0)
	SectionBinary     = SectionType(1)
	SectionReloc      = SectionType(2)
	SectionSymbols    = SectionType(3)
	SectionStrings    = SectionType(4)
	SectionInitRegs   = SectionType(5)
	SectionFiniRegs   = SectionType(6)
	SectionTokens     = SectionType(7)
	numSectionTypes   = 8
	sectionTypePrefix = "SHT_"
)

var sectionTypeNames = [numSectionTypes]string{
	"NONE",
	"BINARY",
	"REL",
	"SYMTAB",
	"STRTAB",
	"INITREGTAB",
	"FINIREGTAB",
	"TOKTAB",
}

func (t SectionType) String() string {
	if int(t) < numSectionTypes {
		return sectionTypePrefix + sectionTypeNames[t]
	}
	return fmt.Sprintf("%s%d", sectionTypePrefix, uint16(t))
}

type Header struct {
	Magic    uint32
	Version  uint16
	Platform platform.ID
	ShNum    uint16
	PgNum    uint16
	ShOff    uint32
	PgOff    uint32
}

func decodeHeader(buf []byte) Header {
	return Header{
		Magic:    binary.LittleEndian.Uint32(buf[0:]),
		Version:  binary.LittleEndian.Uint16(buf[4:]),
		Platform: platform.ID(binary.LittleEndian.Uint16(buf[6:])),
		ShNum:    binary.LittleEndian.Uint16(buf[8:]),
		PgNum:    binary.LittleEndian.Uint16(buf[10:]),
		ShOff:    binary.LittleEndian.Uint32(buf[12:]),
		PgOff:    binary.LittleEndian.Uint32(buf[16:]),
	}
}

func (header Header) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], header.Magic)
	binary.LittleEndian.PutUint16(buf[4:], header.Version)
	binary.LittleEndian.PutUint16(buf[6:], uint16(header.Platform))
	binary.LittleEndian.PutUint16(buf[8:], header.ShNum)
	binary.LittleEndian.PutUint16(buf[10:], header.PgNum)
	binary.LittleEndian.PutUint32(buf[12:], header.ShOff)
	binary.LittleEndian.PutUint32(buf[16:], header.PgOff)
}

type SectionHeader struct {
	Type   SectionType
	Link   uint16
	Link2  uint16
	Offset uint32
	Size   uint32
}

func decodeSectionHeader(buf []byte) SectionHeader {
	return SectionHeader{
		Type:   SectionType(binary.LittleEndian.Uint16(buf[0:])),
		Link:   binary.LittleEndian.Uint16(buf[2:]),
		Link2:  binary.LittleEndian.Uint16(buf[4:]),
		Offset: binary.LittleEndian.Uint32(buf[8:]),
		Size:   binary.LittleEndian.Uint32(buf[12:]),
	}
}

func (header SectionHeader) encode(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:], uint16(header.Type))
	binary.LittleEndian.PutUint16(buf[2:], header.Link)
	binary.LittleEndian.PutUint16(buf[4:], header.Link2)
	binary.LittleEndian.PutUint16(buf[6:], 0)
	binary.LittleEndian.PutUint32(buf[8:], header.Offset)
	binary.LittleEndian.PutUint32(buf[12:], header.Size)
}

type SymbolEntry struct {
	Name  uint32 // string table index; 0 means unnamed
	Value uint32
	Shndx uint16 // defining section; 0 means undefined
	Extra uint16
}

func decodeSymbolEntry(buf []byte) SymbolEntry {
	return SymbolEntry{
		Name:  binary.LittleEndian.Uint32(buf[0:]),
		Value: binary.LittleEndian.Uint32(buf[4:]),
		Shndx: binary.LittleEndian.Uint16(buf[8:]),
		Extra: binary.LittleEndian.Uint16(buf[10:]),
	}
}

func (entry SymbolEntry) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], entry.Name)
	binary.LittleEndian.PutUint32(buf[4:], entry.Value)
	binary.LittleEndian.PutUint16(buf[8:], entry.Shndx)
	binary.LittleEndian.PutUint16(buf[10:], entry.Extra)
}

type RelocEntry struct {
	Offset uint32
	Symbol uint32 // symbol table position
}

func decodeRelocEntry(buf []byte) RelocEntry {
	return RelocEntry{
		Offset: binary.LittleEndian.Uint32(buf[0:]),
		Symbol: binary.LittleEndian.Uint32(buf[4:]),
	}
}

func (entry RelocEntry) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], entry.Offset)
	binary.LittleEndian.PutUint32(buf[4:], entry.Symbol)
}

type RegAccessEntry struct {
	Offset uint32
	RegNo  uint16
	DUT    uint16
}

func decodeRegAccessEntry(buf []byte) RegAccessEntry {
	return RegAccessEntry{
		Offset: binary.LittleEndian.Uint32(buf[0:]),
		RegNo:  binary.LittleEndian.Uint16(buf[4:]),
		DUT:    binary.LittleEndian.Uint16(buf[6:]),
	}
}

func (entry RegAccessEntry) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], entry.Offset)
	binary.LittleEndian.PutUint16(buf[4:], entry.RegNo)
	binary.LittleEndian.PutUint16(buf[6:], entry.DUT)
}

func decodeToken(buf []byte) collection.Token {
	return collection.Token(binary.LittleEndian.Uint16(buf))
}

func encodeToken(buf []byte, token uint16) {
	binary.LittleEndian.PutUint16(buf, token)
}
