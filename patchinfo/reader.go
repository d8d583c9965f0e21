package patchinfo

import (
	"bytes"

	"github.com/cmrt/fclink/architecture"
	"github.com/cmrt/fclink/collection"
)

// Decodes a single patch info blob into a collection.  Sections are read
// lazily: reading a section first reads the sections it links to, and every
// section is read at most once.
type Reader struct {
	buf []byte

	header   Header
	sections []SectionHeader

	collection *collection.Collection

	binaries     map[uint16]*collection.Binary
	binaryOrder  []*collection.Binary
	symbolTables map[uint16][]*collection.Symbol // by table position
	stringTables map[uint16][]byte
	relocTables  map[uint16]struct{}
	initRegs     map[uint16]struct{}
	finiRegs     map[uint16]struct{}
	tokenTables  map[uint16]struct{}
}

func NewReader(buf []byte) *Reader {
	return &Reader{
		buf:          buf,
		binaries:     map[uint16]*collection.Binary{},
		symbolTables: map[uint16][]*collection.Symbol{},
		stringTables: map[uint16][]byte{},
		relocTables:  map[uint16]struct{}{},
		initRegs:     map[uint16]struct{}{},
		finiRegs:     map[uint16]struct{}{},
		tokenTables:  map[uint16]struct{}{},
	}
}

// Binaries read from this blob, in the order they were added to the
// collection.
func (reader *Reader) Binaries() []*collection.Binary {
	return reader.binaryOrder
}

func (reader *Reader) Header() Header {
	return reader.header
}

func (reader *Reader) Sections() []SectionHeader {
	return reader.sections
}

// Reads the whole blob into the collection.  The collection may already hold
// the content of previously read blobs, in which case the platforms must
// agree.
func (reader *Reader) Read(dest *collection.Collection) error {
	reader.collection = dest

	err := reader.readHeader()
	if err != nil {
		return err
	}

	for idx, section := range reader.sections {
		shIdx := uint16(idx)

		switch section.Type {
		case SectionNone:
		case SectionBinary:
			_, err = reader.readBinary(shIdx)
		case SectionReloc:
			err = reader.readRelocs(shIdx)
		case SectionSymbols:
			_, err = reader.readSymbols(shIdx)
		case SectionStrings:
			_, err = reader.readStrings(shIdx)
		case SectionInitRegs:
			err = reader.readRegAccesses(shIdx, reader.initRegs, true)
		case SectionFiniRegs:
			err = reader.readRegAccesses(shIdx, reader.finiRegs, false)
		case SectionTokens:
			err = reader.readTokens(shIdx)
		default:
			err = formatError("section %d: unknown type (%s)", idx, section.Type)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func (reader *Reader) readHeader() error {
	if len(reader.buf) < HeaderSize {
		return formatError(
			"buffer too small for header (%d < %d)",
			len(reader.buf),
			HeaderSize)
	}

	header := decodeHeader(reader.buf)
	if header.Magic != Magic {
		return formatError("bad magic (%#x)", header.Magic)
	}

	if header.Version != Version {
		return formatError("unsupported version (%d)", header.Version)
	}

	if !header.Platform.IsValid() {
		return formatError("unknown platform (%s)", header.Platform)
	}

	err := reader.collection.SetPlatform(header.Platform)
	if err != nil {
		return formatError("%s", err)
	}

	tableEnd := uint64(header.ShOff) +
		uint64(header.ShNum)*uint64(SectionHeaderSize)
	if tableEnd > uint64(len(reader.buf)) {
		return formatError(
			"section header table [%d, %d) out of bound (%d)",
			header.ShOff,
			tableEnd,
			len(reader.buf))
	}

	sections := make([]SectionHeader, 0, header.ShNum)
	for idx := 0; idx < int(header.ShNum); idx++ {
		start := int(header.ShOff) + idx*SectionHeaderSize
		section := decodeSectionHeader(reader.buf[start:])

		end := uint64(section.Offset) + uint64(section.Size)
		if end > uint64(len(reader.buf)) {
			return formatError(
				"section %d (%s) [%d, %d) out of bound (%d)",
				idx,
				section.Type,
				section.Offset,
				end,
				len(reader.buf))
		}

		sections = append(sections, section)
	}

	reader.header = header
	reader.sections = sections
	return nil
}

func (reader *Reader) section(
	idx uint16,
	expected SectionType,
) (
	SectionHeader,
	[]byte,
	error,
) {
	if int(idx) >= len(reader.sections) {
		return SectionHeader{}, nil, formatError(
			"section index %d out of bound (%d)",
			idx,
			len(reader.sections))
	}

	section := reader.sections[idx]
	if section.Type != expected {
		return SectionHeader{}, nil, formatError(
			"section %d: expected %s, found %s",
			idx,
			expected,
			section.Type)
	}

	data := reader.buf[section.Offset : section.Offset+section.Size]
	return section, data, nil
}

func entryCount(
	idx uint16,
	section SectionHeader,
	entrySize int,
) (
	int,
	error,
) {
	if int(section.Size)%entrySize != 0 {
		return 0, formatError(
			"section %d (%s): size %d is not a multiple of %d",
			idx,
			section.Type,
			section.Size,
			entrySize)
	}
	return int(section.Size) / entrySize, nil
}

func (reader *Reader) readBinary(idx uint16) (*collection.Binary, error) {
	bin, ok := reader.binaries[idx]
	if ok {
		return bin, nil
	}

	_, data, err := reader.section(idx, SectionBinary)
	if err != nil {
		return nil, err
	}

	bin = reader.collection.AddBinary(data)
	reader.binaries[idx] = bin
	reader.binaryOrder = append(reader.binaryOrder, bin)
	return bin, nil
}

func (reader *Reader) readStrings(idx uint16) ([]byte, error) {
	strs, ok := reader.stringTables[idx]
	if ok {
		return strs, nil
	}

	_, data, err := reader.section(idx, SectionStrings)
	if err != nil {
		return nil, err
	}

	reader.stringTables[idx] = data
	return data, nil
}

func stringAt(strs []byte, idx uint32) (string, bool) {
	if int(idx) >= len(strs) {
		return "", false
	}

	str := strs[idx:]
	end := bytes.IndexByte(str, 0)
	if end < 0 {
		return string(str), true
	}
	return string(str[:end]), true
}

func (reader *Reader) readSymbols(idx uint16) ([]*collection.Symbol, error) {
	symbols, ok := reader.symbolTables[idx]
	if ok {
		return symbols, nil
	}

	section, data, err := reader.section(idx, SectionSymbols)
	if err != nil {
		return nil, err
	}

	count, err := entryCount(idx, section, SymbolEntrySize)
	if err != nil {
		return nil, err
	}

	strs, err := reader.readStrings(section.Link)
	if err != nil {
		return nil, err
	}

	symbols = make([]*collection.Symbol, count)
	for pos := 0; pos < count; pos++ {
		entry := decodeSymbolEntry(data[pos*SymbolEntrySize:])
		if entry.Name == 0 {
			continue
		}

		name, ok := stringAt(strs, entry.Name)
		if !ok {
			return nil, formatError(
				"section %d: symbol %d name index %d out of bound (%d)",
				idx,
				pos,
				entry.Name,
				len(strs))
		}

		if name == "" {
			continue
		}

		var bin *collection.Binary
		if entry.Shndx != 0 {
			bin, err = reader.readBinary(entry.Shndx)
			if err != nil {
				return nil, err
			}
		}

		symbols[pos] = reader.collection.AddSymbol(
			name,
			bin,
			entry.Value,
			entry.Extra)
	}

	reader.symbolTables[idx] = symbols
	return symbols, nil
}

func (reader *Reader) readRelocs(idx uint16) error {
	_, ok := reader.relocTables[idx]
	if ok {
		return nil
	}

	section, data, err := reader.section(idx, SectionReloc)
	if err != nil {
		return err
	}

	count, err := entryCount(idx, section, RelocEntrySize)
	if err != nil {
		return err
	}

	symbols, err := reader.readSymbols(section.Link)
	if err != nil {
		return err
	}

	bin, err := reader.readBinary(section.Link2)
	if err != nil {
		return err
	}

	for pos := 0; pos < count; pos++ {
		entry := decodeRelocEntry(data[pos*RelocEntrySize:])
		if int(entry.Symbol) >= len(symbols) {
			return formatError(
				"section %d: relocation %d symbol index %d out of bound (%d)",
				idx,
				pos,
				entry.Symbol,
				len(symbols))
		}

		sym := symbols[entry.Symbol]
		if sym == nil {
			return formatError(
				"section %d: relocation %d refers to unnamed symbol %d",
				idx,
				pos,
				entry.Symbol)
		}

		bin.AddReloc(entry.Offset, sym)
	}

	reader.relocTables[idx] = struct{}{}
	return nil
}

func (reader *Reader) readRegAccesses(
	idx uint16,
	visited map[uint16]struct{},
	isInit bool,
) error {
	_, ok := visited[idx]
	if ok {
		return nil
	}

	expected := SectionFiniRegs
	if isInit {
		expected = SectionInitRegs
	}

	section, data, err := reader.section(idx, expected)
	if err != nil {
		return err
	}

	count, err := entryCount(idx, section, RegAccessSize)
	if err != nil {
		return err
	}

	bin, err := reader.readBinary(section.Link)
	if err != nil {
		return err
	}

	for pos := 0; pos < count; pos++ {
		entry := decodeRegAccessEntry(data[pos*RegAccessSize:])

		reg := architecture.Register(entry.RegNo)
		if reg != architecture.RegNone && !reg.IsValid() {
			return formatError(
				"section %d: register access %d has invalid register %d",
				idx,
				pos,
				entry.RegNo)
		}

		dut := architecture.DefUseToken(entry.DUT)
		if isInit {
			bin.AddInitRegAccess(entry.Offset, reg, dut)
		} else {
			bin.AddFiniRegAccess(entry.Offset, reg, dut)
		}
	}

	visited[idx] = struct{}{}
	return nil
}

func (reader *Reader) readTokens(idx uint16) error {
	_, ok := reader.tokenTables[idx]
	if ok {
		return nil
	}

	section, data, err := reader.section(idx, SectionTokens)
	if err != nil {
		return err
	}

	count, err := entryCount(idx, section, TokenEntrySize)
	if err != nil {
		return err
	}

	bin, err := reader.readBinary(section.Link)
	if err != nil {
		return err
	}

	for pos := 0; pos < count; pos++ {
		bin.AddToken(decodeToken(data[pos*TokenEntrySize:]))
	}

	reader.tokenTables[idx] = struct{}{}
	return nil
}
