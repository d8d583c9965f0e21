package collection

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/cmrt/fclink/platform"
)

// Owns all binaries and symbols for a single link.  Every Binary and Symbol
// is individually allocated and never moved, so pointers handed out remain
// valid for the collection's lifetime.
type Collection struct {
	Platform platform.ID

	Binaries []*Binary

	symbols map[string]*Symbol

	// Symbols in insertion order (including renamed duplicates).
	symbolList []*Symbol

	uniqueNameCounter int

	// The final linked output.
	LinkedBinary []byte
}

func NewCollection() *Collection {
	return &Collection{
		symbols: map[string]*Symbol{},
	}
}

// Sets the collection's platform the first time; subsequent calls must agree.
func (collection *Collection) SetPlatform(id platform.ID) error {
	if collection.Platform == platform.Unknown {
		collection.Platform = id
		return nil
	}

	if collection.Platform != id {
		return errors.Errorf(
			"platform mismatch (%s != %s)",
			id,
			collection.Platform)
	}
	return nil
}

func (collection *Collection) AddBinary(data []byte) *Binary {
	binary := &Binary{
		Index:    len(collection.Binaries),
		Data:     data,
		Position: Unplaced,
	}
	collection.Binaries = append(collection.Binaries, binary)
	return binary
}

func (collection *Collection) Symbol(name string) *Symbol {
	return collection.symbols[name]
}

// All symbols in insertion order.
func (collection *Collection) Symbols() []*Symbol {
	return collection.symbolList
}

func (collection *Collection) UniqueName(name string) string {
	for {
		unique := fmt.Sprintf("%s!%d", name, collection.uniqueNameCounter)
		collection.uniqueNameCounter++

		_, ok := collection.symbols[unique]
		if !ok {
			return unique
		}
	}
}

// Adds (or merges into) the named symbol.  A nil binary means the symbol is
// only referenced.  When both the existing and the new symbol are defined,
// the new definition is kept under a fresh unique name so that multiple
// copies of the same kernel stay distinguishable.
func (collection *Collection) AddSymbol(
	name string,
	binary *Binary,
	addr uint32,
	extra uint16,
) *Symbol {
	sym, ok := collection.symbols[name]
	if ok {
		if binary == nil {
			return sym
		}

		if sym.Binary == nil {
			sym.Binary = binary
			sym.Addr = addr
			sym.Extra = extra
			return sym
		}

		name = collection.UniqueName(name)
	}

	sym = &Symbol{
		Name:   name,
		Binary: binary,
		Addr:   addr,
		Extra:  extra,
	}
	collection.symbols[name] = sym
	collection.symbolList = append(collection.symbolList, sym)
	return sym
}

func (collection *Collection) UnresolvedSymbols() []*Symbol {
	result := []*Symbol{}
	for _, sym := range collection.symbolList {
		if !sym.IsResolved() {
			result = append(result, sym)
		}
	}
	return result
}
