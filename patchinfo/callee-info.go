package patchinfo

import (
	"github.com/cmrt/fclink/collection"
)

// Determines a single kernel's link type (from its entry symbol, i.e., the
// symbol defined at address 0) and whether it carries any relocations.
func CalleeInfo(buf []byte) (collection.LinkType, bool, error) {
	parsed := collection.NewCollection()
	err := NewReader(buf).Read(parsed)
	if err != nil {
		return collection.LinkNone, false, err
	}

	linkType := collection.LinkNone
	for _, sym := range parsed.Symbols() {
		if sym.IsResolved() && sym.Addr == 0 {
			linkType = sym.LinkType()
			break
		}
	}

	hasRelocs := false
	for _, bin := range parsed.Binaries {
		if len(bin.Relocs) > 0 {
			hasRelocs = true
			break
		}
	}

	return linkType, hasRelocs, nil
}
