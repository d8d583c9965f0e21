package patchinfo

import (
	"bytes"
	"fmt"
	"io"

	"github.com/cmrt/fclink/collection"
)

func CollectionString(source *collection.Collection) string {
	buffer := &bytes.Buffer{}
	_ = Dump(buffer, source)
	return buffer.String()
}

// This is only for debugging purpose.
func Dump(output io.Writer, source *collection.Collection) error {
	buffer := &bytes.Buffer{}
	printf := func(template string, args ...interface{}) {
		fmt.Fprintf(buffer, template, args...)
	}

	printf("Platform: %s\n", source.Platform)
	printf("------------------------------------------\n")
	printf("Symbols:\n")
	for _, sym := range source.Symbols() {
		printf("  %s (%s)\n", sym, sym.LinkType())
	}

	for _, bin := range source.Binaries {
		printf("------------------------------------------\n")
		printf("%s size=%d\n", bin, bin.Size())

		if len(bin.Relocs) > 0 {
			printf("  Relocations:\n")
			for _, reloc := range bin.Relocs {
				printf("    %#x -> %s\n", reloc.Offset, reloc.Symbol.Name)
			}
		}

		if len(bin.InitRegs) > 0 {
			printf("  InitRegs:\n")
			for _, acc := range bin.InitRegs {
				printf("    %s\n", acc)
			}
		}

		if len(bin.FiniRegs) > 0 {
			printf("  FiniRegs:\n")
			for _, acc := range bin.FiniRegs {
				printf("    %s\n", acc)
			}
		}

		if len(bin.Tokens) > 0 {
			printf("  Tokens: %v\n", bin.Tokens)
		}
	}
	printf("==========================================\n")

	_, err := output.Write(buffer.Bytes())
	return err
}
