package main

import (
	"fmt"
	"os"

	"github.com/cmrt/fclink/collection"
	"github.com/cmrt/fclink/linker"
	"github.com/cmrt/fclink/patchinfo"
)

func main() {
	for _, fileName := range os.Args[1:] {
		fmt.Println("=====================")
		fmt.Println("File name:", fileName)
		fmt.Println("---------------------")
		content, err := os.ReadFile(fileName)
		if err != nil {
			fmt.Println("ReadFile error:", err)
			continue
		}

		linkType, hasRelocs, err := linker.GetCalleeInfo(content)
		if err != nil {
			fmt.Println("GetCalleeInfo error:", err)
			continue
		}
		fmt.Println("Link type:", linkType)
		fmt.Println("Has relocations:", hasRelocs)
		fmt.Println("---------------------")

		parsed := collection.NewCollection()
		reader := patchinfo.NewReader(content)
		err = reader.Read(parsed)
		if err != nil {
			fmt.Println("Read error:", err)
			continue
		}

		for idx, section := range reader.Sections() {
			fmt.Printf(
				"section %d: %s link=%d link2=%d offset=%d size=%d\n",
				idx,
				section.Type,
				section.Link,
				section.Link2,
				section.Offset,
				section.Size)
		}
		fmt.Println("---------------------")

		err = patchinfo.Dump(os.Stdout, parsed)
		if err != nil {
			fmt.Println("Dump error:", err)
		}
	}
}
