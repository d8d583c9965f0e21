package main

import (
	"fmt"
	"os"

	"github.com/cmrt/fclink/depgraph"
	"github.com/cmrt/fclink/linker"
)

func main() {
	for _, fileName := range os.Args[1:] {
		fmt.Println("=====================")
		fmt.Println("Manifest:", fileName)
		fmt.Println("---------------------")

		manifest, err := linker.LoadManifest(fileName)
		if err != nil {
			fmt.Println("LoadManifest error:", err)
			continue
		}

		options, err := manifest.LinkOptions()
		if err != nil {
			fmt.Println("LinkOptions error:", err)
			continue
		}

		// Policy 2 defers to an external resolver; show the graph policy 1
		// would have built instead.
		if options.Policy == depgraph.Policy2 {
			options.Policy = depgraph.Policy1
		}
		options.Debug = os.Stdout

		kernels, err := manifest.LoadKernels()
		if err != nil {
			fmt.Println("LoadKernels error:", err)
			continue
		}

		l := linker.NewLinker(options)
		linked, err := l.Link(kernels)
		if err != nil {
			fmt.Println("Link error:", err)
			continue
		}

		if l.Graph() == nil {
			fmt.Println("No software scoreboard on", l.Collection().Platform)
		}

		fmt.Println("---------------------")
		for _, bin := range l.Collection().Binaries {
			fmt.Printf("%s at %#x\n", bin, bin.Position)
		}
		fmt.Println("Linked size:", len(linked))
	}
}
