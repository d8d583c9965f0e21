package main

import (
	"fmt"
	"os"

	"github.com/cmrt/fclink/linker"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Println("usage:", os.Args[0], "<manifest.yaml>")
		os.Exit(2)
	}

	manifest, err := linker.LoadManifest(os.Args[1])
	if err != nil {
		fmt.Println("LoadManifest error:", err)
		os.Exit(1)
	}

	options, err := manifest.LinkOptions()
	if err != nil {
		fmt.Println("LinkOptions error:", err)
		os.Exit(1)
	}

	kernels, err := manifest.LoadKernels()
	if err != nil {
		fmt.Println("LoadKernels error:", err)
		os.Exit(1)
	}

	linked, err := linker.CombineKernels(kernels, options)
	if err != nil {
		fmt.Println("CombineKernels error:", err)
		os.Exit(1)
	}

	output := manifest.OutputPath()
	if output == "" {
		output = "linked.bin"
	}

	err = os.WriteFile(output, linked, 0o644)
	if err != nil {
		fmt.Println("WriteFile error:", err)
		os.Exit(1)
	}

	fmt.Printf(
		"Linked %d kernels (policy %s) into %s (%d bytes)\n",
		len(kernels),
		options.Policy,
		output,
		len(linked))
}
