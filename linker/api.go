package linker

import (
	"github.com/cmrt/fclink/collection"
	"github.com/cmrt/fclink/patchinfo"
)

// Determines whether a single kernel is a caller, a callee or neither, and
// whether it carries any relocations.
func GetCalleeInfo(patchInfo []byte) (collection.LinkType, bool, error) {
	return patchinfo.CalleeInfo(patchInfo)
}

func CombineKernels(kernels []Kernel, options Options) ([]byte, error) {
	return NewLinker(options).Link(kernels)
}

// Links into dst and returns the number of bytes written.  When dst is too
// small, nothing is written and a *NoBufsError with the exact required size
// is returned, along with that size.
func CombineKernelsInto(
	dst []byte,
	kernels []Kernel,
	options Options,
) (
	int,
	error,
) {
	linked, err := CombineKernels(kernels, options)
	if err != nil {
		return 0, err
	}

	if len(linked) > len(dst) {
		return len(linked), &NoBufsError{
			Required: len(linked),
			Provided: len(dst),
		}
	}

	return copy(dst, linked), nil
}
