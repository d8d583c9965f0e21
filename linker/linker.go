package linker

import (
	"fmt"

	"github.com/pattyshack/gt/parseutil"
	"github.com/pkg/errors"

	"github.com/cmrt/fclink/architecture"
	"github.com/cmrt/fclink/collection"
	"github.com/cmrt/fclink/depgraph"
	"github.com/cmrt/fclink/patchinfo"
	"github.com/cmrt/fclink/platform"
	"github.com/cmrt/fclink/platform/targets"
	"github.com/cmrt/fclink/util"
)

// A separately compiled kernel: its patch info and its machine code.
type Kernel struct {
	Name string

	PatchInfo []byte
	Code      []byte
}

// Bytes spliced into a binary before the instruction at offset.
type insertion struct {
	offset uint32
	size   int
}

type linkPass func(*Linker)

func (pass linkPass) Process(linker *Linker) {
	pass(linker)
}

// Links a set of kernels into a single buffer.  A Linker is single use.
type Linker struct {
	*parseutil.Emitter

	Options

	kernels []Kernel

	collection *collection.Collection
	graph      *depgraph.Graph
	encoder    Encoder

	entries map[*collection.Binary]*collection.Symbol

	// The last non-callee binary.  It's followed by the end of thread
	// sequence.
	lastTopLevel *collection.Binary
	eotToken     uint16
	waitEOTToken bool

	insertions map[*collection.Binary][]insertion

	output []byte
}

func NewLinker(options Options) *Linker {
	return &Linker{
		Emitter:    &parseutil.Emitter{},
		Options:    options,
		collection: collection.NewCollection(),
		entries:    map[*collection.Binary]*collection.Symbol{},
		insertions: map[*collection.Binary][]insertion{},
	}
}

func (linker *Linker) Collection() *collection.Collection {
	return linker.collection
}

// nil unless the target platform uses software scoreboarding.
func (linker *Linker) Graph() *depgraph.Graph {
	return linker.graph
}

func (linker *Linker) Link(kernels []Kernel) ([]byte, error) {
	if linker.kernels != nil {
		panic("linker reused")
	}
	linker.kernels = kernels

	util.Process(
		linker,
		[][]util.Pass[*Linker]{
			{linkPass((*Linker).readPatchInfo)},
			{linkPass((*Linker).checkSymbols)},
			{linkPass((*Linker).bindEntrySymbols)},
			{linkPass((*Linker).assignCode)},
			{linkPass((*Linker).schedule)},
			{linkPass((*Linker).emit)},
			{linkPass((*Linker).relocate)},
			{linkPass((*Linker).resolveDependencies)},
		},
		linker.HasErrors)

	if linker.HasErrors() {
		return nil, linker.failure()
	}

	linker.collection.LinkedBinary = linker.output
	return linker.output, nil
}

func (linker *Linker) failure() error {
	errs := linker.Errors()
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Wrapf(errs[0], "link failed with %d errors", len(errs))
}

func (linker *Linker) kernelName(idx int) string {
	name := linker.kernels[idx].Name
	if name == "" {
		name = fmt.Sprintf("kernel%d", idx)
	}
	return name
}

func (linker *Linker) readPatchInfo() {
	if linker.Platform != platform.Unknown {
		err := linker.collection.SetPlatform(linker.Platform)
		if err != nil {
			linker.EmitErrors(err)
			return
		}
	}

	for idx, kernel := range linker.kernels {
		err := patchinfo.NewReader(kernel.PatchInfo).Read(linker.collection)
		if err != nil {
			linker.EmitErrors(errors.Wrapf(err, "%s", linker.kernelName(idx)))
		}
	}
}

func (linker *Linker) checkSymbols() {
	for _, sym := range linker.collection.UnresolvedSymbols() {
		linker.EmitErrors(linkageError("unresolved symbol (%s)", sym.Name))
	}
}

func (linker *Linker) bindEntrySymbols() {
	for _, sym := range linker.collection.Symbols() {
		if sym.Addr != 0 {
			continue
		}

		_, ok := linker.entries[sym.Binary]
		if ok {
			continue
		}

		linker.entries[sym.Binary] = sym
		sym.Binary.Name = sym.Name
	}
}

func (linker *Linker) assignCode() {
	binaries := linker.collection.Binaries
	if len(binaries) != len(linker.kernels) {
		linker.EmitErrors(
			linkageError(
				"binary count (%d) does not match kernel count (%d)",
				len(binaries),
				len(linker.kernels)))
		return
	}

	for idx, bin := range binaries {
		sym, ok := linker.entries[bin]
		if !ok {
			linker.EmitErrors(
				linkageError(
					"%s: bin%d has no entry symbol",
					linker.kernelName(idx),
					bin.Index))
			continue
		}

		bin.Data = linker.kernels[idx].Code
		bin.ClearSyncPoints()
		bin.LinkType = sym.LinkType()

		if bin.IsCallee() {
			continue
		}

		linker.lastTopLevel = bin
		linker.waitEOTToken = false
		for _, acc := range bin.FiniRegs {
			if acc.Reg != architecture.EOTRegister {
				continue
			}

			token, ok := acc.DUT.Token()
			if ok {
				linker.eotToken = token
				linker.waitEOTToken = true
			}
		}
	}
}

func (linker *Linker) schedule() {
	target, err := targets.Lookup(linker.collection.Platform)
	if err != nil {
		linker.EmitErrors(err)
		return
	}
	linker.encoder = NewEncoder(target)

	if !target.SupportsSWSB() {
		return
	}

	linker.graph = depgraph.NewGraph(linker.collection, linker.Policy)
	linker.graph.Build()
	linker.graph.Resolve()

	if linker.Debug != nil {
		err := linker.graph.Dump(linker.Debug)
		if err != nil {
			linker.EmitErrors(errors.Wrap(err, "failed to dump dependency graph"))
		}
	}
}

func (linker *Linker) emit() {
	size := architecture.PrefetchPadSize
	for _, bin := range linker.collection.Binaries {
		size += architecture.AlignedSize(bin.Size())
	}
	output := make([]byte, 0, size)

	for _, bin := range linker.collection.Binaries {
		output = linker.encoder.Align(output)
		bin.Position = len(output)

		bin.SortSyncPoints()
		start := 0
		for _, point := range bin.SyncPoints {
			offset := int(point.Offset())
			if offset > bin.Size() {
				linker.EmitErrors(
					linkageError(
						"%s: sync point %#x out of bound",
						bin,
						offset))
				return
			}

			output = append(output, bin.Data[start:offset]...)
			start = offset

			rd, wr := point.TokenMasks()
			sync := linker.encoder.WriteSync(rd, wr)
			if len(sync) == 0 {
				continue
			}

			output = append(output, sync...)
			linker.insertions[bin] = append(
				linker.insertions[bin],
				insertion{
					offset: uint32(offset),
					size:   len(sync),
				})
		}
		output = append(output, bin.Data[start:]...)

		if bin == linker.lastTopLevel {
			output = append(
				output,
				linker.encoder.EndOfThread(linker.eotToken, linker.waitEOTToken)...)
		}
	}

	linker.output = linker.encoder.PrefetchPad(output)
}

// Maps an offset within the input binary to the offset within the
// binary's placed (sync annotated) copy.  Sync instructions inserted at the
// offset itself are included only when inclusive is true.
func (linker *Linker) adjustedOffset(
	bin *collection.Binary,
	offset uint32,
	inclusive bool,
) int {
	result := int(offset)
	for _, inserted := range linker.insertions[bin] {
		if inserted.offset < offset || (inclusive && inserted.offset == offset) {
			result += inserted.size
		}
	}
	return result
}

func (linker *Linker) relocate() {
	binaries := linker.collection.Binaries

	binErrs := make([][]error, len(binaries))
	util.ParallelProcess(
		binaries,
		func(bin *collection.Binary) {
			binErrs[bin.Index] = linker.relocateBinary(bin)
		})

	for _, errs := range binErrs {
		for _, err := range errs {
			linker.EmitErrors(err)
		}
	}
}

// Each binary only patches its own placed region of the output.
func (linker *Linker) relocateBinary(bin *collection.Binary) []error {
	errs := []error{}
	for _, reloc := range bin.Relocs {
		target := reloc.Symbol.Binary
		if bin.Position == collection.Unplaced ||
			target == nil ||
			target.Position == collection.Unplaced {

			errs = append(
				errs,
				linkageError(
					"%s: relocation at %#x to unplaced symbol (%s)",
					bin,
					reloc.Offset,
					reloc.Symbol.Name))
			continue
		}

		site := bin.Position + linker.adjustedOffset(bin, reloc.Offset, true)
		dest := target.Position +
			linker.adjustedOffset(target, reloc.Symbol.Addr, false)

		err := platform.PatchIPRel32(linker.output, site, int32(dest-site))
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "%s", bin))
		}
	}
	return errs
}

func (linker *Linker) resolveDependencies() {
	if linker.Policy != depgraph.Policy2 {
		return
	}

	if linker.Resolver == nil {
		linker.EmitErrors(errors.Wrap(ErrResolver, "no dependency resolver"))
		return
	}

	resolved, err := linker.Resolver.Resolve(
		linker.collection.Platform,
		linker.output)
	if err != nil {
		linker.EmitErrors(errors.Wrapf(ErrResolver, "%s", err))
		return
	}

	linker.output = resolved
}
