package depgraph

import (
	"github.com/cmrt/fclink/architecture"
	"github.com/cmrt/fclink/collection"
)

// The last node to access a register, and the access itself.
type liveEntry struct {
	node *Node
	acc  *collection.RegAccess
}

type liveState map[architecture.Register]liveEntry

// Walks binaries in program order and records register dependencies across
// binary boundaries.  Only Policy1 builds a graph.
func (graph *Graph) Build() {
	if graph.Policy != Policy1 {
		return
	}

	state := liveState{}
	seenCaller := false
	for _, bin := range graph.Binaries {
		switch bin.LinkType {
		case collection.LinkCallee:
			// Callees are laid out after all callers.  Their accesses are
			// accounted for at the call sites.
			if seenCaller {
				return
			}
		case collection.LinkCaller:
			seenCaller = true
			graph.processCall(bin, state)
		default:
			graph.processBinary(bin, state)
		}
	}
}

func (graph *Graph) processBinary(bin *collection.Binary, state liveState) {
	for _, acc := range bin.InitRegs {
		if acc.IsBarrierMarker() {
			graph.maybeInsertBarrier(bin, acc.Offset, state)
			continue
		}

		graph.addDependency(state, graph.Node(bin, acc.Offset, false), acc, false)
	}

	for _, acc := range bin.FiniRegs {
		if acc.IsBarrierMarker() {
			continue
		}

		node := graph.Node(bin, acc.Offset, false)
		node.AppendRegAccess(acc)
		state[acc.Reg] = liveEntry{
			node: node,
			acc:  acc,
		}
	}
}

// A caller binary has a single call site.  The callee's entry accesses happen
// at the call site, and the callee's token based exit definitions are owned
// by the call site afterward.
func (graph *Graph) processCall(bin *collection.Binary, state liveState) {
	if len(bin.Relocs) == 0 || !bin.Relocs[0].Symbol.IsResolved() {
		graph.processBinary(bin, state)
		return
	}

	reloc := bin.Relocs[0]
	callee := reloc.Symbol.Binary
	callSite := graph.Node(bin, reloc.Offset, false)

	for _, acc := range callee.InitRegs {
		if acc.IsBarrierMarker() {
			graph.maybeInsertBarrier(bin, reloc.Offset, state)
			continue
		}

		graph.addDependency(state, callSite, acc, true)
	}

	for _, acc := range callee.FiniRegs {
		if acc.IsBarrierMarker() || !acc.DUT.IsDefByToken() {
			continue
		}

		callSite.AppendRegAccess(acc)
		state[acc.Reg] = liveEntry{
			node: callSite,
			acc:  acc,
		}
	}
}

func (graph *Graph) addDependency(
	state liveState,
	node *Node,
	acc *collection.RegAccess,
	requireToken bool,
) {
	prev, ok := state[acc.Reg]
	if !ok { // untracked
		return
	}

	if prev.acc.DUT.IsUse() && acc.DUT.IsUse() { // read after read
		return
	}

	if requireToken && !prev.acc.DUT.HasToken() {
		return
	}

	edge := graph.Edge(prev.node, node, prev.acc.DUT.IsDef())
	if edge == nil {
		return
	}

	node.AppendRegAccess(acc)
}

// Inserts a barrier at the program point when any live access is token
// based.  The barrier subsumes every earlier dependency, so the live state
// is cleared.
func (graph *Graph) maybeInsertBarrier(
	bin *collection.Binary,
	offset uint32,
	state liveState,
) bool {
	waitReads := false
	waitWrites := false
	for _, entry := range state {
		if entry.acc.DUT.IsDefByToken() {
			waitWrites = true
		}
		if entry.acc.DUT.IsUseByToken() {
			waitReads = true
		}
	}

	if !waitReads && !waitWrites {
		return false
	}

	barrier := graph.Node(bin, offset, true)
	if waitReads {
		barrier.ReadTokens = architecture.AllTokens
	}
	if waitWrites {
		barrier.WriteTokens = architecture.AllTokens
	}
	graph.insertSyncPoint(barrier)

	clear(state)
	return true
}
