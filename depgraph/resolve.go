package depgraph

import (
	"github.com/cmrt/fclink/architecture"
)

// Converts the graph into sync points on the binaries.
func (graph *Graph) Resolve() {
	switch graph.Policy {
	case Policy0:
		graph.resolveWithBarriers()
	case Policy1:
		// Edges are processed in creation (program) order.
		for _, edge := range graph.Edges {
			graph.resolveEdge(edge)
		}
	case Policy2:
		// The external resolver encodes dependencies into the linked binary.
	}
}

func (graph *Graph) resolveWithBarriers() {
	for _, bin := range graph.Binaries {
		if bin.IsCallee() {
			continue
		}

		barrier := graph.Node(bin, 0, true)
		barrier.ReadTokens = architecture.AllTokens
		barrier.WriteTokens = architecture.AllTokens
		graph.insertSyncPoint(barrier)
	}
}

// All edges sharing the tail are resolved together on the first one; the
// tail's predecessor list is then cleared so that the rest are skipped.
func (graph *Graph) resolveEdge(edge *Edge) {
	head := edge.Head
	tail := edge.Tail

	if len(head.To[successorClass(edge.HeadIsDef)]) == 0 || len(tail.From) == 0 {
		return
	}

	if !tail.IsBarrier {
		inst := tail.Binary.InstructionAt(tail.offset)
		tail.UpdateDistance(int(architecture.DecodeDistance(inst)))
	}

	readTokens := tail.ReadTokens
	writeTokens := tail.WriteTokens
	for _, acc := range tail.Accesses {
		for _, pred := range tail.From {
			for _, predAcc := range pred.Accesses {
				if predAcc.Reg != acc.Reg {
					continue
				}

				token, hasToken := predAcc.DUT.Token()
				if predAcc.DUT.IsDef() { // RAW / WAW
					if hasToken {
						writeTokens |= architecture.TokenBit(token)
					} else {
						tail.UpdateDistance(graph.instructionDistance(pred, tail))
					}
				} else if acc.DUT.IsDef() { // WAR
					if hasToken {
						readTokens |= architecture.TokenBit(token)
					}
				}
			}
		}
	}

	if !readTokens.IsAll() {
		readTokens &^= writeTokens
	}

	if tail.Distance > architecture.MaxDistance {
		tail.Distance = 0
	}

	readTokens = normalizeTokens(readTokens)
	writeTokens = normalizeTokens(writeTokens)
	tail.ReadTokens = readTokens
	tail.WriteTokens = writeTokens

	if readTokens.Count()+writeTokens.Count() > 0 {
		barrier := tail
		if !tail.IsBarrier {
			barrier = graph.Node(tail.Binary, tail.offset, true)
		}

		barrier.ReadTokens = normalizeTokens(barrier.ReadTokens | readTokens)
		barrier.WriteTokens = normalizeTokens(barrier.WriteTokens | writeTokens)
		graph.insertSyncPoint(barrier)
	}

	tail.From = nil
}

// Hardware encodes a single token per field; anything else waits on all
// tokens.  Tokens beyond the hardware token count can't be waited on
// individually either.
func normalizeTokens(mask architecture.TokenMask) architecture.TokenMask {
	mask = mask.Normalize()
	if mask != 0 && !mask.IsAll() && mask.Tokens()[0] >= architecture.NumTokens {
		return architecture.AllTokens
	}
	return mask
}
