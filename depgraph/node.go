package depgraph

import (
	"fmt"

	"github.com/cmrt/fclink/architecture"
	"github.com/cmrt/fclink/collection"
)

// Successor classes, indexed by whether the dependency goes through the
// head's prior use (0) or prior definition (1) of the register.
const (
	fromUse = 0
	fromDef = 1
)

func successorClass(headIsDef bool) int {
	if headIsDef {
		return fromDef
	}
	return fromUse
}

// A program point (binary, byte offset) in the linked program.  Barrier nodes
// share their program point with the regular node at the same offset but are
// distinct nodes.
type Node struct {
	Binary    *collection.Binary
	offset    uint32
	IsBarrier bool

	// Deduplicated register accesses occurring at this point.
	Accesses []*collection.RegAccess

	// In-order distance (in instructions) to wait for.  0 means no numeric
	// wait is required.
	Distance int

	ReadTokens  architecture.TokenMask
	WriteTokens architecture.TokenMask

	// Nodes this node depends on.
	From []*Node

	// Nodes depending on this node, by successor class.
	To [2][]*Node

	isSyncPoint bool
}

var _ collection.SyncPoint = &Node{}

func (node *Node) Offset() uint32 {
	return node.offset
}

func (node *Node) TokenMasks() (architecture.TokenMask, architecture.TokenMask) {
	return node.ReadTokens, node.WriteTokens
}

func (node *Node) IsSyncPoint() bool {
	return node.isSyncPoint
}

// Repeated calls with structurally equal accesses are no-ops.
func (node *Node) AppendRegAccess(acc *collection.RegAccess) {
	for _, existing := range node.Accesses {
		if *existing == *acc {
			return
		}
	}
	node.Accesses = append(node.Accesses, acc)
}

func (node *Node) UpdateDistance(distance int) {
	if distance <= 0 {
		return
	}

	if node.Distance == 0 || distance < node.Distance {
		node.Distance = distance
	}
}

func (node *Node) String() string {
	kind := ""
	if node.IsBarrier {
		kind = " barrier"
	}
	return fmt.Sprintf("bin%d+%#x%s", node.Binary.Index, node.offset, kind)
}

type Edge struct {
	Head *Node
	Tail *Node

	HeadIsDef bool
}

func (edge *Edge) String() string {
	kind := "use"
	if edge.HeadIsDef {
		kind = "def"
	}
	return fmt.Sprintf("%s -(%s)-> %s", edge.Head, kind, edge.Tail)
}
