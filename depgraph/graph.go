package depgraph

import (
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cmrt/fclink/architecture"
	"github.com/cmrt/fclink/collection"
)

type Policy int

const (
	// No graph.  Every top level binary starts with a full barrier.
	Policy0 = Policy(iota)

	// Graph based scheduling.
	Policy1

	// Dependencies are resolved by an external resolver on the linked binary.
	Policy2
)

func (policy Policy) String() string {
	switch policy {
	case Policy0:
		return "p0"
	case Policy1:
		return "p1"
	case Policy2:
		return "p2"
	default:
		return fmt.Sprintf("p(%d)", int(policy))
	}
}

func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "p0":
		return Policy0, nil
	case "p1":
		return Policy1, nil
	case "p2":
		return Policy2, nil
	default:
		return Policy1, errors.Errorf("unknown swsb policy (%s)", name)
	}
}

func (policy Policy) MarshalYAML() (interface{}, error) {
	return policy.String(), nil
}

func (policy *Policy) UnmarshalYAML(value *yaml.Node) error {
	name := ""
	err := value.Decode(&name)
	if err != nil {
		return err
	}

	parsed, err := ParsePolicy(name)
	if err != nil {
		return errors.Wrapf(err, "line %d", value.Line)
	}

	*policy = parsed
	return nil
}

type nodeKey struct {
	binary  *collection.Binary
	offset  uint32
	barrier bool
}

type edgeKey struct {
	head *Node
	tail *Node
}

// Register dependency graph across all binaries of a collection.  Nodes and
// edges are interned and kept in creation order; they live as long as the
// graph.
type Graph struct {
	*collection.Collection

	Policy Policy

	Nodes []*Node

	// In creation order, which is program order.  Resolve depends on this.
	Edges []*Edge

	nodes map[nodeKey]*Node
	edges map[edgeKey]*Edge
}

func NewGraph(source *collection.Collection, policy Policy) *Graph {
	return &Graph{
		Collection: source,
		Policy:     policy,
		nodes:      map[nodeKey]*Node{},
		edges:      map[edgeKey]*Edge{},
	}
}

// Returns the node for the program point, creating it on first use.
func (graph *Graph) Node(
	binary *collection.Binary,
	offset uint32,
	barrier bool,
) *Node {
	key := nodeKey{
		binary:  binary,
		offset:  offset,
		barrier: barrier,
	}

	node, ok := graph.nodes[key]
	if ok {
		return node
	}

	node = &Node{
		Binary:    binary,
		offset:    offset,
		IsBarrier: barrier,
	}
	graph.nodes[key] = node
	graph.Nodes = append(graph.Nodes, node)
	return node
}

// Returns the edge from head to tail, creating it on first use.  Self edges
// are never created; nil is returned instead.
func (graph *Graph) Edge(head *Node, tail *Node, headIsDef bool) *Edge {
	if head == tail {
		return nil
	}

	key := edgeKey{
		head: head,
		tail: tail,
	}

	edge, ok := graph.edges[key]
	if ok {
		return edge
	}

	edge = &Edge{
		Head:      head,
		Tail:      tail,
		HeadIsDef: headIsDef,
	}
	graph.edges[key] = edge
	graph.Edges = append(graph.Edges, edge)

	class := successorClass(headIsDef)
	head.To[class] = append(head.To[class], tail)
	tail.From = append(tail.From, head)
	return edge
}

func (graph *Graph) insertSyncPoint(node *Node) {
	if node.isSyncPoint {
		return
	}
	node.isSyncPoint = true
	node.Binary.InsertSyncPoint(node)
}

// In-order distance (in instructions) between two program points, assuming
// binaries are laid out back to back in collection order.
func (graph *Graph) instructionDistance(from *Node, to *Node) int {
	if from.Binary == to.Binary {
		if to.offset < from.offset {
			return 0
		}
		return int(to.offset-from.offset) / architecture.InstructionSize
	}

	if to.Binary.Index < from.Binary.Index {
		return 0
	}

	byteSize := from.Binary.Size() - int(from.offset)
	for idx := from.Binary.Index + 1; idx < to.Binary.Index; idx++ {
		byteSize += graph.Binaries[idx].Size()
	}
	byteSize += int(to.offset)

	return byteSize / architecture.InstructionSize
}
