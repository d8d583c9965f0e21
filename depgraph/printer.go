package depgraph

import (
	"bytes"
	"fmt"
	"io"
)

func (graph *Graph) String() string {
	buffer := &bytes.Buffer{}
	_ = graph.Dump(buffer)
	return buffer.String()
}

// This is only for debugging purpose.
func (graph *Graph) Dump(output io.Writer) error {
	buffer := &bytes.Buffer{}
	printf := func(template string, args ...interface{}) {
		fmt.Fprintf(buffer, template, args...)
	}

	printf("Dependency graph (policy %s)\n", graph.Policy)
	printf("------------------------------------------\n")
	printf("Nodes:\n")
	for _, node := range graph.Nodes {
		syncPoint := ""
		if node.isSyncPoint {
			syncPoint = " (sync)"
		}

		printf(
			"  %s%s: distance=%d rd=%s wr=%s\n",
			node,
			syncPoint,
			node.Distance,
			node.ReadTokens,
			node.WriteTokens)
		for _, acc := range node.Accesses {
			printf("    %s\n", acc)
		}
	}

	printf("------------------------------------------\n")
	printf("Edges:\n")
	for _, edge := range graph.Edges {
		printf("  %s\n", edge)
	}

	printf("------------------------------------------\n")
	printf("Sync points:\n")
	for _, bin := range graph.Binaries {
		if len(bin.SyncPoints) == 0 {
			continue
		}

		printf("  %s:\n", bin)
		for _, point := range bin.SyncPoints {
			rd, wr := point.TokenMasks()
			printf("    %#x rd=%s wr=%s\n", point.Offset(), rd, wr)
		}
	}
	printf("==========================================\n")

	_, err := output.Write(buffer.Bytes())
	return err
}
