package graph

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/RishiKendai/plagscan/internal/models"
	"github.com/RishiKendai/plagscan/internal/report"
)

// Edge connects two documents whose similarity passed the threshold.
type Edge struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Similarity float64 `json:"similarity"`
}

// Graph is the thresholded similarity graph handed to a renderer.
type Graph struct {
	Threshold float64  `json:"threshold"`
	Nodes     []string `json:"nodes"`
	Edges     []Edge   `json:"edges"`
}

// Build keeps the documents whose maximum similarity is strictly above
// threshold and the pairs whose similarity is strictly above it. Both
// directions of a pair are kept, matching the pairwise table.
func Build(rep *models.Report, threshold float64) *Graph {
	g := &Graph{
		Threshold: threshold,
		Nodes:     make([]string, 0),
		Edges:     make([]Edge, 0),
	}

	for _, entry := range rep.Summary {
		if entry.MaxSimilarity != nil && *entry.MaxSimilarity > threshold {
			g.Nodes = append(g.Nodes, entry.ID)
		}
	}
	for _, row := range rep.Pairwise {
		if row.Similarity > threshold {
			g.Edges = append(g.Edges, Edge{Source: row.SourceID, Target: row.TargetID, Similarity: row.Similarity})
		}
	}

	return g
}

// WriteDOT renders g as an undirected Graphviz multigraph.
func WriteDOT(w io.Writer, g *Graph) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "graph similarity {\n")
	fmt.Fprintf(bw, "  // threshold %s\n", report.FormatSimilarity(g.Threshold))
	for _, n := range g.Nodes {
		fmt.Fprintf(bw, "  %s;\n", quote(n))
	}
	for _, e := range g.Edges {
		fmt.Fprintf(bw, "  %s -- %s [label=%s];\n", quote(e.Source), quote(e.Target), quote(report.FormatSimilarity(e.Similarity)))
	}
	fmt.Fprintf(bw, "}\n")
	return bw.Flush()
}

func quote(id string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(id) + `"`
}
