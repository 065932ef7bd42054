package validator

import (
	"fmt"
	"strings"

	"diagrammer/internal/domain/entity"
)

type AnalysisResult struct {
	Passed bool
	Issues []*entity.ValidationIssue
}

func (r *AnalysisResult) Errors() []*entity.ValidationIssue {
	return r.filter(entity.SeverityError)
}

func (r *AnalysisResult) Warnings() []*entity.ValidationIssue {
	return r.filter(entity.SeverityWarning)
}

func (r *AnalysisResult) filter(sev entity.Severity) []*entity.ValidationIssue {
	var out []*entity.ValidationIssue
	for _, i := range r.Issues {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}

// Summary joins the error messages into one line.
func (r *AnalysisResult) Summary() string {
	var msgs []string
	for _, i := range r.Errors() {
		msgs = append(msgs, i.Message)
	}
	return strings.Join(msgs, "; ")
}

var SensitiveKeywords = []string{"password", "secret", "token", "access_key", "secret_key", "api_key"}

const (
	DefaultMaxNodes       = 200
	DefaultMaxEdges       = 1000
	DefaultMaxLabelLength = 80
)

type Analyzer interface {
	Analyze(d *entity.Diagram) *AnalysisResult
}

// DiagramAnalyzer checks a parsed diagram before it is handed to graphviz.
// Size limits are errors; everything else is a warning.
type DiagramAnalyzer struct {
	MaxNodes       int
	MaxEdges       int
	MaxLabelLength int
}

func NewDiagramAnalyzer() *DiagramAnalyzer {
	return &DiagramAnalyzer{
		MaxNodes:       DefaultMaxNodes,
		MaxEdges:       DefaultMaxEdges,
		MaxLabelLength: DefaultMaxLabelLength,
	}
}

func (a *DiagramAnalyzer) Analyze(d *entity.Diagram) *AnalysisResult {
	result := &AnalysisResult{Passed: true}
	add := func(sev entity.Severity, nodeID, format string, args ...interface{}) {
		result.Issues = append(result.Issues, &entity.ValidationIssue{
			Severity: sev,
			NodeID:   nodeID,
			Message:  fmt.Sprintf(format, args...),
		})
		if sev == entity.SeverityError {
			result.Passed = false
		}
	}

	if err := d.Validate(); err != nil {
		add(entity.SeverityError, "", "%s", err.Error())
		return result
	}

	nodes := d.AllNodes()
	if len(nodes) > a.MaxNodes {
		add(entity.SeverityError, "", "diagram has %d nodes, limit is %d", len(nodes), a.MaxNodes)
	}
	if len(d.Edges) > a.MaxEdges {
		add(entity.SeverityError, "", "diagram has %d edges, limit is %d", len(d.Edges), a.MaxEdges)
	}

	connected := make(map[string]bool, len(nodes))
	seen := make(map[string]bool, len(d.Edges))
	for _, e := range d.Edges {
		connected[e.From] = true
		connected[e.To] = true
		if e.From == e.To {
			add(entity.SeverityWarning, e.From, "node %s is connected to itself", e.From)
		}
		key := e.From + "->" + e.To
		if seen[key] {
			add(entity.SeverityWarning, e.From, "duplicate edge %s", key)
		}
		seen[key] = true
	}

	for _, n := range nodes {
		if len(nodes) > 1 && !connected[n.ID] {
			add(entity.SeverityWarning, n.ID, "node %q (%s) has no connections", n.Label, n.Kind)
		}
		if len(n.Label) > a.MaxLabelLength {
			add(entity.SeverityWarning, n.ID, "label of node %s is longer than %d characters", n.ID, a.MaxLabelLength)
		}
		lower := strings.ToLower(n.Label)
		for _, kw := range SensitiveKeywords {
			if strings.Contains(lower, kw) {
				add(entity.SeverityWarning, n.ID, "label of node %s may contain a sensitive value (%s)", n.ID, kw)
			}
		}
	}

	var walk func(cs []*entity.Cluster)
	walk = func(cs []*entity.Cluster) {
		for _, c := range cs {
			if len(c.Nodes) == 0 && len(c.Clusters) == 0 {
				add(entity.SeverityWarning, "", "cluster %q is empty", c.Label)
			}
			walk(c.Clusters)
		}
	}
	walk(d.Clusters)

	return result
}
