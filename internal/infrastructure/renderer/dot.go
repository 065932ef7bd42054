package renderer

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/pkg/errors"

	"diagrammer/internal/domain/entity"
	"diagrammer/internal/infrastructure/catalog"
)

const dotTmpl = `digraph "diagram" {
	graph [label={{quote .Title}}, labelloc="t", fontsize=20, fontname="Sans-Serif", rankdir={{.Direction}}, splines=ortho, nodesep=0.6, ranksep=0.75, pad=0.5, compound=true];
	node [style="filled", fontname="Sans-Serif", fontsize=12, fontcolor="#2D3436", width=1.4, height=1.0];
	edge [color="#7B8894", fontname="Sans-Serif", fontsize=10];
{{range .Nodes}}{{template "node" .}}{{end}}{{range .Clusters}}{{template "cluster" .}}{{end}}{{range .Edges}}	{{.From}} -> {{.To}}{{edgeAttrs .}};
{{end}}}
{{define "node"}}	{{.ID}} [label={{quote (nodeLabel .)}}, shape={{quote (style .).Shape}}, fillcolor={{quote (style .).Color}}];
{{end}}{{define "cluster"}}	subgraph {{.ID}} {
		label={{quote .Label}};
		style="rounded,filled";
		fillcolor="#EBF3E7";
		fontsize=12;
{{range .Nodes}}	{{template "node" .}}{{end}}{{range .Clusters}}{{template "cluster" .}}{{end}}	}
{{end}}`

var quoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", "")

func quote(s string) string {
	return `"` + quoter.Replace(s) + `"`
}

// BuildDOT renders the diagram as graphviz source.
func BuildDOT(d *entity.Diagram, c *catalog.Catalog) ([]byte, error) {
	funcs := template.FuncMap{
		"quote": quote,
		"nodeLabel": func(n *entity.Node) string {
			if n.Label == n.Kind || n.Kind == "" {
				return n.Label
			}
			return n.Label + "\n(" + n.Kind + ")"
		},
		"style": func(n *entity.Node) catalog.Style {
			return c.LookupModule(n.Provider, n.Category, n.Kind).Style
		},
		"edgeAttrs": edgeAttrs,
	}

	tpl, err := template.New("dot").Funcs(funcs).Parse(dotTmpl)
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	if err := tpl.Execute(buf, d); err != nil {
		return nil, errors.Wrapf(err, "failed to execute template: %s", d.Title)
	}
	return buf.Bytes(), nil
}

func edgeAttrs(e *entity.Edge) string {
	var attrs []string
	if e.Label != "" {
		attrs = append(attrs, "label="+quote(e.Label))
	}
	if e.Color != "" {
		attrs = append(attrs, "color="+quote(e.Color))
	}
	if e.Style != "" {
		attrs = append(attrs, "style="+quote(e.Style))
	}
	if e.Undirected {
		attrs = append(attrs, `dir="none"`)
	}
	if len(attrs) == 0 {
		return ""
	}
	return " [" + strings.Join(attrs, ", ") + "]"
}
