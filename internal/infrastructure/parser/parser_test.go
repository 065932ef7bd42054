package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagrammer/internal/domain/entity"
	"diagrammer/internal/infrastructure/catalog"
)

func newTestParser() *Parser {
	return New(catalog.Default())
}

func labels(nodes []*entity.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Label)
	}
	return out
}

func edgePairs(d *entity.Diagram) []string {
	byID := make(map[string]string)
	for _, n := range d.AllNodes() {
		byID[n.ID] = n.Label
	}
	var out []string
	for _, e := range d.Edges {
		out = append(out, byID[e.From]+"->"+byID[e.To])
	}
	return out
}

func TestParseFallbackTemplate(t *testing.T) {
	d, err := newTestParser().Parse(entity.FallbackDiagramCode)
	require.NoError(t, err)

	assert.Equal(t, "AWS Architecture", d.Title)
	assert.Equal(t, entity.DirectionLR, d.Direction)
	assert.Equal(t, []string{"Load Balancer", "Database"}, labels(d.Nodes))
	require.Len(t, d.Clusters, 1)
	assert.Equal(t, "Web Tier", d.Clusters[0].Label)
	assert.Equal(t, []string{"Server 1", "Server 2"}, labels(d.Clusters[0].Nodes))

	assert.ElementsMatch(t, []string{
		"Load Balancer->Server 1",
		"Load Balancer->Server 2",
		"Server 1->Database",
		"Server 2->Database",
	}, edgePairs(d))

	lb := d.Nodes[0]
	assert.Equal(t, "ELB", lb.Kind)
	assert.Equal(t, "aws", lb.Provider)
	assert.Equal(t, "network", lb.Category)
}

func TestParseEdgeOperatorsAndAttributes(t *testing.T) {
	src := `from diagrams import Diagram, Edge
from diagrams.onprem.network import Nginx
from diagrams.onprem.database import PostgreSQL
from diagrams.onprem.inmemory import Redis as Cache

with Diagram("Web", direction="tb"):
    web = Nginx("web")
    db = PostgreSQL("db")
    cache = Cache("cache")
    web >> Edge(label="sql", color="red", style="dashed") >> db
    web << cache
    db - cache
`
	d, err := newTestParser().Parse(src)
	require.NoError(t, err)

	assert.Equal(t, entity.DirectionTB, d.Direction)
	require.Len(t, d.Edges, 3)

	assert.Equal(t, "sql", d.Edges[0].Label)
	assert.Equal(t, "red", d.Edges[0].Color)
	assert.Equal(t, "dashed", d.Edges[0].Style)

	assert.Equal(t, []string{"web->db", "cache->web", "db->cache"}, edgePairs(d))
	assert.True(t, d.Edges[2].Undirected)

	assert.Equal(t, "Redis", d.Nodes[2].Kind)
	assert.Equal(t, "inmemory", d.Nodes[2].Category)

	// `-` binds tighter than `>>` and `<<`
	src = `from diagrams import Diagram, Edge
from diagrams.onprem.network import Nginx

with Diagram("Mixed"):
    a = Nginx("a")
    b = Nginx("b")
    c = Nginx("c")
    a >> b - c
    a - b << c
    a - Edge(color="blue") - c
`
	d, err = newTestParser().Parse(src)
	require.NoError(t, err)
	assert.Equal(t, []string{"b->c", "a->c", "a->b", "c->b", "a->c"}, edgePairs(d))

	var undirected []bool
	for _, e := range d.Edges {
		undirected = append(undirected, e.Undirected)
	}
	assert.Equal(t, []bool{true, false, true, false, true}, undirected)
	assert.Equal(t, "blue", d.Edges[4].Color)
}

func TestParseNestedClustersAndMultilineLists(t *testing.T) {
	src := `from diagrams import Diagram, Cluster
from diagrams.aws.compute import EC2
from diagrams.aws.database import RDS
from diagrams.aws.network import ELB, VPC

def generate_diagram():
    """Builds the diagram."""
    with Diagram("Nested", show=False, graph_attr={"fontsize": "20"}):
        lb = ELB("lb")  # entry point
        with Cluster("VPC"):
            with Cluster("App"):
                apps = [
                    EC2("app1"),
                    EC2("app2"),
                ]
            with Cluster("Data"):
                primary = RDS("primary")
        lb >> apps >> primary

if __name__ == "__main__":
    generate_diagram()
`
	d, err := newTestParser().Parse(src)
	require.NoError(t, err)

	require.Len(t, d.Clusters, 1)
	vpc := d.Clusters[0]
	assert.Equal(t, "VPC", vpc.Label)
	require.Len(t, vpc.Clusters, 2)
	assert.Equal(t, []string{"app1", "app2"}, labels(vpc.Clusters[0].Nodes))
	assert.Equal(t, []string{"primary"}, labels(vpc.Clusters[1].Nodes))
	assert.Len(t, d.Edges, 4)
	assert.Len(t, d.AllNodes(), 4)
}

func TestParseInlineNodesAndTupleAssignment(t *testing.T) {
	src := `with Diagram("Inline"):
    a, b = EC2("a"), EC2("b")
    ELB("lb") >> [a, b] >> RDS()
`
	d, err := newTestParser().Parse(src)
	require.NoError(t, err)

	assert.Len(t, d.Nodes, 4)
	assert.Equal(t, "RDS", d.Nodes[3].Label, "label defaults to the class name")
	assert.Len(t, d.Edges, 4)
}

func TestParseRejectsExecutableConstructs(t *testing.T) {
	cases := map[string]string{
		"loop": `with Diagram("x"):
    for i in range(3):
        EC2("n")
`,
		"attribute call": `with Diagram("x"):
    os.system("rm -rf /")
`,
		"builtin call": `with Diagram("x"):
    __import__("os")
`,
		"undefined name": `with Diagram("x"):
    EC2("a") >> missing
`,
		"call in argument": `with Diagram("x"):
    EC2(open("/etc/passwd").read())
`,
		"def in block": `with Diagram("x"):
    def f():
        pass
`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newTestParser().Parse(src)
			require.Error(t, err)
			var pe *ParseError
			assert.True(t, errors.As(err, &pe), "expected ParseError, got %T: %v", err, err)
		})
	}
}

func TestParseStructuralErrors(t *testing.T) {
	_, err := newTestParser().Parse("print('hello')\n")
	assert.ErrorIs(t, err, ErrNoDiagramBlock)

	_, err = newTestParser().Parse("with Diagram(\"x\"):\n\nprint(1)\n")
	assert.ErrorIs(t, err, ErrEmptyDiagramBlock)

	_, err = newTestParser().Parse("with Diagram(\"x\", direction=\"UP\"):\n    EC2(\"a\")\n")
	assert.ErrorContains(t, err, "invalid direction")

	_, err = newTestParser().Parse("with Diagram(\"x\"):\n    with Cluster(\"c\"):\n    EC2(\"a\")\n")
	assert.ErrorContains(t, err, "expected an indented block")

	_, err = newTestParser().Parse("with Diagram(\"x\"):\n    a = [EC2(\"a\"),\n")
	assert.Error(t, err)

	_, err = newTestParser().Parse("with Diagram(\"x\"):\n    pass\n")
	assert.ErrorContains(t, err, "no nodes")
}

func TestParseUnknownClass(t *testing.T) {
	_, err := newTestParser().Parse("with Diagram(\"x\"):\n    Frobnicator(\"a\")\n")
	assert.ErrorContains(t, err, `unknown node class "Frobnicator"`)
}

func TestExtractBlockDedents(t *testing.T) {
	src := "def generate_diagram():\n" +
		"        with Diagram(\"x\"):\n" +
		"            a = EC2(\"a\")\n" +
		"            with Cluster(\"c\"):\n" +
		"                b = EC2(\"b\")\n" +
		"\n" +
		"generate_diagram()\n"

	block, err := ExtractBlock(src)
	require.NoError(t, err)
	assert.Equal(t, 2, block.Header.num)
	require.Len(t, block.Body, 3)
	assert.Equal(t, 0, block.Body[0].indent)
	assert.Equal(t, 0, block.Body[1].indent)
	assert.Equal(t, 4, block.Body[2].indent)
	assert.Equal(t, `b = EC2("b")`, block.Body[2].text)
}
