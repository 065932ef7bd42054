package entity

import (
	"fmt"
)

type Direction string

const (
	DirectionTB Direction = "TB"
	DirectionBT Direction = "BT"
	DirectionLR Direction = "LR"
	DirectionRL Direction = "RL"
)

func (d Direction) Valid() bool {
	switch d {
	case DirectionTB, DirectionBT, DirectionLR, DirectionRL:
		return true
	}
	return false
}

// Diagram is the parsed form of a diagram-construction block. Renderers only
// ever see this structure, never the source text it came from.
type Diagram struct {
	Title     string
	Direction Direction
	Nodes     []*Node // nodes declared outside any cluster
	Clusters  []*Cluster
	Edges     []*Edge
}

type Cluster struct {
	ID       string
	Label    string
	Nodes    []*Node
	Clusters []*Cluster
}

type Node struct {
	ID       string
	Kind     string // class name, e.g. EC2
	Provider string // aws, gcp, onprem...
	Category string // compute, network...
	Label    string
}

type Edge struct {
	From       string
	To         string
	Label      string
	Color      string
	Style      string
	Undirected bool
}

// AllNodes returns every node of the diagram, cluster members included, in
// declaration order of their containers.
func (d *Diagram) AllNodes() []*Node {
	nodes := append([]*Node(nil), d.Nodes...)
	var walk func(cs []*Cluster)
	walk = func(cs []*Cluster) {
		for _, c := range cs {
			nodes = append(nodes, c.Nodes...)
			walk(c.Clusters)
		}
	}
	walk(d.Clusters)
	return nodes
}

func (d *Diagram) Validate() error {
	nodes := d.AllNodes()
	if len(nodes) == 0 {
		return fmt.Errorf("diagram %q declares no nodes", d.Title)
	}
	if !d.Direction.Valid() {
		return fmt.Errorf("invalid direction %q", d.Direction)
	}
	ids := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		ids[n.ID] = struct{}{}
	}
	for _, e := range d.Edges {
		if _, ok := ids[e.From]; !ok {
			return fmt.Errorf("edge references unknown node %q", e.From)
		}
		if _, ok := ids[e.To]; !ok {
			return fmt.Errorf("edge references unknown node %q", e.To)
		}
	}
	return nil
}
