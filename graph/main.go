// Package graph derives a directed graph from a rail layout for route finding.
//
// Every intersection becomes two nodes, one per side (see rail.Intersection).
// A node stands for "at this intersection, about to leave through this side", so
// its edges are the rails of that side's group. An edge leads to the node of the
// far intersection on the side a train arriving there would leave through.
package graph

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/senro/rail"
)

type Node struct {
	Intersection rail.IntersectionID
	Right        bool
}

func (n Node) String() string {
	if n.Right {
		return fmt.Sprintf("%dR", n.Intersection)
	}
	return fmt.Sprintf("%dL", n.Intersection)
}

func (n Node) less(o Node) bool {
	if n.Intersection != o.Intersection {
		return n.Intersection < o.Intersection
	}
	return !n.Right && o.Right
}

type Edge struct {
	Rail rail.RailID
	To   Node
	// FromStart is set when the edge runs along the rail from its start joint to its end joint.
	FromStart bool
	// Weight is the rail's arc length.
	Weight float64
}

type Graph struct {
	y     *rail.Layout
	edges map[Node][]Edge
}

// Build derives the graph of y. y must not be mutated afterwards; pass a snapshot.
func Build(y *rail.Layout) *Graph {
	g := &Graph{y: y, edges: map[Node][]Edge{}}
	for _, id := range y.IntersectionIDs() {
		in := y.MustIntersection(id)
		for _, right := range [2]bool{false, true} {
			group := in.Left
			if right {
				group = in.Right
			}
			from := Node{id, right}
			for _, r := range group {
				if r == 0 {
					continue
				}
				ra := y.MustRail(r)
				near, ok := ra.JointAt(id)
				if !ok {
					panic(fmt.Sprintf("%s lists %s, which isn't connected to it", in, ra))
				}
				e := Edge{
					Rail:      r,
					To:        arrival(y, ra, 1-near),
					FromStart: near == rail.JointStart,
					Weight:    ra.Spline.CurveLength(),
				}
				k, _ := slices.BinarySearchFunc(g.edges[from], r, byRail)
				g.edges[from] = slices.Insert(g.edges[from], k, e)
			}
		}
	}
	return g
}

func byRail(e Edge, r rail.RailID) int {
	switch {
	case e.Rail < r:
		return -1
	case e.Rail > r:
		return 1
	default:
		return 0
	}
}

// arrival returns the node a train reaches when it runs off r through joint k.
func arrival(y *rail.Layout, r *rail.Rail, k int) Node {
	in := y.MustIntersection(r.Joints[k].Intersection)
	return Node{in.ID, !in.RightGroup(r.Spline.Controls()[k].Forward)}
}

// departure returns the node a train leaves from when it enters r through joint k.
func departure(y *rail.Layout, r *rail.Rail, k int) Node {
	in := y.MustIntersection(r.Joints[k].Intersection)
	return Node{in.ID, in.RightGroup(r.Spline.Controls()[k].Forward)}
}

func (g *Graph) Layout() *rail.Layout { return g.y }

// Edges returns the edges leaving n, by rail id.
func (g *Graph) Edges(n Node) []Edge { return g.edges[n] }

// Nodes returns every node with at least one leaving edge, in order.
func (g *Graph) Nodes() []Node {
	var res []Node
	for _, id := range g.y.IntersectionIDs() {
		for _, right := range [2]bool{false, true} {
			if n := (Node{id, right}); len(g.edges[n]) > 0 {
				res = append(res, n)
			}
		}
	}
	return res
}

func (g *Graph) String() string {
	b := new(strings.Builder)
	for _, n := range g.Nodes() {
		fmt.Fprintf(b, "%s:", n)
		for _, e := range g.edges[n] {
			fmt.Fprintf(b, " -%d-> %s", e.Rail, e.To)
		}
		b.WriteString("\n")
	}
	return b.String()
}
