// Package cluster groups ink strokes into independent drawings.
package cluster

import (
	"math"

	"github.com/satriahrh/papantulis/server/domain/entities"
)

// Box is the bounding rectangle of one stroke
type Box struct {
	ID     string
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// BoxOf returns the bounding box of a stroke
func BoxOf(s entities.Stroke) Box {
	b := s.BoundingBox()
	return Box{ID: s.ID, X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

// Distance is the air gap between two rectangles: the per axis gap
// max(0, |center delta| - (size1+size2)/2) combined by Euclidean norm.
// Overlapping or touching rectangles are at distance 0.
func Distance(a, b Box) float64 {
	dx := axisGap(a.X+a.Width/2, b.X+b.Width/2, a.Width, b.Width)
	dy := axisGap(a.Y+a.Height/2, b.Y+b.Height/2, a.Height, b.Height)
	return math.Hypot(dx, dy)
}

func axisGap(centerA, centerB, sizeA, sizeB float64) float64 {
	return math.Max(0, math.Abs(centerA-centerB)-(sizeA+sizeB)/2)
}

const (
	unvisited = 0
	noise     = -1
)

// Cluster runs DBSCAN over boxes and returns the ids of each cluster.
//
// The neighborhood of a box is every other box within epsilon (inclusive).
// A box is a core point when its neighborhood holds at least minPts boxes;
// with minPts=1 any box with one neighbor seeds a cluster and fully isolated
// boxes are noise. Noise is left out of the result. Clusters come out in the
// order of their first core box and members in visit order, so the result
// is deterministic for a fixed input order.
func Cluster(boxes []Box, epsilon float64, minPts int) [][]string {
	labels := make([]int, len(boxes))
	var clusters [][]string

	for i := range boxes {
		if labels[i] != unvisited {
			continue
		}

		neighbors := regionQuery(boxes, i, epsilon)
		if len(neighbors) < minPts {
			labels[i] = noise
			continue
		}

		clusterID := len(clusters) + 1
		labels[i] = clusterID
		members := []string{boxes[i].ID}

		queue := append([]int(nil), neighbors...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]

			if labels[j] == noise {
				// border point reached from a core point
				labels[j] = clusterID
				members = append(members, boxes[j].ID)
				continue
			}
			if labels[j] != unvisited {
				continue
			}

			labels[j] = clusterID
			members = append(members, boxes[j].ID)

			expansion := regionQuery(boxes, j, epsilon)
			if len(expansion) >= minPts {
				queue = append(queue, expansion...)
			}
		}

		clusters = append(clusters, members)
	}

	return clusters
}

func regionQuery(boxes []Box, i int, epsilon float64) []int {
	var neighbors []int
	for j := range boxes {
		if j == i {
			continue
		}
		if Distance(boxes[i], boxes[j]) <= epsilon {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}
