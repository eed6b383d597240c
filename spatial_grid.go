package lightbake

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// aabbPad inflates inserted bounds so a ray grazing a cell boundary still
// sees the collider as a candidate.
const aabbPad = 1e-3

type aabb struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// spatialHashGrid is the raycast broadphase: bounded colliders are hashed
// into the cells their world AABB overlaps, and a ray only tests the
// colliders registered along its cell walk. Built once per bake, read-only
// afterwards, so worker goroutines share it without locks.
type spatialHashGrid struct {
	cellSize float32
	// Map from cell hash to collider entry indices
	cells map[uint64][]int
}

func newSpatialHashGrid(cellSize float32) *spatialHashGrid {
	return &spatialHashGrid{
		cellSize: cellSize,
		cells:    make(map[uint64][]int),
	}
}

func (grid *spatialHashGrid) insert(idx int, box aabb) {
	pad := mgl32.Vec3{aabbPad, aabbPad, aabbPad}
	lo, hi := box.Min.Sub(pad), box.Max.Add(pad)

	minX, maxX := grid.cellIndex(lo.X()), grid.cellIndex(hi.X())
	minY, maxY := grid.cellIndex(lo.Y()), grid.cellIndex(hi.Y())
	minZ, maxZ := grid.cellIndex(lo.Z()), grid.cellIndex(hi.Z())

	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				key := grid.hashKey(x, y, z)
				grid.cells[key] = append(grid.cells[key], idx)
			}
		}
	}
}

// queryRay walks the grid cells pierced by the ray segment and calls visit
// once per distinct collider entry registered in them.
func (grid *spatialHashGrid) queryRay(origin, dir mgl32.Vec3, maxDist float32, visit func(int)) {
	if len(grid.cells) == 0 {
		return
	}

	cell := [3]int{
		grid.cellIndex(origin.X()),
		grid.cellIndex(origin.Y()),
		grid.cellIndex(origin.Z()),
	}

	var step [3]int
	var tMax, tDelta [3]float32
	for axis := 0; axis < 3; axis++ {
		d := dir[axis]
		if float32(math.Abs(float64(d))) < 1e-8 {
			step[axis] = 0
			tMax[axis] = float32(math.Inf(1))
			tDelta[axis] = float32(math.Inf(1))
			continue
		}
		if d > 0 {
			step[axis] = 1
			boundary := float32(cell[axis]+1) * grid.cellSize
			tMax[axis] = (boundary - origin[axis]) / d
		} else {
			step[axis] = -1
			boundary := float32(cell[axis]) * grid.cellSize
			tMax[axis] = (boundary - origin[axis]) / d
		}
		tDelta[axis] = grid.cellSize / float32(math.Abs(float64(d)))
	}

	seen := make(map[int]struct{})
	for {
		for _, idx := range grid.cells[grid.hashKey(cell[0], cell[1], cell[2])] {
			if _, ok := seen[idx]; ok {
				continue
			}
			seen[idx] = struct{}{}
			visit(idx)
		}

		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		if tMax[axis] > maxDist {
			return
		}
		cell[axis] += step[axis]
		tMax[axis] += tDelta[axis]
	}
}

func (grid *spatialHashGrid) cellIndex(pos float32) int {
	return int(math.Floor(float64(pos / grid.cellSize)))
}

// Simple hash function for 3D coordinates
func (grid *spatialHashGrid) hashKey(x, y, z int) uint64 {
	// large primes for mixing
	const p1 = 73856093
	const p2 = 19349663
	const p3 = 83492791
	return uint64(x*p1 ^ y*p2 ^ z*p3)
}
