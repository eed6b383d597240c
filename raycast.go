package lightbake

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// minHitDistance rejects intersections at the ray origin so a continuation
// ray cannot re-strike the surface it bounced off.
const minHitDistance = 1e-4

// RaySample is one ray slot's query for a batch: zero-valued samples
// (MaxDist <= 0) mark dormant slots and are skipped by the executor.
type RaySample struct {
	Origin  mgl32.Vec3
	Dir     mgl32.Vec3 // unit
	MaxDist float32
	Mask    LayerMask
}

type RaycastHit struct {
	Hit    bool
	T      float32
	Point  mgl32.Vec3
	Normal mgl32.Vec3 // unit, faces the ray origin
	Entity EntityId
}

// SceneCaster is the scene capability the bake driver consumes: cast one ray
// against static geometry, and look up a struck surface's base color.
// Implementations must be safe for concurrent Cast calls, the batch executor
// fans casts out across workers.
type SceneCaster interface {
	Cast(sample RaySample) RaycastHit
	BaseColor(entity EntityId) (mgl32.Vec3, bool)
}

type colliderEntry struct {
	entity    EntityId
	shape     ColliderShape
	position  mgl32.Vec3
	normal    mgl32.Vec3 // plane only
	halfExt   mgl32.Vec3 // box only
	radius    float32    // sphere only
	layer     LayerMask
	baseColor mgl32.Vec3
	hasColor  bool
}

// ColliderWorld is an immutable snapshot of every collider entity, taken once
// at bake startup. The bake mutates the scene graph only by adding lights, so
// the snapshot stays valid for the whole run and worker goroutines can read
// it without locks.
type ColliderWorld struct {
	entries []colliderEntry
	byId    map[EntityId]int

	// Broadphase: bounded colliders live in the grid, planes are infinite
	// and tested against every ray.
	grid      *spatialHashGrid
	unbounded []int
}

// defaultGridCellSize suits scenes of unit-to-room scale; the cell size
// grows to the largest collider so one entry never spans many cells.
const defaultGridCellSize = 4.0

func NewColliderWorld(cmd *Commands) *ColliderWorld {
	world := &ColliderWorld{byId: make(map[EntityId]int)}

	MakeQuery3[TransformComponent, ColliderComponent, MaterialComponent](cmd).Map(func(eid EntityId, tr *TransformComponent, col *ColliderComponent, mat *MaterialComponent) bool {
		entry := colliderEntry{
			entity:   eid,
			shape:    col.Shape,
			position: tr.Position,
			halfExt:  col.HalfExtents,
			radius:   col.Radius,
			layer:    col.layerOrDefault(),
		}
		if col.Shape == ShapePlane {
			entry.normal = tr.Rotation.Rotate(mgl32.Vec3{0, 1, 0}).Normalize()
		}
		if mat != nil {
			entry.baseColor = mat.BaseColor
			entry.hasColor = true
		}
		world.byId[eid] = len(world.entries)
		world.entries = append(world.entries, entry)
		return true
	}, MaterialComponent{})

	cellSize := float32(defaultGridCellSize)
	for i := range world.entries {
		if box, bounded := entryBounds(&world.entries[i]); bounded {
			size := box.Max.Sub(box.Min)
			cellSize = max(cellSize, size.X(), size.Y(), size.Z())
		}
	}

	world.grid = newSpatialHashGrid(cellSize)
	for i := range world.entries {
		box, bounded := entryBounds(&world.entries[i])
		if !bounded {
			world.unbounded = append(world.unbounded, i)
			continue
		}
		world.grid.insert(i, box)
	}

	return world
}

// entryBounds returns the world AABB of a collider, or false for shapes
// without one (planes).
func entryBounds(entry *colliderEntry) (aabb, bool) {
	switch entry.shape {
	case ShapeSphere:
		r := mgl32.Vec3{entry.radius, entry.radius, entry.radius}
		return aabb{Min: entry.position.Sub(r), Max: entry.position.Add(r)}, true
	case ShapeBox:
		return aabb{Min: entry.position.Sub(entry.halfExt), Max: entry.position.Add(entry.halfExt)}, true
	default:
		return aabb{}, false
	}
}

func (w *ColliderWorld) Cast(sample RaySample) RaycastHit {
	best := RaycastHit{T: float32(math.MaxFloat32)}

	test := func(i int) {
		entry := &w.entries[i]
		if sample.Mask&entry.layer == 0 {
			return
		}

		var t float32
		var normal mgl32.Vec3
		var ok bool
		switch entry.shape {
		case ShapePlane:
			t, normal, ok = intersectPlane(entry, sample)
		case ShapeSphere:
			t, normal, ok = intersectSphere(entry, sample)
		case ShapeBox:
			t, normal, ok = intersectBox(entry, sample)
		}
		if !ok || t >= best.T {
			return
		}

		best.Hit = true
		best.T = t
		best.Point = sample.Origin.Add(sample.Dir.Mul(t))
		best.Normal = normal
		best.Entity = entry.entity
	}

	for _, i := range w.unbounded {
		test(i)
	}
	w.grid.queryRay(sample.Origin, sample.Dir, sample.MaxDist, test)

	if !best.Hit {
		return RaycastHit{}
	}
	return best
}

func (w *ColliderWorld) BaseColor(entity EntityId) (mgl32.Vec3, bool) {
	idx, ok := w.byId[entity]
	if !ok || !w.entries[idx].hasColor {
		return mgl32.Vec3{}, false
	}
	return w.entries[idx].baseColor, true
}

func intersectPlane(entry *colliderEntry, sample RaySample) (float32, mgl32.Vec3, bool) {
	denom := sample.Dir.Dot(entry.normal)
	if float32(math.Abs(float64(denom))) < 1e-7 {
		return 0, mgl32.Vec3{}, false
	}
	t := entry.position.Sub(sample.Origin).Dot(entry.normal) / denom
	if t < minHitDistance || t > sample.MaxDist {
		return 0, mgl32.Vec3{}, false
	}
	normal := entry.normal
	if denom > 0 {
		normal = normal.Mul(-1)
	}
	return t, normal, true
}

func intersectSphere(entry *colliderEntry, sample RaySample) (float32, mgl32.Vec3, bool) {
	oc := sample.Origin.Sub(entry.position)
	b := oc.Dot(sample.Dir)
	c := oc.Dot(oc) - entry.radius*entry.radius
	disc := b*b - c
	if disc < 0 {
		return 0, mgl32.Vec3{}, false
	}
	sqrtDisc := float32(math.Sqrt(float64(disc)))

	t := -b - sqrtDisc
	if t < minHitDistance {
		t = -b + sqrtDisc // inside the sphere
	}
	if t < minHitDistance || t > sample.MaxDist {
		return 0, mgl32.Vec3{}, false
	}

	point := sample.Origin.Add(sample.Dir.Mul(t))
	normal := point.Sub(entry.position).Mul(1 / entry.radius)
	if normal.Dot(sample.Dir) > 0 {
		normal = normal.Mul(-1)
	}
	return t, normal, true
}

// intersectBox is a standard slab test against an axis-aligned box centered
// on the entry position.
func intersectBox(entry *colliderEntry, sample RaySample) (float32, mgl32.Vec3, bool) {
	boxMin := entry.position.Sub(entry.halfExt)
	boxMax := entry.position.Add(entry.halfExt)

	tNear := float32(math.Inf(-1))
	tFar := float32(math.Inf(1))
	nearAxis := -1
	nearSign := float32(1)

	for axis := 0; axis < 3; axis++ {
		origin, dir := sample.Origin[axis], sample.Dir[axis]
		if float32(math.Abs(float64(dir))) < 1e-8 {
			if origin < boxMin[axis] || origin > boxMax[axis] {
				return 0, mgl32.Vec3{}, false
			}
			continue
		}

		t1 := (boxMin[axis] - origin) / dir
		t2 := (boxMax[axis] - origin) / dir
		sign := float32(-1)
		if t1 > t2 {
			t1, t2 = t2, t1
			sign = 1
		}
		if t1 > tNear {
			tNear = t1
			nearAxis = axis
			nearSign = sign
		}
		if t2 < tFar {
			tFar = t2
		}
		if tNear > tFar {
			return 0, mgl32.Vec3{}, false
		}
	}

	t := tNear
	if t < minHitDistance {
		t = tFar // ray starts inside the box
	}
	if t < minHitDistance || t > sample.MaxDist || nearAxis < 0 {
		return 0, mgl32.Vec3{}, false
	}

	var normal mgl32.Vec3
	normal[nearAxis] = nearSign
	if normal.Dot(sample.Dir) > 0 {
		normal = normal.Mul(-1)
	}
	return t, normal, true
}
