package lightbake

import (
	"github.com/go-gl/mathgl/mgl32"
)

type ColliderShape int

const (
	ShapeBox ColliderShape = iota
	ShapeSphere
	ShapePlane
)

// LayerMask filters which colliders a ray may strike. A ray hits a collider
// when the two masks share at least one bit.
type LayerMask uint32

const LayerAll LayerMask = 0xFFFFFFFF

// ColliderComponent describes static bake geometry. Boxes are axis aligned
// around the entity position, spheres use Radius, planes are infinite with
// the entity's rotated +Y as their normal.
type ColliderComponent struct {
	Shape       ColliderShape
	HalfExtents mgl32.Vec3 // For Box
	Radius      float32    // For Sphere
	Layer       LayerMask
}

// MaterialComponent is the optional surface base color used to tint bounced
// light. Surfaces without it reflect light untinted.
type MaterialComponent struct {
	BaseColor mgl32.Vec3
}

func (c ColliderComponent) layerOrDefault() LayerMask {
	if c.Layer == 0 {
		return LayerAll
	}
	return c.Layer
}
