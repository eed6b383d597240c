package lightbake

import (
	"github.com/go-gl/mathgl/mgl32"
)

type LightType uint32

const (
	LightTypePoint       LightType = 0
	LightTypeDirectional LightType = 1
	LightTypeSpot        LightType = 2
	LightTypeAmbient     LightType = 3
)

type ShadowMode uint32

const (
	ShadowNone ShadowMode = 0
	ShadowHard ShadowMode = 1
	ShadowSoft ShadowMode = 2
)

// LightComponent is the ECS component for lights
type LightComponent struct {
	Type            LightType
	Color           mgl32.Vec3 // RGB
	Intensity       float32
	Range           float32 // For point/spot
	ConeAngle       float32 // Full cone angle in degrees (spot)
	Shadows         ShadowMode
	ShadowNearPlane float32
}

// BakedLightTag marks a light spawned by the bounce baker. Bounce is the
// bounce index the light was materialized at.
type BakedLightTag struct {
	Bounce int
}

// lightForward is the beam axis of a light's transform. Lights shine down
// their local -Z, matching the GL convention used across the engine.
func lightForward(rotation mgl32.Quat) mgl32.Vec3 {
	return rotation.Rotate(mgl32.Vec3{0, 0, -1}).Normalize()
}
