package lightbake

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// RayState carries what survives between bounces for one ray slot: the
// accumulated tint and the bounce the slot is currently on.
type RayState struct {
	Color  mgl32.Vec3
	Bounce int
}

// lightSource is the read-only view of a scene light the baker traces from.
type lightSource struct {
	entity   EntityId
	position mgl32.Vec3
	forward  mgl32.Vec3
	color    mgl32.Vec3
}

// seedSample builds a bounce-0 ray for one slot. The origin is scattered
// behind the light at 2*LightRadius along -forward, jittered by half the
// radius; jitter that would land in front of the light is mirrored back.
// All seed rays fire straight down the light's forward axis, a seeded beam
// rather than a hemisphere spread.
func seedSample(light lightSource, cfg *BounceLightConfig, rng *rand.Rand) RaySample {
	offset := light.forward.Mul(-2 * cfg.LightRadius).
		Add(sampleUnitSphere(rng).Mul(0.5 * cfg.LightRadius))
	if offset.Dot(light.forward) > 0 {
		offset = offset.Mul(-1)
	}
	return RaySample{
		Origin:  light.position.Add(offset),
		Dir:     light.forward,
		MaxDist: cfg.MaxRayDistance,
		Mask:    cfg.LayerMask,
	}
}

// continuationSample builds a bounce k>0 ray from the slot's previous hit:
// a uniform sphere direction mirrored into the hemisphere above the struck
// surface. Not cosine weighted.
func continuationSample(prev RaycastHit, cfg *BounceLightConfig, rng *rand.Rand) RaySample {
	dir := sampleUnitSphere(rng)
	if dir.Dot(prev.Normal) <= 0 {
		dir = dir.Mul(-1)
	}
	return RaySample{
		Origin:  prev.Point,
		Dir:     dir,
		MaxDist: cfg.MaxRayDistance,
		Mask:    cfg.LayerMask,
	}
}

// sampleUnitSphere draws a uniform direction on the unit sphere.
func sampleUnitSphere(rng *rand.Rand) mgl32.Vec3 {
	z := 1 - 2*rng.Float32()
	r := float32(math.Sqrt(math.Max(0, float64(1-z*z))))
	phi := 2 * math.Pi * rng.Float64()
	return mgl32.Vec3{
		r * float32(math.Cos(phi)),
		r * float32(math.Sin(phi)),
		z,
	}
}

// tintColor folds a struck surface's base color into the accumulated ray
// color, component-wise.
func tintColor(color, base mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		color.X() * base.X(),
		color.Y() * base.Y(),
		color.Z() * base.Z(),
	}
}
