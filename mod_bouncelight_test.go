package lightbake

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBounceLightConfigValidate(t *testing.T) {
	valid := DefaultBounceLightConfig()
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*BounceLightConfig)
	}{
		{"zero rays", func(cfg *BounceLightConfig) { cfg.RaysPerLight = 0 }},
		{"negative rays", func(cfg *BounceLightConfig) { cfg.RaysPerLight = -3 }},
		{"zero bounces", func(cfg *BounceLightConfig) { cfg.MaxBounces = 0 }},
		{"zero distance", func(cfg *BounceLightConfig) { cfg.MaxRayDistance = 0 }},
		{"zero radius", func(cfg *BounceLightConfig) { cfg.LightRadius = 0 }},
		{"negative bleeding", func(cfg *BounceLightConfig) { cfg.LightBleeding = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultBounceLightConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestBounceLightModuleRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultBounceLightConfig()
	cfg.MaxBounces = 0
	require.Panics(t, func() {
		NewAppBuilder().UseModule(BounceLightModule{Config: cfg}).Build()
	})
}

// scriptedCaster replays a fixed hit/miss sequence. Used with a single
// worker so casts arrive in slot order.
type scriptedCaster struct {
	script []bool
	calls  int
}

func (s *scriptedCaster) Cast(sample RaySample) RaycastHit {
	idx := s.calls
	s.calls++
	if idx >= len(s.script) || !s.script[idx] {
		return RaycastHit{}
	}
	return RaycastHit{
		Hit:    true,
		T:      1,
		Point:  sample.Origin.Add(sample.Dir),
		Normal: sample.Dir.Mul(-1),
		Entity: EntityId(999),
	}
}

func (s *scriptedCaster) BaseColor(entity EntityId) (mgl32.Vec3, bool) {
	return mgl32.Vec3{}, false
}

func TestTraceLightDeadSlotsStayDead(t *testing.T) {
	app := NewAppBuilder().Build()
	cmd := app.Commands()

	cfg := testConfig()
	cfg.MaxBounces = 3

	// Bounce 0: slots 0,1 hit, slots 2,3 miss.
	// Bounce 1: two live slots, only the second one hits.
	// Bounce 2: one live slot, misses.
	caster := &scriptedCaster{script: []bool{true, true, false, false, false, true, false}}
	exec := NewRayBatchExecutor(caster, 1)
	buffers := newBakeBuffers(cfg.RaysPerLight)
	rng := rand.New(rand.NewSource(1))

	light := lightSource{
		entity:   EntityId(1),
		position: mgl32.Vec3{0, 10, 0},
		forward:  mgl32.Vec3{0, -1, 0},
		color:    mgl32.Vec3{1, 1, 1},
	}

	stats := traceLight(cmd, light, &cfg, rng, caster, exec, buffers)
	app.FlushCommands()

	// 4 seed casts + 2 continuations + 1 continuation; dead slots are
	// never cast again.
	assert.Equal(t, 7, caster.calls)
	assert.Equal(t, 7, stats.RaysCast)
	assert.Equal(t, 3, stats.Hits)
	assert.Equal(t, 3, stats.LightsSpawned)

	bounceCounts := map[int]int{}
	MakeQuery1[BakedLightTag](cmd).Map(func(eid EntityId, tag *BakedLightTag) bool {
		bounceCounts[tag.Bounce]++
		return true
	})
	assert.Equal(t, map[int]int{0: 2, 1: 1}, bounceCounts)
}

func TestTraceLightReusesBuffersAcrossLights(t *testing.T) {
	app := NewAppBuilder().Build()
	cmd := app.Commands()

	cfg := testConfig()
	caster := &scriptedCaster{script: make([]bool, 64)}
	exec := NewRayBatchExecutor(caster, 1)
	buffers := newBakeBuffers(cfg.RaysPerLight)
	rng := rand.New(rand.NewSource(1))

	samplesPtr := &buffers.samples[0]
	hitsPtr := &buffers.hits[0]
	statesPtr := &buffers.states[0]

	for _, light := range []lightSource{
		{entity: 1, position: mgl32.Vec3{0, 10, 0}, forward: mgl32.Vec3{0, -1, 0}},
		{entity: 2, position: mgl32.Vec3{5, 10, 5}, forward: mgl32.Vec3{0, -1, 0}},
	} {
		traceLight(cmd, light, &cfg, rng, caster, exec, buffers)
	}

	assert.Same(t, samplesPtr, &buffers.samples[0])
	assert.Same(t, hitsPtr, &buffers.hits[0])
	assert.Same(t, statesPtr, &buffers.states[0])
	assert.Equal(t, cfg.RaysPerLight, cap(buffers.samples))
}

// Full pipeline over real colliders: a light shining down on a tinted
// floor plane with a tinted ceiling box above it.
func TestBounceLightBakeEndToEnd(t *testing.T) {
	cfg := BounceLightConfig{
		RaysPerLight:   4,
		MaxBounces:     2,
		LightRadius:    1,
		LightBleeding:  0.2,
		LayerMask:      LayerAll,
		MaxRayDistance: 1000,
	}

	app := NewAppBuilder().
		UseModule(
			HierarchyModule{},
			BounceLightModule{Config: cfg, Seed: 7, Workers: 1},
		).
		Build()
	cmd := app.Commands()

	floor := cmd.AddEntity(
		&TransformComponent{Position: mgl32.Vec3{0, 0, 0}, Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}},
		&ColliderComponent{Shape: ShapePlane},
		&MaterialComponent{BaseColor: mgl32.Vec3{0.5, 0.5, 0.5}},
	)
	ceiling := cmd.AddEntity(
		&TransformComponent{Position: mgl32.Vec3{0, 30, 0}, Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}},
		&ColliderComponent{Shape: ShapeBox, HalfExtents: mgl32.Vec3{100, 1, 100}},
		&MaterialComponent{BaseColor: mgl32.Vec3{0.2, 1, 0.5}},
	)
	cmd.AddEntity(
		&TransformComponent{
			Position: mgl32.Vec3{0, 10, 0},
			Rotation: mgl32.QuatBetweenVectors(mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, -1, 0}),
			Scale:    mgl32.Vec3{1, 1, 1},
		},
		&LightComponent{Type: LightTypePoint, Color: mgl32.Vec3{1, 0.8, 0.6}, Intensity: 1},
	)
	app.FlushCommands()

	app.Run()

	stats := Resource[BakeStats](app)
	require.NotNil(t, stats)
	require.Len(t, stats.PerLight, 1)

	var bounce0, bounce1 []EntityId
	MakeQuery2[BakedLightTag, LightComponent](cmd).Map(func(eid EntityId, tag *BakedLightTag, light *LightComponent) bool {
		switch tag.Bounce {
		case 0:
			bounce0 = append(bounce0, eid)
			// Seed rays hit the floor: light color tinted by the floor.
			assertVec3InDelta(t, mgl32.Vec3{0.5, 0.4, 0.3}, light.Color)
		case 1:
			bounce1 = append(bounce1, eid)
			// Continuations off the floor can only strike the ceiling,
			// stacking its tint on the floor's.
			assertVec3InDelta(t, mgl32.Vec3{0.1, 0.4, 0.15}, light.Color)
		default:
			t.Fatalf("light %d baked at impossible bounce %d", eid, tag.Bounce)
		}
		assert.Equal(t, LightTypePoint, light.Type)
		assert.Equal(t, bakedLightIntensity, light.Intensity)
		assert.Equal(t, cfg.LightRadius, light.Range)
		assert.Equal(t, ShadowSoft, light.Shadows)
		assert.Equal(t, bakedLightShadowNearPlane, light.ShadowNearPlane)
		return true
	})

	// All four seed rays strike the floor; one light per (slot, bounce) hit.
	require.Len(t, bounce0, 4)
	assert.Equal(t, stats.Hits, len(bounce0)+len(bounce1))
	assert.Equal(t, stats.LightsSpawned, len(bounce0)+len(bounce1))
	assert.Equal(t, 4+4, stats.RaysCast, "all seed slots survive into bounce 1")

	// Bounce-0 lights sit just off the floor, parented to it.
	for _, eid := range bounce0 {
		var world *TransformComponent
		var parent *Parent
		for _, c := range cmd.GetAllComponents(eid) {
			switch comp := c.(type) {
			case TransformComponent:
				tr := comp
				world = &tr
			case Parent:
				p := comp
				parent = &p
			}
		}
		require.NotNil(t, world)
		require.NotNil(t, parent)
		assert.Equal(t, floor, parent.Entity)
		assert.InDelta(t, float64(cfg.LightBleeding), float64(world.Position.Y()), 1e-4)
	}
	for _, eid := range bounce1 {
		parent := parentOf(cmd, eid)
		require.NotNil(t, parent)
		assert.Equal(t, ceiling, parent.Entity)
	}

	// Working buffers are released exactly once at teardown.
	buffers := Resource[bakeBuffers](app)
	require.NotNil(t, buffers)
	assert.True(t, buffers.released)
	assert.Nil(t, buffers.samples)
}

// Baked lights are children of the surface they sit on: moving the surface
// and re-running hierarchy propagation moves the light with it.
func TestBakedLightsFollowTheirSurface(t *testing.T) {
	app := NewAppBuilder().
		UseModule(
			HierarchyModule{},
			BounceLightModule{
				Config: BounceLightConfig{
					RaysPerLight:   2,
					MaxBounces:     1,
					LightRadius:    1,
					LightBleeding:  0.1,
					LayerMask:      LayerAll,
					MaxRayDistance: 100,
				},
				Seed:    3,
				Workers: 1,
			},
		).
		Build()
	cmd := app.Commands()

	floor := cmd.AddEntity(
		&TransformComponent{Position: mgl32.Vec3{0, 0, 0}, Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}},
		&ColliderComponent{Shape: ShapePlane},
	)
	cmd.AddEntity(
		&TransformComponent{
			Position: mgl32.Vec3{0, 5, 0},
			Rotation: mgl32.QuatBetweenVectors(mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, -1, 0}),
			Scale:    mgl32.Vec3{1, 1, 1},
		},
		&LightComponent{Type: LightTypePoint, Color: mgl32.Vec3{1, 1, 1}, Intensity: 1},
	)
	app.FlushCommands()

	app.Run()

	var baked EntityId
	var before mgl32.Vec3
	MakeQuery2[BakedLightTag, TransformComponent](cmd).Map(func(eid EntityId, tag *BakedLightTag, tr *TransformComponent) bool {
		baked = eid
		before = tr.Position
		return false
	})
	require.NotZero(t, baked)

	// Move the floor and settle the hierarchy again.
	floorWorld := worldTransformOf(cmd, floor)
	require.NotNil(t, floorWorld)
	shifted := *floorWorld
	shifted.Position = floorWorld.Position.Add(mgl32.Vec3{0, 2, 0})
	cmd.AddComponents(floor, shifted)
	app.FlushCommands()
	TransformHierarchySystem(cmd)

	after := worldTransformOf(cmd, baked)
	require.NotNil(t, after)
	assertVec3InDelta(t, before.Add(mgl32.Vec3{0, 2, 0}), after.Position)
}

func parentOf(cmd *Commands, eid EntityId) *Parent {
	for _, c := range cmd.GetAllComponents(eid) {
		if p, ok := c.(Parent); ok {
			return &p
		}
	}
	return nil
}

func assertVec3InDelta(t *testing.T, expected, got mgl32.Vec3) {
	t.Helper()
	for axis := 0; axis < 3; axis++ {
		assert.InDelta(t, float64(expected[axis]), float64(got[axis]), 1e-4, "axis %d of %v vs %v", axis, expected, got)
	}
}
