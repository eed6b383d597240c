package lightbake

import (
	"errors"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Spawn parameters for materialized lights.
const (
	bakedLightIntensity       float32 = 0.014
	bakedLightShadowNearPlane float32 = 30
)

// BounceLightConfig is fixed for the lifetime of one bake run.
type BounceLightConfig struct {
	RaysPerLight   int        // parallel ray slots per light (buffer capacity)
	MaxBounces     int        // bounce iterations per light
	LightRadius    float32    // seed spread and spawned light range
	LightBleeding  float32    // offset of spawned lights off the hit surface
	LayerMask      LayerMask  // collision filter applied to every ray
	MaxRayDistance float32    // upper bound on ray travel
}

func DefaultBounceLightConfig() BounceLightConfig {
	return BounceLightConfig{
		RaysPerLight:   64,
		MaxBounces:     2,
		LightRadius:    5,
		LightBleeding:  0.2,
		LayerMask:      LayerAll,
		MaxRayDistance: 100,
	}
}

func (cfg *BounceLightConfig) Validate() error {
	if cfg.RaysPerLight <= 0 {
		return errors.New("bounce light config: RaysPerLight must be positive")
	}
	if cfg.MaxBounces <= 0 {
		return errors.New("bounce light config: MaxBounces must be positive")
	}
	if cfg.MaxRayDistance <= 0 {
		return errors.New("bounce light config: MaxRayDistance must be positive")
	}
	if cfg.LightRadius <= 0 {
		return errors.New("bounce light config: LightRadius must be positive")
	}
	if cfg.LightBleeding < 0 {
		return errors.New("bounce light config: LightBleeding must not be negative")
	}
	return nil
}

// bakeBuffers are the three parallel working buffers, one slot per
// concurrent ray. They are allocated once at startup, overwritten in place
// for every bounce of every light, and released once at teardown.
// Index i refers to the same logical ray in all three for the duration of
// one light's trace.
type bakeBuffers struct {
	samples  []RaySample
	hits     []RaycastHit
	states   []RayState
	released bool
}

func newBakeBuffers(raysPerLight int) *bakeBuffers {
	return &bakeBuffers{
		samples: make([]RaySample, raysPerLight),
		hits:    make([]RaycastHit, raysPerLight),
		states:  make([]RayState, raysPerLight),
	}
}

func (b *bakeBuffers) release() {
	if b.released {
		return
	}
	b.samples = nil
	b.hits = nil
	b.states = nil
	b.released = true
}

// BounceLightModule bakes approximate indirect lighting: for every point
// light in the scene it traces RaysPerLight rays through MaxBounces bounces
// and materializes a small point light at every surface hit.
type BounceLightModule struct {
	Config  BounceLightConfig
	Seed    int64 // 0 picks a time-based seed
	Workers int   // 0 uses all CPUs
}

func (m BounceLightModule) Install(app *App, cmd *Commands) {
	cfg := m.Config
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	seed := m.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	cmd.AddResources(
		&cfg,
		rand.New(rand.NewSource(seed)),
		newBakeStats(),
		&executorSettings{workers: m.Workers},
	)

	app.UseSystem(System(bounceLightStartupSystem).InStage(Startup))
	app.UseSystem(System(bounceLightBakeSystem).InStage(Bake))
	app.UseSystem(System(bounceLightReportSystem).InStage(Report))
	app.UseSystem(System(bounceLightTeardownSystem).InStage(Teardown))
}

type executorSettings struct {
	workers int
}

// bounceLightStartupSystem snapshots the static geometry and acquires the
// working buffers. Buffer allocation is the one hard failure of a bake:
// a panic here aborts the run before any light is processed, and the
// teardown stage still releases whatever was acquired.
func bounceLightStartupSystem(cmd *Commands, cfg *BounceLightConfig, settings *executorSettings, stats *BakeStats) {
	world := NewColliderWorld(cmd)
	cmd.AddResources(
		world,
		NewRayBatchExecutor(world, settings.workers),
		newBakeBuffers(cfg.RaysPerLight),
	)

	stats.Started = time.Now()
	cmd.Logger().Infof("bounce bake %s: %d colliders, %d ray slots, %d bounces",
		stats.RunId, len(world.entries), cfg.RaysPerLight, cfg.MaxBounces)
}

// bounceLightBakeSystem is the propagation driver. Lights are processed
// strictly one after another; each light's full bounce sequence completes,
// reusing the same buffers, before the next light starts.
func bounceLightBakeSystem(
	cmd *Commands,
	cfg *BounceLightConfig,
	rng *rand.Rand,
	world *ColliderWorld,
	exec *RayBatchExecutor,
	buffers *bakeBuffers,
	stats *BakeStats,
) {
	log := cmd.Logger()
	for _, light := range gatherLights(cmd) {
		lightStats := traceLight(cmd, light, cfg, rng, world, exec, buffers)
		stats.addLight(lightStats)
		log.Debugf("light %d: %d rays, %d hits, %d lights spawned",
			light.entity, lightStats.RaysCast, lightStats.Hits, lightStats.LightsSpawned)
	}
}

func bounceLightReportSystem(cmd *Commands, stats *BakeStats) {
	stats.Finished = time.Now()
	cmd.Logger().Infof("bounce bake %s done: %d lights, %d rays, %d hits, %d lights spawned in %s",
		stats.RunId, len(stats.PerLight), stats.RaysCast, stats.Hits, stats.LightsSpawned, stats.Duration())
}

func bounceLightTeardownSystem(buffers *bakeBuffers) {
	buffers.release()
}

// gatherLights enumerates the point lights to bake from, in entity order.
// Lights spawned by a previous bake never feed back into a new one.
func gatherLights(cmd *Commands) []lightSource {
	var lights []lightSource
	MakeQuery2[TransformComponent, LightComponent](cmd).Map(func(eid EntityId, tr *TransformComponent, light *LightComponent) bool {
		if light.Type != LightTypePoint && light.Type != LightTypeSpot {
			return true
		}
		for _, c := range cmd.GetAllComponents(eid) {
			if _, baked := c.(BakedLightTag); baked {
				return true
			}
		}
		lights = append(lights, lightSource{
			entity:   eid,
			position: tr.Position,
			forward:  lightForward(tr.Rotation),
			color:    light.Color,
		})
		return true
	})
	return lights
}

// traceLight runs one light's whole bounce sequence. Per bounce: fill the
// sample buffer (dormant slots zeroed), resolve the batch behind the
// executor's barrier, then fold in surface tint and materialize one light
// per hit. A slot goes dormant the first time it misses and produces no
// further samples, hits, or lights.
func traceLight(
	cmd *Commands,
	light lightSource,
	cfg *BounceLightConfig,
	rng *rand.Rand,
	caster SceneCaster,
	exec *RayBatchExecutor,
	buffers *bakeBuffers,
) LightBakeStats {
	lightStats := LightBakeStats{Entity: light.entity}
	started := time.Now()

	n := cfg.RaysPerLight
	samples, hits, states := buffers.samples[:n], buffers.hits[:n], buffers.states[:n]

	for bounce := 0; bounce < cfg.MaxBounces; bounce++ {
		active := 0
		if bounce == 0 {
			for i := range samples {
				samples[i] = seedSample(light, cfg, rng)
				states[i] = RayState{Color: light.color, Bounce: 0}
			}
			active = n
		} else {
			for i := range samples {
				if !hits[i].Hit {
					samples[i] = RaySample{}
					continue
				}
				samples[i] = continuationSample(hits[i], cfg, rng)
				states[i].Bounce = bounce
				active++
			}
		}
		if active == 0 {
			break
		}
		lightStats.RaysCast += active

		exec.CastBatch(samples, hits)

		for i := range hits {
			if !hits[i].Hit {
				continue
			}
			lightStats.Hits++
			if base, ok := caster.BaseColor(hits[i].Entity); ok {
				states[i].Color = tintColor(states[i].Color, base)
			}
			spawnBounceLight(cmd, hits[i], states[i], cfg)
			lightStats.LightsSpawned++
		}
	}

	lightStats.Duration = time.Since(started)
	return lightStats
}

// spawnBounceLight materializes one hit as a point light, pushed off the
// surface along the normal by LightBleeding and parented to the struck
// entity so it follows it.
func spawnBounceLight(cmd *Commands, hit RaycastHit, state RayState, cfg *BounceLightConfig) {
	position := hit.Point.Add(hit.Normal.Mul(cfg.LightBleeding))
	rotation := mgl32.QuatBetweenVectors(mgl32.Vec3{0, 0, -1}, hit.Normal)

	components := []any{
		&TransformComponent{
			Position: position,
			Rotation: rotation,
			Scale:    mgl32.Vec3{1, 1, 1},
		},
		&LightComponent{
			Type:            LightTypePoint,
			Color:           state.Color,
			Intensity:       bakedLightIntensity,
			Range:           cfg.LightRadius,
			Shadows:         ShadowSoft,
			ShadowNearPlane: bakedLightShadowNearPlane,
		},
		&BakedLightTag{Bounce: state.Bounce},
	}

	if parentWorld := worldTransformOf(cmd, hit.Entity); parentWorld != nil {
		local := localToParent(*parentWorld, position, rotation)
		components = append(components, &Parent{Entity: hit.Entity}, &local)
	}

	cmd.AddEntity(components...)
}
