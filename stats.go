package lightbake

import (
	"time"

	"github.com/google/uuid"
)

// LightBakeStats summarizes one source light's trace.
type LightBakeStats struct {
	Entity        EntityId
	RaysCast      int
	Hits          int
	LightsSpawned int
	Duration      time.Duration
}

// BakeStats aggregates a whole run. Installed as a resource by the bounce
// light module and filled by the driver; the CLI renders it after Run.
type BakeStats struct {
	RunId    string
	Started  time.Time
	Finished time.Time

	RaysCast      int
	Hits          int
	LightsSpawned int
	PerLight      []LightBakeStats
}

func newBakeStats() *BakeStats {
	return &BakeStats{RunId: uuid.NewString()}
}

func (s *BakeStats) addLight(light LightBakeStats) {
	s.PerLight = append(s.PerLight, light)
	s.RaysCast += light.RaysCast
	s.Hits += light.Hits
	s.LightsSpawned += light.LightsSpawned
}

func (s *BakeStats) Duration() time.Duration {
	if s.Finished.IsZero() {
		return 0
	}
	return s.Finished.Sub(s.Started)
}
