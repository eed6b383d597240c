package lightbake

import (
	"runtime"
	"sync"
)

// castChunkSize is how many ray slots one worker claims at a time. Purely an
// internal throughput knob, callers only ever observe a completed batch.
const castChunkSize = 32

// RayBatchExecutor resolves a batch of ray samples against a SceneCaster,
// fanning chunks of slots out across worker goroutines. CastBatch does not
// return until every slot is resolved, so the caller owns both buffers
// exclusively outside the call.
type RayBatchExecutor struct {
	caster  SceneCaster
	workers int
}

func NewRayBatchExecutor(caster SceneCaster, workers int) *RayBatchExecutor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &RayBatchExecutor{
		caster:  caster,
		workers: workers,
	}
}

// CastBatch fills hits[i] with the result for samples[i]. Dormant slots
// (zero MaxDist) produce a zero-valued miss without touching the caster.
// A miss is a valid result, never an error.
func (e *RayBatchExecutor) CastBatch(samples []RaySample, hits []RaycastHit) {
	if len(samples) != len(hits) {
		panic("CastBatch: sample and hit buffers must have equal length")
	}
	if len(samples) == 0 {
		return
	}

	chunks := make(chan int, (len(samples)+castChunkSize-1)/castChunkSize)
	for start := 0; start < len(samples); start += castChunkSize {
		chunks <- start
	}
	close(chunks)

	workers := e.workers
	if workers > cap(chunks) {
		workers = cap(chunks)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for start := range chunks {
				end := start + castChunkSize
				if end > len(samples) {
					end = len(samples)
				}
				for i := start; i < end; i++ {
					if samples[i].MaxDist <= 0 {
						hits[i] = RaycastHit{}
						continue
					}
					hits[i] = e.caster.Cast(samples[i])
				}
			}
		}()
	}
	wg.Wait() // batch barrier: no result is visible before all are
}
