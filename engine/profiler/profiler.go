package profiler

import (
	"log"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Profiler tracks frame rate, per-stage frame timings and memory
// statistics. Outputs stats to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	stageTotals map[string]time.Duration
	stageCounts map[string]int
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
		stageTotals:    make(map[string]time.Duration),
		stageCounts:    make(map[string]int),
	}
}

// RecordStage accumulates a named frame stage's duration. Averages per
// stage are included in the periodic log line and reset afterwards.
//
// Parameters:
//   - name: the stage name, e.g. "collect" or "frame"
//   - d: the elapsed time for this frame's stage
func (p *Profiler) RecordStage(name string, d time.Duration) {
	p.stageTotals[name] += d
	p.stageCounts[name]++
}

// StageAverage returns the mean duration recorded for a stage since the
// last logged interval.
//
// Parameters:
//   - name: the stage name
//
// Returns:
//   - time.Duration: the mean duration, zero if never recorded
func (p *Profiler) StageAverage(name string) time.Duration {
	n := p.stageCounts[name]
	if n == 0 {
		return 0
	}
	return p.stageTotals[name] / time.Duration(n)
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, stage averages, heap usage, allocation rate,
// GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed >= p.updateInterval {
		fps := float64(p.frameCount) / elapsed.Seconds()

		runtime.ReadMemStats(&p.memStats)
		// Alloc: Bytes of allocated heap objects (live memory)
		// TotalAlloc: Cumulative bytes allocated for heap objects (increases forever, tracks churn)
		// Sys: Total bytes of memory obtained from the OS (actual process footprint)
		allocMB := float64(p.memStats.Alloc) / 1024 / 1024
		sysMB := float64(p.memStats.Sys) / 1024 / 1024

		// Calculate allocation rate (MB/sec)
		allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
		allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

		// Calculate GC pause stats (last pause and max recent pause)
		gcCount := p.memStats.NumGC
		var lastPauseUs, maxPauseUs uint64
		if gcCount > 0 {
			// PauseNs is a circular buffer of last 256 GC pauses
			lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

			// Find max pause since last tick
			startIdx := p.lastGCCount
			if gcCount-startIdx > 256 {
				startIdx = gcCount - 256
			}
			for i := startIdx; i < gcCount; i++ {
				pause := p.memStats.PauseNs[i%256] / 1000
				if pause > maxPauseUs {
					maxPauseUs = pause
				}
			}
		}

		log.Printf("[Profiler] FPS: %.2f |%s Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
			fps, p.stageSummary(), allocMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB)

		p.frameCount = 0
		p.lastTime = currentTime
		p.lastGCCount = gcCount
		p.lastTotalAlloc = p.memStats.TotalAlloc
		clear(p.stageTotals)
		clear(p.stageCounts)
		return true
	}

	return false
}

func (p *Profiler) stageSummary() string {
	if len(p.stageTotals) == 0 {
		return ""
	}

	names := make([]string, 0, len(p.stageTotals))
	for name := range p.stageTotals {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(" ")
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(p.StageAverage(name).Round(time.Microsecond).String())
		sb.WriteString(" |")
	}
	return sb.String()
}
