package profiler

import (
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-mfs/engine/logger"
)

// Profiler tracks per stage timings and memory statistics of the painter loop.
// Outputs stats to the engine logger at a configurable interval.
type Profiler struct {
	mu *sync.Mutex

	now            func() time.Time
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	// stages accumulates the time spent per stage since the last report.
	stages map[string]time.Duration
	last   map[string]time.Duration
	order  []string
}

// ProfilerBuilderOption is a function that configures a profiler during construction.
type ProfilerBuilderOption func(*Profiler)

// WithInterval is an option builder that sets how often statistics are logged.
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.updateInterval = d
	}
}

// WithClock is an option builder that replaces the time source.
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.now = now
	}
}

// NewProfiler creates a new Profiler.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: variadic list of ProfilerBuilderOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		mu:             &sync.Mutex{},
		now:            time.Now,
		updateInterval: time.Second,
		memStats:       runtime.MemStats{},
		stages:         make(map[string]time.Duration),
		last:           make(map[string]time.Duration),
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Stage runs fn and records its duration under name. The error of fn is returned unchanged.
//
// Parameters:
//   - name: the stage name
//   - fn: the stage work
//
// Returns:
//   - error: the error returned by fn
func (p *Profiler) Stage(name string, fn func() error) error {
	start := p.now()
	err := fn()
	elapsed := p.now().Sub(start)

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.stages[name]; !ok && !slices.Contains(p.order, name) {
		p.order = append(p.order, name)
	}
	p.stages[name] += elapsed
	p.last[name] = elapsed
	return err
}

// Last returns the duration of the most recent run of a stage.
func (p *Profiler) Last(name string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last[name]
}

// Tick should be called once per painted frame.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, mean stage times, the sample counter, heap usage and GC count.
//
// Parameters:
//   - frame: the sample just accumulated
//   - maxFrames: the convergence target
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(frame, maxFrames int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()
	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	attrs := []any{
		"fps", fps,
		"sample", frame,
		"max", maxFrames,
		"heap_mb", allocMB,
		"alloc_mb_s", allocRateMB,
		"gc", p.memStats.NumGC - p.lastGCCount,
	}
	for _, name := range p.order {
		attrs = append(attrs, name, p.stages[name]/time.Duration(p.frameCount))
		delete(p.stages, name)
	}
	logger.For("profiler").Info("frame stats", attrs...)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = p.memStats.NumGC
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
