package device

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cyber-rangers/cratec/internal/infra"
)

// snapshotCacheKey is the Redis key a mirrored snapshot is stored under.
const snapshotCacheKey = "cratec:host-snapshot"

// HostSnapshot is the shared, mutex-guarded view of host resource usage
// refreshed once per second by Sampler.
type HostSnapshot struct {
	CPUPercent   float64
	MemUsedBytes uint64
	MemTotalBytes uint64
	SampledAt    time.Time
}

// Sampler refreshes a HostSnapshot on its own OS thread, per the sampler
// being "a classic tight loop" that does not belong on the shared async
// worker pool.
type Sampler struct {
	mu       sync.RWMutex
	snapshot HostSnapshot
	interval time.Duration

	prevIdle  uint64
	prevTotal uint64

	// Cache mirrors each sample, letting a second process (or one that
	// restarted mid-poll) read the last sample without waiting out a full
	// tick. Defaults to infra.NoCache{}, so callers never need a nil check.
	Cache infra.SnapshotCache
}

// NewSampler constructs a sampler with the given refresh interval (a
// non-positive interval defaults to 1 second) and no snapshot cache. Set Cache afterward to wire
// in a Redis mirror.
func NewSampler(interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Sampler{interval: interval, Cache: infra.NoCache{}}
}

// Snapshot returns a non-blocking, point-in-time copy of the latest sample.
func (s *Sampler) Snapshot() HostSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Run locks the calling goroutine to its OS thread and samples until ctx is
// canceled. Callers should invoke Run in its own goroutine at startup.
func (s *Sampler) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sampleOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce()
		}
	}
}

func (s *Sampler) sampleOnce() {
	cpuPct := s.sampleCPU()
	used, total := sampleMemory()

	snap := HostSnapshot{CPUPercent: cpuPct, MemUsedBytes: used, MemTotalBytes: total, SampledAt: time.Now()}
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	if s.Cache == nil {
		return
	}
	if encoded, err := json.Marshal(snap); err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.Cache.Set(ctx, snapshotCacheKey, encoded, 2*s.interval); err != nil {
			log.Debug("snapshot cache set failed", "error", err)
		}
	}
}

// sampleCPU reads the aggregate "cpu" line of /proc/stat and derives
// percent-busy from the delta against the previous sample.
func (s *Sampler) sampleCPU() float64 {
	idle, total, err := readProcStatCPU()
	if err != nil {
		return 0
	}

	defer func() { s.prevIdle, s.prevTotal = idle, total }()

	deltaTotal := total - s.prevTotal
	deltaIdle := idle - s.prevIdle
	if s.prevTotal == 0 || deltaTotal == 0 {
		return 0
	}
	busy := float64(deltaTotal-deltaIdle) / float64(deltaTotal) * 100
	if busy < 0 {
		return 0
	}
	return busy
}

func readProcStatCPU() (idle, total uint64, err error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || fields[0] != "cpu" {
			continue
		}
		var vals []uint64
		for _, f := range fields[1:] {
			v, convErr := strconv.ParseUint(f, 10, 64)
			if convErr != nil {
				continue
			}
			vals = append(vals, v)
			total += v
		}
		if len(vals) >= 4 {
			idle = vals[3]
		}
		break
	}
	return idle, total, scanner.Err()
}

func sampleMemory() (used, total uint64) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	defer f.Close()

	var memTotal, memAvailable uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "kB"))
		v, convErr := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
		if convErr != nil {
			continue
		}
		switch strings.TrimSpace(key) {
		case "MemTotal":
			memTotal = v * 1024
		case "MemAvailable":
			memAvailable = v * 1024
		}
	}
	if memTotal == 0 {
		return 0, 0
	}
	return memTotal - memAvailable, memTotal
}
