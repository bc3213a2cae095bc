package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"
)

// slidingWindow is a ring buffer of per-slice counters, grounded on
// SlidingWindowRateLimiter.java's AtomicLongArray approach: the window is
// divided into WindowSlices equal slices, each request increments the
// slice its timestamp falls in, and the admission check sums every slice
// whose interval overlaps the trailing [now-window, now] range.
type slidingWindow struct {
	cfg           Config
	sliceDuration int64 // ms
	counts        []atomic.Int64
	sliceStamp    []atomic.Int64 // ms timestamp the slice was last written at
	total         atomic.Int64
	limited       atomic.Int64

	// mu serializes TryAcquire, Status and Reset: the clean-expired,
	// count-window and increment steps of one TryAcquire run under it as a
	// single read-modify-write sequence.
	mu sync.Mutex
}

func newSlidingWindow(cfg Config) *slidingWindow {
	sw := &slidingWindow{
		cfg:           cfg,
		sliceDuration: cfg.WindowSizeMs / int64(cfg.WindowSlices),
		counts:        make([]atomic.Int64, cfg.WindowSlices),
		sliceStamp:    make([]atomic.Int64, cfg.WindowSlices),
	}
	return sw
}

func (sw *slidingWindow) currentSlice(nowMs int64) int {
	return int((nowMs / sw.sliceDuration) % int64(len(sw.counts)))
}

// cleanExpiredSlices zeroes any slice whose last write is now outside the
// trailing window, mirroring SlidingWindowRateLimiter.cleanExpiredSlices.
func (sw *slidingWindow) cleanExpiredSlices(nowMs int64) {
	windowStart := nowMs - sw.cfg.WindowSizeMs
	for i := range sw.counts {
		stamp := sw.sliceStamp[i].Load()
		if stamp != 0 && stamp <= windowStart {
			sw.counts[i].Store(0)
			sw.sliceStamp[i].Store(0)
		}
	}
}

func (sw *slidingWindow) windowCount(nowMs int64) int64 {
	windowStart := nowMs - sw.cfg.WindowSizeMs
	var sum int64
	for i := range sw.counts {
		stamp := sw.sliceStamp[i].Load()
		if stamp != 0 && stamp > windowStart {
			sum += sw.counts[i].Load()
		}
	}
	return sum
}

func (sw *slidingWindow) TryAcquire(permits int) bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.total.Add(1)
	if !sw.cfg.Enabled {
		return true
	}

	now := time.Now().UnixMilli()
	sw.cleanExpiredSlices(now)
	count := sw.windowCount(now)
	if count+int64(permits) > int64(sw.cfg.Rate) {
		sw.limited.Add(1)
		return false
	}
	slice := sw.currentSlice(now)
	sw.counts[slice].Add(int64(permits))
	sw.sliceStamp[slice].Store(now)
	return true
}

func (sw *slidingWindow) Status() Result {
	sw.mu.Lock()
	now := time.Now().UnixMilli()
	sw.cleanExpiredSlices(now)
	count := sw.windowCount(now)
	sw.mu.Unlock()

	total := sw.total.Load()
	limited := sw.limited.Load()
	var limitRate float64
	if total > 0 {
		limitRate = float64(limited) / float64(total)
	}
	available := int(sw.cfg.Rate) - int(count)
	if available < 0 {
		available = 0
	}
	return Result{
		AvailableTokens: available,
		TotalRequests:   total,
		LimitedRequests: limited,
		LimitRate:       limitRate,
	}
}

func (sw *slidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	for i := range sw.counts {
		sw.counts[i].Store(0)
		sw.sliceStamp[i].Store(0)
	}
	sw.total.Store(0)
	sw.limited.Store(0)
}

func (sw *slidingWindow) Config() Config { return sw.cfg }
