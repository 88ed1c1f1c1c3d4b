// Package progress defines the cooperative progress-and-cancellation
// capability threaded through every installer component (spec §4.K).
package progress

import "sync/atomic"

// Reporter is the capability surface every long-running step reports
// through. Implementations must be safe for concurrent use: the batch
// downloader invokes it from many goroutines at once.
type Reporter interface {
	StartStep(name string, totalSteps int)
	SetMessage(text string)
	SetPercent(pct int) // 0..100, or -1 for indeterminate
	UpdateBytes(transferred, total int64)
	SetStepCount(current, total int)
	SetSubstep(name string, current, total int)
	Done(success bool, message string)

	IsCancelled() bool
	IsPaused() bool
}

// Null is a Reporter that does nothing and is never cancelled; useful for
// tests and for callers that don't care about progress.
type Null struct{}

func (Null) StartStep(string, int)       {}
func (Null) SetMessage(string)           {}
func (Null) SetPercent(int)              {}
func (Null) UpdateBytes(int64, int64)    {}
func (Null) SetStepCount(int, int)       {}
func (Null) SetSubstep(string, int, int) {}
func (Null) Done(bool, string)           {}
func (Null) IsCancelled() bool           { return false }
func (Null) IsPaused() bool              { return false }

// Signal is a minimal concrete Reporter control surface: a shared
// cancel/pause flag pair built from atomic primitives. Embed it in richer
// reporters (console, test doubles) to get cancel/pause for free.
type Signal struct {
	cancelled atomic.Bool
	paused    atomic.Bool
}

func (s *Signal) Cancel()           { s.cancelled.Store(true) }
func (s *Signal) Pause()            { s.paused.Store(true) }
func (s *Signal) Resume()           { s.paused.Store(false) }
func (s *Signal) IsCancelled() bool { return s.cancelled.Load() }
func (s *Signal) IsPaused() bool    { return s.paused.Load() }

// MaxPercent damps backwards jitter from out-of-order parallel downloads
// by taking the max of the new and last emitted value. Reporters that want
// aggregate-monotone percent can route SetPercent through this helper.
type MaxPercent struct {
	last atomic.Int64
}

// Next returns the value to actually report: max(pct, last-seen), and
// records it.
func (m *MaxPercent) Next(pct int) int {
	for {
		prev := m.last.Load()
		if int64(pct) <= prev {
			return int(prev)
		}
		if m.last.CompareAndSwap(prev, int64(pct)) {
			return pct
		}
	}
}
