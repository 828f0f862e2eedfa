package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vk/weaver/internal/result"
	"github.com/vk/weaver/internal/runner"
)

// Sleeper wraps a handler so that every call takes at least d, and records
// each call's execution window. It is used to widen race windows in locking
// tests.
type Sleeper struct {
	mu      sync.Mutex
	records []ExecutionRecord
	d       time.Duration
	next    Handler
}

// NewSleeper creates a sleeper delegating to next, which may be nil.
func NewSleeper(d time.Duration, next Handler) *Sleeper {
	return &Sleeper{d: d, next: next}
}

// Handle implements Handler.
func (s *Sleeper) Handle(ctx context.Context, cmd runner.Cmd) result.Result {
	start := time.Now()
	select {
	case <-time.After(s.d):
	case <-ctx.Done():
		return result.FromError(cmd.Args, ctx.Err())
	}
	res := result.Result{Args: cmd.Args}
	if s.next != nil {
		res = s.next(ctx, cmd)
	}
	s.mu.Lock()
	s.records = append(s.records, ExecutionRecord{Start: start, End: time.Now()})
	s.mu.Unlock()
	return res
}

// Records returns the recorded execution windows.
func (s *Sleeper) Records() []ExecutionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ExecutionRecord(nil), s.records...)
}

// AnyOverlap reports whether any two recorded executions overlapped.
func (s *Sleeper) AnyOverlap() bool {
	recs := s.Records()
	for i := range recs {
		for j := i + 1; j < len(recs); j++ {
			if recs[i].Overlaps(recs[j]) {
				return true
			}
		}
	}
	return false
}

// IndexOf returns the position of the first recorded call whose joined argv
// contains substr, or -1.
func (f *FakeRunner) IndexOf(substr string) int {
	for i, line := range f.Lines() {
		if strings.Contains(line, substr) {
			return i
		}
	}
	return -1
}
