package logging

import (
	"strings"
	"time"
)

// ProgressSampler thins out encoder progress reports. A report is emitted when
// the stage changes, when the percentage enters a new bucket, or, for tools
// that only report elapsed media time, when the interval has passed.
type ProgressSampler struct {
	bucketSize float64
	interval   time.Duration
	lastStage  string
	lastBucket int
	lastEmit   time.Time
	now        func() time.Time
}

// NewProgressSampler constructs a sampler with the given percentage bucket
// (default 10) and minimum interval for unknown-percentage reports (default 15s).
func NewProgressSampler(bucketSize float64, interval time.Duration) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &ProgressSampler{bucketSize: bucketSize, interval: interval, lastBucket: -1, now: time.Now}
}

// ShouldLog reports whether a progress event should be logged. A negative
// percent means the total is unknown.
func (s *ProgressSampler) ShouldLog(percent float64, stage string) bool {
	if s == nil {
		return true
	}
	emit := false
	if stage = strings.TrimSpace(stage); stage != "" && stage != s.lastStage {
		s.lastStage = stage
		s.lastBucket = -1
		emit = true
	}
	now := s.now()
	if percent >= 0 {
		if percent > 100 {
			percent = 100
		}
		if bucket := int(percent / s.bucketSize); bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	} else if s.lastEmit.IsZero() || now.Sub(s.lastEmit) >= s.interval {
		emit = true
	}
	if emit {
		s.lastEmit = now
	}
	return emit
}

// Reset clears the sampler state.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastStage = ""
	s.lastBucket = -1
	s.lastEmit = time.Time{}
}
