// Package metrics keeps short in-memory telemetry histories, one ring
// buffer per module, for the history API.
package metrics

import (
	"sync/atomic"
	"time"
)

// samplePoint is the packed in-buffer representation.
type samplePoint struct {
	timestamp int64
	metric    string
	value     float64
}

// SamplePoint is a single telemetry reading at a point in time.
type SamplePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
}

// RingBuffer holds the most recent size samples. Writes advance an
// atomic position counter; reads walk backwards from it.
type RingBuffer struct {
	points []samplePoint
	pos    int64
	size   int64
}

// NewBuffer creates a SampleStore holding up to size points.
func NewBuffer(size int) SampleStore {
	return &RingBuffer{
		points: make([]samplePoint, size),
		size:   int64(size),
	}
}

// Add records one sample, evicting the oldest when full.
func (b *RingBuffer) Add(timestamp time.Time, metric string, value float64) {
	pos := atomic.AddInt64(&b.pos, 1) - 1
	idx := pos % b.size

	b.points[idx] = samplePoint{
		timestamp: timestamp.UnixNano(),
		metric:    metric,
		value:     value,
	}
}

// GetPoints returns the recorded samples, newest first.
func (b *RingBuffer) GetPoints() []SamplePoint {
	pos := atomic.LoadInt64(&b.pos)

	n := pos
	if n > b.size {
		n = b.size
	}

	points := make([]SamplePoint, 0, n)

	for i := int64(0); i < n; i++ {
		idx := (pos - i - 1 + b.size) % b.size
		p := b.points[idx]

		points = append(points, SamplePoint{
			Timestamp: time.Unix(0, p.timestamp),
			Metric:    p.metric,
			Value:     p.value,
		})
	}

	return points
}

// GetLastPoint returns the most recent sample, or nil when empty.
func (b *RingBuffer) GetLastPoint() *SamplePoint {
	pos := atomic.LoadInt64(&b.pos)
	if pos == 0 {
		return nil
	}

	p := b.points[(pos-1)%b.size]

	return &SamplePoint{
		Timestamp: time.Unix(0, p.timestamp),
		Metric:    p.metric,
		Value:     p.value,
	}
}
