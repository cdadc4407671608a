package video

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/haivivi/omnicall/pkg/metrics"
)

// MinInterval is the minimum gap between accepted frames.
const MinInterval = 500 * time.Millisecond

// Throttler encodes frames and admits at most one per interval. The first
// frame is always admitted; later frames are admitted only if their
// timestamp is at least interval after the last admitted one. Spacing is
// enforced by a one-token limiter driven by frame timestamps. Rejected
// frames are dropped, never queued.
type Throttler struct {
	enc      Encoder
	interval time.Duration

	mu      sync.Mutex
	limiter *rate.Limiter
	last    time.Time
}

// NewThrottler creates a Throttler. A zero interval means MinInterval.
func NewThrottler(enc Encoder, interval time.Duration) *Throttler {
	if interval <= 0 {
		interval = MinInterval
	}
	return &Throttler{
		enc:      enc,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Interval returns the minimum gap between accepted frames.
func (t *Throttler) Interval() time.Duration { return t.interval }

// Offer encodes raw and reports whether it was admitted. Frames without a
// timestamp are stamped with the current time.
func (t *Throttler) Offer(raw RawFrame) (Frame, bool, error) {
	ts := raw.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	data, err := t.enc.Encode(raw.Image)
	if err != nil {
		metrics.RecordVideoFrame(metrics.StatusError)
		return Frame{}, false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.last.IsZero() && !ts.After(t.last) {
		metrics.RecordVideoFrame(metrics.StatusThrottle)
		return Frame{}, false, nil
	}
	if !t.limiter.AllowN(ts, 1) {
		metrics.RecordVideoFrame(metrics.StatusThrottle)
		return Frame{}, false, nil
	}
	t.last = ts
	metrics.RecordVideoFrame(metrics.StatusAccepted)
	return Frame{JPEG: data, Timestamp: ts}, true, nil
}
