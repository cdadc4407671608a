package omni

import (
	"strconv"
	"time"
)

// Millis is a Unix timestamp in milliseconds, the unit of client_timestamp.
type Millis int64

// MillisOf converts t to Millis. The zero time maps to 0.
func MillisOf(t time.Time) Millis {
	if t.IsZero() {
		return 0
	}
	return Millis(t.UnixMilli())
}

// Now returns the current time in Millis.
func Now() Millis {
	return Millis(time.Now().UnixMilli())
}

// Time converts m back to a time.Time in the local zone.
func (m Millis) Time() time.Time {
	return time.UnixMilli(int64(m))
}

func (m Millis) String() string {
	return strconv.FormatInt(int64(m), 10)
}
