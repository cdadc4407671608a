// Package playback assembles streamed reply audio between start and end
// markers and plays each completed reply through a Player.
package playback

import "bytes"

// Buffer accumulates reply audio while collecting. It is not safe for
// concurrent use.
type Buffer struct {
	buf        bytes.Buffer
	collecting bool
}

// Start discards any partial data and begins collecting.
func (b *Buffer) Start() {
	b.buf.Reset()
	b.collecting = true
}

// Append adds chunk while collecting and reports whether it was kept.
func (b *Buffer) Append(chunk []byte) bool {
	if !b.collecting {
		return false
	}
	b.buf.Write(chunk)
	return true
}

// End stops collecting and returns a copy of everything appended since
// Start. ok is false if the buffer was not collecting, so a snapshot is
// produced at most once per Start.
func (b *Buffer) End() (snapshot []byte, ok bool) {
	if !b.collecting {
		return nil, false
	}
	b.collecting = false
	snapshot = bytes.Clone(b.buf.Bytes())
	if snapshot == nil {
		snapshot = []byte{}
	}
	b.buf.Reset()
	return snapshot, true
}

// Abort stops collecting and discards partial data.
func (b *Buffer) Abort() {
	b.collecting = false
	b.buf.Reset()
}

// Collecting reports whether Append currently keeps data.
func (b *Buffer) Collecting() bool {
	return b.collecting
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	return b.buf.Len()
}
