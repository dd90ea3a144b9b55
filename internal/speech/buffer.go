package speech

import (
	"time"
)

// Buffer reassembles candidate audio chunks by sequence number and decides
// when a window is ready for transcription. Chunks may arrive out of order
// within a bounded reorder window; anything older than what has already
// been flushed is dropped.
//
// A window flushes when the fixed window duration elapses, or early when
// the stream has gone silent past the silence threshold (the short "final"
// window that cuts end-of-answer latency).
type Buffer struct {
	window        time.Duration
	silence       time.Duration
	reorderWindow int

	nextSeq     int
	pending     map[int][]byte
	ready       [][]byte
	windowStart time.Time
	lastChunkAt time.Time
}

func NewBuffer(window, silence time.Duration, reorderWindow int) *Buffer {
	if reorderWindow <= 0 {
		reorderWindow = 1
	}
	return &Buffer{
		window:        window,
		silence:       silence,
		reorderWindow: reorderWindow,
		pending:       make(map[int][]byte),
	}
}

// Add buffers a chunk. It returns false when the chunk is late (its slot
// was already flushed) or beyond the reorder window, in which case it is
// dropped.
func (b *Buffer) Add(seq int, data []byte, now time.Time) bool {
	if seq < b.nextSeq {
		return false
	}
	if seq >= b.nextSeq+b.reorderWindow {
		return false
	}
	if _, dup := b.pending[seq]; dup {
		return false
	}

	b.pending[seq] = data
	b.lastChunkAt = now
	if len(b.ready) == 0 && b.windowStart.IsZero() {
		b.windowStart = now
	}

	// Drain everything contiguous into the ready window.
	for {
		chunk, ok := b.pending[b.nextSeq]
		if !ok {
			break
		}
		delete(b.pending, b.nextSeq)
		b.ready = append(b.ready, chunk)
		b.nextSeq++
	}
	return true
}

// Ready reports whether any contiguous audio is waiting.
func (b *Buffer) Ready() bool { return len(b.ready) > 0 }

// ShouldFlush reports whether the buffered window should be handed to the
// transcriber now.
func (b *Buffer) ShouldFlush(now time.Time) bool {
	if len(b.ready) == 0 {
		return false
	}
	if now.Sub(b.windowStart) >= b.window {
		return true
	}
	return now.Sub(b.lastChunkAt) >= b.silence
}

// SilenceElapsed reports whether the stream has gone quiet past the
// silence threshold with audio still buffered, i.e. the flush would be a
// short "final" window.
func (b *Buffer) SilenceElapsed(now time.Time) bool {
	return len(b.ready) > 0 && now.Sub(b.lastChunkAt) >= b.silence
}

// Flush pops the buffered window in sequence order.
func (b *Buffer) Flush() [][]byte {
	out := b.ready
	b.ready = nil
	b.windowStart = time.Time{}
	return out
}

// Reset drops everything, including out-of-order stragglers. Used on
// cancellation so a discarded answer cannot leak into the next node.
func (b *Buffer) Reset() {
	b.ready = nil
	b.pending = make(map[int][]byte)
	b.windowStart = time.Time{}
}

// Rewind drops everything and restarts sequence tracking from zero.
// Sequence numbers are per connection, so a fresh connection numbers its
// chunks from the start again.
func (b *Buffer) Rewind() {
	b.Reset()
	b.nextSeq = 0
}
