package video

import (
	"sync"

	"github.com/haivivi/omnicall/pkg/metrics"
)

// Worker processes frames on one goroutine through a one-slot mailbox. A
// frame submitted while another is pending replaces it.
type Worker struct {
	slot   chan RawFrame
	handle func(RawFrame)

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewWorker starts a worker calling handle for each frame it takes.
func NewWorker(handle func(RawFrame)) *Worker {
	w := &Worker{
		slot:   make(chan RawFrame, 1),
		handle: handle,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w
}

// Submit hands f to the worker without blocking and reports whether a
// pending frame was discarded to make room.
func (w *Worker) Submit(f RawFrame) (replaced bool) {
	for {
		select {
		case w.slot <- f:
			if replaced {
				metrics.RecordVideoFrame(metrics.StatusReplaced)
			}
			return replaced
		default:
		}
		select {
		case <-w.slot:
			replaced = true
		default:
		}
	}
}

// Close stops the worker and waits for the frame in progress. Pending frames
// are dropped.
func (w *Worker) Close() {
	w.closeOnce.Do(func() { close(w.stop) })
	<-w.done
}

func (w *Worker) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case f := <-w.slot:
			select {
			case <-w.stop:
				return
			default:
			}
			w.handle(f)
		}
	}
}
