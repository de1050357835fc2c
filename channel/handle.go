package channel

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	_ io.ReadWriteCloser = (*Handle)(nil)
	_ io.WriterTo        = (*Handle)(nil)
	_ io.ReaderFrom      = (*Handle)(nil)
)

// Handle is one opened view of a ByteChannel, the way a file descriptor is a
// view of a device: it carries the non-blocking flag and default timeout that
// apply to every transfer made through it.
type Handle struct {
	ID          uuid.UUID
	ch          *ByteChannel
	ctx         context.Context
	cancel      context.CancelCauseFunc
	closeOnce   sync.Once
	timeout     time.Duration
	nonBlocking bool
}

// Open registers a new handle. It only does bookkeeping and never touches
// the buffered bytes.
func (ch *ByteChannel) Open(opts ...HandleOption) (h *Handle, err error) {
	o := handleOptions{
		timeout: ch.timeout,
	}

	for _, opt := range opts {
		opt(&o)
	}

	ch.mu.Lock()

	if ch.closed {
		ch.mu.Unlock()
		return nil, ErrClosed
	}

	ch.handles++
	handles := ch.handles
	ch.mu.Unlock()

	h = &Handle{
		ID:          uuid.New(),
		ch:          ch,
		timeout:     o.timeout,
		nonBlocking: o.nonBlocking,
	}

	h.ctx, h.cancel = context.WithCancelCause(context.Background())

	ch.log.Debug("handle opened", "handle", h.ID, "non_blocking", h.nonBlocking, "timeout", h.timeout, "open_handles", handles)
	return
}

// Handles returns the number of handles currently open.
func (ch *ByteChannel) Handles() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return ch.handles
}

func (ch *ByteChannel) release(h *Handle) {
	ch.mu.Lock()
	ch.handles--
	handles := ch.handles
	ch.mu.Unlock()

	// Transfers blocked on this handle were woken by its cancellation; make
	// sure they re-check without waiting for the AfterFunc goroutine.
	ch.dataReady.Broadcast()
	ch.spaceReady.Broadcast()

	ch.log.Debug("handle closed", "handle", h.ID, "open_handles", handles)
}

func (h *Handle) mode() Mode {
	if h.nonBlocking {
		return NonBlocking
	}

	return Blocking
}

func (h *Handle) Channel() *ByteChannel {
	return h.ch
}

// Read reads at most one contiguous run; short reads are normal.
func (h *Handle) Read(p []byte) (int, error) {
	if h.ctx.Err() != nil {
		return 0, ErrClosed
	}

	return h.ch.Read(h.ctx, p, h.mode(), h.timeout)
}

// Write keeps writing until all of p is in the channel or a transfer fails.
// The returned count includes bytes accepted before the failure.
func (h *Handle) Write(p []byte) (n int, err error) {
	if h.ctx.Err() != nil {
		return 0, ErrClosed
	}

	for len(p) > 0 {
		var wn int

		if wn, err = h.ch.Write(h.ctx, p, h.mode(), h.timeout); err != nil {
			return
		}

		p = p[wn:]
		n += wn
	}

	return
}

// retryInterval is how long a stream copy pauses after ErrWouldBlock before
// trying the transfer again.
const retryInterval = time.Millisecond

// retry reports whether a stream copy may attempt a failed transfer again.
// Timeouts and would-block failures leave the channel untouched.
func (h *Handle) retry(err error) bool {
	switch {
	case errors.Is(err, ErrTimeout):
		return true

	case errors.Is(err, ErrWouldBlock):
		time.Sleep(retryInterval)
		return true
	}

	return false
}

// WriteTo drains the channel into w until the channel or handle is closed.
// Closing is treated as the end of the stream; timeouts and would-block
// failures are retried.
func (h *Handle) WriteTo(w io.Writer) (n int64, err error) {
	buf := make([]byte, h.ch.Cap())

	for {
		rn, rErr := h.Read(buf)

		if rn > 0 {
			wn, wErr := w.Write(buf[:rn])
			n += int64(wn)

			if wErr != nil {
				return n, wErr
			}

			if wn != rn {
				return n, io.ErrShortWrite
			}
		}

		if rErr != nil {
			if errors.Is(rErr, ErrClosed) {
				return n, nil
			}

			if h.retry(rErr) {
				continue
			}

			return n, rErr
		}
	}
}

// ReadFrom copies r into the channel until r returns io.EOF. Bytes not
// accepted after a timeout or would-block failure are written again.
func (h *Handle) ReadFrom(r io.Reader) (n int64, err error) {
	buf := make([]byte, 32*1024)

	for {
		rn, rErr := r.Read(buf)

		for p := buf[:rn]; len(p) > 0; {
			wn, wErr := h.Write(p)
			n += int64(wn)
			p = p[wn:]

			if wErr != nil && !h.retry(wErr) {
				return n, wErr
			}
		}

		if rErr != nil {
			if rErr == io.EOF {
				return n, nil
			}

			return n, rErr
		}
	}
}

// Close interrupts transfers blocked on this handle and makes further calls
// on it fail with ErrClosed. The channel itself stays open.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.cancel(ErrClosed)
		h.ch.release(h)
	})

	return nil
}
