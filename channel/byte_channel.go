// Package channel implements a bounded in-memory byte channel: a fixed
// capacity ring shared by any number of producers and consumers, with
// blocking, non-blocking and deadline-bounded transfers.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type ByteChannel struct {
	store        storage
	dataReady    sync.Cond // Awaited by readers, notified by writers.
	spaceReady   sync.Cond // Awaited by writers, notified by readers.
	mu           sync.Mutex
	log          *slog.Logger
	timeout      time.Duration
	capacity     int
	writeIdx     int
	readIdx      int
	handles      int
	waiters      int
	bytesWritten uint64
	bytesRead    uint64
	closed       bool
}

// NewByteChannel creates a channel holding at most capacity-1 bytes. A zero
// capacity selects DefaultCapacity.
func NewByteChannel(capacity int, opts ...Option) (ch *ByteChannel, err error) {
	if capacity == 0 {
		capacity = DefaultCapacity
	}

	if capacity < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}

	o := options{
		backing: BackingHeap,
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}

	ch = &ByteChannel{
		capacity: capacity,
		timeout:  o.timeout,
		log:      o.logger.With("component", "bytechannel"),
	}

	ch.dataReady.L = &ch.mu
	ch.spaceReady.L = &ch.mu

	if ch.store, err = newStorage(o.backing, capacity); err != nil {
		return nil, err
	}

	ch.log.Debug("channel created", "capacity", capacity, "backing", o.backing)
	return
}

// Write copies as much of p as fits in one contiguous run of free slots and
// returns the number of bytes copied. A short count is not an error; callers
// wanting all of p written must call again with the remainder.
//
// When the channel is full, NonBlocking mode fails with ErrWouldBlock.
// Blocking mode waits until space frees up, the timeout elapses (ErrTimeout,
// zero disables it) or ctx is cancelled (ErrInterrupted).
func (ch *ByteChannel) Write(ctx context.Context, p []byte, mode Mode, timeout time.Duration) (n int, err error) {
	ch.mu.Lock()

	if ch.closed {
		ch.mu.Unlock()
		return 0, ErrClosed
	}

	if len(p) == 0 {
		ch.mu.Unlock()
		return 0, nil
	}

	if err = ch.waitLocked(ctx, &ch.spaceReady, ch.writableLocked, mode, timeout); err != nil {
		ch.mu.Unlock()
		return 0, err
	}

	n = ch.writeLocked(p)
	ch.mu.Unlock()

	ch.dataReady.Broadcast()
	return
}

// Read copies up to len(p) bytes from one contiguous run of occupied slots.
// Waiting follows the same rules as Write.
func (ch *ByteChannel) Read(ctx context.Context, p []byte, mode Mode, timeout time.Duration) (n int, err error) {
	ch.mu.Lock()

	if ch.closed {
		ch.mu.Unlock()
		return 0, ErrClosed
	}

	if len(p) == 0 {
		ch.mu.Unlock()
		return 0, nil
	}

	if err = ch.waitLocked(ctx, &ch.dataReady, ch.readableLocked, mode, timeout); err != nil {
		ch.mu.Unlock()
		return 0, err
	}

	n = ch.readLocked(p)
	ch.mu.Unlock()

	ch.spaceReady.Broadcast()
	return
}

func (ch *ByteChannel) WriteOrFail(p []byte) (int, error) {
	return ch.Write(context.Background(), p, NonBlocking, 0)
}

func (ch *ByteChannel) WriteOrBlock(ctx context.Context, p []byte) (int, error) {
	return ch.Write(ctx, p, Blocking, 0)
}

func (ch *ByteChannel) ReadOrFail(p []byte) (int, error) {
	return ch.Read(context.Background(), p, NonBlocking, 0)
}

func (ch *ByteChannel) ReadOrBlock(ctx context.Context, p []byte) (int, error) {
	return ch.Read(ctx, p, Blocking, 0)
}

// waitLocked returns once ready reports true. The guard is released while
// suspended on cond and held again on return.
func (ch *ByteChannel) waitLocked(ctx context.Context, cond *sync.Cond, ready func() bool, mode Mode, timeout time.Duration) error {
	if ready() {
		return nil
	}

	if mode == NonBlocking {
		return ErrWouldBlock
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Broadcasting under the guard means a waiter is either before its ctx
	// check or parked in Wait, so the wake-up cannot be lost.
	stop := context.AfterFunc(ctx, func() {
		ch.mu.Lock()
		cond.Broadcast()
		ch.mu.Unlock()
	})
	defer stop()

	for {
		if ch.closed {
			return fmt.Errorf("%w: %w", ErrInterrupted, ErrClosed)
		}

		if ready() {
			return nil
		}

		if ctx.Err() != nil {
			return waitError(ctx)
		}

		ch.log.Debug("waiting", "capacity", ch.capacity, "write", ch.writeIdx, "read", ch.readIdx)
		ch.waiters++
		cond.Wait()
		ch.waiters--
	}
}

func waitError(ctx context.Context) error {
	err := ctx.Err()

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	if cause := context.Cause(ctx); cause != nil && cause != err {
		return fmt.Errorf("%w: %w", ErrInterrupted, cause)
	}

	return fmt.Errorf("%w: %w", ErrInterrupted, err)
}

func (ch *ByteChannel) writableLocked() bool {
	return !ringFull(ch.capacity, ch.writeIdx, ch.readIdx)
}

func (ch *ByteChannel) readableLocked() bool {
	return !ringEmpty(ch.writeIdx, ch.readIdx)
}

func (ch *ByteChannel) writeLocked(p []byte) int {
	run := writableRun(ch.capacity, ch.writeIdx, ch.readIdx)
	n := copy(ch.store.data[ch.writeIdx:ch.writeIdx+run], p)
	ch.writeIdx = advance(ch.capacity, ch.writeIdx, n)
	ch.bytesWritten += uint64(n)
	return n
}

func (ch *ByteChannel) readLocked(p []byte) int {
	run := readableRun(ch.capacity, ch.writeIdx, ch.readIdx)
	n := copy(p, ch.store.data[ch.readIdx:ch.readIdx+run])
	ch.readIdx = advance(ch.capacity, ch.readIdx, n)
	ch.bytesRead += uint64(n)
	return n
}

// WaitForDrain blocks until every buffered byte has been read, the channel is
// closed or ctx is done.
func (ch *ByteChannel) WaitForDrain(ctx context.Context) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed {
		return ErrClosed
	}

	err := ch.waitLocked(ctx, &ch.spaceReady, func() bool {
		return ringEmpty(ch.writeIdx, ch.readIdx)
	}, Blocking, 0)

	if errors.Is(err, ErrInterrupted) && ch.closed {
		return ErrClosed
	}

	return err
}

// Reset discards all buffered bytes and wakes blocked writers.
func (ch *ByteChannel) Reset() {
	ch.mu.Lock()
	ch.readIdx = ch.writeIdx
	ch.mu.Unlock()

	ch.spaceReady.Broadcast()
}

// Close tears the channel down. Blocked transfers return ErrInterrupted
// wrapping ErrClosed, later calls fail with ErrClosed and the storage is
// released. Closing twice is a no-op.
func (ch *ByteChannel) Close() (err error) {
	ch.mu.Lock()

	if ch.closed {
		ch.mu.Unlock()
		return
	}

	ch.closed = true
	err = ch.store.free()
	handles := ch.handles
	ch.mu.Unlock()

	ch.dataReady.Broadcast()
	ch.spaceReady.Broadcast()

	ch.log.Debug("channel closed", "open_handles", handles, "written", ch.BytesWritten(), "read", ch.BytesRead())

	if err != nil {
		return fmt.Errorf("release storage: %w", err)
	}

	return
}

func (ch *ByteChannel) Closed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return ch.closed
}

func (ch *ByteChannel) Empty() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return ringEmpty(ch.writeIdx, ch.readIdx)
}

func (ch *ByteChannel) Full() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return ringFull(ch.capacity, ch.writeIdx, ch.readIdx)
}

// Len returns the number of buffered bytes.
func (ch *ByteChannel) Len() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return ringLen(ch.capacity, ch.writeIdx, ch.readIdx)
}

// Cap returns the storage size. At most Cap()-1 bytes are ever buffered.
func (ch *ByteChannel) Cap() int {
	return ch.capacity
}

func (ch *ByteChannel) BytesWritten() uint64 {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return ch.bytesWritten
}

func (ch *ByteChannel) BytesRead() uint64 {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return ch.bytesRead
}

type Stats struct {
	Capacity     int
	Len          int
	WriteCursor  int
	ReadCursor   int
	Handles      int
	Waiters      int
	BytesWritten uint64
	BytesRead    uint64
	Closed       bool
}

// Stats returns a consistent snapshot of the channel state.
func (ch *ByteChannel) Stats() Stats {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return Stats{
		Capacity:     ch.capacity,
		Len:          ringLen(ch.capacity, ch.writeIdx, ch.readIdx),
		WriteCursor:  ch.writeIdx,
		ReadCursor:   ch.readIdx,
		Handles:      ch.handles,
		Waiters:      ch.waiters,
		BytesWritten: ch.bytesWritten,
		BytesRead:    ch.bytesRead,
		Closed:       ch.closed,
	}
}
