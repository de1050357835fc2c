package channel

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func openTestHandle(t *testing.T, ch *ByteChannel, opts ...HandleOption) *Handle {
	t.Helper()

	h, err := ch.Open(opts...)

	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	t.Cleanup(func() {
		h.Close()
	})

	return h
}

func TestHandleRefCount(t *testing.T) {
	ch := newTestChannel(t, 4)

	a := openTestHandle(t, ch)
	b := openTestHandle(t, ch)

	if a.ID == b.ID {
		t.Fatal("handles share an ID")
	}

	if ch.Handles() != 2 {
		t.Fatalf("handles = %d, want 2", ch.Handles())
	}

	a.Close()
	a.Close()

	if ch.Handles() != 1 {
		t.Fatalf("handles after close = %d, want 1", ch.Handles())
	}

	if _, err := a.Write([]byte("x")); err != ErrClosed {
		t.Fatalf("write on closed handle = %v, want ErrClosed", err)
	}

	if _, err := a.Read(make([]byte, 1)); err != ErrClosed {
		t.Fatalf("read on closed handle = %v, want ErrClosed", err)
	}

	if _, err := b.Write([]byte("x")); err != nil {
		t.Fatalf("write on open handle: %v", err)
	}

	ch.Close()

	if _, err := ch.Open(); err != ErrClosed {
		t.Fatalf("open after close = %v, want ErrClosed", err)
	}
}

func TestHandleWriteLoopsAcrossWrap(t *testing.T) {
	ch := newTestChannel(t, 5)
	w := openTestHandle(t, ch)
	r := openTestHandle(t, ch)

	want := []byte(strings.Repeat("the quick brown fox ", 200))
	errc := make(chan error, 1)

	go func() {
		n, err := w.Write(want)
		if err == nil && n != len(want) {
			err = io.ErrShortWrite
		}

		errc <- err
	}()

	got := make([]byte, len(want))
	if _, err := io.ReadFull(r, got); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}

	if err := <-errc; err != nil {
		t.Fatalf("Write: %v", err)
	}

	if !bytes.Equal(got, want) {
		t.Fatal("stream corrupted")
	}
}

func TestHandleNonBlocking(t *testing.T) {
	ch := newTestChannel(t, 4)
	h := openTestHandle(t, ch, OpenNonBlocking())

	n, err := h.Write([]byte("abcdef"))
	if n != 3 || !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("write = %d, %v, want 3, ErrWouldBlock", n, err)
	}

	buf := make([]byte, 8)
	if n, err = h.Read(buf); n != 3 || err != nil {
		t.Fatalf("read = %d, %v", n, err)
	}

	if _, err = h.Read(buf); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("read on empty = %v, want ErrWouldBlock", err)
	}
}

func TestHandleTimeout(t *testing.T) {
	ch := newTestChannel(t, 4, WithDefaultTimeout(30*time.Millisecond))
	h := openTestHandle(t, ch)

	if _, err := h.Read(make([]byte, 1)); !errors.Is(err, ErrTimeout) {
		t.Fatalf("read = %v, want ErrTimeout", err)
	}

	h2 := openTestHandle(t, ch, OpenWithTimeout(10*time.Millisecond))
	h2.Write([]byte("abc"))

	n, err := h2.Write([]byte("d"))
	if n != 0 || !errors.Is(err, ErrTimeout) {
		t.Fatalf("write = %d, %v, want 0, ErrTimeout", n, err)
	}
}

func TestHandleCloseInterruptsBlockedRead(t *testing.T) {
	ch := newTestChannel(t, 4, WithDefaultTimeout(0))
	h := openTestHandle(t, ch)

	done := make(chan error, 1)
	go func() {
		_, err := h.Read(make([]byte, 1))
		done <- err
	}()

	waitForWaiters(t, ch, 1)
	h.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrInterrupted) || !errors.Is(err, ErrClosed) {
			t.Fatalf("read = %v, want interrupted by close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read hung after handle close")
	}

	if ch.Closed() {
		t.Fatal("closing a handle closed the channel")
	}
}

func TestHandleCopy(t *testing.T) {
	ch := newTestChannel(t, 16, WithDefaultTimeout(0))
	w := openTestHandle(t, ch)
	r := openTestHandle(t, ch)

	want := strings.Repeat("0123456789", 1000)
	var out bytes.Buffer
	done := make(chan error, 1)

	go func() {
		_, err := r.WriteTo(&out)
		done <- err
	}()

	n, err := w.ReadFrom(strings.NewReader(want))
	if err != nil || n != int64(len(want)) {
		t.Fatalf("ReadFrom = %d, %v", n, err)
	}

	if err := ch.WaitForDrain(t.Context()); err != nil {
		t.Fatal(err)
	}

	ch.Close()

	if err := <-done; err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	if out.String() != want {
		t.Fatalf("copied %d bytes, want %d", out.Len(), len(want))
	}
}

func TestHandleWriteToRetriesTimeout(t *testing.T) {
	ch := newTestChannel(t, 8, WithDefaultTimeout(20*time.Millisecond))
	w := openTestHandle(t, ch)
	r := openTestHandle(t, ch)

	var out bytes.Buffer
	done := make(chan error, 1)

	go func() {
		_, err := r.WriteTo(&out)
		done <- err
	}()

	// Several read timeouts elapse before any data shows up.
	time.Sleep(150 * time.Millisecond)

	if _, err := w.Write([]byte("late")); err != nil {
		t.Fatal(err)
	}

	if err := ch.WaitForDrain(t.Context()); err != nil {
		t.Fatal(err)
	}

	ch.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WriteTo: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WriteTo did not return after close")
	}

	if out.String() != "late" {
		t.Fatalf("copied %q, want %q", out.String(), "late")
	}
}

func TestHandleReadFromRetries(t *testing.T) {
	tests := []struct {
		name string
		opts []HandleOption
	}{
		{"non-blocking", []HandleOption{OpenNonBlocking()}},
		{"timeout", []HandleOption{OpenWithTimeout(10 * time.Millisecond)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := newTestChannel(t, 4, WithDefaultTimeout(0))
			w := openTestHandle(t, ch, tt.opts...)
			r := openTestHandle(t, ch)

			want := strings.Repeat("abcdefgh", 64)
			var out bytes.Buffer
			done := make(chan error, 1)

			go func() {
				// Let the writer fill the ring and fail a few times first.
				time.Sleep(50 * time.Millisecond)
				_, err := r.WriteTo(&out)
				done <- err
			}()

			n, err := w.ReadFrom(strings.NewReader(want))
			if err != nil || n != int64(len(want)) {
				t.Fatalf("ReadFrom = %d, %v", n, err)
			}

			if err := ch.WaitForDrain(t.Context()); err != nil {
				t.Fatal(err)
			}

			ch.Close()

			if err := <-done; err != nil {
				t.Fatalf("WriteTo: %v", err)
			}

			if out.String() != want {
				t.Fatalf("copied %d bytes, want %d", out.Len(), len(want))
			}
		})
	}
}

func TestHandleReadFromStopsOnClose(t *testing.T) {
	ch := newTestChannel(t, 4)
	w := openTestHandle(t, ch, OpenNonBlocking())

	done := make(chan error, 1)
	go func() {
		_, err := w.ReadFrom(strings.NewReader(strings.Repeat("x", 100)))
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	ch.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("ReadFrom = %v, want ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ReadFrom kept retrying after close")
	}
}
