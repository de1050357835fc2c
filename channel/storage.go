package channel

import (
	"fmt"

	"github.com/edsrzf/mmap-go"
)

type Backing string

const (
	BackingHeap Backing = "heap"
	BackingMmap Backing = "mmap"
)

func ParseBacking(s string) (Backing, error) {
	switch b := Backing(s); b {
	case "", BackingHeap:
		return BackingHeap, nil
	case BackingMmap:
		return b, nil
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidBacking, s)
}

// storage is the fixed byte area behind a channel. It is never handed out to
// callers; bytes are always copied in and out.
type storage struct {
	data    []byte
	release func() error
}

func newStorage(backing Backing, capacity int) (s storage, err error) {
	switch backing {
	case "", BackingHeap:
		s.data = make([]byte, capacity)
		s.release = func() error { return nil }

	case BackingMmap:
		var m mmap.MMap

		if m, err = mmap.MapRegion(nil, capacity, mmap.RDWR, mmap.ANON, 0); err != nil {
			return s, fmt.Errorf("map %d bytes: %w", capacity, err)
		}

		s.data = m
		s.release = m.Unmap

	default:
		return s, fmt.Errorf("%w: %q", ErrInvalidBacking, backing)
	}

	return
}

func (s *storage) free() (err error) {
	if s.release == nil {
		return
	}

	err = s.release()
	s.data = nil
	s.release = nil
	return
}
