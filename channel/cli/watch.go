package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uilive"
	"github.com/spf13/cobra"
	"github.com/webbmaffian/go-ringchan/channel"
)

var (
	producers int
	consumers int
	chunkSize int
	readDelay time.Duration
	duration  time.Duration
	interval  time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run producers and consumers against a channel and show live state",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&producers, "producers", 2, "number of writing goroutines")
	watchCmd.Flags().IntVar(&consumers, "consumers", 1, "number of reading goroutines")
	watchCmd.Flags().IntVar(&chunkSize, "chunk", 16, "maximum bytes per write")
	watchCmd.Flags().DurationVar(&readDelay, "read-delay", 5*time.Millisecond, "pause between reads")
	watchCmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	watchCmd.Flags().DurationVar(&interval, "interval", time.Second, "refresh interval")
}

type workload struct {
	ch         *channel.ByteChannel
	wouldBlock atomic.Uint64
	timeouts   atomic.Uint64
}

func runWatch(cmd *cobra.Command, args []string) (err error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return
	}

	if producers < 1 || consumers < 1 || chunkSize < 1 {
		return errors.New("producers, consumers and chunk must be positive")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	ch, err := cfg.NewChannel(logger)
	if err != nil {
		return
	}

	defer ch.Close()

	wl := &workload{ch: ch}
	var wg sync.WaitGroup

	for range producers {
		h, err := ch.Open(cfg.HandleOptions()...)
		if err != nil {
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer h.Close()
			wl.produce(h)
		}()
	}

	for range consumers {
		h, err := ch.Open(cfg.HandleOptions()...)
		if err != nil {
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer h.Close()
			wl.consume(h)
		}()
	}

	wl.render(ctx)

	err = ch.Close()
	wg.Wait()

	stats := ch.Stats()
	logger.Info("watch finished",
		"written", humanize.Bytes(stats.BytesWritten),
		"read", humanize.Bytes(stats.BytesRead),
		"would_block", wl.wouldBlock.Load(),
		"timeouts", wl.timeouts.Load(),
	)

	return
}

// retry reports whether a failed transfer may be attempted again.
func (wl *workload) retry(err error) bool {
	switch {
	case errors.Is(err, channel.ErrWouldBlock):
		wl.wouldBlock.Add(1)
		time.Sleep(time.Millisecond)
		return true

	case errors.Is(err, channel.ErrTimeout):
		wl.timeouts.Add(1)
		return true
	}

	return false
}

func (wl *workload) produce(h *channel.Handle) {
	buf := make([]byte, chunkSize)

	for {
		n := 1 + rand.IntN(chunkSize)

		for i := range buf[:n] {
			buf[i] = byte('a' + rand.IntN(26))
		}

		if _, err := h.Write(buf[:n]); err != nil && !wl.retry(err) {
			return
		}
	}
}

func (wl *workload) consume(h *channel.Handle) {
	buf := make([]byte, chunkSize)

	for {
		if _, err := h.Read(buf); err != nil && !wl.retry(err) {
			return
		}

		time.Sleep(readDelay)
	}
}

func (wl *workload) render(ctx context.Context) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	writer := uilive.New()

	capacity := writer.Newline()
	length := writer.Newline()
	cursors := writer.Newline()
	handles := writer.Newline()
	written := writer.Newline()
	read := writer.Newline()
	throughput := writer.Newline()
	failures := writer.Newline()

	// start listening for updates and render
	writer.Start()
	defer writer.Stop()

	var last uint64
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := wl.ch.Stats()

			fmt.Fprintf(capacity, "Capacity: %d\n", s.Capacity)
			fmt.Fprintf(length, "Length: %d\n", s.Len)
			fmt.Fprintf(cursors, "Write cursor: %d  Read cursor: %d\n", s.WriteCursor, s.ReadCursor)
			fmt.Fprintf(handles, "Handles: %d  Waiting: %d\n", s.Handles, s.Waiters)
			fmt.Fprintf(written, "Written: %s\n", humanize.Bytes(s.BytesWritten))
			fmt.Fprintf(read, "Read: %s\n", humanize.Bytes(s.BytesRead))
			fmt.Fprintf(throughput, "Throughput: %s/s (running %s)\n",
				humanize.Bytes(uint64(float64(s.BytesRead-last)/interval.Seconds())),
				time.Since(start).Round(time.Second))
			fmt.Fprintf(failures, "Would block: %d  Timeouts: %d\n", wl.wouldBlock.Load(), wl.timeouts.Load())

			last = s.BytesRead
		}
	}
}
