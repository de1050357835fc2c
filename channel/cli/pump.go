package main

import (
	"errors"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var pumpCmd = &cobra.Command{
	Use:   "pump",
	Short: "Copy stdin to stdout through the channel",
	Args:  cobra.NoArgs,
	RunE:  runPump,
}

func runPump(cmd *cobra.Command, args []string) (err error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	ch, err := cfg.NewChannel(logger)
	if err != nil {
		return
	}

	defer ch.Close()

	w, err := ch.Open(cfg.HandleOptions()...)
	if err != nil {
		return
	}

	defer w.Close()

	r, err := ch.Open()
	if err != nil {
		return
	}

	defer r.Close()

	produced := make(chan error, 1)
	consumed := make(chan error, 1)

	go func() {
		_, err := w.ReadFrom(cmd.InOrStdin())
		produced <- err
	}()

	go func() {
		_, err := r.WriteTo(cmd.OutOrStdout())
		consumed <- err
	}()

	var consumerDone bool

	select {
	case err = <-produced:
		if err == nil {
			err = ch.WaitForDrain(ctx)
		}
	case err = <-consumed:
		consumerDone = true
	case <-ctx.Done():
		err = ctx.Err()
	}

	if cerr := ch.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}

	// The consumer may still be flushing its last chunk.
	if !consumerDone {
		err = errors.Join(err, <-consumed)
	}

	stats := ch.Stats()

	logger.Info("pump finished",
		"written", humanize.Bytes(stats.BytesWritten),
		"read", humanize.Bytes(stats.BytesRead),
		"capacity", stats.Capacity,
	)

	return
}
