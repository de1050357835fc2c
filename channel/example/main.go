package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/webbmaffian/go-ringchan/channel"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	ch, err := channel.NewByteChannel(16)

	if err != nil {
		slog.Error("create channel", "error", err)
		return
	}

	server, err := ch.Open()

	if err != nil {
		slog.Error("open server handle", "error", err)
		return
	}

	client, err := ch.Open(channel.OpenNonBlocking())

	if err != nil {
		slog.Error("open client handle", "error", err)
		return
	}

	go runServer(ch, server)
	go runClient(ch, client)

	<-ctx.Done()

	if err := ch.Close(); err != nil {
		slog.Error("close channel", "error", err)
	}
}

func runServer(ch *channel.ByteChannel, h *channel.Handle) {
	slog.Info("server: started")
	buf := make([]byte, 8)

	for {
		n, err := h.Read(buf)

		if errors.Is(err, channel.ErrTimeout) {
			stats(ch, "server", "IDLE", "")
			continue
		}

		if err != nil {
			slog.Info("server: closing", "reason", err)
			return
		}

		stats(ch, "server", "READ", string(buf[:n]))
		time.Sleep(300 * time.Millisecond)
	}
}

func runClient(ch *channel.ByteChannel, h *channel.Handle) {
	slog.Info("client: started")

	for {
		msg := fmt.Sprintf("%010d", time.Now().Unix())

		n, err := h.Write([]byte(msg))

		if errors.Is(err, channel.ErrWouldBlock) {
			stats(ch, "client", "FULL", msg[:n])
			time.Sleep(time.Second)
			continue
		}

		if err != nil {
			slog.Info("client: closing", "reason", err)
			return
		}

		stats(ch, "client", "WRITE", msg)
	}
}

func stats(ch *channel.ByteChannel, who, what, msg string) {
	s := ch.Stats()
	slog.Info(who, "op", what, "msg", msg, "len", s.Len, "write", s.WriteCursor, "read", s.ReadCursor)
}
