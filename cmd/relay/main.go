package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/astromechza/teleprompter-sync/pkg/config"
	"github.com/astromechza/teleprompter-sync/pkg/relay"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	cfg := config.LoadRelay()
	addrVar := flag.String("addr", cfg.Addr, "the address to listen on")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s := relay.NewServer(relay.Options{MaxMessageBytes: cfg.MaxMessageBytes})
	slog.Info("relay listening", "addr", *addrVar)
	if err := s.ListenAndServe(ctx, *addrVar); err != nil {
		return err
	}
	slog.Info("relay stopped")
	return nil
}
