package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/astromechza/teleprompter-sync/pkg/config"
	"github.com/astromechza/teleprompter-sync/pkg/coordinator"
	"github.com/astromechza/teleprompter-sync/pkg/state"
	"github.com/astromechza/teleprompter-sync/pkg/storage"
	"github.com/astromechza/teleprompter-sync/pkg/transport"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	configVar := flag.String("config", "", "optional yaml config file")
	verboseVar := flag.Bool("v", false, "log at debug level")
	flag.Parse()

	level := slog.LevelInfo
	if *verboseVar {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.LoadClient(*configVar)
	if err != nil {
		return err
	}

	slot, err := storage.Open(cfg.StorageDSN, cfg.SlotName)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	if slot != nil {
		defer slot.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	initial := coordinator.Load(ctx, slot, cfg.Defaults(), slog.Default())
	store := state.NewStore(initial)

	// this process hosts a single store, so there is no in-process peer on
	// the bus; the unavailable bus adapter hands over to the slot poller
	var bus *transport.Bus
	broadcast := bus.Adapter(cfg.Channel)
	poll := transport.NewPollAdapter(slot, transport.PollOptions{
		Interval:    cfg.PollInterval,
		FallbackFor: broadcast,
	})
	relayAdapter := transport.NewRelayAdapter(transport.RelayOptions{
		URL:           cfg.RelayURL,
		ReconnectBase: cfg.ReconnectBase,
		ReconnectMax:  cfg.ReconnectMax,
	})
	relayAdapter.OnStateChange(func(s transport.ConnState) {
		slog.Info("relay", "state", s.String())
	})

	c := coordinator.New(store, slot, []transport.Adapter{broadcast, poll, relayAdapter}, coordinator.Options{})
	if err := c.Start(); err != nil {
		return err
	}
	defer c.Close()
	slog.Info("client started", "origin", c.Origin(), "transports", c.Live())

	unsubscribe := store.Subscribe(func(s state.Snapshot) {
		slog.Info("snapshot changed", "tab", s.ActiveTabID, "display", s.DisplayTabID, "items", len(s.Items), "speed", s.ScrollSpeed, "auto", s.AutoScrolling, "font", s.FontSize)
	})
	defer unsubscribe()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Signal caught, stopping")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := execute(store, line, printSnapshot); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				slog.Warn(err.Error())
			}
		}
	}
}

func printSnapshot(s state.Snapshot) {
	fmt.Printf("tabs (editing %s, showing %s):\n", s.ActiveTabID, s.DisplayTabID)
	for _, t := range s.Tabs {
		fmt.Printf("  %s %s %q\n", t.ID, t.Label, t.Content)
	}
	fmt.Printf("scroll speed=%d auto=%t font=%s\n", s.ScrollSpeed, s.AutoScrolling, s.FontSize)
	for _, g := range s.Groups() {
		fmt.Printf("%s %s\n", g.Category.Icon, g.Category.Label)
		for _, it := range g.Items {
			mark := " "
			if it.Completed {
				mark = "x"
			}
			line := fmt.Sprintf("  [%s] %s  %s", mark, it.ID, it.Text)
			if it.Detail != "" {
				line += " (" + strings.TrimSpace(it.Detail) + ")"
			}
			fmt.Println(line)
		}
	}
}
