package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/astromechza/teleprompter-sync/pkg/state"
	"github.com/astromechza/teleprompter-sync/pkg/storage"
	"github.com/astromechza/teleprompter-sync/pkg/viz"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{})))

	slotVar := flag.String("slot", storage.DefaultSlotName, "the slot name to read")
	svgVar := flag.Bool("svg", false, "also render the snapshot to an svg file")
	flag.Parse()
	if flag.NArg() != 1 {
		return fmt.Errorf("expected one position argument: the storage dsn to read")
	}

	slot, err := storage.Open(flag.Arg(0), *slotVar)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	if slot == nil {
		return fmt.Errorf("empty storage dsn")
	}
	defer slot.Close()

	raw, err := slot.Load(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load slot: %w", err)
	}
	if raw == nil {
		slog.Info("slot is empty", "slot", *slotVar)
		return nil
	}
	snapshot, err := state.Unmarshal(raw, state.Default(state.DefaultTabs(), state.DefaultCategories()))
	if err != nil {
		return fmt.Errorf("failed to parse slot: %w", err)
	}
	slog.Info("loaded snapshot", "bytes", len(raw), "tabs", len(snapshot.Tabs), "categories", len(snapshot.Categories), "items", len(snapshot.Items))

	out, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if *svgVar {
		path, err := viz.RenderToTemp(snapshot)
		if err != nil {
			return fmt.Errorf("failed to render: %w", err)
		}
		slog.Info("rendered", "svg", path)
	}
	return nil
}
