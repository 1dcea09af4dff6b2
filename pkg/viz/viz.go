package viz

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/astromechza/teleprompter-sync/pkg/state"
)

// RenderSnapshot draws the snapshot as a graph: tabs and categories hang off
// the root, items hang off their category in list order.
func RenderSnapshot(snapshot state.Snapshot, w io.Writer) error {
	g := graphviz.New()
	defer g.Close()

	graph, err := g.Graph()
	if err != nil {
		return fmt.Errorf("failed to setup graph: %w", err)
	}
	defer graph.Close()

	root, err := graph.CreateNode("snapshot")
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}
	root.SetLabel(fmt.Sprintf("speed=%d auto=%t font=%s", snapshot.ScrollSpeed, snapshot.AutoScrolling, snapshot.FontSize))

	edges := 0
	link := func(from, to *cgraph.Node) error {
		edges++
		if _, err := graph.CreateEdge(fmt.Sprintf("e%d", edges), from, to); err != nil {
			return fmt.Errorf("failed to create edge: %w", err)
		}
		return nil
	}

	for _, tab := range snapshot.Tabs {
		n, err := graph.CreateNode("tab:" + tab.ID)
		if err != nil {
			return fmt.Errorf("failed to create node: %w", err)
		}
		label := fmt.Sprintf("%s %s (%d chars)", tab.Icon, tab.Label, len(tab.Content))
		if tab.ID == snapshot.ActiveTabID {
			label += " [editing]"
		}
		if tab.ID == snapshot.DisplayTabID {
			label += " [showing]"
		}
		n.SetLabel(label)
		n.SetShape(cgraph.BoxShape)
		if err := link(root, n); err != nil {
			return err
		}
	}

	categoryNodes := make(map[string]*cgraph.Node, len(snapshot.Categories))
	for _, c := range snapshot.Categories {
		n, err := graph.CreateNode("category:" + c.ID)
		if err != nil {
			return fmt.Errorf("failed to create node: %w", err)
		}
		n.SetLabel(fmt.Sprintf("%s %s", c.Icon, c.Label))
		categoryNodes[c.ID] = n
		if err := link(root, n); err != nil {
			return err
		}
	}

	for i, it := range snapshot.Items {
		n, err := graph.CreateNode("item:" + it.ID)
		if err != nil {
			return fmt.Errorf("failed to create node: %w", err)
		}
		label := fmt.Sprintf("#%d %s", i, it.Text)
		if it.Completed {
			label += " ✓"
		}
		n.SetLabel(label)
		parent, ok := categoryNodes[it.CategoryID]
		if !ok {
			parent = root
		}
		if err := link(parent, n); err != nil {
			return err
		}
	}

	var buff bytes.Buffer
	if err := g.Render(graph, graphviz.SVG, &buff); err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	if _, err := w.Write(buff.Bytes()); err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}
	return nil
}

func RenderToTemp(snapshot state.Snapshot) (string, error) {
	tf := filepath.Join(os.TempDir(), fmt.Sprintf("%d%d.svg", time.Now().UnixNano(), rand.Int()))
	f, err := os.Create(tf)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := RenderSnapshot(snapshot, f); err != nil {
		return "", err
	}
	return tf, nil
}
