package state

import (
	"encoding/json"
	"fmt"
	"reflect"
)

type FontSize string

const (
	FontSizeSmall      FontSize = "sm"
	FontSizeMedium     FontSize = "md"
	FontSizeLarge      FontSize = "lg"
	FontSizeExtraLarge FontSize = "xl"
	FontSizeHuge       FontSize = "2xl"
)

// FontSizes is the fixed display scale, smallest first.
var FontSizes = []FontSize{FontSizeSmall, FontSizeMedium, FontSizeLarge, FontSizeExtraLarge, FontSizeHuge}

func (f FontSize) Valid() bool {
	for _, s := range FontSizes {
		if f == s {
			return true
		}
	}
	return false
}

const (
	MinScrollSpeed = 0
	MaxScrollSpeed = 100
)

type Tab struct {
	ID          string `json:"id" yaml:"id"`
	Label       string `json:"label" yaml:"label"`
	Icon        string `json:"icon" yaml:"icon"`
	Content     string `json:"content" yaml:"content"`
	Placeholder string `json:"placeholder" yaml:"placeholder"`
}

type Category struct {
	ID       string `json:"id" yaml:"id"`
	Label    string `json:"label" yaml:"label"`
	Icon     string `json:"icon" yaml:"icon"`
	ColorTag string `json:"colorTag" yaml:"colorTag"`
}

type Item struct {
	ID         string `json:"id"`
	CategoryID string `json:"categoryId"`
	Text       string `json:"text"`
	Detail     string `json:"detail,omitempty"`
	Completed  bool   `json:"completed"`
	CreatedAt  int64  `json:"createdAt"` // unix millis
}

// Snapshot is the whole shared document. A Snapshot value is never modified
// in place once published; every change produces a new one.
type Snapshot struct {
	ActiveTabID   string     `json:"activeTabId"`
	DisplayTabID  string     `json:"displayTabId"`
	Tabs          []Tab      `json:"tabs"`
	Categories    []Category `json:"categories"`
	Items         []Item     `json:"items"`
	ScrollSpeed   int        `json:"scrollSpeed"`
	AutoScrolling bool       `json:"autoScrolling"`
	FontSize      FontSize   `json:"fontSize"`
}

func (s Snapshot) Clone() Snapshot {
	out := s
	out.Tabs = append([]Tab{}, s.Tabs...)
	out.Categories = append([]Category{}, s.Categories...)
	out.Items = append([]Item{}, s.Items...)
	return out
}

// Equal reports structural equality. Nil and empty sequences compare equal.
func Equal(a, b Snapshot) bool {
	return reflect.DeepEqual(a.Clone(), b.Clone())
}

func (s Snapshot) Tab(id string) (Tab, bool) {
	for _, t := range s.Tabs {
		if t.ID == id {
			return t, true
		}
	}
	return Tab{}, false
}

func (s Snapshot) Category(id string) (Category, bool) {
	if i := s.categoryIndex(id); i >= 0 {
		return s.Categories[i], true
	}
	return Category{}, false
}

func (s Snapshot) Item(id string) (Item, bool) {
	if i := s.itemIndex(id); i >= 0 {
		return s.Items[i], true
	}
	return Item{}, false
}

// ItemsIn returns the items of one category in list order.
func (s Snapshot) ItemsIn(categoryID string) []Item {
	var out []Item
	for _, it := range s.Items {
		if it.CategoryID == categoryID {
			out = append(out, it)
		}
	}
	return out
}

// Group is one category together with its items, as a display renders it.
type Group struct {
	Category Category
	Items    []Item
}

// Groups returns the non-empty categories in category order.
func (s Snapshot) Groups() []Group {
	var out []Group
	for _, c := range s.Categories {
		if items := s.ItemsIn(c.ID); len(items) > 0 {
			out = append(out, Group{Category: c, Items: items})
		}
	}
	return out
}

func (s Snapshot) tabIndex(id string) int {
	for i, t := range s.Tabs {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s Snapshot) categoryIndex(id string) int {
	for i, c := range s.Categories {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s Snapshot) itemIndex(id string) int {
	for i, it := range s.Items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func Marshal(s Snapshot) ([]byte, error) {
	return json.Marshal(s.Clone())
}

// Unmarshal decodes a persisted snapshot leniently: fields missing from raw
// keep the values from base, tabs are reconciled against base's tab set, and
// out of range values are brought back into range.
func Unmarshal(raw []byte, base Snapshot) (Snapshot, error) {
	var partial struct {
		ActiveTabID   *string    `json:"activeTabId"`
		DisplayTabID  *string    `json:"displayTabId"`
		Tabs          []Tab      `json:"tabs"`
		Categories    []Category `json:"categories"`
		Items         []Item     `json:"items"`
		ScrollSpeed   *int       `json:"scrollSpeed"`
		AutoScrolling *bool      `json:"autoScrolling"`
		FontSize      *FontSize  `json:"fontSize"`
	}
	if err := json.Unmarshal(raw, &partial); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	out := base.Clone()
	if partial.Tabs != nil {
		out.Tabs = reconcileTabs(base.Tabs, partial.Tabs)
	}
	if partial.ActiveTabID != nil && out.tabIndex(*partial.ActiveTabID) >= 0 {
		out.ActiveTabID = *partial.ActiveTabID
	}
	if partial.DisplayTabID != nil && out.tabIndex(*partial.DisplayTabID) >= 0 {
		out.DisplayTabID = *partial.DisplayTabID
	}
	if len(partial.Categories) > 0 {
		out.Categories = partial.Categories
	}
	if partial.Items != nil {
		out.Items = partial.Items
	}
	if partial.ScrollSpeed != nil {
		out.ScrollSpeed = clampSpeed(*partial.ScrollSpeed)
	}
	if partial.AutoScrolling != nil {
		out.AutoScrolling = *partial.AutoScrolling
	}
	if partial.FontSize != nil && partial.FontSize.Valid() {
		out.FontSize = *partial.FontSize
	}
	return out.withoutOrphans(), nil
}

// reconcileTabs keeps the configured tab set and order, taking content from
// stored tabs with a matching id.
func reconcileTabs(configured, stored []Tab) []Tab {
	if len(configured) == 0 {
		return append([]Tab{}, stored...)
	}
	out := make([]Tab, len(configured))
	for i, t := range configured {
		out[i] = t
		for _, st := range stored {
			if st.ID == t.ID {
				out[i].Content = st.Content
				break
			}
		}
	}
	return out
}

// withoutOrphans reassigns items whose category no longer exists to the
// first category.
func (s Snapshot) withoutOrphans() Snapshot {
	if len(s.Categories) == 0 {
		return s
	}
	fallback := s.Categories[0].ID
	for i, it := range s.Items {
		if s.categoryIndex(it.CategoryID) < 0 {
			s.Items[i].CategoryID = fallback
		}
	}
	return s
}
