package state

import "strings"

// The With* functions are the pure form of every Store mutation. Each returns
// the next snapshot and whether anything changed; the receiver is never
// modified.

type CategoryPatch struct {
	Label    *string
	Icon     *string
	ColorTag *string
}

type ItemPatch struct {
	Text       *string
	Detail     *string
	Completed  *bool
	CategoryID *string
}

func (s Snapshot) WithActiveTab(tabID string) (Snapshot, bool) {
	if s.tabIndex(tabID) < 0 || s.ActiveTabID == tabID {
		return s, false
	}
	out := s.Clone()
	out.ActiveTabID = tabID
	return out, true
}

func (s Snapshot) WithDisplayTab(tabID string) (Snapshot, bool) {
	if s.tabIndex(tabID) < 0 || s.DisplayTabID == tabID {
		return s, false
	}
	out := s.Clone()
	out.DisplayTabID = tabID
	return out, true
}

func (s Snapshot) WithTabContent(tabID, content string) (Snapshot, bool) {
	i := s.tabIndex(tabID)
	if i < 0 || s.Tabs[i].Content == content {
		return s, false
	}
	out := s.Clone()
	out.Tabs[i].Content = content
	return out, true
}

func (s Snapshot) WithCategoryAdded(id, label, icon, colorTag string) (Snapshot, bool) {
	if id == "" || s.categoryIndex(id) >= 0 {
		return s, false
	}
	out := s.Clone()
	out.Categories = append(out.Categories, Category{ID: id, Label: label, Icon: icon, ColorTag: colorTag})
	return out, true
}

func (s Snapshot) WithCategoryUpdated(id string, patch CategoryPatch) (Snapshot, bool) {
	i := s.categoryIndex(id)
	if i < 0 {
		return s, false
	}
	next := s.Categories[i]
	if patch.Label != nil {
		next.Label = *patch.Label
	}
	if patch.Icon != nil {
		next.Icon = *patch.Icon
	}
	if patch.ColorTag != nil {
		next.ColorTag = *patch.ColorTag
	}
	if next == s.Categories[i] {
		return s, false
	}
	out := s.Clone()
	out.Categories[i] = next
	return out, true
}

// WithCategoryRemoved drops a category and moves its items to the first
// remaining category. The last category can't be removed.
func (s Snapshot) WithCategoryRemoved(id string) (Snapshot, bool) {
	i := s.categoryIndex(id)
	if i < 0 || len(s.Categories) <= 1 {
		return s, false
	}
	out := s.Clone()
	out.Categories = append(out.Categories[:i], out.Categories[i+1:]...)
	fallback := out.Categories[0].ID
	for j := range out.Items {
		if out.Items[j].CategoryID == id {
			out.Items[j].CategoryID = fallback
		}
	}
	return out, true
}

func (s Snapshot) WithItemAdded(id, categoryID, text, detail string, createdAt int64) (Snapshot, bool) {
	text = strings.TrimSpace(text)
	if id == "" || text == "" || s.categoryIndex(categoryID) < 0 || s.itemIndex(id) >= 0 {
		return s, false
	}
	out := s.Clone()
	out.Items = append(out.Items, Item{
		ID:         id,
		CategoryID: categoryID,
		Text:       text,
		Detail:     strings.TrimSpace(detail),
		CreatedAt:  createdAt,
	})
	return out, true
}

// WithItemUpdated merges patch into an item. Changing the category moves the
// item to the end of its new category's run of items.
func (s Snapshot) WithItemUpdated(id string, patch ItemPatch) (Snapshot, bool) {
	i := s.itemIndex(id)
	if i < 0 {
		return s, false
	}
	next := s.Items[i]
	if patch.Text != nil {
		text := strings.TrimSpace(*patch.Text)
		if text == "" {
			return s, false
		}
		next.Text = text
	}
	if patch.Detail != nil {
		next.Detail = strings.TrimSpace(*patch.Detail)
	}
	if patch.Completed != nil {
		next.Completed = *patch.Completed
	}
	moved := false
	if patch.CategoryID != nil && *patch.CategoryID != next.CategoryID {
		if s.categoryIndex(*patch.CategoryID) < 0 {
			return s, false
		}
		next.CategoryID = *patch.CategoryID
		moved = true
	}
	if next == s.Items[i] {
		return s, false
	}
	out := s.Clone()
	if !moved {
		out.Items[i] = next
		return out, true
	}
	out.Items = append(out.Items[:i], out.Items[i+1:]...)
	at := len(out.Items)
	for j := len(out.Items) - 1; j >= 0; j-- {
		if out.Items[j].CategoryID == next.CategoryID {
			at = j + 1
			break
		}
	}
	out.Items = insertItem(out.Items, at, next)
	return out, true
}

func (s Snapshot) WithItemRemoved(id string) (Snapshot, bool) {
	i := s.itemIndex(id)
	if i < 0 {
		return s, false
	}
	out := s.Clone()
	out.Items = append(out.Items[:i], out.Items[i+1:]...)
	return out, true
}

func (s Snapshot) WithItemsCleared() (Snapshot, bool) {
	if len(s.Items) == 0 {
		return s, false
	}
	out := s.Clone()
	out.Items = []Item{}
	return out, true
}

// WithItemReordered moves movedID so it sits immediately before beforeID.
// Category membership is untouched.
func (s Snapshot) WithItemReordered(movedID, beforeID string) (Snapshot, bool) {
	if movedID == beforeID {
		return s, false
	}
	from, to := s.itemIndex(movedID), s.itemIndex(beforeID)
	if from < 0 || to < 0 || from == to-1 {
		return s, false
	}
	out := s.Clone()
	moved := out.Items[from]
	out.Items = append(out.Items[:from], out.Items[from+1:]...)
	if from < to {
		to--
	}
	out.Items = insertItem(out.Items, to, moved)
	return out, true
}

func (s Snapshot) WithScrollSpeed(speed int) (Snapshot, bool) {
	speed = clampSpeed(speed)
	if s.ScrollSpeed == speed {
		return s, false
	}
	out := s.Clone()
	out.ScrollSpeed = speed
	return out, true
}

func (s Snapshot) WithAutoScrollToggled() (Snapshot, bool) {
	out := s.Clone()
	out.AutoScrolling = !s.AutoScrolling
	return out, true
}

func (s Snapshot) WithFontSize(size FontSize) (Snapshot, bool) {
	if !size.Valid() || s.FontSize == size {
		return s, false
	}
	out := s.Clone()
	out.FontSize = size
	return out, true
}

func insertItem(items []Item, at int, it Item) []Item {
	items = append(items, Item{})
	copy(items[at+1:], items[at:])
	items[at] = it
	return items
}

func clampSpeed(speed int) int {
	return min(max(speed, MinScrollSpeed), MaxScrollSpeed)
}
