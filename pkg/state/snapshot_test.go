package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualTreatsNilAndEmptyAlike(t *testing.T) {
	a := Default(nil, nil)
	b := a.Clone()
	b.Items = nil
	assert.True(t, Equal(a, b))

	b.ScrollSpeed++
	assert.False(t, Equal(a, b))
}

func TestCloneIsIndependent(t *testing.T) {
	a := Default(nil, nil)
	b := a.Clone()
	b.Tabs[0].Content = "changed"
	b.Categories[0].Label = "changed"
	assert.Empty(t, a.Tabs[0].Content)
	assert.Equal(t, "Healing", a.Categories[0].Label)
}

func TestMarshalRoundTrip(t *testing.T) {
	s := withItems(t, "a", "b")
	s, _ = s.WithTabContent(TabAnnouncements, "Potluck on Sunday")
	raw, err := Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"activeTabId":"prayers"`)

	back, err := Unmarshal(raw, Default(nil, nil))
	require.NoError(t, err)
	assert.True(t, Equal(s, back))
}

func TestUnmarshalIsLenient(t *testing.T) {
	base := Default(nil, nil)

	t.Run("missing fields keep base values", func(t *testing.T) {
		out, err := Unmarshal([]byte(`{"autoScrolling":true}`), base)
		require.NoError(t, err)
		assert.True(t, out.AutoScrolling)
		assert.Equal(t, base.Tabs, out.Tabs)
		assert.Equal(t, DefaultScrollSpeed, out.ScrollSpeed)
	})

	t.Run("out of range values", func(t *testing.T) {
		out, err := Unmarshal([]byte(`{"scrollSpeed":250,"fontSize":"huge","activeTabId":"gone"}`), base)
		require.NoError(t, err)
		assert.Equal(t, MaxScrollSpeed, out.ScrollSpeed)
		assert.Equal(t, DefaultFontSize, out.FontSize)
		assert.Equal(t, TabPrayers, out.ActiveTabID)
	})

	t.Run("stored tabs are reconciled with configured ones", func(t *testing.T) {
		raw := `{"tabs":[{"id":"weddings","label":"Old","content":"kept"},{"id":"retired","content":"dropped"}]}`
		out, err := Unmarshal([]byte(raw), base)
		require.NoError(t, err)
		require.Len(t, out.Tabs, len(base.Tabs))
		tab, _ := out.Tab(TabWeddings)
		assert.Equal(t, "kept", tab.Content)
		assert.Equal(t, "Weddings", tab.Label)
		_, ok := out.Tab("retired")
		assert.False(t, ok)
	})

	t.Run("orphaned items move to the first category", func(t *testing.T) {
		raw := `{"items":[{"id":"i1","categoryId":"deleted","text":"x"}]}`
		out, err := Unmarshal([]byte(raw), base)
		require.NoError(t, err)
		assert.Equal(t, "healing", out.Items[0].CategoryID)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := Unmarshal([]byte(`not json`), base)
		assert.Error(t, err)
	})
}

func TestGroups(t *testing.T) {
	s := withItems(t, "a", "b")
	s, _ = s.WithItemAdded("f", "family", "family", "", 0)
	groups := s.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, "healing", groups[0].Category.ID)
	assert.Len(t, groups[0].Items, 2)
	assert.Equal(t, "family", groups[1].Category.ID)
}
