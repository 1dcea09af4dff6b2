package state

const (
	TabPrayers       = "prayers"
	TabBirthdays     = "birthdays"
	TabWeddings      = "weddings"
	TabAnnouncements = "announcements"

	DefaultScrollSpeed = 30
	DefaultFontSize    = FontSizeLarge
)

func DefaultTabs() []Tab {
	return []Tab{
		{
			ID:    TabPrayers,
			Label: "Prayer Requests",
			Icon:  "🙏",
			Placeholder: `Enter prayer requests here...

Each request on a new line
for easy reading.

Example:
• Please pray for the Johnson family
  as they navigate health challenges.

• Lift up our youth group
  preparing for mission trip.`,
		},
		{
			ID:    TabBirthdays,
			Label: "Birthdays",
			Icon:  "🎂",
			Placeholder: `Happy Birthday wishes...

• John Smith - January 15
• Mary Johnson - January 18

May God bless you
with another wonderful year.`,
		},
		{
			ID:    TabWeddings,
			Label: "Weddings",
			Icon:  "💒",
			Placeholder: `Wedding Announcements...

This week we celebrate:

• Michael & Sarah Thompson
  Married Saturday at Grace Chapel

"What God has joined together,
let no one separate."
- Matthew 19:6`,
		},
		{
			ID:    TabAnnouncements,
			Label: "Announcements",
			Icon:  "📢",
			Placeholder: `General Announcements...

• Sunday School begins at 9:30 AM
  Classes for all ages.

• Wednesday Night Bible Study
  Join us at 7:00 PM
  in Fellowship Hall.`,
		},
	}
}

func DefaultCategories() []Category {
	return []Category{
		{ID: "healing", Label: "Healing", Icon: "💚", ColorTag: "green"},
		{ID: "spiritual", Label: "Spiritual Growth", Icon: "✨", ColorTag: "purple"},
		{ID: "family", Label: "Family", Icon: "👪", ColorTag: "blue"},
		{ID: "financial", Label: "Financial", Icon: "💰", ColorTag: "yellow"},
		{ID: "thanksgiving", Label: "Thanksgiving", Icon: "🙌", ColorTag: "orange"},
		{ID: "other", Label: "Other", Icon: "🙏", ColorTag: "muted"},
	}
}

// Default builds the starting snapshot. Empty tabs or categories fall back to
// the built-in sets.
func Default(tabs []Tab, categories []Category) Snapshot {
	if len(tabs) == 0 {
		tabs = DefaultTabs()
	}
	if len(categories) == 0 {
		categories = DefaultCategories()
	}
	return Snapshot{
		ActiveTabID:  tabs[0].ID,
		DisplayTabID: tabs[0].ID,
		Tabs:         append([]Tab{}, tabs...),
		Categories:   append([]Category{}, categories...),
		Items:        []Item{},
		ScrollSpeed:  DefaultScrollSpeed,
		FontSize:     DefaultFontSize,
	}
}
