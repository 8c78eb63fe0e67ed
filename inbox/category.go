package inbox

import "strings"

// Category is the closed set of labels an email can be sorted into.
// The zero value is Unclassified, which is not part of the canonical set.
type Category int

const (
	Unclassified Category = iota
	Casino
	OTP
	GeneralCorrespondence
	SocialMedia
	Shopping
	Promotions
	Finance
	Work
	Personal
	Newsletters
	Uncategorized
)

// Style holds the presentation metadata for a category.
type Style struct {
	Icon     string
	Color    string // ANSI 256 color code, usable by lipgloss and tview
	Keywords []string
}

type categoryInfo struct {
	id         string
	label      string
	promptName string
	style      Style
}

var categoryTable = map[Category]categoryInfo{
	Unclassified: {
		id: "unclassified", label: "Unclassified", promptName: "",
		style: Style{Icon: "…", Color: "240"},
	},
	Casino: {
		id: "casino", label: "Casinos", promptName: "Casinos",
		style: Style{Icon: "🎰", Color: "135", Keywords: []string{"casino", "gambling", "poker", "slots", "betting"}},
	},
	OTP: {
		id: "otp", label: "OTP", promptName: "OTP",
		style: Style{Icon: "🔑", Color: "208", Keywords: []string{"verification code", "otp", "2fa", "authentication", "one-time"}},
	},
	GeneralCorrespondence: {
		id: "general", label: "General", promptName: "General Correspondence",
		style: Style{Icon: "✉️", Color: "33"},
	},
	SocialMedia: {
		id: "social", label: "Social Media", promptName: "Social Media",
		style: Style{Icon: "👥", Color: "205", Keywords: []string{"facebook", "twitter", "instagram", "linkedin", "tiktok", "snapchat"}},
	},
	Shopping: {
		id: "shopping", label: "Shopping", promptName: "Shopping",
		style: Style{Icon: "🛒", Color: "40", Keywords: []string{"order", "shipping", "delivery", "amazon", "ebay", "purchase"}},
	},
	Promotions: {
		id: "promotions", label: "Promotions", promptName: "Promotions",
		style: Style{Icon: "📣", Color: "220", Keywords: []string{"sale", "discount", "offer", "promotion", "deal"}},
	},
	Finance: {
		id: "finance", label: "Finance", promptName: "Finance",
		style: Style{Icon: "💰", Color: "196", Keywords: []string{"bank", "payment", "invoice", "bill", "statement", "credit card"}},
	},
	Work: {
		id: "work", label: "Work", promptName: "Work",
		style: Style{Icon: "💼", Color: "63", Keywords: []string{"meeting", "project", "deadline", "presentation", "colleague"}},
	},
	Personal: {
		id: "personal", label: "Personal", promptName: "Personal",
		style: Style{Icon: "❤️", Color: "37", Keywords: []string{"family", "friend", "birthday", "invitation"}},
	},
	Newsletters: {
		id: "newsletter", label: "Newsletters", promptName: "Newsletters",
		style: Style{Icon: "📰", Color: "51", Keywords: []string{"newsletter", "digest", "subscription", "unsubscribe", "weekly", "daily"}},
	},
	Uncategorized: {
		id: "uncategorized", label: "Uncategorized", promptName: "Uncategorized",
		style: Style{Icon: "❓", Color: "245"},
	},
}

var canonical = []Category{
	Casino, OTP, GeneralCorrespondence, SocialMedia, Shopping, Promotions,
	Finance, Work, Personal, Newsletters, Uncategorized,
}

// AllCategories returns the canonical categories in declaration order.
// The returned slice is a copy.
func AllCategories() []Category {
	out := make([]Category, len(canonical))
	copy(out, canonical)
	return out
}

func (c Category) info() categoryInfo {
	if info, ok := categoryTable[c]; ok {
		return info
	}
	return categoryTable[Unclassified]
}

// ID is the stable identifier, suitable for storage and config files.
func (c Category) ID() string { return c.info().id }

// String returns the display label.
func (c Category) String() string { return c.info().label }

// PromptName is the name the classifier lists in its prompt and looks for in answers.
func (c Category) PromptName() string { return c.info().promptName }

// Style returns the icon, color and keyword hints for the category.
func (c Category) Style() Style { return c.info().style }

// Valid reports whether c is a member of the canonical set.
func (c Category) Valid() bool {
	return c >= Casino && c <= Uncategorized
}

// ParseCategory resolves an identifier, display label or prompt name,
// ignoring case and surrounding space.
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Unclassified, false
	}
	for c, info := range categoryTable {
		if s == info.id || s == strings.ToLower(info.label) || (info.promptName != "" && s == strings.ToLower(info.promptName)) {
			return c, true
		}
	}
	return Unclassified, false
}

// MarshalText encodes the category as its identifier.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.ID()), nil
}

// UnmarshalText decodes an identifier; unknown values become Unclassified.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, _ := ParseCategory(string(b))
	*c = parsed
	return nil
}
