package inbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id string, c Category) EmailRecord {
	return EmailRecord{ID: id, Category: c}
}

func TestAllCategoriesOrder(t *testing.T) {
	cats := AllCategories()
	require.Len(t, cats, 11)
	assert.Equal(t, Casino, cats[0])
	assert.Equal(t, OTP, cats[1])
	assert.Equal(t, Uncategorized, cats[len(cats)-1])
	assert.NotContains(t, cats, Unclassified)

	cats[0] = Work
	assert.Equal(t, Casino, AllCategories()[0], "AllCategories must return a copy")
}

func TestCategoryMetadata(t *testing.T) {
	for _, c := range AllCategories() {
		assert.True(t, c.Valid(), c.ID())
		assert.NotEmpty(t, c.ID())
		assert.NotEmpty(t, c.String())
		assert.NotEmpty(t, c.PromptName())
		assert.NotEmpty(t, c.Style().Color)
	}
	assert.False(t, Unclassified.Valid())
	assert.Equal(t, "General Correspondence", GeneralCorrespondence.PromptName())
	assert.Equal(t, "General", GeneralCorrespondence.String())
	assert.Equal(t, "Unclassified", Category(99).String())
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"otp", OTP, true},
		{"  Social Media ", SocialMedia, true},
		{"general correspondence", GeneralCorrespondence, true},
		{"GENERAL", GeneralCorrespondence, true},
		{"newsletter", Newsletters, true},
		{"spam", Unclassified, false},
		{"", Unclassified, false},
	}
	for _, tt := range tests {
		got, ok := ParseCategory(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestCategoryText(t *testing.T) {
	b, err := Finance.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "finance", string(b))

	var c Category
	require.NoError(t, c.UnmarshalText([]byte("shopping")))
	assert.Equal(t, Shopping, c)
	require.NoError(t, c.UnmarshalText([]byte("bogus")))
	assert.Equal(t, Unclassified, c)
}

func TestSenderParts(t *testing.T) {
	tests := []struct {
		from, name, addr string
	}{
		{"Amazon <no-reply@amazon.com>", "Amazon", "no-reply@amazon.com"},
		{`"Doe, John" <john@company.com>`, "Doe, John", "john@company.com"},
		{"plain@example.com", "plain@example.com", "plain@example.com"},
		{"Broken Name <not an address>", "Broken Name", "not an address"},
		{UnknownSender, UnknownSender, UnknownSender},
	}
	for _, tt := range tests {
		r := EmailRecord{From: tt.from}
		assert.Equal(t, tt.name, r.SenderName(), tt.from)
		assert.Equal(t, tt.addr, r.SenderAddress(), tt.from)
	}
}

func TestWithCategoryCopies(t *testing.T) {
	r := EmailRecord{ID: "a", Labels: []string{"INBOX", UnreadLabel}}
	c := r.WithCategory(Work)
	assert.Equal(t, Unclassified, r.Category)
	assert.False(t, r.Classified())
	assert.Equal(t, Work, c.Category)
	assert.True(t, c.Classified())
	assert.True(t, c.HasLabel(UnreadLabel))
	assert.False(t, c.HasLabel("STARRED"))
}

func TestWithFallback(t *testing.T) {
	r := EmailRecord{ID: "a"}.WithFallback(Uncategorized)
	assert.True(t, r.Classified())
	assert.True(t, r.Degraded)

	r = r.WithCategory(Finance)
	assert.Equal(t, Finance, r.Category)
	assert.False(t, r.Degraded)
}

func TestCountsByCategory(t *testing.T) {
	t.Run("empty collection is all zero", func(t *testing.T) {
		counts := CountsByCategory(nil)
		require.Len(t, counts, len(AllCategories()))
		sum := 0
		for _, n := range counts {
			sum += n
		}
		assert.Zero(t, sum)
	})

	t.Run("sums to len", func(t *testing.T) {
		records := []EmailRecord{rec("1", OTP), rec("2", OTP), rec("3", Work), rec("4", Uncategorized)}
		counts := CountsByCategory(records)
		sum := 0
		for _, n := range counts {
			sum += n
		}
		assert.Equal(t, len(records), sum)
		assert.Equal(t, 2, counts[OTP])
		assert.Equal(t, 1, counts[Work])
		assert.Equal(t, 1, counts[Uncategorized])
		assert.Equal(t, 0, counts[Casino])
	})

	t.Run("unclassified is not counted", func(t *testing.T) {
		counts := CountsByCategory([]EmailRecord{rec("1", Unclassified)})
		_, present := counts[Unclassified]
		assert.False(t, present)
	})
}

func TestOrderedCounts(t *testing.T) {
	records := []EmailRecord{rec("1", Work), rec("2", Casino)}
	ordered := OrderedCounts(records)
	require.Len(t, ordered, 11)
	assert.Equal(t, CategoryCount{Casino, 1}, ordered[0])

	nonEmpty := NonEmpty(ordered)
	assert.Equal(t, []CategoryCount{{Casino, 1}, {Work, 1}}, nonEmpty)
}

func TestFilter(t *testing.T) {
	records := []EmailRecord{rec("1", OTP), rec("2", Work), rec("3", OTP)}

	assert.Equal(t, records, Filter(records, nil))

	otp := OTP
	got := Filter(records, &otp)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)

	casino := Casino
	assert.Empty(t, Filter(records, &casino))
}

func TestGroupByCategory(t *testing.T) {
	records := []EmailRecord{rec("1", OTP), rec("2", Work), rec("3", OTP)}
	groups := GroupByCategory(records)
	require.Len(t, groups, 11)
	for _, c := range AllCategories() {
		c := c
		assert.Equal(t, len(Filter(records, &c)), len(groups[c]), c.ID())
	}
	assert.Equal(t, []EmailRecord{records[0], records[2]}, groups[OTP])
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.Local)
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Time{}, "???"},
		{now.Add(-20 * time.Second), "Just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-50 * time.Hour), "2d ago"},
		{time.Date(2025, 4, 1, 9, 0, 0, 0, time.Local), "Apr 1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RelativeTime(tt.at, now))
	}
}

func TestChoicesAndCycle(t *testing.T) {
	records := []EmailRecord{rec("1", Promotions), rec("2", OTP), rec("3", Promotions)}

	choices := Choices(records, nil)
	require.Len(t, choices, 3)
	assert.Nil(t, choices[0])
	assert.Equal(t, OTP, *choices[1])
	assert.Equal(t, Promotions, *choices[2])

	work := Work
	assert.Len(t, Choices(records, &work), 4, "empty selection stays offered")

	next := Cycle(choices, nil, 1)
	require.NotNil(t, next)
	assert.Equal(t, OTP, *next)
	assert.Nil(t, Cycle(choices, choices[2], 1))
	assert.Equal(t, Promotions, *Cycle(choices, nil, -1))
	assert.Equal(t, Promotions, *Cycle(choices, nil, -4))
	assert.Nil(t, Cycle(nil, nil, 1))
}
