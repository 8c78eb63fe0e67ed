package inbox

// CategoryCount pairs a category with the number of records in it.
type CategoryCount struct {
	Category Category
	Count    int
}

// CountsByCategory returns a count for every canonical category, zero
// included. Unclassified records are not counted.
func CountsByCategory(records []EmailRecord) map[Category]int {
	counts := make(map[Category]int, len(canonical))
	for _, c := range canonical {
		counts[c] = 0
	}
	for _, r := range records {
		if r.Category.Valid() {
			counts[r.Category]++
		}
	}
	return counts
}

// OrderedCounts is CountsByCategory in declaration order.
func OrderedCounts(records []EmailRecord) []CategoryCount {
	counts := CountsByCategory(records)
	out := make([]CategoryCount, 0, len(canonical))
	for _, c := range canonical {
		out = append(out, CategoryCount{Category: c, Count: counts[c]})
	}
	return out
}

// NonEmpty drops zero counts, keeping order.
func NonEmpty(counts []CategoryCount) []CategoryCount {
	out := make([]CategoryCount, 0, len(counts))
	for _, cc := range counts {
		if cc.Count > 0 {
			out = append(out, cc)
		}
	}
	return out
}

// Filter returns records whose category equals *selected, preserving order.
// A nil selection returns records unchanged.
func Filter(records []EmailRecord, selected *Category) []EmailRecord {
	if selected == nil {
		return records
	}
	out := make([]EmailRecord, 0, len(records))
	for _, r := range records {
		if r.Category == *selected {
			out = append(out, r)
		}
	}
	return out
}

// GroupByCategory partitions records by category. Every canonical category
// is present; relative order inside each group follows the input.
func GroupByCategory(records []EmailRecord) map[Category][]EmailRecord {
	groups := make(map[Category][]EmailRecord, len(canonical))
	for _, c := range canonical {
		groups[c] = []EmailRecord{}
	}
	for _, r := range records {
		if r.Category.Valid() {
			groups[r.Category] = append(groups[r.Category], r)
		}
	}
	return groups
}

// Choices lists the category filters a front-end offers: nil ("all") first,
// then every category with records in declaration order. The current
// selection stays listed even when it has no records left.
func Choices(records []EmailRecord, selected *Category) []*Category {
	out := []*Category{nil}
	for _, cc := range OrderedCounts(records) {
		if cc.Count > 0 || SameSelection(&cc.Category, selected) {
			c := cc.Category
			out = append(out, &c)
		}
	}
	return out
}

// Cycle returns the choice dir steps away from selected, wrapping around.
func Cycle(choices []*Category, selected *Category, dir int) *Category {
	if len(choices) == 0 {
		return nil
	}
	cur := 0
	for i, c := range choices {
		if SameSelection(c, selected) {
			cur = i
			break
		}
	}
	n := len(choices)
	return choices[((cur+dir)%n+n)%n]
}

// SameSelection compares two optional selections by value.
func SameSelection(a, b *Category) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
