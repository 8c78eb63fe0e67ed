package classify

import (
	"fmt"
	"strings"

	"github.com/bassamadnan/mailsort/inbox"
)

const rules = `Rules for categorization:
- "OTP" for one-time passwords, verification codes, 2FA codes, authentication codes
- "Casinos" for online gambling, casino promotions, betting sites
- "Social Media" for Facebook, Twitter, Instagram, LinkedIn, TikTok, etc.
- "Shopping" for e-commerce sites, order confirmations, shipping notifications
- "Promotions" for marketing emails, sales, discounts, promotional offers
- "Finance" for bank statements, credit card bills, investment updates, payment confirmations
- "Work" for work-related emails, meetings, project discussions
- "Personal" for emails from friends, family, personal contacts
- "Newsletters" for subscriptions, digests, regular updates
- "General Correspondence" for general communication that doesn't fit other categories
- "Uncategorized" only if none of the above apply

Respond with ONLY the category name, nothing else. Be strict and accurate.`

// BuildPrompt renders the classification prompt for r. The same record
// always yields the same prompt.
func BuildPrompt(r inbox.EmailRecord) string {
	cats := inbox.AllCategories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.PromptName()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Categorize the following email into one of these categories: %s\n\n", strings.Join(names, ", "))
	b.WriteString("Email Details:\n")
	fmt.Fprintf(&b, "From: %s\n", r.From)
	fmt.Fprintf(&b, "Subject: %s\n", r.Subject)
	fmt.Fprintf(&b, "Preview: %s\n\n", r.Snippet)
	b.WriteString(rules)
	return b.String()
}

// ParseAnswer maps free model text onto a category. The first category,
// in declaration order, whose prompt name occurs in the answer wins.
func ParseAnswer(text string) inbox.Category {
	answer := strings.ToLower(strings.TrimSpace(text))
	if answer == "" {
		return inbox.Uncategorized
	}
	for _, c := range inbox.AllCategories() {
		if strings.Contains(answer, strings.ToLower(c.PromptName())) {
			return c
		}
	}
	return inbox.Uncategorized
}
