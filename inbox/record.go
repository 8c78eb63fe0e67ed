package inbox

import (
	"net/mail"
	"strings"
	"time"
)

// Literal fallbacks used when a provider payload lacks a header.
const (
	NoSubject     = "(No Subject)"
	UnknownSender = "Unknown Sender"
	UnreadLabel   = "UNREAD"
)

// EmailRecord is the provider-independent view of one message.
type EmailRecord struct {
	ID       string
	ThreadID string
	Subject  string
	From     string // raw header, e.g. `Jane Doe <jane@example.com>`
	Snippet  string
	Date     time.Time
	Unread   bool
	Labels   []string
	Category Category
	// Degraded marks a Category that is the fallback for a failed model
	// exchange rather than a real answer. Degraded results are never cached.
	Degraded bool
}

// Classified reports whether the record has been through the classifier.
func (r EmailRecord) Classified() bool {
	return r.Category != Unclassified
}

// WithCategory returns a copy of r carrying category c.
func (r EmailRecord) WithCategory(c Category) EmailRecord {
	r.Category = c
	r.Degraded = false
	return r
}

// WithFallback returns a copy of r carrying c as a degraded result.
func (r EmailRecord) WithFallback(c Category) EmailRecord {
	r.Category = c
	r.Degraded = true
	return r
}

// SenderName returns the display name part of From, or the address when
// the header carries no name.
func (r EmailRecord) SenderName() string {
	if addr, err := mail.ParseAddress(r.From); err == nil {
		if addr.Name != "" {
			return addr.Name
		}
		return addr.Address
	}
	if idx := strings.Index(r.From, "<"); idx > 0 {
		return strings.Trim(strings.TrimSpace(r.From[:idx]), `"`)
	}
	return r.From
}

// SenderAddress returns the bare address part of From.
func (r EmailRecord) SenderAddress() string {
	if addr, err := mail.ParseAddress(r.From); err == nil {
		return addr.Address
	}
	start := strings.Index(r.From, "<")
	end := strings.LastIndex(r.From, ">")
	if start >= 0 && end > start {
		return r.From[start+1 : end]
	}
	return r.From
}

// HasLabel reports whether the provider label set contains label.
func (r EmailRecord) HasLabel(label string) bool {
	for _, l := range r.Labels {
		if l == label {
			return true
		}
	}
	return false
}
