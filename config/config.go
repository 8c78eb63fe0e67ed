// Package config holds the application settings and the user's mute filters.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bassamadnan/mailsort/inbox"
)

// Filters lists senders and subject keywords the user never wants to see.
type Filters struct {
	IgnoreSenders           []string `json:"ignoreSenders"`
	IgnoreKeywordsInSubject []string `json:"ignoreKeywordsInSubject"`
}

// Manager handles loading, saving, and applying filters.
type Manager struct {
	filePath string
	filters  *Filters
	mu       sync.RWMutex
}

// NewManager loads filters from filePath, creating an empty file if needed.
func NewManager(filePath string) (*Manager, error) {
	m := &Manager{
		filePath: filePath,
		filters:  &Filters{},
	}
	if err := m.LoadFilters(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return m, nil
}

// LoadFilters loads filter rules from the JSON file.
func (m *Manager) LoadFilters() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.filters = &Filters{
				IgnoreSenders:           []string{},
				IgnoreKeywordsInSubject: []string{},
			}
			return m.saveFilters()
		}
		return err
	}

	var filters Filters
	if err := json.Unmarshal(data, &filters); err != nil {
		return err
	}
	m.filters = &filters
	return nil
}

// saveFilters must be called with mu held.
func (m *Manager) saveFilters() error {
	data, err := json.MarshalIndent(m.filters, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.filePath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.filePath, data, 0o644)
}

// GetFilters returns a copy of the current filters.
func (m *Manager) GetFilters() Filters {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Filters{
		IgnoreSenders:           append([]string(nil), m.filters.IgnoreSenders...),
		IgnoreKeywordsInSubject: append([]string(nil), m.filters.IgnoreKeywordsInSubject...),
	}
}

// AddIgnoreSender adds a sender address to the ignore list and saves.
func (m *Manager) AddIgnoreSender(sender string) error {
	return m.update(func(f *Filters) { f.IgnoreSenders = addUnique(f.IgnoreSenders, sender) })
}

// RemoveIgnoreSender drops a sender from the ignore list and saves.
func (m *Manager) RemoveIgnoreSender(sender string) error {
	return m.update(func(f *Filters) { f.IgnoreSenders = remove(f.IgnoreSenders, sender) })
}

// AddIgnoreKeywordInSubject adds a subject keyword to the ignore list and saves.
func (m *Manager) AddIgnoreKeywordInSubject(keyword string) error {
	return m.update(func(f *Filters) { f.IgnoreKeywordsInSubject = addUnique(f.IgnoreKeywordsInSubject, keyword) })
}

// RemoveIgnoreKeywordInSubject drops a subject keyword and saves.
func (m *Manager) RemoveIgnoreKeywordInSubject(keyword string) error {
	return m.update(func(f *Filters) { f.IgnoreKeywordsInSubject = remove(f.IgnoreKeywordsInSubject, keyword) })
}

func (m *Manager) update(fn func(*Filters)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.filters)
	return m.saveFilters()
}

// Hidden reports whether r matches any filter. Senders match the address
// or display name case-insensitively; keywords match anywhere in the subject.
func (m *Manager) Hidden(r inbox.EmailRecord) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	from := strings.ToLower(r.From)
	for _, s := range m.filters.IgnoreSenders {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if s == strings.ToLower(r.SenderAddress()) || s == strings.ToLower(r.SenderName()) || strings.Contains(from, s) {
			return true
		}
	}
	subject := strings.ToLower(r.Subject)
	for _, k := range m.filters.IgnoreKeywordsInSubject {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && strings.Contains(subject, k) {
			return true
		}
	}
	return false
}

// Apply returns records minus the hidden ones, preserving order.
func (m *Manager) Apply(records []inbox.EmailRecord) []inbox.EmailRecord {
	out := make([]inbox.EmailRecord, 0, len(records))
	for _, r := range records {
		if !m.Hidden(r) {
			out = append(out, r)
		}
	}
	return out
}

func addUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

func remove(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
