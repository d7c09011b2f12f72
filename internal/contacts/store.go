// Package contacts keeps the operator's ordered contact list for the session.
package contacts

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrNotFound   = errors.New("contact not found")
	ErrNoRows     = errors.New("no valid rows to import")
	ErrNoHeaders  = errors.New("import requires at least one header")
	ErrReserved   = errors.New("field name is reserved")
	DefaultFields = []string{"nom", "telephone", "rdv", "date"}
)

// IDField is the reserved key of the contact identifier.
const IDField = "id"

// Contact is a single recipient. Fields never contain IDField.
type Contact struct {
	ID     int64             `json:"id"`
	Fields map[string]string `json:"fields"`
}

func (c Contact) clone() Contact {
	fields := make(map[string]string, len(c.Fields))
	for k, v := range c.Fields {
		fields[k] = v
	}
	return Contact{ID: c.ID, Fields: fields}
}

// Store is an in-memory ordered contact collection with its header list.
type Store struct {
	mu       sync.RWMutex
	contacts []Contact
	headers  []string
	nextID   int64
}

func NewStore() *Store {
	return &Store{nextID: 1}
}

// Headers returns the imported schema, or DefaultFields when nothing was imported.
func (s *Store) Headers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.headersLocked()
}

func (s *Store) headersLocked() []string {
	if len(s.headers) == 0 {
		return append([]string(nil), DefaultFields...)
	}
	return append([]string(nil), s.headers...)
}

// Imported reports whether a schema was set by Import.
func (s *Store) Imported() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.headers) > 0
}

// Add appends an empty contact seeded with every schema field.
func (s *Store) Add() Contact {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := Contact{ID: s.allocID(), Fields: make(map[string]string)}
	for _, h := range s.headersLocked() {
		c.Fields[h] = ""
	}
	s.contacts = append(s.contacts, c)
	return c.clone()
}

func (s *Store) allocID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// Import replaces the schema and the contacts with the given parsed rows.
// Header names are trimmed and lowercased; rows whose width differs from the
// header count are skipped.
func (s *Store) Import(headers []string, rows [][]string) (int, error) {
	if len(headers) == 0 {
		return 0, ErrNoHeaders
	}
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(h, `"`, "")))
		if normalized[i] == IDField {
			return 0, fmt.Errorf("header %q: %w", h, ErrReserved)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var imported []Contact
	for _, row := range rows {
		if len(row) != len(normalized) {
			continue
		}
		c := Contact{ID: s.allocID(), Fields: make(map[string]string, len(row))}
		for i, h := range normalized {
			c.Fields[h] = strings.TrimSpace(strings.ReplaceAll(row[i], `"`, ""))
		}
		imported = append(imported, c)
	}
	if len(imported) == 0 {
		return 0, ErrNoRows
	}

	s.headers = normalized
	s.contacts = imported
	return len(imported), nil
}

// Update sets one field of a contact. Unknown field names are accepted.
func (s *Store) Update(id int64, field, value string) (Contact, error) {
	if field == IDField {
		return Contact{}, ErrReserved
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Contact{}, ErrNotFound
	}
	s.contacts[i].Fields[field] = value
	return s.contacts[i].clone(), nil
}

// Delete removes a contact by identifier.
func (s *Store) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	s.contacts = append(s.contacts[:i], s.contacts[i+1:]...)
	return nil
}

func (s *Store) Get(id int64) (Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return Contact{}, ErrNotFound
	}
	return s.contacts[i].clone(), nil
}

// List returns a copy of the contacts in insertion order.
func (s *Store) List() []Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Contact, len(s.contacts))
	for i, c := range s.contacts {
		out[i] = c.clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contacts)
}

// Reset drops every contact and the imported schema. Identifiers are never reused.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = nil
	s.headers = nil
}

func (s *Store) indexOf(id int64) int {
	for i, c := range s.contacts {
		if c.ID == id {
			return i
		}
	}
	return -1
}
