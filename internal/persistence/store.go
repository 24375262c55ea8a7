// Package persistence serialises invoice documents into a key-value backend.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/invox/invox/internal/invoice"
	"github.com/invox/invox/internal/platform/kv"
)

// Keys used in the backend.
const (
	CurrentKey    = "current-document"
	SavedKey      = "saved-documents"
	corruptSuffix = ".corrupt"
)

var (
	// ErrNotFound is returned when a key or named document is absent.
	ErrNotFound = errors.New("persistence: not found")
	// ErrEmptyName is returned for blank snapshot names.
	ErrEmptyName = errors.New("persistence: name is required")
	// ErrCorrupt is wrapped by CorruptError.
	ErrCorrupt = errors.New("persistence: corrupt payload")
)

// CorruptError reports a payload that could not be parsed. The raw payload has
// been copied to QuarantineKey before the error is returned.
type CorruptError struct {
	Key           string
	QuarantineKey string
	Payload       string
	Err           error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("persistence: corrupt payload at %s (copied to %s): %v", e.Key, e.QuarantineKey, e.Err)
}

func (e *CorruptError) Unwrap() []error { return []error{ErrCorrupt, e.Err} }

// Listing is the parsed saved-documents collection.
type Listing struct {
	Documents map[string]invoice.Document
	// Corrupt maps names whose entry failed to parse to the parse error.
	Corrupt map[string]string
}

// Names returns the readable document names in sorted order.
func (l Listing) Names() []string {
	names := make([]string, 0, len(l.Documents))
	for name := range l.Documents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EntryKey names one saved entry for error reports and its quarantine copy.
func EntryKey(name string) string { return SavedKey + "/" + name }

// Store implements invoice.Store on a kv backend.
type Store struct {
	kv     kv.Store
	logger *slog.Logger
}

// New builds a Store.
func New(backend kv.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: backend, logger: logger}
}

var _ invoice.Store = (*Store)(nil)

// SaveCurrent overwrites the current document.
func (s *Store) SaveCurrent(ctx context.Context, doc invoice.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("persistence: encode current: %w", err)
	}
	return s.kv.Set(ctx, CurrentKey, string(raw))
}

// LoadCurrent reads the current document.
func (s *Store) LoadCurrent(ctx context.Context) (invoice.Document, error) {
	raw, ok, err := s.kv.Get(ctx, CurrentKey)
	if err != nil {
		return invoice.Document{}, err
	}
	if !ok {
		return invoice.Document{}, fmt.Errorf("%w: %w", ErrNotFound, invoice.ErrNotStored)
	}
	var doc invoice.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return invoice.Document{}, s.quarantine(ctx, CurrentKey, raw, err)
	}
	normalize(&doc)
	return doc, nil
}

// SaveNamed inserts or overwrites name in the saved collection.
func (s *Store) SaveNamed(ctx context.Context, name string, doc invoice.Document) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("persistence: encode %q: %w", name, err)
	}
	return s.updateSaved(ctx, func(m map[string]string) {
		m[name] = string(encoded)
	})
}

// DeleteNamed removes name; absent names are a no-op.
func (s *Store) DeleteNamed(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	return s.updateSaved(ctx, func(m map[string]string) {
		delete(m, name)
	})
}

// GetNamed reads one saved document.
func (s *Store) GetNamed(ctx context.Context, name string) (invoice.Document, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return invoice.Document{}, ErrEmptyName
	}
	m, err := s.readSaved(ctx)
	if err != nil {
		return invoice.Document{}, err
	}
	encoded, ok := m[name]
	if !ok {
		return invoice.Document{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	var doc invoice.Document
	if err := json.Unmarshal([]byte(encoded), &doc); err != nil {
		return invoice.Document{}, s.quarantine(ctx, EntryKey(name), encoded, err)
	}
	normalize(&doc)
	return doc, nil
}

// ListNamed parses the whole saved collection. Unreadable entries are
// reported in Listing.Corrupt rather than dropped.
func (s *Store) ListNamed(ctx context.Context) (Listing, error) {
	m, err := s.readSaved(ctx)
	if err != nil {
		return Listing{}, err
	}
	out := Listing{Documents: make(map[string]invoice.Document, len(m)), Corrupt: map[string]string{}}
	for name, encoded := range m {
		var doc invoice.Document
		if err := json.Unmarshal([]byte(encoded), &doc); err != nil {
			s.logger.Warn("saved invoice unreadable", slog.String("name", name), slog.Any("error", err))
			out.Corrupt[name] = err.Error()
			continue
		}
		normalize(&doc)
		out.Documents[name] = doc
	}
	return out, nil
}

func (s *Store) readSaved(ctx context.Context) (map[string]string, error) {
	raw, ok, err := s.kv.Get(ctx, SavedKey)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return map[string]string{}, nil
	}
	m, err := decodeSaved(raw)
	if err != nil {
		return nil, s.quarantine(ctx, SavedKey, raw, err)
	}
	return m, nil
}

// updateSaved rewrites the collection atomically. An unreadable collection is
// quarantined and the write is refused so the payload is never lost.
func (s *Store) updateSaved(ctx context.Context, mutate func(map[string]string)) error {
	var corrupt *CorruptError
	err := s.kv.Update(ctx, SavedKey, func(cur string, ok bool) (string, error) {
		m := map[string]string{}
		if ok && strings.TrimSpace(cur) != "" {
			decoded, err := decodeSaved(cur)
			if err != nil {
				corrupt = &CorruptError{Key: SavedKey, QuarantineKey: SavedKey + corruptSuffix, Payload: cur, Err: err}
				return "", corrupt
			}
			m = decoded
		}
		mutate(m)
		raw, err := json.Marshal(m)
		if err != nil {
			return "", fmt.Errorf("persistence: encode saved: %w", err)
		}
		return string(raw), nil
	})
	if corrupt != nil {
		return s.quarantine(ctx, SavedKey, corrupt.Payload, corrupt.Err)
	}
	return err
}

func decodeSaved(raw string) (map[string]string, error) {
	m := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) quarantine(ctx context.Context, key, payload string, cause error) error {
	qkey := key + corruptSuffix
	if err := s.kv.Set(ctx, qkey, payload); err != nil {
		s.logger.Error("quarantine corrupt payload", slog.String("key", key), slog.Any("error", err))
	} else {
		s.logger.Warn("corrupt payload quarantined", slog.String("key", key), slog.String("quarantine", qkey), slog.Any("error", cause))
	}
	return &CorruptError{Key: key, QuarantineKey: qkey, Payload: payload, Err: cause}
}

// normalize fills fields older payloads may lack.
func normalize(doc *invoice.Document) {
	if doc.LineItems == nil {
		doc.LineItems = []invoice.LineItem{}
	}
	if !doc.DiscountType.Valid() {
		doc.DiscountType = invoice.DiscountPercent
	}
	doc.Currency = invoice.NormalizeCurrency(doc.Currency)
}
