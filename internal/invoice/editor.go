package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	// ErrItemNotFound is returned when a line item id is unknown.
	ErrItemNotFound = errors.New("invoice: line item not found")
	// ErrNotStored is wrapped by stores when no current document exists yet.
	ErrNotStored = errors.New("invoice: no stored document")
	// ErrPersist marks a write-through failure; the in-memory edit still applied.
	ErrPersist = errors.New("invoice: persist failed")
)

// Store persists the current document and named snapshots.
type Store interface {
	SaveCurrent(ctx context.Context, doc Document) error
	LoadCurrent(ctx context.Context) (Document, error)
	SaveNamed(ctx context.Context, name string, doc Document) error
	GetNamed(ctx context.Context, name string) (Document, error)
}

// EditorConfig wires an Editor.
type EditorConfig struct {
	Store   Store
	IDs     IDGenerator
	Policy  NegativePolicy
	Gate    GatePolicy
	Logger  *slog.Logger
	Now     func() time.Time
	Initial *Document
	// Currency seeds fresh documents; empty keeps DefaultCurrency.
	Currency string
	// OnPersistError is called after a failed write-through save.
	OnPersistError func(error)
}

// Editor owns the current document. All mutations go through its methods,
// which serialise writers and write the result through to the store.
type Editor struct {
	mu       sync.Mutex
	doc      Document
	store    Store
	ids      IDGenerator
	calc     Calculator
	gate     GatePolicy
	logger   *slog.Logger
	now      func() time.Time
	onFail   func(error)
	currency string
}

// NewEditor constructs an Editor seeded with cfg.Initial or the default document.
func NewEditor(cfg EditorConfig) *Editor {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ids := cfg.IDs
	if ids == nil {
		ids = UUIDs{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gate := cfg.Gate
	if gate == "" {
		gate = GateAdvisory
	}
	policy := cfg.Policy
	if policy == "" {
		policy = AllowNegative
	}
	currency := ""
	if cfg.Currency != "" {
		currency = NormalizeCurrency(cfg.Currency)
	}
	doc := withCurrency(Default(now()), currency)
	if cfg.Initial != nil {
		doc = cfg.Initial.Clone()
	}
	e := &Editor{
		doc:      doc,
		store:    cfg.Store,
		ids:      ids,
		calc:     Calculator{Policy: policy},
		gate:     gate,
		logger:   logger,
		now:      now,
		onFail:   cfg.OnPersistError,
		currency: currency,
	}
	e.observe(doc)
	return e
}

// Snapshot returns a deep copy of the current document.
func (e *Editor) Snapshot() Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Clone()
}

// Calculator exposes the totals calculator configured for this editor.
func (e *Editor) Calculator() Calculator {
	return e.calc
}

// Gate exposes the validation gate policy.
func (e *Editor) Gate() GatePolicy {
	return e.gate
}

// Totals derives figures for the current document.
func (e *Editor) Totals() Totals {
	return e.calc.Compute(e.Snapshot())
}

// Validate returns advisory messages for the current document.
func (e *Editor) Validate() []string {
	return Validate(e.Snapshot())
}

// Restore replaces the in-memory document with the persisted one. On any
// error the in-memory document is left untouched and the error is returned
// so the caller can decide whether it is worth surfacing. An empty store is
// not an error.
func (e *Editor) Restore(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	doc, err := e.store.LoadCurrent(ctx)
	if errors.Is(err, ErrNotStored) {
		return nil
	}
	if err != nil {
		e.logger.Warn("restore current invoice", slog.Any("error", err))
		return err
	}
	doc.FillDefaultDates(e.now())
	e.mu.Lock()
	e.doc = doc
	e.mu.Unlock()
	e.observe(doc)
	return nil
}

// Update applies fn to a copy of the document, commits it and persists it.
// The mutation is kept in memory even when persisting fails.
func (e *Editor) Update(ctx context.Context, fn func(*Document) error) (Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.doc.Clone()
	if err := fn(&next); err != nil {
		return e.doc.Clone(), err
	}
	e.doc = next
	if err := e.persistLocked(ctx); err != nil {
		return next.Clone(), err
	}
	return next.Clone(), nil
}

func (e *Editor) persistLocked(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.SaveCurrent(ctx, e.doc); err != nil {
		e.logger.Error("persist current invoice", slog.Any("error", err))
		if e.onFail != nil {
			e.onFail(err)
		}
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// SetBusiness replaces the business party.
func (e *Editor) SetBusiness(ctx context.Context, p Party) (Document, error) {
	return e.Update(ctx, func(d *Document) error {
		d.Business = p
		return nil
	})
}

// SetClient replaces the client party.
func (e *Editor) SetClient(ctx context.Context, p Party) (Document, error) {
	return e.Update(ctx, func(d *Document) error {
		d.Client = p
		return nil
	})
}

// SetMeta replaces invoice number and dates, defaulting blank dates.
func (e *Editor) SetMeta(ctx context.Context, m Meta) (Document, error) {
	if m.Date != "" {
		if _, err := ParseDate(m.Date); err != nil {
			return e.Snapshot(), err
		}
	}
	if m.DueDate != "" {
		if _, err := ParseDate(m.DueDate); err != nil {
			return e.Snapshot(), err
		}
	}
	return e.Update(ctx, func(d *Document) error {
		d.Meta = m
		d.FillDefaultDates(e.now())
		return nil
	})
}

// PricingPatch carries optional tax, discount and presentation fields.
type PricingPatch struct {
	TaxRate       *float64
	DiscountType  *DiscountType
	DiscountValue *float64
	Currency      *string
	Notes         *string
}

// SetPricing applies the non-nil fields of p.
func (e *Editor) SetPricing(ctx context.Context, p PricingPatch) (Document, error) {
	if p.DiscountType != nil && !p.DiscountType.Valid() {
		return e.Snapshot(), fmt.Errorf("invoice: unknown discount type %q", *p.DiscountType)
	}
	return e.Update(ctx, func(d *Document) error {
		if p.TaxRate != nil {
			d.TaxRate = *p.TaxRate
		}
		if p.DiscountType != nil {
			d.DiscountType = *p.DiscountType
		}
		if p.DiscountValue != nil {
			d.DiscountValue = *p.DiscountValue
		}
		if p.Currency != nil {
			d.Currency = NormalizeCurrency(*p.Currency)
		}
		if p.Notes != nil {
			d.Notes = *p.Notes
		}
		return nil
	})
}

// AddItem appends item with a freshly generated id and returns it.
func (e *Editor) AddItem(ctx context.Context, item LineItem) (LineItem, error) {
	_, err := e.Update(ctx, func(d *Document) error {
		taken := make(map[string]struct{}, len(d.LineItems))
		for _, existing := range d.LineItems {
			taken[existing.ID] = struct{}{}
		}
		item.ID = e.freshID(taken)
		d.LineItems = append(d.LineItems, item)
		return nil
	})
	return item, err
}

// freshID returns a generated id not present in taken and records it there.
func (e *Editor) freshID(taken map[string]struct{}) string {
	for {
		id := e.ids.NewID()
		if _, dup := taken[id]; id != "" && !dup {
			taken[id] = struct{}{}
			return id
		}
	}
}

// RemoveItem deletes the item with id. Unknown ids are a no-op and report false.
func (e *Editor) RemoveItem(ctx context.Context, id string) (bool, error) {
	removed := false
	_, err := e.Update(ctx, func(d *Document) error {
		idx := d.ItemIndex(id)
		if idx < 0 {
			return nil
		}
		d.LineItems = append(d.LineItems[:idx], d.LineItems[idx+1:]...)
		removed = true
		return nil
	})
	return removed, err
}

// ItemPatch carries optional line item fields.
type ItemPatch struct {
	Description *string
	Quantity    *float64
	UnitPrice   *float64
}

// UpdateItem applies the non-nil fields of p to the item with id in place.
func (e *Editor) UpdateItem(ctx context.Context, id string, p ItemPatch) (LineItem, error) {
	var updated LineItem
	_, err := e.Update(ctx, func(d *Document) error {
		idx := d.ItemIndex(id)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrItemNotFound, id)
		}
		item := &d.LineItems[idx]
		if p.Description != nil {
			item.Description = *p.Description
		}
		if p.Quantity != nil {
			item.Quantity = *p.Quantity
		}
		if p.UnitPrice != nil {
			item.UnitPrice = *p.UnitPrice
		}
		updated = *item
		return nil
	})
	return updated, err
}

// SetItems replaces all line items. Missing or duplicate ids are regenerated.
func (e *Editor) SetItems(ctx context.Context, items []LineItem) (Document, error) {
	taken := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.ID != "" {
			taken[item.ID] = struct{}{}
		}
	}
	e.observe(Document{LineItems: items})
	kept := make(map[string]struct{}, len(items))
	out := make([]LineItem, len(items))
	for i, item := range items {
		if _, dup := kept[item.ID]; item.ID == "" || dup {
			item.ID = e.freshID(taken)
		}
		kept[item.ID] = struct{}{}
		out[i] = item
	}
	doc, err := e.Update(ctx, func(d *Document) error {
		d.LineItems = out
		return nil
	})
	e.observe(doc)
	return doc, err
}

// Reset restores the placeholder document.
func (e *Editor) Reset(ctx context.Context) (Document, error) {
	return e.Replace(ctx, withCurrency(Default(e.now()), e.currency))
}

// New starts a blank invoice with a random number.
func (e *Editor) New(ctx context.Context) (Document, error) {
	return e.Replace(ctx, withCurrency(Blank(e.now(), RandomNumber()), e.currency))
}

func withCurrency(doc Document, currency string) Document {
	if currency != "" {
		doc.Currency = currency
	}
	return doc
}

// Replace swaps in doc wholesale.
func (e *Editor) Replace(ctx context.Context, doc Document) (Document, error) {
	doc = doc.Clone()
	doc.FillDefaultDates(e.now())
	if doc.LineItems == nil {
		doc.LineItems = []LineItem{}
	}
	out, err := e.Update(ctx, func(d *Document) error {
		*d = doc
		return nil
	})
	e.observe(out)
	return out, err
}

// SaveAs archives the current document under name.
func (e *Editor) SaveAs(ctx context.Context, name string) error {
	if e.store == nil {
		return errors.New("invoice: no store configured")
	}
	doc := e.Snapshot()
	if err := e.gate.Check(OpSave, doc); err != nil {
		return err
	}
	return e.store.SaveNamed(ctx, strings.TrimSpace(name), doc)
}

// LoadNamed makes the named snapshot the current document.
func (e *Editor) LoadNamed(ctx context.Context, name string) (Document, error) {
	if e.store == nil {
		return Document{}, errors.New("invoice: no store configured")
	}
	doc, err := e.store.GetNamed(ctx, strings.TrimSpace(name))
	if err != nil {
		return e.Snapshot(), err
	}
	return e.Replace(ctx, doc)
}

// ExportSnapshot returns a copy of the document after applying the export gate.
func (e *Editor) ExportSnapshot() (Document, error) {
	doc := e.Snapshot()
	if err := e.gate.Check(OpExport, doc); err != nil {
		return doc, err
	}
	return doc, nil
}

func (e *Editor) observe(doc Document) {
	if o, ok := e.ids.(interface{ Observe(Document) }); ok {
		o.Observe(doc)
	}
}
