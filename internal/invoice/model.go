package invoice

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date format used for persisted dates.
const DateLayout = "2006-01-02"

// DefaultPaymentTerms is the gap between issue date and due date.
const DefaultPaymentTerms = 30 * 24 * time.Hour

// DiscountType selects how DiscountValue is interpreted.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// Valid reports whether the discount type is recognised.
func (t DiscountType) Valid() bool {
	return t == DiscountPercent || t == DiscountFixed
}

// Party describes either side of the invoice.
type Party struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Phone   string `json:"phone,omitempty"`
}

// Meta holds invoice identification and dates.
type Meta struct {
	Number  string `json:"number"`
	Date    string `json:"date"`
	DueDate string `json:"dueDate"`
}

// LineItem is one billable row.
type LineItem struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
}

// Document is the full state of one invoice.
type Document struct {
	Business      Party        `json:"business"`
	Client        Party        `json:"client"`
	Meta          Meta         `json:"meta"`
	Currency      string       `json:"currency"`
	Notes         string       `json:"notes"`
	TaxRate       float64      `json:"taxRate"`
	DiscountType  DiscountType `json:"discountType"`
	DiscountValue float64      `json:"discountValue"`
	LineItems     []LineItem   `json:"lineItems"`
}

// Clone returns a deep copy safe to hand out to readers.
func (d Document) Clone() Document {
	out := d
	if d.LineItems != nil {
		out.LineItems = make([]LineItem, len(d.LineItems))
		copy(out.LineItems, d.LineItems)
	}
	return out
}

// ItemIndex returns the position of the item with id, or -1.
func (d Document) ItemIndex(id string) int {
	for i, item := range d.LineItems {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// FormatDate renders t as an ISO calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses an ISO calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invoice: parse date %q: %w", s, err)
	}
	return t, nil
}

// DueDateFor returns the default due date for an ISO issue date.
func DueDateFor(issue string) (string, error) {
	t, err := ParseDate(issue)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, 30)), nil
}

// FillDefaultDates sets missing issue and due dates relative to now.
func (d *Document) FillDefaultDates(now time.Time) {
	if d.Meta.Date == "" {
		d.Meta.Date = FormatDate(now)
	}
	if d.Meta.DueDate == "" {
		if due, err := DueDateFor(d.Meta.Date); err == nil {
			d.Meta.DueDate = due
		} else {
			d.Meta.DueDate = FormatDate(now.Add(DefaultPaymentTerms))
		}
	}
}
