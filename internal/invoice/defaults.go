package invoice

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Default returns the placeholder document shown on first start.
func Default(now time.Time) Document {
	doc := Document{
		Business: Party{
			Name:    "Acme Corporation",
			Email:   "contact@acme.com",
			Address: "123 Business St, City, ST 12345",
		},
		Client: Party{
			Name:    "Client Name LLC",
			Email:   "client@example.com",
			Address: "456 Client Ave, Town, ST 67890",
		},
		Meta:          Meta{Number: "INV-001"},
		Currency:      DefaultCurrency,
		Notes:         "Thank you for your business!",
		TaxRate:       10,
		DiscountType:  DiscountPercent,
		DiscountValue: 5,
		LineItems: []LineItem{
			{ID: "1", Description: "Consulting Services", Quantity: 10, UnitPrice: 150},
			{ID: "2", Description: "Web Development", Quantity: 20, UnitPrice: 125},
		},
	}
	doc.FillDefaultDates(now)
	return doc
}

// Blank returns an empty invoice carrying number.
func Blank(now time.Time, number string) Document {
	doc := Document{
		Meta:         Meta{Number: number},
		Currency:     DefaultCurrency,
		DiscountType: DiscountPercent,
		LineItems:    []LineItem{},
	}
	doc.FillDefaultDates(now)
	return doc
}

// RandomNumber produces an invoice number like INV-042.
func RandomNumber() string {
	return fmt.Sprintf("INV-%03d", rand.IntN(10000))
}

// Demo returns a fully populated sample invoice.
func Demo(now time.Time) Document {
	doc := Document{
		Business: Party{
			Name:    "Tech Solutions Inc.",
			Email:   "hello@techsolutions.com",
			Address: "123 Innovation Drive, San Francisco, CA 94105",
			Phone:   "+1 (415) 555-0123",
		},
		Client: Party{
			Name:    "Acme Corporation",
			Email:   "billing@acme.com",
			Address: "456 Enterprise Boulevard, New York, NY 10001",
		},
		Meta:         Meta{Number: "INV-2024-001"},
		Currency:     DefaultCurrency,
		Notes:        "Thank you for your business! Please make payment within 30 days of invoice date.",
		TaxRate:      8,
		DiscountType: DiscountPercent,
		LineItems: []LineItem{
			{ID: "1", Description: "Web Development Services - Frontend", Quantity: 40, UnitPrice: 150},
			{ID: "2", Description: "UI/UX Design Consultation", Quantity: 8, UnitPrice: 200},
			{ID: "3", Description: "Project Management & Coordination", Quantity: 5, UnitPrice: 175},
			{ID: "4", Description: "Testing and Quality Assurance", Quantity: 10, UnitPrice: 125},
		},
	}
	doc.FillDefaultDates(now)
	return doc
}
