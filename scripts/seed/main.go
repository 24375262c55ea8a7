package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/invox/invox/internal/app"
	"github.com/invox/invox/internal/invoice"
	"github.com/invox/invox/internal/persistence"
	"github.com/invox/invox/internal/platform/kv"
)

// Seeds the configured store with a demo current invoice and a few saved ones.
func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.StoreDriver == kv.DriverMemory {
		log.Fatalf("seed: STORE_DRIVER=memory does not outlive this process; use redis or postgres")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	backend, closeKV, err := kv.Open(ctx, cfg.KVOptions())
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer closeKV()
	store := persistence.New(backend, app.NewLogger(cfg))
	now := time.Now()

	fmt.Println("→ Seeding current invoice...")
	if err := store.SaveCurrent(ctx, invoice.Demo(now)); err != nil {
		log.Fatalf("seed current: %v", err)
	}

	fmt.Println("→ Seeding saved invoices...")
	for name, doc := range seedDocuments(now) {
		if err := store.SaveNamed(ctx, name, doc); err != nil {
			log.Fatalf("seed %s: %v", name, err)
		}
	}
	fmt.Println("✓ Seed complete")
}

func seedDocuments(now time.Time) map[string]invoice.Document {
	demo := invoice.Demo(now)

	retainer := invoice.Default(now.AddDate(0, -1, 0))
	retainer.Meta.Number = "INV-2001"
	retainer.TaxRate = 0
	retainer.DiscountType = invoice.DiscountFixed
	retainer.DiscountValue = 250
	retainer.Notes = "Monthly retainer."

	eur := invoice.Default(now)
	eur.Meta.Number = "INV-2002"
	eur.Currency = "EUR"
	eur.LineItems = []invoice.LineItem{
		{ID: "1", Description: "Workshop day", Quantity: 2, UnitPrice: 1200},
		{ID: "2", Description: "Travel", Quantity: 1, UnitPrice: 180.5},
	}

	return map[string]invoice.Document{
		"demo":         demo,
		"retainer":     retainer,
		"eur-workshop": eur,
	}
}
