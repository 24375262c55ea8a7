package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/invox/invox/internal/invoice"
	"github.com/invox/invox/internal/persistence"
)

// SavedStore is the subset of the persistence store the saved commands use.
type SavedStore interface {
	ListNamed(ctx context.Context) (persistence.Listing, error)
	DeleteNamed(ctx context.Context, name string) error
}

// SavedListOptions defines flags for saved list.
type SavedListOptions struct {
	JSONOutput bool
	Calculator invoice.Calculator
	Stdout     io.Writer
	Stderr     io.Writer
}

// SavedEntry is one row of saved list output.
type SavedEntry struct {
	Name     string  `json:"name"`
	Number   string  `json:"number,omitempty"`
	Client   string  `json:"client,omitempty"`
	Total    float64 `json:"total"`
	Currency string  `json:"currency,omitempty"`
	Corrupt  string  `json:"corrupt,omitempty"`
}

// ListCommand prints the saved invoices. Unreadable entries are listed with
// their parse error and make the command exit 2.
func ListCommand(ctx context.Context, store SavedStore, opts SavedListOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	listing, err := store.ListNamed(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "saved list: %v\n", err)
		return 1
	}
	entries := make([]SavedEntry, 0, len(listing.Documents)+len(listing.Corrupt))
	for _, name := range listing.Names() {
		doc := listing.Documents[name]
		entries = append(entries, SavedEntry{
			Name:     name,
			Number:   doc.Meta.Number,
			Client:   doc.Client.Name,
			Total:    opts.Calculator.Compute(doc).GrandTotal,
			Currency: doc.Currency,
		})
	}
	for name, reason := range listing.Corrupt {
		entries = append(entries, SavedEntry{Name: name, Corrupt: reason})
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(entries); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "saved list: encode json: %v\n", err)
			return 1
		}
	} else {
		tw := tabwriter.NewWriter(opts.Stdout, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "NAME\tNUMBER\tCLIENT\tTOTAL")
		for _, e := range entries {
			if e.Corrupt != "" {
				_, _ = fmt.Fprintf(tw, "%s\t-\t-\tunreadable: %s\n", e.Name, e.Corrupt)
				continue
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, e.Number, e.Client, invoice.FormatMoney(e.Total, e.Currency))
		}
		_ = tw.Flush()
	}
	if len(listing.Corrupt) > 0 {
		return 2
	}
	return 0
}

// DeleteCommand removes a saved invoice. Unknown names succeed silently.
func DeleteCommand(ctx context.Context, store SavedStore, name string, stderr io.Writer) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	if err := store.DeleteNamed(ctx, name); err != nil {
		_, _ = fmt.Fprintf(stderr, "saved delete: %v\n", err)
		return 1
	}
	return 0
}
