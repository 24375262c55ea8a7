package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/invox/invox/internal/app"
	"github.com/invox/invox/internal/export"
	"github.com/invox/invox/internal/invoice"
	"github.com/invox/invox/internal/view"
	"github.com/invox/invox/jobs"
)

// ExportOptions defines flags for the export command.
type ExportOptions struct {
	Name        string
	Current     bool
	All         bool
	Theme       string
	OutDir      string
	Concurrency int
	Stdout      io.Writer
	Stderr      io.Writer
}

// ExportCommand renders the current, one saved, or every saved invoice to
// PDF files in OutDir and prints the written paths.
func ExportCommand(ctx context.Context, rt *app.Runtime, opts ExportOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	fail := func(format string, args ...any) int {
		_, _ = fmt.Fprintf(opts.Stderr, "export: "+format+"\n", args...)
		return 1
	}
	theme, err := view.ParseTheme(opts.Theme)
	if err != nil {
		return fail("%v", err)
	}
	selected := 0
	for _, set := range []bool{opts.Current, opts.All, strings.TrimSpace(opts.Name) != ""} {
		if set {
			selected++
		}
	}
	if selected != 1 {
		return fail("pass exactly one of <name>, --current or --all")
	}
	outDir := opts.OutDir
	if outDir == "" {
		outDir = rt.Config.ExportDir
	}
	sink := export.FileSink{Dir: outDir}

	if opts.All {
		job := &jobs.ExportJob{Saved: rt.Store, Renderer: rt.Exporter, Sinks: []export.Sink{sink}, Logger: rt.Logger}
		names, err := job.ExportAll(ctx, theme, opts.Concurrency)
		if err != nil {
			return fail("%v", err)
		}
		for _, name := range names {
			_, _ = fmt.Fprintln(opts.Stdout, sink.Path(export.Filename(name)))
		}
		return 0
	}

	var doc invoice.Document
	if opts.Current {
		doc, err = rt.Editor.ExportSnapshot()
	} else {
		doc, err = rt.Store.GetNamed(ctx, opts.Name)
		if err == nil {
			err = rt.Editor.Gate().Check(invoice.OpExport, doc)
		}
	}
	if err != nil {
		return fail("%v", err)
	}
	res, err := rt.Exporter.Export(ctx, doc, theme)
	if err != nil {
		return fail("%v", err)
	}
	path, err := sink.Put(ctx, res.Filename, res.PDF)
	if err != nil {
		return fail("%v", err)
	}
	_, _ = fmt.Fprintln(opts.Stdout, path)
	return 0
}
