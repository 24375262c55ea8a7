package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	urfave "github.com/urfave/cli/v2"

	"github.com/invox/invox/internal/app"
	"github.com/invox/invox/jobs"
)

// Env carries the process wiring the commands need.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	// Open builds the runtime; nil loads configuration from the environment.
	Open func(ctx context.Context) (*app.Runtime, error)
	// Jobs connects the queue helpers; nil dials REDIS_ADDR.
	Jobs func() (JobTrigger, error)
}

// JobTrigger enqueues named jobs.
type JobTrigger interface {
	Trigger(ctx context.Context, name string, payload jobs.ExportAllPayload) (TaskRef, error)
	Close() error
}

// TaskRef identifies an enqueued task.
type TaskRef struct {
	ID    string
	Queue string
}

type queueTrigger struct{ *JobsCLI }

func (q queueTrigger) Trigger(ctx context.Context, name string, payload jobs.ExportAllPayload) (TaskRef, error) {
	info, err := q.JobsCLI.Trigger(ctx, name, payload)
	if err != nil {
		return TaskRef{}, err
	}
	return TaskRef{ID: info.ID, Queue: info.Queue}, nil
}

// NewApp assembles the invox command tree.
func NewApp(env Env) *urfave.App {
	if env.Stdout == nil {
		env.Stdout = os.Stdout
	}
	if env.Stderr == nil {
		env.Stderr = os.Stderr
	}
	serveOpen := env.Open
	if serveOpen == nil {
		serveOpen = openFromEnv(true)
	}
	if env.Open == nil {
		env.Open = openFromEnv(false)
	}
	if env.Jobs == nil {
		env.Jobs = func() (JobTrigger, error) {
			cfg, err := app.LoadConfig()
			if err != nil {
				return nil, err
			}
			return queueTrigger{NewJobsCLI(cfg.RedisAddr)}, nil
		}
	}

	return &urfave.App{
		Name:      "invox",
		Usage:     "edit, save and export a single invoice",
		Writer:    env.Stdout,
		ErrWriter: env.Stderr,
		// Exit codes are surfaced to the caller instead of exiting here.
		ExitErrHandler: func(*urfave.Context, error) {},
		Commands: []*urfave.Command{
			serveCommand(serveOpen),
			exportCommand(env),
			savedCommand(env),
			jobsCommand(env),
		},
	}
}

func openFromEnv(serving bool) func(ctx context.Context) (*app.Runtime, error) {
	return func(ctx context.Context) (*app.Runtime, error) {
		cfg, err := app.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		logger := app.NewStderrLogger(cfg)
		if serving {
			logger = app.NewLogger(cfg)
		}
		return app.Build(ctx, cfg, logger)
	}
}

func exitCode(code int) error {
	if code == 0 {
		return nil
	}
	return urfave.Exit("", code)
}

func serveCommand(open func(context.Context) (*app.Runtime, error)) *urfave.Command {
	return &urfave.Command{
		Name:  "serve",
		Usage: "run the HTTP editor API",
		Action: func(c *urfave.Context) error {
			rt, err := open(c.Context)
			if err != nil {
				return err
			}
			defer rt.Close()
			return Serve(c.Context, rt)
		},
	}
}

func exportCommand(env Env) *urfave.Command {
	return &urfave.Command{
		Name:      "export",
		Usage:     "render an invoice to PDF",
		ArgsUsage: "<saved name>",
		Flags: []urfave.Flag{
			&urfave.BoolFlag{Name: "current", Usage: "export the current invoice"},
			&urfave.BoolFlag{Name: "all", Usage: "export every saved invoice"},
			&urfave.StringFlag{Name: "out", Usage: "output directory (default EXPORT_DIR)"},
			&urfave.StringFlag{Name: "theme", Value: "minimal", Usage: "minimal or professional"},
			&urfave.IntFlag{Name: "concurrency", Value: 4, Usage: "parallel renders for --all"},
		},
		Action: func(c *urfave.Context) error {
			rt, err := env.Open(c.Context)
			if err != nil {
				return err
			}
			defer rt.Close()
			return exitCode(ExportCommand(c.Context, rt, ExportOptions{
				Name:        c.Args().First(),
				Current:     c.Bool("current"),
				All:         c.Bool("all"),
				Theme:       c.String("theme"),
				OutDir:      c.String("out"),
				Concurrency: c.Int("concurrency"),
				Stdout:      env.Stdout,
				Stderr:      env.Stderr,
			}))
		},
	}
}

func savedCommand(env Env) *urfave.Command {
	return &urfave.Command{
		Name:  "saved",
		Usage: "manage saved invoices",
		Subcommands: []*urfave.Command{
			{
				Name:  "list",
				Usage: "list saved invoices",
				Flags: []urfave.Flag{
					&urfave.BoolFlag{Name: "json", Usage: "print JSON"},
				},
				Action: func(c *urfave.Context) error {
					rt, err := env.Open(c.Context)
					if err != nil {
						return err
					}
					defer rt.Close()
					return exitCode(ListCommand(c.Context, rt.Store, SavedListOptions{
						JSONOutput: c.Bool("json"),
						Calculator: rt.Editor.Calculator(),
						Stdout:     env.Stdout,
						Stderr:     env.Stderr,
					}))
				},
			},
			{
				Name:      "delete",
				Usage:     "delete a saved invoice",
				ArgsUsage: "<name>",
				Action: func(c *urfave.Context) error {
					if c.NArg() != 1 {
						return urfave.Exit("saved delete: exactly one name is required", 1)
					}
					rt, err := env.Open(c.Context)
					if err != nil {
						return err
					}
					defer rt.Close()
					return exitCode(DeleteCommand(c.Context, rt.Store, c.Args().First(), env.Stderr))
				},
			},
		},
	}
}

func jobsCommand(env Env) *urfave.Command {
	return &urfave.Command{
		Name:  "jobs",
		Usage: "background job helpers",
		Subcommands: []*urfave.Command{
			{
				Name:      "trigger",
				Usage:     "enqueue a job",
				ArgsUsage: "export-all",
				Flags: []urfave.Flag{
					&urfave.StringFlag{Name: "theme", Value: "minimal"},
					&urfave.IntFlag{Name: "concurrency", Value: 4},
				},
				Action: func(c *urfave.Context) error {
					if c.NArg() != 1 {
						return urfave.Exit("jobs trigger: job name is required", 1)
					}
					trigger, err := env.Jobs()
					if err != nil {
						return err
					}
					defer trigger.Close()
					ref, err := trigger.Trigger(c.Context, c.Args().First(), jobs.ExportAllPayload{
						Theme:       c.String("theme"),
						Concurrency: c.Int("concurrency"),
					})
					if err != nil {
						return urfave.Exit(err.Error(), 1)
					}
					_, _ = fmt.Fprintf(env.Stdout, "enqueued %s on %s\n", ref.ID, ref.Queue)
					return nil
				},
			},
		},
	}
}
