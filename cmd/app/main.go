package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/munin/internal"
	"github.com/starford/munin/internal/index"
	"github.com/starford/munin/internal/mcpserver"
	"github.com/starford/munin/internal/models"
	"github.com/starford/munin/internal/mutate"
	"github.com/starford/munin/internal/queryservice"
	"github.com/starford/munin/internal/storage"
)

func main() {
	cmd := &cli.Command{
		Name:  "munin",
		Usage: "Query and mutation layer over an AI-assistant knowledge directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Path to the knowledge root",
				Value:   "./knowledge",
				Sources: cli.EnvVars("MUNIN_ROOT"),
			},
			&cli.StringFlag{
				Name:    "index",
				Usage:   "Path to the index database (default <root>/.munin/index.db)",
				Sources: cli.EnvVars("MUNIN_INDEX"),
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Emit JSON instead of human-readable output",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			mcpCommand(),
			scanCommand(),
			plansCommand(),
			sessionsCommand(),
			learnedCommand(),
			searchCommand(),
			updateCommand(),
			rebuildCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "munin: %v\n", err)
		os.Exit(1)
	}
}

// newService builds the query service for one CLI invocation.
func newService(cmd *cli.Command) (*queryservice.Service, func(), error) {
	root := cmd.String("root")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create knowledge root: %w", err)
	}

	store, err := storage.NewFS(root)
	if err != nil {
		return nil, nil, err
	}

	indexPath := cmd.String("index")
	if indexPath == "" {
		indexPath = filepath.Join(root, ".munin", "index.db")
	}
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create index dir: %w", err)
	}

	db, err := index.Open(indexPath)
	if err != nil {
		return nil, nil, err
	}

	level := slog.LevelWarn
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	svc := queryservice.New(root, store, db, logger)
	return svc, func() { db.Close() }, nil
}

func emit(cmd *cli.Command, v any, human func()) error {
	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human()
	return nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server with live reindexing and SSE events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "config/config.yaml",
				Sources: cli.EnvVars("MUNIN_CONFIG_FILE"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := internal.NewDefaultConfig()
			// The config file is optional unless the flag was set
			// explicitly.
			if err := internal.LoadConfig(cmd.String("config"), cfg, cmd.IsSet("config")); err != nil {
				return fmt.Errorf("failed to parse config: %w", err)
			}
			if cmd.IsSet("root") {
				cfg.Knowledge.Root = cmd.String("root")
			}
			if cmd.IsSet("index") {
				cfg.Index.Path = cmd.String("index")
			}
			return internal.Run(ctx, internal.WithConfig(cfg))
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdin/stdout",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, closeFn, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			return mcpserver.New(svc).ServeStdio()
		},
	}
}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Show the classified inventory of the knowledge root",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, closeFn, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			scan := svc.Scan()
			return emit(cmd, scan, func() {
				fmt.Printf("sessions: %d\nplans: %d\nlearned: %d\ntotal: %d\n",
					len(scan.Sessions), len(scan.Plans), len(scan.Learned), scan.Total)
				for _, e := range scan.Errors {
					fmt.Printf("error: %s\n", e)
				}
			})
		},
	}
}

func plansCommand() *cli.Command {
	return &cli.Command{
		Name:  "plans",
		Usage: "List plans with optional filters",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Usage: "Plan status (ACTIVE, PAUSED, PLANNED, COMPLETE, CANCELLED)"},
			&cli.StringFlag{Name: "author", Usage: "Author substring"},
			&cli.StringFlag{Name: "topic", Usage: "Topic substring"},
			&cli.StringFlag{Name: "updated-after", Usage: "Inclusive lower bound, YYYY-MM-DD"},
			&cli.StringFlag{Name: "updated-before", Usage: "Inclusive upper bound, YYYY-MM-DD"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, closeFn, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			plans, err := svc.Plans(queryservice.PlansQuery{
				Status:        cmd.String("status"),
				Author:        cmd.String("author"),
				Topic:         cmd.String("topic"),
				UpdatedAfter:  cmd.String("updated-after"),
				UpdatedBefore: cmd.String("updated-before"),
			})
			if err != nil {
				return err
			}
			return emit(cmd, plans, func() {
				for _, p := range plans {
					fmt.Printf("%-20s %-10s %-12s %s\n", p.ID, p.Status, p.Author, p.Title)
				}
				fmt.Printf("%d plan(s)\n", len(plans))
			})
		},
	}
}

func sessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "List sessions (last seven days unless a date filter is given)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Usage: "Exact date, YYYY-MM-DD"},
			&cli.StringFlag{Name: "after", Usage: "Inclusive lower bound, YYYY-MM-DD"},
			&cli.StringFlag{Name: "before", Usage: "Inclusive upper bound, YYYY-MM-DD"},
			&cli.StringFlag{Name: "topic", Usage: "Topic substring"},
			&cli.StringFlag{Name: "plan", Usage: "Associated plan id"},
			&cli.IntFlag{Name: "days", Usage: "Shorthand for --after = today minus N days"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, closeFn, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			sessions, err := svc.Sessions(queryservice.SessionsQuery{
				Date:     cmd.String("date"),
				After:    cmd.String("after"),
				Before:   cmd.String("before"),
				Topic:    cmd.String("topic"),
				PlanID:   cmd.String("plan"),
				DaysBack: int(cmd.Int("days")),
			})
			if err != nil {
				return err
			}
			return emit(cmd, sessions, func() {
				for _, s := range sessions {
					fmt.Printf("%-12s %-16s %s\n", s.Date, s.PlanID, strings.Join(s.Topics, ", "))
				}
				fmt.Printf("%d session(s)\n", len(sessions))
			})
		},
	}
}

func learnedCommand() *cli.Command {
	return &cli.Command{
		Name:  "learned",
		Usage: "List learned patterns",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Usage: "Category substring"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, closeFn, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			learned, err := svc.Learned(cmd.String("category"))
			if err != nil {
				return err
			}
			return emit(cmd, learned, func() {
				for _, l := range learned {
					fmt.Printf("%-16s %s\n", l.Category, l.Path)
				}
				fmt.Printf("%d pattern(s)\n", len(learned))
			})
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Relevance-ranked search across the knowledge root",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "scope", Usage: "Search scope (all, plans, sessions, learned)", Value: "all"},
			&cli.IntFlag{Name: "limit", Usage: "Max results", Value: 20},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			query := strings.Join(cmd.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("search query is required")
			}

			svc, closeFn, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			results, err := svc.Search(query, cmd.String("scope"), int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			return emit(cmd, results, func() {
				for _, r := range results {
					if r.Line > 0 {
						fmt.Printf("%.2f %s:%d\n      %s\n", r.Score, r.Path, r.Line, r.Snippet)
					} else {
						fmt.Printf("%.2f %s\n      %s\n", r.Score, r.Path, r.Snippet)
					}
				}
				fmt.Printf("%d result(s)\n", len(results))
			})
		},
	}
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Apply a structured mutation to a session or plan",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Usage: "Target session date, YYYY-MM-DD"},
			&cli.StringFlag{Name: "plan", Usage: "Target plan id"},
			&cli.StringSliceFlag{Name: "topic", Usage: "Topic to add (repeatable, idempotent)"},
			&cli.StringSliceFlag{Name: "file", Usage: "File reference to add (repeatable, idempotent)"},
			&cli.StringFlag{Name: "status", Usage: "New status value"},
			&cli.StringFlag{Name: "content", Usage: "Markdown content to insert"},
			&cli.StringFlag{Name: "content-file", Usage: "Read content from a file ('-' for stdin)"},
			&cli.StringFlag{Name: "placement", Usage: "Where to insert: append, prepend, after, before"},
			&cli.StringFlag{Name: "section", Usage: "Heading for appended content"},
			&cli.StringFlag{Name: "pattern", Usage: "Anchor line for after/before placements"},
			&cli.StringFlag{Name: "shortcut", Usage: "Shorthand operation: done, wip, append"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			target, err := resolveTarget(cmd)
			if err != nil {
				return err
			}

			content := cmd.String("content")
			contentFile := cmd.String("content-file")
			if contentFile == "-" {
				data, readErr := io.ReadAll(os.Stdin)
				if readErr != nil {
					return fmt.Errorf("read stdin: %w", readErr)
				}
				if content != "" {
					content = strings.TrimRight(content, "\n") + "\n" + string(data)
				} else {
					content = string(data)
				}
				contentFile = ""
			}

			svc, closeFn, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := svc.Mutate(mutate.Request{
				Target:      target,
				AddTopics:   cmd.StringSlice("topic"),
				AddFiles:    cmd.StringSlice("file"),
				SetStatus:   cmd.String("status"),
				Content:     content,
				ContentFile: contentFile,
				Placement:   mutate.Placement(cmd.String("placement")),
				Section:     cmd.String("section"),
				Pattern:     cmd.String("pattern"),
				Shortcut:    cmd.String("shortcut"),
			})
			if err != nil {
				return err
			}
			return emit(cmd, res, func() {
				fmt.Println(res.Message)
				for _, c := range res.Changes {
					fmt.Printf("  - %s\n", c)
				}
			})
		},
	}
}

func resolveTarget(cmd *cli.Command) (mutate.Target, error) {
	session := cmd.String("session")
	plan := cmd.String("plan")
	switch {
	case session != "" && plan != "":
		return mutate.Target{}, fmt.Errorf("--session and --plan are mutually exclusive")
	case session != "":
		return mutate.Target{Kind: models.KindSession, Key: session}, nil
	case plan != "":
		return mutate.Target{Kind: models.KindPlan, Key: plan}, nil
	}
	return mutate.Target{}, fmt.Errorf("a target is required: --session <date> or --plan <id>")
}

func rebuildCommand() *cli.Command {
	return &cli.Command{
		Name:  "rebuild",
		Usage: "Force a full index rebuild",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, closeFn, err := newService(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := svc.Rebuild(); err != nil {
				return err
			}
			fmt.Println("index rebuilt")
			return nil
		},
	}
}
