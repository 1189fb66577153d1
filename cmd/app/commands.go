package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/brain/internal"
	"github.com/starford/brain/internal/docstore"
	"github.com/starford/brain/internal/document"
	"github.com/starford/brain/internal/regen"
	"github.com/starford/brain/internal/views"
)

func metadataFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "knowledge, behavior, system, tool or general"},
		&cli.StringFlag{Name: "subtype", Aliases: []string{"s"}, Usage: "Free-form subtype, e.g. decisions"},
		&cli.StringSliceFlag{Name: "tag", Usage: "Tag (repeatable)"},
		&cli.IntFlag{Name: "ship-factor", Aliases: []string{"p"}, Usage: "Priority from 1 to 10"},
		&cli.StringSliceFlag{Name: "reference", Usage: "Root-relative path of a related document (repeatable)"},
		&cli.StringFlag{Name: "content", Usage: "Markdown body"},
		&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read the body from a file, - for stdin"},
	}
}

// readContent returns the body given by --file or --content, or nil when
// neither is set.
func readContent(cmd *cli.Command) (*string, error) {
	if cmd.IsSet("file") {
		var data []byte
		var err error
		if p := cmd.String("file"); p == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(p)
		}
		if err != nil {
			return nil, fmt.Errorf("read content: %w", err)
		}
		s := string(data)
		return &s, nil
	}
	if cmd.IsSet("content") {
		s := cmd.String("content")
		return &s, nil
	}
	return nil, nil
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := strings.TrimSpace(cmd.Args().First())
	if v == "" {
		return "", fmt.Errorf("missing argument: %s", name)
	}
	return v, nil
}

func printDocs(w io.Writer, docs []document.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "no documents")
		return
	}
	for _, d := range docs {
		line := fmt.Sprintf("[%s] %s  %s", views.FormatShipFactor(d.Meta), d.Path, d.DisplayTitle())
		if d.Meta.IsDeprecated() {
			line += " (deprecated)"
		}
		fmt.Fprintln(w, line)
	}
}

func printStatuses(w io.Writer, statuses []regen.ViewStatus, dryRun bool) {
	for _, st := range statuses {
		state := "up to date"
		switch {
		case st.Skipped:
			state = "skipped"
		case st.Written:
			state = "written"
		case st.Stale && dryRun:
			state = "stale"
		case st.Stale:
			state = "unchanged"
		}
		fmt.Fprintf(w, "%-20s %-45s %s\n", st.View, st.Path, state)
	}
}

func checkView(ctx context.Context, w io.Writer, app *internal.App, view string) error {
	statuses, err := app.Regen.Refresh(ctx, regen.RefreshOptions{DryRun: true})
	if err != nil {
		return err
	}
	for _, st := range statuses {
		if st.View == view {
			printStatuses(w, []regen.ViewStatus{st}, true)
		}
	}
	return nil
}

func reportWrite(w io.Writer, p string, written bool) {
	if written {
		fmt.Fprintf(w, "rebuilt: %s\n", p)
		return
	}
	fmt.Fprintf(w, "unchanged: %s\n", p)
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a document with complete frontmatter",
		ArgsUsage: "<title>",
		Flags: append(metadataFlags(),
			&cli.StringFlag{Name: "category", Usage: "Top-level directory, defaults to the type"},
		),
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			title, err := requireArg(cmd, "title")
			if err != nil {
				return err
			}
			content, err := readContent(cmd)
			if err != nil {
				return err
			}
			in := docstore.NewDocument{
				Title:      title,
				Type:       document.Type(cmd.String("type")),
				Subtype:    cmd.String("subtype"),
				Tags:       cmd.StringSlice("tag"),
				ShipFactor: int(cmd.Int("ship-factor")),
				References: cmd.StringSlice("reference"),
				Category:   cmd.String("category"),
			}
			if content != nil {
				in.Content = *content
			}
			p, err := app.Store.Create(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(output(cmd), "created: %s\n", p)
			return nil
		}),
	}
}

func readCommand() *cli.Command {
	return &cli.Command{
		Name:      "read",
		Usage:     "Print a document with its frontmatter",
		ArgsUsage: "<path>",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			p, err := requireArg(cmd, "path")
			if err != nil {
				return err
			}
			d, err := app.Store.Read(ctx, p)
			if err != nil {
				return err
			}
			data, err := document.Serialize(d)
			if err != nil {
				return err
			}
			_, err = output(cmd).Write(data)
			return err
		}),
	}
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update a document's body or metadata; bumps version and modified",
		ArgsUsage: "<path>",
		Flags: append(metadataFlags(),
			&cli.StringFlag{Name: "title", Usage: "New title"},
			&cli.StringFlag{Name: "supersedes", Usage: "Path of the document this one replaces"},
		),
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			p, err := requireArg(cmd, "path")
			if err != nil {
				return err
			}
			content, err := readContent(cmd)
			if err != nil {
				return err
			}

			var patch document.Metadata
			if cmd.IsSet("title") {
				patch.Title = document.Ptr(cmd.String("title"))
			}
			if cmd.IsSet("type") {
				patch.Type = document.Ptr(document.Type(cmd.String("type")))
			}
			if cmd.IsSet("subtype") {
				patch.Subtype = document.Ptr(cmd.String("subtype"))
			}
			if cmd.IsSet("tag") {
				patch.Tags = cmd.StringSlice("tag")
			}
			if cmd.IsSet("ship-factor") {
				patch.ShipFactor = document.Ptr(int(cmd.Int("ship-factor")))
			}
			if cmd.IsSet("reference") {
				patch.References = cmd.StringSlice("reference")
			}
			if cmd.IsSet("supersedes") {
				patch.Supersedes = document.Ptr(cmd.String("supersedes"))
			}

			d, err := app.Store.Update(ctx, p, content, &patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(output(cmd), "updated: %s (version %d)\n", d.Path, d.Meta.VersionValue())
			return nil
		}),
	}
}

func deprecateCommand() *cli.Command {
	return &cli.Command{
		Name:      "deprecate",
		Usage:     "Mark a document deprecated without deleting it",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "reason", Usage: "Why the document is deprecated", Required: true},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			p, err := requireArg(cmd, "path")
			if err != nil {
				return err
			}
			d, err := app.Store.Deprecate(ctx, p, cmd.String("reason"))
			if err != nil {
				return err
			}
			fmt.Fprintf(output(cmd), "deprecated: %s\n", d.Path)
			return nil
		}),
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show document counts per category, type and subtype",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print JSON"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			st, err := app.Regen.Statistics(ctx)
			if err != nil {
				return err
			}
			w := output(cmd)
			if cmd.Bool("json") {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			fmt.Fprintf(w, "Total documents: %d\n", st.Total)
			fmt.Fprintf(w, "High priority (ship factor >= %d): %d\n", views.HighPriorityThreshold, st.HighPriority)
			fmt.Fprintf(w, "Deprecated: %d\n", st.Deprecated)
			printCounts(w, "By category", st.ByCategory)
			printCounts(w, "By type", st.ByType)
			printCounts(w, "By subtype", st.BySubtype)
			return nil
		}),
	}
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, k := range slices.Sorted(maps.Keys(counts)) {
		fmt.Fprintf(w, "  %s: %d\n", k, counts[k])
	}
}

func highPriorityCommand() *cli.Command {
	return &cli.Command{
		Name:  "high-priority",
		Usage: "List documents at or above a ship factor",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "min", Usage: "Minimum ship factor", Value: views.HighPriorityThreshold},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			docs, err := app.Regen.HighPriority(ctx, int(cmd.Int("min")))
			if err != nil {
				return err
			}
			printDocs(output(cmd), docs)
			return nil
		}),
	}
}

func tagsCommand() *cli.Command {
	return &cli.Command{
		Name:      "tags",
		Usage:     "List documents carrying any of the given tags",
		ArgsUsage: "<tag> [tag...]",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			tags := cmd.Args().Slice()
			if len(tags) == 0 {
				return fmt.Errorf("missing argument: tag")
			}
			docs, err := app.Regen.ByTag(ctx, tags)
			if err != nil {
				return err
			}
			printDocs(output(cmd), docs)
			return nil
		}),
	}
}

func categoryCommand() *cli.Command {
	return &cli.Command{
		Name:      "category",
		Usage:     "List documents under a path prefix",
		ArgsUsage: "<prefix>",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			prefix, err := requireArg(cmd, "prefix")
			if err != nil {
				return err
			}
			docs, err := app.Regen.ByCategory(ctx, prefix)
			if err != nil {
				return err
			}
			printDocs(output(cmd), docs)
			return nil
		}),
	}
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Rebuild the master index",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "check", Usage: "Only report whether the index is stale"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			w := output(cmd)
			if cmd.Bool("check") {
				return checkView(ctx, w, app, regen.ViewIndex)
			}
			if err := app.Regen.RebuildIndex(ctx); err != nil {
				return err
			}
			fmt.Fprintf(w, "rebuilt: %s\n", app.Regen.Paths().Index)
			return nil
		}),
	}
}

func systemCommand() *cli.Command {
	return &cli.Command{
		Name:  "system",
		Usage: "Rebuild the system overview",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "check", Usage: "Only report whether the overview is stale"},
			&cli.BoolFlag{Name: "analyze", Usage: "Write the frontmatter and naming analysis report instead"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			w := output(cmd)
			switch {
			case cmd.Bool("check"):
				return checkView(ctx, w, app, regen.ViewSystem)
			case cmd.Bool("analyze"):
				p, err := app.Regen.WriteAnalysisReport(ctx, "")
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "written: %s\n", p)
				return nil
			}
			written, err := app.Regen.RebuildSystem(ctx)
			if err != nil {
				return err
			}
			reportWrite(w, app.Regen.Paths().System, written)
			return nil
		}),
	}
}

func infraCommand() *cli.Command {
	return &cli.Command{
		Name:  "infra",
		Usage: "Rebuild the infrastructure overview",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "check", Usage: "Only report whether the overview is stale"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			w := output(cmd)
			if cmd.Bool("check") {
				return checkView(ctx, w, app, regen.ViewInfrastructure)
			}
			written, err := app.Regen.RebuildInfrastructure(ctx)
			if err != nil {
				return err
			}
			reportWrite(w, app.Regen.Paths().InfraOverview, written)
			return nil
		}),
	}
}

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Rebuild every derived view whose sources changed",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "Rebuild every view"},
			&cli.BoolFlag{Name: "check", Usage: "Only report staleness"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			dryRun := cmd.Bool("check")
			statuses, err := app.Regen.Refresh(ctx, regen.RefreshOptions{
				Force:  cmd.Bool("force"),
				DryRun: dryRun,
			})
			if err != nil {
				return err
			}
			printStatuses(output(cmd), statuses, dryRun)
			return nil
		}),
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check every document's frontmatter",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "repair", Usage: "Fill missing fields with defaults first"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			w := output(cmd)
			if cmd.Bool("repair") {
				res, err := app.Validator.RepairAll(ctx)
				if err != nil {
					return err
				}
				for _, p := range slices.Sorted(maps.Keys(res.Repaired)) {
					fields := make([]string, 0, len(res.Repaired[p]))
					for _, f := range res.Repaired[p] {
						fields = append(fields, string(f))
					}
					fmt.Fprintf(w, "repaired: %s (%s)\n", p, strings.Join(fields, ", "))
				}
				for _, p := range res.Skipped {
					fmt.Fprintf(w, "skipped: %s\n", p)
				}
			}

			report, err := app.Validator.Validate(ctx)
			if err != nil {
				return err
			}
			for _, f := range report.Errors {
				fmt.Fprintf(w, "error: %s\n", f)
			}
			for _, f := range report.Warnings {
				fmt.Fprintf(w, "warning: %s\n", f)
			}
			fmt.Fprintf(w, "checked %d documents: %d errors, %d warnings\n",
				report.Checked, len(report.Errors), len(report.Warnings))
			if !report.OK() {
				return fmt.Errorf("validation failed: %d errors", len(report.Errors))
			}
			return nil
		}),
	}
}

func monitorCommand() *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "Record changes to the watched context files once",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force-update", Usage: "Record the current state without reporting"},
			&cli.BoolFlag{Name: "check", Usage: "Only list changed resources"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			mon, err := app.Monitor()
			if err != nil {
				return err
			}
			w := output(cmd)
			switch {
			case cmd.Bool("force-update"):
				names, err := mon.ForceUpdate(ctx)
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintf(w, "recorded: %s\n", n)
				}
				return nil
			case cmd.Bool("check"):
				cs, err := mon.Check(ctx)
				if err != nil {
					return err
				}
				if len(cs) == 0 {
					fmt.Fprintln(w, "no changes")
				}
				for _, c := range cs {
					fmt.Fprintf(w, "changed: %s (%s)\n", c.Name, c.Path)
				}
				return nil
			}
			cs, err := mon.Run(ctx)
			if err != nil {
				return err
			}
			if len(cs) == 0 {
				fmt.Fprintln(w, "no changes")
				return nil
			}
			fmt.Fprintf(w, "recorded %d change(s) in %s\n", len(cs), app.Config.Store.Paths.Changelog)
			return nil
		}),
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Poll the watched context files and refresh stale views until interrupted",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "interval", Aliases: []string{"i"}, Usage: "Polling interval, defaults to watch.interval"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			return app.Watch(ctx, cmd.Duration("interval"))
		}),
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Full-text search over the catalog, synced first",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum results", Value: 20},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			query := strings.Join(cmd.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("missing argument: query")
			}
			hits, err := app.Search(ctx, query, int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			w := output(cmd)
			if len(hits) == 0 {
				fmt.Fprintln(w, "no matches")
				return nil
			}
			for _, h := range hits {
				line := fmt.Sprintf("[%d] %s  %s", h.ShipFactor, h.Path, h.Title)
				if h.Deprecated {
					line += " (deprecated)"
				}
				fmt.Fprintln(w, line)
				if h.Snippet != "" {
					fmt.Fprintf(w, "    %s\n", h.Snippet)
				}
			}
			return nil
		}),
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the knowledge base tools over MCP on stdin/stdout",
		Action: withApp(func(_ context.Context, _ *cli.Command, app *internal.App) error {
			srv, err := app.MCPServer()
			if err != nil {
				return err
			}
			return srv.ServeStdio()
		}),
	}
}
