package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/starford/scraps/internal/mcpserver"
	"github.com/starford/scraps/internal/noteservice"
	"github.com/starford/scraps/internal/parser"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run one sync pass and print its report",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			if s.NotReady != nil {
				return s.NotReady
			}

			rep, err := s.Engine.Sync(ctx)
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			if err := printJSON(rep); err != nil {
				return err
			}
			if n := len(rep.Failures); n > 0 {
				return fmt.Errorf("sync: %d note-level failures", n)
			}
			return nil
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Validate the configuration and test the Notion connection",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			if s.NotReady != nil {
				return s.NotReady
			}
			if !s.Notion.TestConnection(ctx) {
				return errors.New("notion: database is not reachable with the configured token")
			}
			fmt.Printf("notion: ok (database %s)\n", s.cfg.Notion.DatabaseID)
			if s.cfg.AI.Enabled {
				fmt.Printf("ai: %s enabled\n", s.cfg.AI.Provider)
			} else {
				fmt.Println("ai: disabled")
			}
			return nil
		},
	}
}

var bodyFlags = []cli.Flag{
	&cli.StringFlag{Name: "body", Aliases: []string{"b"}, Usage: "Note body"},
	&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read the body from a file, - for stdin"},
}

// bodyArg returns the body given by --body or --file, and whether either
// was set.
func bodyArg(cmd *cli.Command) (string, bool, error) {
	if cmd.IsSet("file") {
		path := cmd.String("file")
		var (
			raw []byte
			err error
		)
		if path == "-" {
			raw, err = io.ReadAll(os.Stdin)
		} else {
			raw, err = os.ReadFile(path)
		}
		if err != nil {
			return "", false, fmt.Errorf("read body: %w", err)
		}
		return string(raw), true, nil
	}
	if cmd.IsSet("body") {
		return cmd.String("body"), true, nil
	}
	return "", false, nil
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.Args().First()
	if v == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return v, nil
}

func notesCommand() *cli.Command {
	return &cli.Command{
		Name:  "notes",
		Usage: "Manage local notes",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Create a note",
				ArgsUsage: "TITLE",
				Flags:     bodyFlags,
				Action: func(ctx context.Context, cmd *cli.Command) error {
					body, _, err := bodyArg(cmd)
					if err != nil {
						return err
					}
					s, err := open(cmd)
					if err != nil {
						return err
					}
					defer s.Close()
					n, err := s.Service.CreateNote(ctx, cmd.Args().First(), body)
					if err != nil {
						return err
					}
					fmt.Println(n.ID)
					return nil
				},
			},
			{
				Name:      "import",
				Usage:     "Create one note per Markdown file; the title comes from frontmatter, a leading H1 or the file name",
				ArgsUsage: "FILE...",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() == 0 {
						return errors.New("at least one file is required")
					}
					s, err := open(cmd)
					if err != nil {
						return err
					}
					defer s.Close()
					for _, path := range cmd.Args().Slice() {
						raw, err := os.ReadFile(path)
						if err != nil {
							return fmt.Errorf("import: %w", err)
						}
						doc := parser.Parse(raw)
						if doc.Title == "" {
							doc.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
						}
						n, err := s.Service.CreateNote(ctx, doc.Title, doc.Body)
						if err != nil {
							return fmt.Errorf("import %s: %w", path, err)
						}
						fmt.Printf("%s\t%s\n", n.ID, path)
					}
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List notes, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Filter on title and body"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					s, err := open(cmd)
					if err != nil {
						return err
					}
					defer s.Close()
					items, err := s.Service.ListNotes(ctx, cmd.String("query"))
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tSYNCED\tUPDATED\tTITLE")
					for _, it := range items {
						fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", it.ID, it.Synced, it.UpdatedAt.Format(time.DateTime), it.Title)
					}
					return tw.Flush()
				},
			},
			{
				Name:      "show",
				Usage:     "Print a note",
				ArgsUsage: "ID",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "remote", Usage: "Print the remote document instead"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireArg(cmd, "note id")
					if err != nil {
						return err
					}
					s, err := open(cmd)
					if err != nil {
						return err
					}
					defer s.Close()
					n, err := s.Service.GetNote(ctx, id)
					if err != nil {
						return err
					}
					if !cmd.Bool("remote") {
						return printJSON(n)
					}
					if s.NotReady != nil {
						return s.NotReady
					}
					if n.RemoteID == "" {
						return fmt.Errorf("note %s has not been synced", id)
					}
					doc, err := s.Notion.Get(ctx, n.RemoteID)
					if err != nil {
						return err
					}
					return printJSON(doc)
				},
			},
			{
				Name:      "edit",
				Usage:     "Change a note's title or body",
				ArgsUsage: "ID",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "New title"},
				}, bodyFlags...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireArg(cmd, "note id")
					if err != nil {
						return err
					}
					var upd noteservice.NoteUpdate
					if cmd.IsSet("title") {
						t := cmd.String("title")
						upd.Title = &t
					}
					body, ok, err := bodyArg(cmd)
					if err != nil {
						return err
					}
					if ok {
						upd.Body = &body
					}
					if upd.Title == nil && upd.Body == nil {
						return errors.New("nothing to change: pass --title, --body or --file")
					}
					s, err := open(cmd)
					if err != nil {
						return err
					}
					defer s.Close()
					n, err := s.Service.UpdateNote(ctx, id, upd, "")
					if err != nil {
						return err
					}
					fmt.Println(n.Checksum)
					return nil
				},
			},
			{
				Name:      "rm",
				Usage:     "Delete a note; a synced note is archived remotely on the next pass",
				ArgsUsage: "ID",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireArg(cmd, "note id")
					if err != nil {
						return err
					}
					s, err := open(cmd)
					if err != nil {
						return err
					}
					defer s.Close()
					return s.Service.DeleteNote(ctx, id)
				},
			},
		},
	}
}

func tombstonesCommand() *cli.Command {
	return &cli.Command{
		Name:  "tombstones",
		Usage: "Inspect remote documents that are never pulled again",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List tombstoned remote ids",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					s, err := open(cmd)
					if err != nil {
						return err
					}
					defer s.Close()
					ids, err := s.Service.ListTombstones(ctx)
					if err != nil {
						return err
					}
					pending, err := s.Engine.PendingArchives(ctx)
					if err != nil {
						return err
					}
					queued := make(map[string]bool, len(pending))
					for _, id := range pending {
						queued[id] = true
					}
					for _, id := range ids {
						if queued[id] {
							fmt.Println(id, "(archive pending)")
						} else {
							fmt.Println(id)
						}
					}
					return nil
				},
			},
			{
				Name:      "clear",
				Usage:     "Allow a tombstoned document to be pulled again",
				ArgsUsage: "REMOTE_ID",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireArg(cmd, "remote id")
					if err != nil {
						return err
					}
					s, err := open(cmd)
					if err != nil {
						return err
					}
					defer s.Close()
					return s.Service.ClearTombstone(ctx, id)
				},
			},
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the MCP tools on stdin/stdout",
		Action: func(_ context.Context, cmd *cli.Command) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			return mcpserver.New(s.Service, version).ServeStdio()
		},
	}
}
