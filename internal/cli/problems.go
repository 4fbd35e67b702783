package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mpblatz/repeet/internal/app"
	"github.com/mpblatz/repeet/internal/catalog"
	"github.com/mpblatz/repeet/internal/domain"
)

func newAddCmd(opts *options) *cobra.Command {
	var difficulty, link, topic, source string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a problem to the end of the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, _ := domain.ParseDifficulty(difficulty)
			in := domain.NewProblem{
				Name:       args[0],
				Difficulty: d,
				Link:       optional(link),
				Topic:      optional(topic),
				Source:     optional(source),
			}
			return opts.run(cmd, func(ctx context.Context, deps *app.Deps) error {
				p, err := deps.Tracker.Create(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %q (%s) at position %d\n", p.Name, shortID(p.ID), *p.QueuePosition())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&difficulty, "difficulty", "d", "Medium", "Easy, Medium or Hard")
	cmd.Flags().StringVar(&link, "link", "", "problem URL")
	cmd.Flags().StringVar(&topic, "topic", "", "topic, e.g. Arrays")
	cmd.Flags().StringVar(&source, "source", "", "where the problem comes from")
	return cmd
}

func newImportCmd(opts *options) *cobra.Command {
	var file, source string

	cmd := &cobra.Command{
		Use:   "import [list]",
		Short: "Queue a curated list or a file of name,difficulty,topic,url lines",
		Long: `Import queues many problems at once; either all of them are added or none.

With a list name, one of the built-in lists is imported:
  ` + strings.Join(catalog.Names(), ", ") + `

With --file, each line of the file (or stdin for "-") is read as
name,difficulty,topic,url. Only the name is required.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 && file == "" {
				fmt.Fprintln(out, "Available lists:")
				for _, name := range catalog.Names() {
					fmt.Fprintf(out, "  %s\n", name)
				}
				return nil
			}
			if len(args) == 1 && file != "" {
				return domain.NewValidationError("list", "give a list name or --file, not both")
			}

			var text string
			if file != "" {
				raw, err := readInput(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
				text = raw
			}

			return opts.run(cmd, func(ctx context.Context, deps *app.Deps) error {
				var (
					created []domain.Problem
					err     error
				)
				if file != "" {
					created, err = deps.Tracker.ImportText(ctx, text, source)
				} else {
					created, err = deps.Tracker.ImportList(ctx, args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Imported %d problems\n", len(created))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", `file to import ("-" for stdin)`)
	cmd.Flags().StringVar(&source, "source", "", "source recorded on every imported problem")
	return cmd
}

func newRateCmd(opts *options) *cobra.Command {
	var notes string
	var minutes int

	cmd := &cobra.Command{
		Use:   "rate <id> <1-5>",
		Short: "Record an attempt and schedule the next review",
		Long: `Rate records how an attempt went, from 1 (could not solve it) to 5
(solved it cleanly). The problem is due again that many days from today.
Two fives in a row master it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.Atoi(args[1])
			if err != nil {
				return domain.NewValidationError("rating", "must be a number between 1 and 5")
			}

			return opts.run(cmd, func(ctx context.Context, deps *app.Deps) error {
				id, err := resolveID(ctx, deps, args[0])
				if err != nil {
					return err
				}
				params := domain.RateParams{ProblemID: id, Rating: rating, Notes: optional(notes)}
				if cmd.Flags().Changed("minutes") {
					params.TimeSpentMinutes = &minutes
				}

				p, err := deps.Tracker.Rate(ctx, params)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				switch lc := p.Lifecycle.(type) {
				case domain.Mastered:
					fmt.Fprintf(out, "%q mastered after %d attempts\n", p.Name, p.AttemptCount)
				case domain.Active:
					fmt.Fprintf(out, "%q next review %s (%s)\n", p.Name,
						lc.NextReview, relative(lc.NextReview, deps.Clock.Today()))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&notes, "notes", "n", "", "notes on the attempt")
	cmd.Flags().IntVarP(&minutes, "minutes", "m", 0, "minutes spent")
	return cmd
}

func newDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a problem and its attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, deps *app.Deps) error {
				id, err := resolveID(ctx, deps, args[0])
				if err != nil {
					return err
				}
				if err := deps.Tracker.Delete(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", shortID(id))
				return nil
			})
		},
	}
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(raw), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(raw), nil
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}
