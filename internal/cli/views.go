package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mpblatz/repeet/internal/app"
	"github.com/mpblatz/repeet/internal/service/schedule"
)

func newQueueCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "List problems not attempted yet, in queue order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, deps *app.Deps) error {
				problems, err := deps.Tracker.ListQueued(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(problems) == 0 {
					fmt.Fprintln(out, "Queue is empty. Add problems with `repeet add` or `repeet import`.")
					return nil
				}

				w := newTable(out, "#", "ID", "Problem", "Diff", "Topic")
				for _, p := range problems {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
						*p.QueuePosition(), shortID(p.ID), p.Name, p.Difficulty, deref(p.Topic))
				}
				return w.Flush()
			})
		},
	}
}

func newReviewCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "List problems under review, soonest due first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, deps *app.Deps) error {
				problems, err := deps.Tracker.ListActive(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(problems) == 0 {
					fmt.Fprintln(out, "Nothing under review.")
					return nil
				}

				today := deps.Clock.Today()
				w := newTable(out, "ID", "Problem", "Diff", "Next Review", "Last", "Attempts")
				for _, p := range problems {
					last := "-"
					if p.LastRating != nil {
						last = fmt.Sprintf("%d/5", *p.LastRating)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
						shortID(p.ID), p.Name, p.Difficulty,
						relative(*p.NextReviewDate(), today), last, p.AttemptCount)
				}
				return w.Flush()
			})
		},
	}
}

func newMasteredCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mastered",
		Short: "List mastered problems, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, deps *app.Deps) error {
				problems, err := deps.Tracker.ListMastered(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(problems) == 0 {
					fmt.Fprintln(out, "No mastered problems yet.")
					return nil
				}

				today := deps.Clock.Today()
				loc := location(deps.Clock)
				w := newTable(out, "ID", "Problem", "Diff", "Mastered", "Attempts")
				for _, p := range problems {
					at := civil.DateOf(p.MasteredAt().In(loc))
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
						shortID(p.ID), p.Name, p.Difficulty, relative(at, today), p.AttemptCount)
				}
				return w.Flush()
			})
		},
	}
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show counts per state and the mastery rate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, deps *app.Deps) error {
				st, err := deps.Tracker.GetStats(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "Total\t%d\n", st.Total)
				fmt.Fprintf(w, "Queued\t%d\n", st.Queued)
				fmt.Fprintf(w, "Under review\t%d\n", st.Active)
				fmt.Fprintf(w, "Mastered\t%d\n", st.Mastered)
				fmt.Fprintf(w, "Due today\t%d\n", st.DueToday)
				fmt.Fprintf(w, "Mastery rate\t%d%%\n", st.MasteryRate)
				return w.Flush()
			})
		},
	}
}

func newAuditCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Show today's retention check on a mastered problem, if any",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, deps *app.Deps) error {
				p, err := deps.Tracker.CheckDailyAudit(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if p == nil {
					fmt.Fprintln(out, "No audit today.")
					return nil
				}
				fmt.Fprintf(out, "Audit: re-solve %q (%s, %s)", p.Name, shortID(p.ID), p.Difficulty)
				if p.Link != nil {
					fmt.Fprintf(out, " %s", *p.Link)
				}
				fmt.Fprintln(out)
				return nil
			})
		},
	}
}

func newTable(out io.Writer, headers ...string) *tabwriter.Writer {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, h := range headers {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, h)
	}
	fmt.Fprintln(w)
	return w
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func relative(d, today civil.Date) string {
	return schedule.FormatRelative(d, today)
}

func location(c schedule.Clock) *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
