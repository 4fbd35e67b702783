// Package cli implements the repeet command line. Every command runs one
// tracker operation against the local store, or against the remote store
// when a session token is supplied.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mpblatz/repeet/internal/app"
	"github.com/mpblatz/repeet/internal/config"
	"github.com/mpblatz/repeet/internal/domain"
	"github.com/mpblatz/repeet/pkg/ctxutil"
)

// TokenEnv names the environment variable read as the default --token.
const TokenEnv = "REPEET_TOKEN"

type options struct {
	configPath string
	token      string
}

// NewRootCommand builds the repeet command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "repeet",
		Short: "Spaced-repetition tracker for practice problems",
		Long: `Repeet schedules practice problems for review. Rate an attempt 1-5 and
the problem comes back that many days later; two fives in a row master it.

Without a token everything is kept in the local store. With --token (or
REPEET_TOKEN) calls go to the shared PostgreSQL store instead.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $CONFIG_PATH or ./config.yaml)")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv(TokenEnv), "session token routing calls to the remote store")

	root.AddCommand(
		newAddCmd(opts),
		newImportCmd(opts),
		newQueueCmd(opts),
		newReviewCmd(opts),
		newMasteredCmd(opts),
		newRateCmd(opts),
		newDeleteCmd(opts),
		newStatsCmd(opts),
		newAuditCmd(opts),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context) int {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "error:", err)
		return 1
	}
	return 0
}

// run opens the stores, attaches the session if a token was given and calls fn.
func (o *options) run(cmd *cobra.Command, fn func(ctx context.Context, deps *app.Deps) error) error {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger := app.NewLoggerTo(cmd.ErrOrStderr(), config.LogConfig{Level: "warn", Format: "text"})
	deps, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	if token := strings.TrimSpace(o.token); token != "" {
		if deps.JWT == nil {
			return fmt.Errorf("%w: auth.jwt_secret is not configured", domain.ErrUnauthenticated)
		}
		userID, err := deps.JWT.ValidateToken(ctx, token)
		if err != nil {
			return err
		}
		ctx = ctxutil.WithSession(ctx, userID)
	}

	return fn(ctx, deps)
}

// resolveID accepts a full problem id or a unique prefix of one as printed
// by the listing commands.
func resolveID(ctx context.Context, deps *app.Deps, arg string) (uuid.UUID, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	if id, err := uuid.Parse(arg); err == nil {
		return id, nil
	}
	if arg == "" {
		return uuid.Nil, domain.NewValidationError("id", "required")
	}

	all, err := deps.Tracker.ListAll(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	var matches []uuid.UUID
	for _, p := range all {
		if strings.HasPrefix(p.ID.String(), arg) {
			matches = append(matches, p.ID)
		}
	}
	switch len(matches) {
	case 0:
		return uuid.Nil, fmt.Errorf("problem %s: %w", arg, domain.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return uuid.Nil, domain.NewValidationError("id", fmt.Sprintf("%q matches %d problems", arg, len(matches)))
	}
}
