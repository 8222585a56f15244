package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smith3v/mathquiz/pkg/account"
	"github.com/smith3v/mathquiz/pkg/api"
	"github.com/smith3v/mathquiz/pkg/questions"
	"github.com/smith3v/mathquiz/pkg/sessions"
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the schema and seed focus areas",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		}),
	}
}

type seedAccount struct {
	name, email, password, focusArea string
}

type seedQuestion struct {
	focusArea, question, answer, reference string
}

var (
	sampleAccounts = []seedAccount{
		{"alice", "alice@example.com", "ChangeMe123", "Calculus"},
		{"bob", "bob@example.com", "StrongPass456", "Electrical"},
	}
	sampleQuestions = []seedQuestion{
		{"Calculus", "Differentiate f(x)=x^2", "f'(x)=2x", "Stewart Calculus, Ch2"},
		{"Electrical", "Ohm's Law?", "V=IR", "Any EE101 text"},
	}
)

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Add sample accounts and questions to an empty database",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(cmd *cobra.Command, args []string) error {
			accounts := account.NewRepository(a.db)
			qs := questions.NewRepository(a.db)

			users, err := accounts.Count()
			if err != nil {
				return err
			}
			if users == 0 {
				for _, s := range sampleAccounts {
					if _, err := accounts.Create(account.NewAccount{
						Name: s.name, Email: s.email, Password: s.password, FocusArea: s.focusArea,
					}); err != nil {
						return err
					}
				}
			}

			count, err := qs.Count()
			if err != nil {
				return err
			}
			if count == 0 {
				for _, s := range sampleQuestions {
					ref := s.reference
					if _, err := qs.Add(s.focusArea, s.question, s.answer, &ref); err != nil {
						return err
					}
				}
			}

			if users, err = accounts.Count(); err != nil {
				return err
			}
			if count, err = qs.Count(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "users: %d, questions: %d\n", users, count)
			return nil
		}),
	}
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}
			server, err := api.NewServer(a.db, cfg)
			if err != nil {
				return fmt.Errorf("auth.jwt_secret (or MATHQUIZ_JWT_SECRET) must be set: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx)
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

func newSessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Maintain login sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete expired sessions",
		Args:  cobra.NoArgs,
		RunE: a.withDB(func(cmd *cobra.Command, args []string) error {
			repo := sessions.NewRepository(a.db, a.cfg.TokenTTLDuration())
			deleted, err := repo.PruneExpired(time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired sessions\n", deleted)
			return nil
		}),
	})
	return cmd
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
