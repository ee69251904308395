package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jlrp/internal/app"
	"jlrp/internal/config"
	"jlrp/internal/notify"
	"jlrp/internal/repositories"
	"jlrp/pkg/logger"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "jlrp",
		Short:         "JLRP storefront backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedAdminCmd())
	rootCmd.AddCommand(makeTokenCmd())
	rootCmd.AddCommand(routesCmd())
	rootCmd.AddCommand(sendTestEmailCmd())
	return rootCmd
}

// bootstrap loads the configuration and builds the application.
func bootstrap(ctx context.Context, opts app.Options) (*app.App, logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, logger.Nop(), fmt.Errorf("invalid configuration: %w", err)
	}
	log := logger.New(cfg.AppEnv, cfg.LogLevel)
	a, err := app.New(ctx, cfg, log, opts)
	if err != nil {
		return nil, log, err
	}
	return a, log, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, log, err := bootstrap(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}

			// Graceful shutdown handling
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				errCh <- a.Listen()
			}()

			select {
			case err := <-errCh:
				_ = a.Shutdown(context.Background())
				return fmt.Errorf("server failed: %w", err)
			case <-quit:
			}

			log.Info().Msg("shutting down server")
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := a.Shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("error during shutdown")
				return err
			}
			log.Info().Msg("server gracefully stopped")
			return nil
		},
	}
}

func seedAdminCmd() *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an owner account, or promote and reset an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := bootstrap(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())

			user, err := a.Auth.SeedAdmin(cmd.Context(), email, password, name)
			if err != nil {
				return fmt.Errorf("failed to seed admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin ready: %s (%s) roles=%v\n", user.Email, user.ID, user.Roles)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	cmd.Flags().StringVar(&name, "name", "Admin", "display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func makeTokenCmd() *cobra.Command {
	var email string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "make-token",
		Short: "Print an access token for an existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := bootstrap(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())

			token, err := a.Auth.IssueTokenForEmail(cmd.Context(), email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to the access token lifetime)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the HTTP routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			repos := repositories.NewMemorySet()
			a, _, err := bootstrap(cmd.Context(), app.Options{Repos: &repos, Dispatcher: discard{}})
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())

			for _, r := range a.Routes() {
				fmt.Fprintln(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
}

func sendTestEmailCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "send-test-email",
		Short: "Render and send a sample email through the configured transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			repos := repositories.NewMemorySet()
			a, _, err := bootstrap(cmd.Context(), app.Options{Repos: &repos, Dispatcher: discard{}})
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())

			err = a.Sender.Deliver(cmd.Context(), notify.Job{
				Template: notify.TemplatePasswordReset,
				To:       to,
				Data: map[string]any{
					"name":       "Test",
					"reset_link": "https://example.com/reset-password?token=test",
					"expires_in": 60,
				},
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "test email sent to %s\n", to)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient address")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// discard drops notifications for commands that never trigger any.
type discard struct{}

func (discard) Dispatch(notify.Job) {}
