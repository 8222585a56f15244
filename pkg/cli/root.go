package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/smith3v/mathquiz/pkg/config"
	"github.com/smith3v/mathquiz/pkg/db"
	"github.com/smith3v/mathquiz/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

type app struct {
	configPath string
	cfg        config.Config
	db         *gorm.DB
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "mathquiz",
		Short:         "Math quiz accounts, questions and statistics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a JSON or YAML config file")

	cmd.AddCommand(
		newMigrateCmd(a),
		newSeedCmd(a),
		newServeCmd(a),
		newAccountCmd(a),
		newQuestionCmd(a),
		newStatsCmd(a),
		newSessionsCmd(a),
	)
	return cmd
}

// loadConfig layers the config file (if any), a local .env file and
// MATHQUIZ_* variables over the defaults.
func (a *app) loadConfig() error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return fmt.Errorf("load config %s: %w", a.configPath, err)
		}
		cfg = loaded
	}
	if err := config.LoadEnvFile(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	config.ApplyEnv(&cfg)
	if err := logger.Configure(logger.Options{Level: cfg.Logging.Level, File: cfg.Logging.File}); err != nil {
		logger.Warn("logger configured with fallbacks", "error", err)
	}
	a.cfg = cfg
	return nil
}

// withDB opens the configured database for the duration of fn.
func (a *app) withDB(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.loadConfig(); err != nil {
			return err
		}
		gdb, err := db.Open(a.cfg.Database, a.cfg.Logging)
		if err != nil {
			return err
		}
		a.db = gdb
		defer func() {
			if err := db.Close(gdb); err != nil {
				logger.Error("failed to close database", "error", err)
			}
			a.db = nil
		}()
		return fn(cmd, args)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
