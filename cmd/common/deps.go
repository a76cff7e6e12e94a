// Package common provides shared dependency wiring for command
// implementations.
package common

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/config"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/logger"
)

// CommandDeps holds common dependencies for all commands.
// Use this instead of context.Value for type-safe dependency injection.
type CommandDeps struct {
	Logger logger.Interface
	Config *config.Config

	// RunID correlates every log line of one command invocation.
	RunID string
}

// Validate ensures all required dependencies are present.
func (d CommandDeps) Validate() error {
	if d.Logger == nil {
		return ErrLoggerRequired
	}
	if d.Config == nil {
		return ErrConfigRequired
	}
	return nil
}

// NewCommandDeps loads configuration and creates the logger. The debug
// flag forces debug-level development logging regardless of config.
func NewCommandDeps(cfgFile string, debug bool) (CommandDeps, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return CommandDeps{}, fmt.Errorf("load config: %w", err)
	}

	if debug {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}

	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Encoding:    cfg.Log.Encoding,
		Development: cfg.Log.Development,
	})

	runID := uuid.NewString()

	deps := CommandDeps{
		Logger: log.With("run_id", runID),
		Config: cfg,
		RunID:  runID,
	}

	if validateErr := deps.Validate(); validateErr != nil {
		return CommandDeps{}, fmt.Errorf("validate deps: %w", validateErr)
	}

	return deps, nil
}

// DepsFromCommand resolves the root command's persistent flags and
// builds CommandDeps from them.
func DepsFromCommand(cmd *cobra.Command) (CommandDeps, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	return NewCommandDeps(cfgFile, debug)
}

// QueriesPath resolves the persistent --queries flag.
func QueriesPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("queries")
	return path
}
