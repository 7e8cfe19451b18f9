package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"swedify/internal/app"
	"swedify/internal/config"
	"swedify/internal/convert"
	"swedify/internal/logger"
	"swedify/internal/recipe"
)

// recipeConverter runs a conversion.
type recipeConverter interface {
	Convert(ctx context.Context, credential string, in convert.Input, opts convert.Options) (*recipe.Recipe, error)
}

// keyStore is the stored provider key.
type keyStore interface {
	Lookup() (string, string)
	Set(key string) error
	Clear() error
	Path() string
}

// Services used by the commands. Tests set them before executing rootCmd.
var (
	converter   recipeConverter
	recipeStore recipe.Store
	keys        keyStore
	log         *logger.Logger
	cleanup     func()
)

// Global flags.
var (
	flagConfig  string
	flagVerbose bool
	flagQuiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "swedify",
	Short: "Swedify converts foreign recipes for Swedish kitchens",
	Long: `Swedify turns a recipe page, pasted recipe text or a photo of a recipe into
a Swedish recipe: Swedish ingredients, metric units, Celsius and Swedish
cooking language. Converted recipes can be saved, searched and exported.

Usage:
  swedify convert --url https://example.com/recipe
  swedify recipes list
  swedify key set sk-...`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupServices,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "config.json", "Path to the JSON configuration file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log requests and diagnostics")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Log nothing")
}

// setupServices loads the configuration and opens whatever services the
// tests have not already provided.
func setupServices(cmd *cobra.Command, args []string) error {
	if flagVerbose && flagQuiet {
		return errors.New("--verbose and --quiet are mutually exclusive")
	}
	if converter != nil && recipeStore != nil && keys != nil {
		if log == nil {
			log = newLogger(cmd, logger.LevelNormal)
		}
		return nil
	}

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	log = newLogger(cmd, logger.ParseLevel(cfg.LogLevel))

	if keys == nil {
		creds, err := app.NewCredentials(cfg)
		if err != nil {
			return err
		}
		keys = creds
	}
	if recipeStore == nil {
		store, closer, err := app.OpenStore(cfg)
		if err != nil {
			return err
		}
		recipeStore = store
		cleanup = func() { closer.Close() }
	}
	if converter == nil {
		c, err := app.NewConverter(cfg, log)
		if err != nil {
			return err
		}
		converter = c
	}
	return nil
}

func newLogger(cmd *cobra.Command, level logger.Level) *logger.Logger {
	switch {
	case flagVerbose:
		level = logger.LevelVerbose
	case flagQuiet:
		level = logger.LevelOff
	}
	return logger.New(level, cmd.ErrOrStderr())
}
