package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"
)

// CLI represents the complete command structure for the harvester.
type CLI struct {
	// Global flags
	DBFile   string `help:"Path to the SQLite cache database" default:"./harvest.db"`
	AuditLog string `help:"Path to the rejected-ISBN audit log" default:"./isbn_audit.log"`

	Harvest HarvestCmd `cmd:"" help:"Resolve ISBNs to call numbers through the configured sources"`
	Targets TargetsCmd `cmd:"" help:"Inspect the configured lookup targets"`
	Cache   CacheCmd   `cmd:"" help:"Inspect or export the result cache"`
}

// Execute runs the Kong-based CLI.
func Execute() {
	initLogging()
	initConfig()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("lccn-harvester"),
		kong.Description("Resolves ISBNs to LC/NLM call numbers from library catalogs and APIs."),
		kong.UsageOnError(),
	)

	updateGlobalConfig(&cli)

	if err := ctx.Run(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetDefault("db.file", "./harvest.db")
	viper.SetDefault("isbn.auditlog", "./isbn_audit.log")

	// Harvest defaults
	viper.SetDefault("harvest.retry_days", 7)
	viper.SetDefault("harvest.max_workers", 1)
	viper.SetDefault("harvest.mode", "both")

	// Target defaults
	viper.SetDefault("targets.file", "")

	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Debug("No config file found, using defaults")
		} else {
			slog.Error("Fatal error reading config file", "error", err)
			os.Exit(1)
		}
	}
}

func updateGlobalConfig(cli *CLI) {
	viper.Set("db.file", cli.DBFile)
	viper.Set("isbn.auditlog", cli.AuditLog)
}

func initLogging() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("HARVESTER_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}
