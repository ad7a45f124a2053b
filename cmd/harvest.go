package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/viper"

	"github.com/HashemBader/lccn-harvester/internal/harvest"
	"github.com/HashemBader/lccn-harvester/internal/harvestdb"
	"github.com/HashemBader/lccn-harvester/internal/isbn"
	"github.com/HashemBader/lccn-harvester/internal/target"
)

// HarvestCmd represents the harvest command.
type HarvestCmd struct {
	Input       string   `short:"f" help:"Input file with one ISBN per row (TSV/CSV/TXT, first column)"`
	TargetsFile string   `help:"Target configuration file (JSON or YAML); defaults to the built-in public sources"`
	RetryDays   int      `help:"Days to skip ISBNs that recently failed" default:"7"`
	MaxWorkers  int      `help:"Number of ISBNs processed in parallel" default:"1"`
	Mode        string   `help:"Accepted call number kinds: both, lccn or nlmcn" default:"both"`
	DryRun      bool     `help:"Look up without writing the cache"`
	BypassCache []string `help:"ISBNs to look up fresh even when already cached"`
	BypassRetry []string `help:"ISBNs to process even inside the retry window"`
	Quiet       bool     `short:"q" help:"Suppress per-ISBN progress, print only the summary"`
}

func (h *HarvestCmd) Run() error {
	input := h.Input
	if input == "" {
		input = viper.GetString("harvest.input")
	}
	if input == "" {
		return fmt.Errorf("input file is required (provide via --input flag or harvest.input in config)")
	}

	mode, ok := target.ParseMode(h.Mode)
	if !ok {
		return fmt.Errorf("invalid mode %q: must be both, lccn or nlmcn", h.Mode)
	}

	rows, err := isbn.ReadInputFile(input)
	if err != nil {
		return err
	}

	normalizer := isbn.NewNormalizer(viper.GetString("isbn.auditlog"))
	parsed := normalizer.ParseRows(rows)
	slog.Info("Input parsed",
		"unique", len(parsed.Unique),
		"duplicates", parsed.Duplicates,
		"invalid", len(parsed.Invalid))
	for _, bad := range parsed.Invalid {
		slog.Warn("Rejected ISBN", "value", bad)
	}
	if len(parsed.Unique) == 0 {
		return fmt.Errorf("no valid ISBNs in %s", input)
	}

	cfgs := target.DefaultConfigs()
	targetsFile := h.TargetsFile
	if targetsFile == "" {
		targetsFile = viper.GetString("targets.file")
	}
	if targetsFile != "" {
		if cfgs, err = target.LoadConfigs(targetsFile); err != nil {
			return err
		}
	}
	entries, err := target.Build(cfgs)
	if err != nil {
		return err
	}

	db, err := harvestdb.Open(viper.GetString("db.file"))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	harvester := harvest.New(db, entries, harvest.Options{
		RetryDays:   h.RetryDays,
		MaxWorkers:  h.MaxWorkers,
		Mode:        mode,
		DryRun:      h.DryRun,
		BypassCache: toSet(h.BypassCache),
		BypassRetry: toSet(h.BypassRetry),
		Progress:    progressLogger(h.Quiet),
	})

	summary, err := harvester.Run(ctx, parsed.Unique)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		slog.Warn("Harvest interrupted, partial results kept")
	}

	fmt.Println(renderSummary(summary))
	return nil
}

func toSet(isbns []string) map[string]bool {
	if len(isbns) == 0 {
		return nil
	}
	set := make(map[string]bool, len(isbns))
	for _, s := range isbns {
		set[s] = true
	}
	return set
}

// progressLogger renders harvest events as log lines. The callback is
// invoked from worker goroutines; slog is safe for that.
func progressLogger(quiet bool) harvest.ProgressFunc {
	return func(event string, payload map[string]any) {
		if quiet {
			return
		}
		switch event {
		case "isbn_start":
			slog.Debug("Processing", "isbn", payload["isbn"])
		case "cached":
			slog.Info("Cached", "isbn", payload["isbn"])
		case "skip_retry":
			slog.Info("Skipped (recent failure)", "isbn", payload["isbn"], "retry_days", payload["retry_days"])
		case "target_start":
			slog.Debug("Trying target", "isbn", payload["isbn"], "target", payload["target"])
		case "success":
			slog.Info("Resolved", "isbn", payload["isbn"], "target", payload["target"])
		case "failed":
			slog.Warn("Failed", "isbn", payload["isbn"], "last_error", payload["last_error"])
		}
	}
}
