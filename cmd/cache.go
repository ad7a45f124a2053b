package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/HashemBader/lccn-harvester/internal/harvestdb"
)

// CacheCmd represents the cache command and its subcommands.
type CacheCmd struct {
	Stats CacheStatsCmd `cmd:"" help:"Show cache and retry-ledger sizes"`
	Dump  CacheDumpCmd  `cmd:"" help:"Export cached results as TSV"`
}

// CacheStatsCmd prints row counts.
type CacheStatsCmd struct{}

func (c *CacheStatsCmd) Run() error {
	db, err := harvestdb.Open(viper.GetString("db.file"))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	nMain, err := db.CountMain()
	if err != nil {
		return err
	}
	nAttempted, err := db.CountAttempted()
	if err != nil {
		return err
	}

	fmt.Println(renderCacheStats(nMain, nAttempted))
	return nil
}

// CacheDumpCmd writes the main table as TSV.
type CacheDumpCmd struct {
	Output string `short:"o" help:"Output file (defaults to stdout)"`
}

func (c *CacheDumpCmd) Run() error {
	db, err := harvestdb.Open(viper.GetString("db.file"))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	out := os.Stdout
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	return db.DumpMain(out)
}
