package cmd

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/HashemBader/lccn-harvester/internal/target"
)

// TargetsCmd represents the targets command and its subcommands.
type TargetsCmd struct {
	List TargetsListCmd `cmd:"" help:"List configured targets in cascade order"`
}

// TargetsListCmd prints the target cascade.
type TargetsListCmd struct {
	TargetsFile string `help:"Target configuration file (JSON or YAML)"`
}

func (c *TargetsListCmd) Run() error {
	cfgs := target.DefaultConfigs()

	targetsFile := c.TargetsFile
	if targetsFile == "" {
		targetsFile = viper.GetString("targets.file")
	}
	if targetsFile != "" {
		var err error
		if cfgs, err = target.LoadConfigs(targetsFile); err != nil {
			return err
		}
	}

	fmt.Println(renderTargets(cfgs))
	return nil
}
