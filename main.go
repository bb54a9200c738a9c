package main

import (
	"fmt"
	"os"

	"github.com/SWAYAM31220/lootspy/internal/config"
	"github.com/SWAYAM31220/lootspy/internal/log"

	"github.com/spf13/cobra"
)

func newLogger(debug bool) *log.Logger {
	if debug {
		return log.NewDevelopment()
	}
	return log.NewLogger()
}

// debugLogging is on when either the --debug flag or DEBUG in the environment asks for it.
func debugLogging(flag bool, cfg *config.Config) bool {
	return flag || (cfg != nil && cfg.Debug)
}

func newRootCommand() *cobra.Command {
	var debug bool
	root := &cobra.Command{
		Use:           "lootspy",
		Short:         "Forward deals from source channels to one destination, once per day",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "human-readable debug logging")

	root.AddCommand(serveCommand(&debug))
	root.AddCommand(migrateCommand(&debug))
	root.AddCommand(keyCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
