// Command bsnode is the control-plane process: it parses configuration,
// wires the store, the node collaborator and the shutdown coordinator, and
// dispatches to whichever run mode the parsed flags select.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"bsnode/internal/executor"
	"bsnode/internal/node"
	"bsnode/internal/shutdown"
	"bsnode/internal/store"
	"bsnode/pkg/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	var configFile string

	root := &cobra.Command{
		Use:   "bsnode [config-file]",
		Short: "bitcoin control-plane node",
	}

	flags := root.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "configuration file path")
	flags.BoolP("help", "h", false, "print usage and exit")
	flags.BoolP("hardware", "d", false, "print hardware/concurrency settings")
	flags.BoolP("settings", "s", false, "print resolved configuration")
	flags.BoolP("version", "v", false, "print version")
	flags.BoolP("newstore", "n", false, "create a fresh store")
	flags.BoolP("backup", "b", false, "snapshot the store")
	flags.BoolP("restore", "r", false, "restore the store from its last snapshot")
	flags.BoolP("flags", "f", false, "walk candidate headers reporting rule-flag transitions")
	flags.BoolP("slabs", "a", false, "scan table slab utilization")
	flags.BoolP("buckets", "k", false, "scan hashmap bucket fill ratios")
	flags.BoolP("collisions", "l", false, "replay the bloom-filter collision diagnostic")
	flags.BoolP("information", "i", false, "print node and network information")
	flags.StringP("test", "t", "", "run the built-in read test against hash")
	flags.StringP("write", "w", "", "run the built-in write test against hash")

	exitCode := 0
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			configFile = args[0]
		}
		exitCode = dispatch(configFile, flags)
		return nil
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return -1
	}
	return exitCode
}

// dispatch loads configuration, constructs the executor's collaborators and
// runs Dispatch, wiring together a shutdown
// coordinator, a store bound to the resolved database directory, and a node
// factory that defers construction to the executor so run-mode is the only
// caller that ever starts the node.
func dispatch(configFile string, flagSet *pflag.FlagSet) int {
	cfg, err := config.Load(configFile, flagSet)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return -1
	}

	st := store.New(store.Config{
		Dir:          cfg.Database.Dir,
		BucketCounts: bucketCounts(cfg),
		CacheEntries: cfg.Database.CacheEntries,
	})

	stop := shutdown.New()
	stop.Initialize()
	defer stop.Uninitialize()

	newNode := func(q node.QueryHandle, log node.Logger) node.Node {
		return node.NewStub(q, log)
	}

	streams := executor.Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
	ex := executor.New(cfg, streams, stop, st, newNode)
	return ex.Dispatch()
}

func bucketCounts(cfg *config.Config) map[store.Name]int {
	counts := make(map[store.Name]int, len(cfg.Database.BucketCounts))
	for name, n := range cfg.Database.BucketCounts {
		counts[store.Name(name)] = n
	}
	return counts
}
