package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/combat-sim/combat-sim/sim/catalog"
	"github.com/combat-sim/combat-sim/sim/engine"
	"github.com/combat-sim/combat-sim/sim/remote"
)

var (
	// CLI flags for the engine command
	engineCatalog string // Catalog YAML the engine resolves monsters against
	listenAddr    string // Address to serve /ws, /simulate and /cancel on
)

// engineCmd serves the in-process engine to remote run commands
var engineCmd = &cobra.Command{
	Use:   "engine",
	Short: "Serve the combat engine over websocket and HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		closer, err := setupLogging(logLevel, LogFileConfig{Path: logFile, MaxSizeMB: logMaxSize, MaxBackups: 3, MaxAgeDays: 7})
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		defer closer.Close()

		if engineCatalog == "" {
			logrus.Fatalf("Catalog not provided. Exiting engine.")
		}
		cat, err := catalog.Load(engineCatalog)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		srv := remote.NewServer(engine.New(cat))
		if err := srv.ListenAndServe(ctx, listenAddr); err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Info("Engine stopped.")
	},
}

func init() {
	engineCmd.Flags().StringVar(&engineCatalog, "catalog", "", "Catalog YAML (must match the one used by run)")
	engineCmd.Flags().StringVar(&listenAddr, "listen", ":8090", "Listen address")
}
