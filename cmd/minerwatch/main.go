// minerwatch monitors a fleet of small miners on a public mining pool and
// reports state changes to a Telegram chat. It is meant to run from cron:
// each invocation performs one full cycle and exits.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/minerwatch/minerwatch/pkg/database"
	"github.com/minerwatch/minerwatch/pkg/monitor"
	"github.com/minerwatch/minerwatch/pkg/pool"
	"github.com/minerwatch/minerwatch/pkg/telegram"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:          "minerwatch",
	Short:        "Miner fleet monitor for public-pool with Telegram reporting",
	RunE:         runCmdF,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Perform one monitoring cycle",
	RunE:  runCmdF,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Environment file to load before reading config")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmdF(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := LoadConfig(envFile)
	if err != nil {
		log.WithError(err).Error("invalid configuration")
		return err
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.WithError(err).Error("could not open database")
		return err
	}
	defer db.Close()

	poolClient := pool.NewClient(cfg.APIBaseURL, cfg.BTCAddress)
	tg := telegram.NewClient(cfg.BotToken, cfg.ChatID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := monitor.NewRunner(cfg.Monitor(), db, poolClient, tg, log)
	if err := runner.Run(ctx, time.Now().UTC()); err != nil {
		if errors.Is(err, database.ErrBusy) {
			// Another invocation holds the database; it will do the work.
			log.Warn("another run is in progress, skipping this cycle")
			return nil
		}
		log.WithError(err).Error("monitoring run failed")
		return err
	}
	return nil
}
