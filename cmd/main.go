package main

import (
	"fmt"
	"os"

	"signalauditor/cmd/backfill"
	"signalauditor/cmd/statsreport"
	"signalauditor/cmd/worker"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Signal Auditor CMD"
	app.Usage = "The signal auditor command line interface"

	app.Commands = []cli.Command{
		workerCMD,
		backfillCMD,
		statsCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	workerCMD = cli.Command{
		Name:        "worker",
		Usage:       "run the live evaluation worker",
		Action:      workerAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the live signal evaluation loop`,
	}
	backfillCMD = cli.Command{
		Name:        "backfill",
		Usage:       "run one backfill pass over the backlog",
		Action:      backfillAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Classify stale open records against historical candles. Set BACKFILL_DRY_RUN=true to tally outcomes without persisting`,
	}
	statsCMD = cli.Command{
		Name:        "stats",
		Usage:       "print the aggregate statistics snapshot",
		Action:      statsAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Print aggregate statistics as JSON`,
	}
)

func workerAction(_ *cli.Context) error {
	logrus.Info("Starting worker CMD")

	w := &worker.Worker{Log: logrus.WithField("cmd", "worker")}
	if err := w.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func backfillAction(_ *cli.Context) error {
	logrus.Info("Starting backfill CMD")

	b := &backfill.Backfill{Log: logrus.WithField("cmd", "backfill")}
	if err := b.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func statsAction(_ *cli.Context) error {
	logrus.Info("Starting stats CMD")

	s := &statsreport.StatsReport{Log: logrus.WithField("cmd", "stats")}
	if err := s.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}
