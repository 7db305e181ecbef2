package statsreport

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"signalauditor/src/database"
	"signalauditor/src/repository"

	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"
)

type Config struct {
	Days int `envconfig:"STATS_DAYS" default:"30"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}

// StatsReport prints the aggregate statistics snapshot as JSON.
type StatsReport struct {
	Log *logger.Entry
}

func (s *StatsReport) Start() error {
	config := GetConfig()

	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to main database")
		return err
	}

	repo := repository.NewSignalRepository()
	stats, err := repo.AggregateStats(context.Background(), config.Days)
	if err != nil {
		s.Log.WithError(err).Error("Failed to compute stats")
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
