package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/covid-projections/covid-data-etl/internal/adapter/cmdc"
	kafkaadapter "github.com/covid-projections/covid-data-etl/internal/adapter/kafka"
)

var publishCmd = &cobra.Command{
	Use:   "publish <dataset>",
	Short: "Fetch a CMDC dataset and publish its raw records to KAFKA_SOURCE_TOPIC",
	Long: "publish mirrors a CMDC feed (covid_us or usafacts_covid) onto the Kafka\n" +
		"source topic so that later runs can use --source=kafka.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{datasetCovidUS, datasetUSAFacts},
	RunE:      runPublish,
}

func runPublish(_ *cobra.Command, args []string) error {
	dataset := args[0]
	if !slices.Contains([]string{datasetCovidUS, datasetUSAFacts}, dataset) {
		return fmt.Errorf("unknown dataset %q: must be %s or %s", dataset, datasetCovidUS, datasetUSAFacts)
	}
	a, err := newApp(false)
	if err != nil {
		return err
	}
	if !a.cfg.KafkaEnabled() {
		return errors.New("publish requires KAFKA_BROKERS")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	raw, err := cmdc.NewClient(a.cfg, a.metrics, a.logger).Fetch(ctx, dataset)
	if err != nil {
		return err
	}
	w := kafkaadapter.NewWriter(a.cfg, a.logger)
	defer func() {
		if err := w.Close(); err != nil {
			a.logger.Error("kafka writer close error", "error", err)
		}
	}()
	return w.Publish(ctx, dataset, raw)
}
