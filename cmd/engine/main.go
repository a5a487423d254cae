package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"scanflow/internal/engine"
	"scanflow/internal/logging"
	"scanflow/source"
	"scanflow/source/kafka"

	_ "scanflow/sink/kafka"
	_ "scanflow/sink/stdout"
	_ "scanflow/source/replay"
)

func main() {
	logging.InitFromEnv()

	cfg := engine.Config{
		MetricsPort: 9100,
		PipelineYml: "pipeline.yml",
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	source.Register("sarama", func() source.Driver { return &kafka.SaramaDriver{} })

	e, err := engine.Bootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	if err := e.Run(ctx); err != nil {
		log.Fatalf("engine: %v", err)
	}
}
