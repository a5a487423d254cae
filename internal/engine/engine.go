package engine

import (
	"context"

	"scanflow/internal/pipeline"
)

type Config struct {
	MetricsPort int
	PipelineYml string
}

type Engine struct {
	runner *pipeline.Runner
}

// Run blocks until the pipeline drains or ctx is canceled, then tears the
// pipeline down.
func (e *Engine) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-e.runner.Done():
	}
	return e.runner.Close()
}
