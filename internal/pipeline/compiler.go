package pipeline

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"scanflow/internal/config"
	"scanflow/sink"
	kafkasink "scanflow/sink/kafka"
	"scanflow/sink/stdout"
	"scanflow/source"
)

// Compile builds a Runner from a pipeline YAML.
func Compile(path string) (*Runner, error) {
	cfg, confPath, err := config.LoadPipelineSpec(path)
	if err != nil {
		return nil, err
	}
	r := NewRunner(cfg.Channel.Capacity)

	/*──────── source ───────*/
	src, err := source.NewDriver(cfg.Source.Driver)
	if err != nil {
		return nil, err
	}
	switch cfg.Source.Kind {
	case "kafka":
		kc, err := config.LoadKafkaConfig(confPath)
		if err != nil {
			return nil, err
		}
		if err := src.Configure(kc); err != nil {
			return nil, err
		}
	case "replay":
		rc, err := config.LoadReplayConfig(confPath)
		if err != nil {
			return nil, err
		}
		if err := src.Configure(rc); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported source %q", cfg.Source.Kind)
	}
	r.SetSource(src)

	/*──────── sinks ───────*/
	for _, name := range cfg.Sinks {
		sDrv, err := sink.NewAdapter(name)
		if err != nil {
			return nil, err
		}

		switch name {
		case "stdout":
			err = sDrv.Configure(stdout.Config{
				DelayMS:      cfg.Debug.PerRecordDelayMS,
				PrintCounter: cfg.Debug.PrintCounter,
				PrintValue:   cfg.Debug.PrintValue,
				ValueMax:     cfg.Debug.ValueMaxBytes,
			})
		case "kafka":
			var kc kafkasink.Config
			if err = decodeSinkConfig(cfg.SinkConfigs.Kafka, &kc); err == nil {
				err = sDrv.Configure(kc)
			}
		default:
			err = fmt.Errorf("no config block for sink %q", name)
		}
		if err != nil {
			return nil, err
		}
		r.AddSink(sDrv)
	}
	return r, nil
}

// decodeSinkConfig re-marshals the free-form YAML block of a sink into its
// typed config struct.
func decodeSinkConfig(raw any, out any) error {
	if raw == nil {
		return nil
	}
	buf, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(buf, out)
}
