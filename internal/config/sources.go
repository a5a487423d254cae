package config

import (
	kcfg "scanflow/source/kafka"
	rcfg "scanflow/source/replay"
)

// LoadKafkaConfig delegates to the Kafka source loader while centralizing
// loader entrypoints under internal/config.
func LoadKafkaConfig(path string) (kcfg.Config, error) {
	return kcfg.LoadConfig(path)
}

// LoadReplayConfig delegates to the replay source loader.
func LoadReplayConfig(path string) (rcfg.Config, error) {
	return rcfg.LoadConfig(path)
}
