package config

import (
	"flag"
	"fmt"
)

// Load loads configuration with precedence:
// defaults → YAML file → environment variables → command line flags.
// It performs validation and runtime transformations before returning the configuration.
func Load() (*Config, error) {
	// Parse command line flags if not already parsed
	if !flag.Parsed() {
		flag.Parse()
	}

	// Step 1: Start with defaults
	cfg := defaultConfig()

	// Step 2: Overlay the config file, if any
	if path := configFilePath(); path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, err
		}
	}

	// Step 3: Apply environment variables
	loadRedisFromEnv(&cfg.Redis)
	loadMQTTFromEnv(&cfg.MQTT)
	loadResequencerFromEnv(&cfg.Resequencer)
	loadPublishFromEnv(&cfg.Publish)
	loadPipelineFromEnv(&cfg.Pipeline)
	loadMetricsFromEnv(&cfg.Metrics)
	loadProducerFromEnv(&cfg.Producer)
	loadLogFromEnv(&cfg.Log)

	// Step 4: Apply command line flags (highest precedence)
	applyRedisFlags(&cfg.Redis)
	applyMQTTFlags(&cfg.MQTT)
	applyResequencerFlags(&cfg.Resequencer)
	applyPublishFlags(&cfg.Publish)
	applyPipelineFlags(&cfg.Pipeline)
	applyMetricsFlags(&cfg.Metrics)
	applyProducerFlags(&cfg.Producer)
	applyLogFlags(&cfg.Log)

	// Step 5: Apply runtime validations and transformations
	if err := applyRuntimeValidation(cfg); err != nil {
		return nil, err
	}

	// Step 6: Validate the final configuration
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
