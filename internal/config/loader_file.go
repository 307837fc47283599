package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// configFilePath returns the config file requested by -config or CONFIG_FILE.
func configFilePath() string {
	if *flagConfigFile != "" {
		return *flagConfigFile
	}
	return getEnvString("CONFIG_FILE")
}

// loadFromFile overlays the YAML document at path onto cfg. Keys absent from
// the file keep their current value; unknown keys are rejected.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 - path is operator supplied
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}
