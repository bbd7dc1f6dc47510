// Package config loads the run file describing a batch of unit specs, and
// sets up logging for the CLI.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tkral/annomine/model"
)

// Meta holds run-wide defaults shared by every unit in a run file.
type Meta struct {
	// Suffix selects the artifact format: ".tsv", ".tsv.zst", or ".tsv.lz4".
	Suffix string `yaml:"suffix"`
	// SaveEvery is the checkpoint cadence in compounds.
	SaveEvery int `yaml:"save_every"`
	// Rate caps provider calls per second (0 = unlimited).
	Rate float64 `yaml:"rate"`
	// Burst is the provider rate-limiter burst (defaults to 1 when Rate > 0).
	Burst int `yaml:"burst"`
}

// RunFile is the parsed run configuration.
type RunFile struct {
	Meta   Meta             `yaml:"meta"`
	Search []model.UnitSpec `yaml:"search"`
}

// Load reads and validates a run file. Unknown fields are rejected so a
// typo'd key fails here instead of being silently ignored for an entire run.
func Load(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rf RunFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if len(rf.Search) == 0 {
		return nil, fmt.Errorf("config: %s: no [search] entries", path)
	}
	for i := range rf.Search {
		spec := &rf.Search[i]
		if spec.Key == "" {
			spec.Key = spec.Kind
		}
		if spec.Source == "" {
			spec.Source = spec.Kind
		}
	}
	if rf.Meta.Suffix == "" {
		rf.Meta.Suffix = ".tsv"
	}
	if rf.Meta.Rate > 0 && rf.Meta.Burst < 1 {
		rf.Meta.Burst = 1
	}
	return &rf, nil
}
