package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SweepDocument holds a sweep definition: the search space that is registered
// with the tracking backend verbatim, and the nested sweep-setup section that
// only this orchestrator consumes.
type SweepDocument struct {
	Setup  SweepSetup
	Search map[string]any
}

type SweepSetup struct {
	Agents       int `yaml:"agents"`
	RunsPerSweep int `yaml:"runs-per-sweep"`
}

func LoadSweep(path string) (*SweepDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sweep config %s: %w", path, err)
	}
	var search map[string]any
	if err := yaml.Unmarshal(data, &search); err != nil {
		return nil, fmt.Errorf("parsing sweep config %s: %w", path, err)
	}
	if len(search) == 0 {
		return nil, fmt.Errorf("sweep config %s is empty", path)
	}

	setup := SweepSetup{Agents: 1, RunsPerSweep: 1}
	if raw, ok := search["sweep-setup"]; ok {
		node, err := yaml.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("re-encoding sweep-setup: %w", err)
		}
		if err := yaml.Unmarshal(node, &setup); err != nil {
			return nil, fmt.Errorf("parsing sweep-setup: %w", err)
		}
		delete(search, "sweep-setup")
	}
	if setup.Agents < 1 {
		setup.Agents = 1
	}
	if setup.RunsPerSweep < 1 {
		setup.RunsPerSweep = 1
	}
	return &SweepDocument{Setup: setup, Search: search}, nil
}
