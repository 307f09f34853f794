package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the batch configuration document. Known sections are pulled out;
// every remaining top-level key is an experiment parameter forwarded to the
// run config of each tracked run.
type Config struct {
	RunSetup  RunSetup       `yaml:"run-setup"`
	Parsing   ParsingSetup   `yaml:"parsing-setup"`
	Execution ExecutionSetup `yaml:"execution-setup"`
	Tracking  TrackingSetup  `yaml:"tracking-setup"`
	Params    map[string]any `yaml:",inline"`
}

type RunSetup struct {
	GroupBy      string `yaml:"group-by"`
	NumRunsLimit int    `yaml:"num-runs-limit"`
	NumRunsStart int    `yaml:"num-runs-start"`
	Parallel     int    `yaml:"parallel"`
}

type ParsingSetup struct {
	Metrics   ParseMethod `yaml:"metrics"`
	Logfile   ParseMethod `yaml:"logfile"`
	Artifacts ParseMethod `yaml:"artifacts"`
}

type ParseMethod struct {
	Method string         `yaml:"method"`
	Args   map[string]any `yaml:"args"`
}

type ExecutionSetup struct {
	Script         string `yaml:"script"`
	Args           string `yaml:"args"`
	EnvFile        string `yaml:"env-file"`
	Runner         string `yaml:"runner"`
	Image          string `yaml:"image"`
	StaggerMS      int    `yaml:"stagger-ms"`
	TimeoutMinutes int    `yaml:"timeout-minutes"`
}

type TrackingSetup struct {
	ServerURL string `yaml:"server-url"`
	APIKey    string `yaml:"api-key"`
	Mode      string `yaml:"mode"`
	Dir       string `yaml:"dir"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no config file is given:
// one run, sequential, default parsers, offline tracking.
func Default() *Config {
	cfg := &Config{}
	validate(cfg)
	return cfg
}

func validate(cfg *Config) error {
	if cfg.RunSetup.NumRunsLimit < 1 {
		cfg.RunSetup.NumRunsLimit = 1
	}
	if cfg.RunSetup.NumRunsStart < 0 {
		cfg.RunSetup.NumRunsStart = 0
	}
	if cfg.RunSetup.Parallel < 1 {
		cfg.RunSetup.Parallel = 1
	}
	if cfg.RunSetup.NumRunsStart >= cfg.RunSetup.NumRunsLimit {
		return fmt.Errorf("run-setup: num-runs-start %d is not below num-runs-limit %d",
			cfg.RunSetup.NumRunsStart, cfg.RunSetup.NumRunsLimit)
	}

	if cfg.Parsing.Metrics.Method == "" {
		cfg.Parsing.Metrics.Method = "default"
	}
	if cfg.Parsing.Logfile.Method == "" {
		cfg.Parsing.Logfile.Method = "default"
	}
	if cfg.Parsing.Artifacts.Method == "" {
		cfg.Parsing.Artifacts.Method = "default"
	}

	switch cfg.Execution.Runner {
	case "":
		cfg.Execution.Runner = "exec"
	case "exec":
	case "docker":
		if cfg.Execution.Image == "" {
			return fmt.Errorf("execution-setup: runner %q requires an image", cfg.Execution.Runner)
		}
	default:
		return fmt.Errorf("execution-setup: unknown runner %q", cfg.Execution.Runner)
	}
	if cfg.Execution.StaggerMS < 0 {
		return fmt.Errorf("execution-setup: stagger-ms must not be negative")
	}
	if cfg.Execution.StaggerMS == 0 {
		cfg.Execution.StaggerMS = 500
	}

	switch cfg.Tracking.Mode {
	case "":
		if cfg.Tracking.ServerURL != "" {
			cfg.Tracking.Mode = "online"
		} else {
			cfg.Tracking.Mode = "offline"
		}
	case "online":
		if cfg.Tracking.ServerURL == "" {
			return fmt.Errorf("tracking-setup: online mode requires server-url")
		}
	case "offline":
	default:
		return fmt.Errorf("tracking-setup: unknown mode %q", cfg.Tracking.Mode)
	}
	if cfg.Tracking.Mode == "offline" && cfg.Tracking.Dir == "" {
		cfg.Tracking.Dir = ".exptrack"
	}

	if cfg.Params == nil {
		cfg.Params = map[string]any{}
	}
	return nil
}
