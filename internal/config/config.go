package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied by Validate when a field is omitted.
const (
	DefaultActivityType      = "Ki"
	DefaultSourceURL         = "https://www.ebi.ac.uk/chembl/api/data"
	DefaultPageSize          = 1000
	DefaultDescriptorPattern = "*.xml"
	DefaultThreads           = 2
	DefaultToolTimeout       = 30 * time.Minute
	DefaultTargetColumn      = "standard_value"
	DefaultPollInterval      = 10 * time.Second
	DefaultMaxPolls          = 60
	DefaultPredictLimit      = 10
	DefaultTrainingProject   = "mindsdb"
)

// Environment variables that override or complement assay.yml.
const (
	EnvTrainingToken = "ASSAY_TRAINING_TOKEN"
	EnvRedisURL      = "ASSAY_REDIS_URL"
)

// AssayConfig represents the top-level assay.yml configuration
type AssayConfig struct {
	Version     string             `yaml:"version"`
	Project     string             `yaml:"project"`
	WorkDir     string             `yaml:"workdir,omitempty"`
	Target      TargetConfig       `yaml:"target"`
	Source      *SourceConfig      `yaml:"source,omitempty"`
	Fingerprint *FingerprintConfig `yaml:"fingerprint,omitempty"`
	Training    TrainingConfig     `yaml:"training"`
	Predict     *PredictConfig     `yaml:"predict,omitempty"`
	Ledger      *LedgerConfig      `yaml:"ledger,omitempty"`
}

// TargetConfig selects the biological target and the activity kind to fetch
type TargetConfig struct {
	Query        string `yaml:"query"`                   // keyword passed to target search, e.g. "acetylcholinesterase"
	Index        int    `yaml:"index,omitempty"`         // which search hit to use (default 0)
	ActivityType string `yaml:"activity_type,omitempty"` // default "Ki"
}

// SourceConfig specifies where raw bioactivity records come from
type SourceConfig struct {
	BaseURL  string `yaml:"base_url,omitempty"`  // ChEMBL REST base URL
	PageSize int    `yaml:"page_size,omitempty"` // activities per page
	File     string `yaml:"file,omitempty"`      // offline mode: raw CSV export instead of HTTP
}

// FingerprintConfig specifies how the external fingerprint generator is run
type FingerprintConfig struct {
	Mode           string        `yaml:"mode"`                      // "exec" or "docker"
	Command        []string      `yaml:"command,omitempty"`         // exec mode: command prefix, e.g. [java, -jar, PaDEL-Descriptor.jar]
	Image          string        `yaml:"image,omitempty"`           // docker mode: image with the generator as entrypoint
	DescriptorSpec string        `yaml:"descriptor_spec,omitempty"` // explicit descriptor spec path (skips the search)
	SpecPattern    string        `yaml:"spec_pattern,omitempty"`    // glob searched in workdir, default "*.xml"
	Threads        int           `yaml:"threads,omitempty"`         // default 2
	Timeout        time.Duration `yaml:"timeout,omitempty"`         // default 30m
}

// TrainingConfig specifies the remote training service and the poll budget
type TrainingConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Project       string        `yaml:"project,omitempty"` // remote project namespace, default "mindsdb"
	ModelName     string        `yaml:"model_name"`
	TargetColumn  string        `yaml:"target_column,omitempty"`
	PollInterval  time.Duration `yaml:"poll_interval,omitempty"`
	MaxPolls      int           `yaml:"max_polls,omitempty"`
	RetrainFailed bool          `yaml:"retrain_failed,omitempty"` // drop and resubmit a model found in the error state
	Token         string        `yaml:"-"`                        // from ASSAY_TRAINING_TOKEN only
}

// PredictConfig controls the prediction subset
type PredictConfig struct {
	Limit int `yaml:"limit,omitempty"` // rows to predict, 0 = all (default 10)
}

// UnmarshalYAML defaults an omitted limit to DefaultPredictLimit; an explicit
// 0 still means all rows.
func (p *PredictConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain PredictConfig
	raw := plain{Limit: DefaultPredictLimit}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*p = PredictConfig(raw)
	return nil
}

// LedgerConfig enables the Redis run ledger
type LedgerConfig struct {
	RedisURL string `yaml:"redis_url,omitempty"`
}

// Validate performs strict validation and applies defaults
func (c *AssayConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: project
	if c.Project == "" {
		return fmt.Errorf("project is required")
	}

	if c.WorkDir == "" {
		c.WorkDir = "."
	}

	// Target
	if c.Target.Query == "" && (c.Source == nil || c.Source.File == "") {
		return fmt.Errorf("target.query is required unless source.file is set")
	}
	if c.Target.Index < 0 {
		return fmt.Errorf("target.index must be >= 0, got %d", c.Target.Index)
	}
	if c.Target.ActivityType == "" {
		c.Target.ActivityType = DefaultActivityType
	}

	// Source
	if c.Source == nil {
		c.Source = &SourceConfig{}
	}
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = DefaultSourceURL
	}
	if c.Source.PageSize == 0 {
		c.Source.PageSize = DefaultPageSize
	}
	if c.Source.PageSize < 1 {
		return fmt.Errorf("source.page_size must be >= 1, got %d", c.Source.PageSize)
	}

	if err := c.validateFingerprint(); err != nil {
		return err
	}

	if err := c.Training.validate(); err != nil {
		return err
	}

	// Predict
	if c.Predict == nil {
		c.Predict = &PredictConfig{Limit: DefaultPredictLimit}
	}
	if c.Predict.Limit < 0 {
		return fmt.Errorf("predict.limit must be >= 0 (0 = all), got %d", c.Predict.Limit)
	}

	return nil
}

// validateFingerprint checks the fingerprint section and applies defaults
func (c *AssayConfig) validateFingerprint() error {
	if c.Fingerprint == nil {
		return fmt.Errorf("fingerprint section is required")
	}
	fp := c.Fingerprint

	switch fp.Mode {
	case "exec":
		if len(fp.Command) == 0 {
			return fmt.Errorf("fingerprint: command is required in exec mode")
		}
	case "docker":
		if fp.Image == "" {
			return fmt.Errorf("fingerprint: image is required in docker mode")
		}
	default:
		return fmt.Errorf("fingerprint: invalid mode: %q (must be 'exec' or 'docker')", fp.Mode)
	}

	if fp.DescriptorSpec != "" {
		if _, err := os.Stat(fp.DescriptorSpec); os.IsNotExist(err) {
			return fmt.Errorf("fingerprint: descriptor_spec does not exist: %s", fp.DescriptorSpec)
		}
	}
	if fp.SpecPattern == "" {
		fp.SpecPattern = DefaultDescriptorPattern
	}

	if fp.Threads == 0 {
		fp.Threads = DefaultThreads
	}
	if fp.Threads < 1 {
		return fmt.Errorf("fingerprint: threads must be >= 1, got %d", fp.Threads)
	}

	if fp.Timeout == 0 {
		fp.Timeout = DefaultToolTimeout
	}
	if fp.Timeout < 0 {
		return fmt.Errorf("fingerprint: timeout must be positive, got %s", fp.Timeout)
	}

	return nil
}

// validate checks the training section and applies defaults
func (t *TrainingConfig) validate() error {
	if t.BaseURL == "" {
		return fmt.Errorf("training: base_url is required")
	}
	if t.ModelName == "" {
		return fmt.Errorf("training: model_name is required")
	}
	if t.Project == "" {
		t.Project = DefaultTrainingProject
	}
	if t.TargetColumn == "" {
		t.TargetColumn = DefaultTargetColumn
	}

	if t.PollInterval == 0 {
		t.PollInterval = DefaultPollInterval
	}
	if t.PollInterval < 0 {
		return fmt.Errorf("training: poll_interval must be positive, got %s", t.PollInterval)
	}

	if t.MaxPolls == 0 {
		t.MaxPolls = DefaultMaxPolls
	}
	if t.MaxPolls < 1 {
		return fmt.Errorf("training: max_polls must be >= 1, got %d", t.MaxPolls)
	}

	return nil
}

// LedgerEnabled reports whether a Redis ledger is configured
func (c *AssayConfig) LedgerEnabled() bool {
	return c.Ledger != nil && c.Ledger.RedisURL != ""
}

// applyEnv overlays secrets and connection strings from the environment
func (c *AssayConfig) applyEnv() {
	c.Training.Token = os.Getenv(EnvTrainingToken)

	if redisURL := os.Getenv(EnvRedisURL); redisURL != "" {
		if c.Ledger == nil {
			c.Ledger = &LedgerConfig{}
		}
		c.Ledger.RedisURL = redisURL
	}
}

// Parse decodes, overlays the environment and validates configuration bytes
func Parse(data []byte) (*AssayConfig, error) {
	var config AssayConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Load reads and validates assay.yml from the specified path
func Load(path string) (*AssayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data)
}
