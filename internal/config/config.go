// Package config loads the step runner's single immutable, process-wide
// configuration value from a declarative YAML source.
package config

import (
	"os"
	"strings"
	"sync"

	"github.com/agentkiln/stepforge/internal/errorkind"
	"github.com/goccy/go-yaml"
)

// RuntimeConfig controls step execution behavior.
type RuntimeConfig struct {
	RetriesMax  int  `yaml:"retries_max"`
	StopOnFail  bool `yaml:"stop_on_fail"`
}

// PathsConfig controls workspace layout.
type PathsConfig struct {
	WorkRoot        string `yaml:"work_root"`
	JobRootTemplate string `yaml:"job_root_template"`
	LogsDir         string `yaml:"logs_dir"`
	ArtifactsDir    string `yaml:"artifacts_dir"`
	CacheDir        string `yaml:"cache_dir"`
}

// MemoryBankConfig controls the external memory bank directory.
type MemoryBankConfig struct {
	Root  string            `yaml:"root"`
	Files map[string]string `yaml:"files"`
}

// Logical memory bank file keys, required to be present in Files.
const (
	MemFileProjectBrief   = "project_brief"
	MemFileSystemPatterns = "system_patterns"
	MemFilePolicies       = "policies"
	MemFileGlossary       = "glossary"
	MemFilePreferences    = "preferences"
	MemFileProgress       = "progress"
	MemFileActiveContext  = "active_context"
)

// ArtifactsConfig controls manifest persistence and reuse behavior.
type ArtifactsConfig struct {
	ManifestFile         string `yaml:"manifest_file"`
	IncludeHashes        bool   `yaml:"include_hashes"`
	IncludeToolVersions  bool   `yaml:"include_tool_versions"`
	ReuseIfValidated     bool   `yaml:"reuse_if_validated"`
}

// ValidationConfig controls validator behavior.
type ValidationConfig struct {
	JSONSchemaStrict bool `yaml:"jsonschema_strict"`
	FailFast         bool `yaml:"fail_fast"`
}

// Config is the fully resolved, immutable configuration value.
type Config struct {
	Runtime     RuntimeConfig    `yaml:"runtime"`
	Paths       PathsConfig      `yaml:"paths"`
	MemoryBank  MemoryBankConfig `yaml:"memory_bank"`
	Artifacts   ArtifactsConfig  `yaml:"artifacts"`
	Validation  ValidationConfig `yaml:"validation"`

	// AnthropicAPIKey is resolved from the STEPRUNNER_ANTHROPIC_API_KEY
	// environment variable; it is never read from the YAML file so it
	// cannot accidentally be committed alongside task declarations.
	AnthropicAPIKey string `yaml:"-"`
}

const anthropicAPIKeyEnv = "STEPRUNNER_ANTHROPIC_API_KEY"

var defaultConfig = Config{
	Runtime: RuntimeConfig{RetriesMax: 3, StopOnFail: true},
	Paths: PathsConfig{
		WorkRoot:        "./.steprunner",
		JobRootTemplate: "./.steprunner/jobs/{job_id}",
		LogsDir:         "logs",
		ArtifactsDir:    "artifacts",
		CacheDir:        "cache",
	},
	MemoryBank: MemoryBankConfig{
		Root: "./memory-bank",
		Files: map[string]string{
			MemFileProjectBrief:   "projectbrief.md",
			MemFileSystemPatterns: "systemPatterns.md",
			MemFilePolicies:       "policies.md",
			MemFileGlossary:       "glossary.yaml",
			MemFilePreferences:    "preferences.yaml",
			MemFileProgress:       "progress.md",
			MemFileActiveContext:  "activeContext.md",
		},
	},
	Artifacts: ArtifactsConfig{
		ManifestFile:        "manifest.json",
		IncludeHashes:       true,
		IncludeToolVersions: true,
		ReuseIfValidated:    true,
	},
	Validation: ValidationConfig{
		JSONSchemaStrict: true,
		FailFast:         true,
	},
}

// Default returns a copy of the built-in default configuration.
func Default() Config {
	return defaultConfig
}

// Load reads and merges a YAML configuration file on top of the
// defaults. An empty path returns the defaults untouched. Any
// unreadable or malformed file is a ConfigError (fatal at process
// start per spec.md §7).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 - operator-supplied config path
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, errorkind.Wrap(errorkind.Config, "reading config file", err)
			}
		} else if len(data) > 0 {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, errorkind.Wrap(errorkind.Config, "parsing config YAML", err)
			}
		}
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	if key := strings.TrimSpace(os.Getenv(anthropicAPIKeyEnv)); key != "" {
		cfg.AnthropicAPIKey = key
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Runtime.RetriesMax < 1 {
		return errorkind.ConfigErrorf("runtime.retries_max must be >= 1, got %d", cfg.Runtime.RetriesMax)
	}
	if !strings.Contains(cfg.Paths.JobRootTemplate, "{job_id}") {
		return errorkind.ConfigErrorf("paths.job_root_template must contain {job_id}")
	}
	for _, required := range []string{
		MemFileProjectBrief, MemFileSystemPatterns, MemFilePolicies,
		MemFileGlossary, MemFilePreferences, MemFileProgress, MemFileActiveContext,
	} {
		if _, ok := cfg.MemoryBank.Files[required]; !ok {
			return errorkind.ConfigErrorf("memory_bank.files missing required entry %q", required)
		}
	}
	if cfg.Artifacts.ManifestFile == "" {
		return errorkind.ConfigErrorf("artifacts.manifest_file must not be empty")
	}
	return nil
}

var (
	singleton   *Config
	singletonMu sync.Once
	singletonOK error
)

// Get returns the process-wide configuration, loading it from the
// STEPRUNNER_CONFIG environment variable's path (if set) exactly once.
// Subsequent calls observe the same constant value. Prefer Load for
// tests and for the CLI, which always construct a Config explicitly.
func Get() (*Config, error) {
	singletonMu.Do(func() {
		singleton, singletonOK = Load(os.Getenv("STEPRUNNER_CONFIG"))
	})
	return singleton, singletonOK
}
