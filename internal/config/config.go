package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all orchestration engine configuration.
type Config struct {
	ResearchAgent        AgentConfig          `mapstructure:"research_agent"`
	ImplementationRuntime AgentConfig         `mapstructure:"implementation_runtime"`
	Safety               SafetyConfig         `mapstructure:"safety"`
	ResearchQueue        ResearchQueueConfig  `mapstructure:"research_queue"`
	Orchestrator         OrchestratorConfig   `mapstructure:"orchestrator"`
	Git                  GitConfig            `mapstructure:"git"`
}

// AgentConfig holds invocation settings for an external collaborator process
// (ResearchAgent or ImplementationRuntime), launched as a subprocess.
type AgentConfig struct {
	Command []string `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// SafetyConfig holds safety and sandbox settings applied to runtime command execution.
type SafetyConfig struct {
	Sandbox         bool     `mapstructure:"sandbox"`
	AllowedCommands []string `mapstructure:"allowed_commands"`
}

// ResearchQueueConfig controls bounded-concurrency research dispatch.
type ResearchQueueConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// OrchestratorConfig controls dependency gating and retry behavior.
type OrchestratorConfig struct {
	DependencyWaitTimeoutSeconds int `mapstructure:"dependency_wait_timeout_seconds"`
	DependencyPollIntervalMillis int `mapstructure:"dependency_poll_interval_millis"`
	MaxTaskRetries               int `mapstructure:"max_task_retries"`
	MaxFixAttempts               int `mapstructure:"max_fix_attempts"`
}

// GitConfig holds the branch prefix given to the git commit adapter's
// ShellManager. The run loop commits on the current branch; it does not
// create a branch per task.
type GitConfig struct {
	BranchPrefix string `mapstructure:"branch_prefix"`
}

// LoadConfigWithFile loads configuration from a specific file if provided.
// Otherwise it uses prp.yaml in workDir if that file exists, and the
// global config path if it does not.
func LoadConfigWithFile(workDir, configFile string) (*Config, error) {
	if configFile != "" {
		return LoadConfigFromPath(configFile)
	}

	localPath := filepath.Join(workDir, "prp.yaml")
	if _, err := os.Stat(localPath); err == nil {
		return LoadConfig(workDir)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	globalPath, err := GlobalConfigPath()
	if err != nil {
		return nil, err
	}

	return LoadConfigFromPath(globalPath)
}

// LoadConfig loads configuration from prp.yaml in the given directory.
// If no config file exists, sensible defaults are returned.
func LoadConfig(dir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("prp")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadConfigFromPath loads configuration from a specific file path.
func LoadConfigFromPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if _, err := os.Stat(configPath); err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			if err := v.Unmarshal(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults sets all default values for configuration.
func setDefaults(v *viper.Viper) {
	// Research agent defaults
	v.SetDefault("research_agent.command", []string{"claude"})
	v.SetDefault("research_agent.args", []string{})

	// Implementation runtime defaults
	v.SetDefault("implementation_runtime.command", []string{"claude"})
	v.SetDefault("implementation_runtime.args", []string{})

	// Safety defaults
	v.SetDefault("safety.sandbox", false)
	v.SetDefault("safety.allowed_commands", []string{"npm", "go", "git"})

	// Research queue defaults
	v.SetDefault("research_queue.max_concurrent", DefaultMaxConcurrentResearch)

	// Orchestrator defaults
	v.SetDefault("orchestrator.dependency_wait_timeout_seconds", DefaultDependencyWaitTimeoutSeconds)
	v.SetDefault("orchestrator.dependency_poll_interval_millis", DefaultDependencyPollIntervalMillis)
	v.SetDefault("orchestrator.max_task_retries", DefaultMaxTaskRetries)
	v.SetDefault("orchestrator.max_fix_attempts", DefaultMaxFixAttempts)

	// Git defaults
	v.SetDefault("git.branch_prefix", DefaultBranchPrefix)
}
