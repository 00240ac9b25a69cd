package config

// Plan directory defaults.
const (
	DefaultPlanDir  = ".prp/plan"
	DefaultStateDir = ".prp/state"
	DefaultLogsDir  = ".prp/logs"
)

// Research queue defaults.
const (
	DefaultMaxConcurrentResearch = 3
)

// Orchestrator defaults.
const (
	DefaultDependencyWaitTimeoutSeconds = 600
	DefaultDependencyPollIntervalMillis = 500
	DefaultMaxTaskRetries               = 2
	DefaultMaxFixAttempts               = 2
)

// Git defaults.
const (
	DefaultBranchPrefix = "prp/"
)
