package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/prplab/prpctl/internal/hierarchy"
	"github.com/prplab/prpctl/internal/research"
)

// SubprocessResearchAgent implements research.Agent by invoking an
// externally configured command-line tool as a subprocess and parsing
// a single JSON PRP object from its stdout. It is the reference
// collaborator; any tool that reads a prompt on its last argument and
// writes a PRP-shaped JSON object to stdout can stand in for it.
type SubprocessResearchAgent struct {
	command []string
	args    []string
	logsDir string
	builder *PromptBuilder
	logger  *zap.Logger
}

// NewSubprocessResearchAgent creates a subprocess-backed research agent.
// command must have at least one element (the executable). logsDir, if
// non-empty, receives one raw transcript file per invocation.
func NewSubprocessResearchAgent(command, args []string, logsDir string, logger *zap.Logger) *SubprocessResearchAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubprocessResearchAgent{
		command: command,
		args:    args,
		logsDir: logsDir,
		builder: NewPromptBuilder(nil),
		logger:  logger,
	}
}

// Generate runs the configured command as a subprocess with a prompt
// built from subtask and backlog, and parses its stdout as a PRP.
func (a *SubprocessResearchAgent) Generate(ctx context.Context, subtask *hierarchy.Item, backlog *hierarchy.Backlog) (*research.PRP, error) {
	if len(a.command) == 0 {
		return nil, fmt.Errorf("research agent: no command configured")
	}
	if subtask == nil {
		return nil, fmt.Errorf("research agent: subtask is required")
	}

	result, err := a.builder.Build(PromptContext{Subtask: subtask, Backlog: backlog})
	if err != nil {
		return nil, fmt.Errorf("building research prompt: %w", err)
	}

	args := make([]string, 0, len(a.command)-1+len(a.args)+2)
	args = append(args, a.command[1:]...)
	args = append(args, a.args...)
	args = append(args, "--system-prompt", result.SystemPrompt)
	args = append(args, result.UserPrompt)

	cmd := exec.CommandContext(ctx, a.command[0], args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	var logFile *os.File
	if a.logsDir != "" {
		logPath := filepath.Join(a.logsDir, generateLogFilename(subtask.ID))
		logFile, err = os.Create(logPath)
		if err != nil {
			return nil, fmt.Errorf("creating research log %s: %w", logPath, err)
		}
		defer func() { _ = logFile.Close() }()
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting research command %s: %w", a.command[0], err)
	}

	var stdoutBuf bytes.Buffer
	var dest io.Writer = &stdoutBuf
	if logFile != nil {
		dest = io.MultiWriter(&stdoutBuf, logFile)
	}
	_, copyErr := io.Copy(dest, stdoutPipe)

	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return nil, fmt.Errorf("research command cancelled: %w", ctx.Err())
	}
	if copyErr != nil {
		return nil, fmt.Errorf("reading research command stdout: %w", copyErr)
	}
	if waitErr != nil {
		stderr := strings.TrimSpace(stderrBuf.String())
		if stderr != "" {
			a.logger.Warn("research command failed", zap.String("subtask_id", subtask.ID), zap.String("stderr", stderr))
			return nil, fmt.Errorf("research command failed: %w, stderr: %s", waitErr, stderr)
		}
		return nil, fmt.Errorf("research command failed: %w", waitErr)
	}

	prp, err := parsePRP(stdoutBuf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("parsing PRP from research command output: %w", err)
	}
	if prp.TaskID == "" {
		prp.TaskID = subtask.ID
	}

	return prp, nil
}

// parsePRP extracts a single JSON object from raw and unmarshals it as
// a PRP. Collaborators sometimes wrap the object in surrounding prose
// or a fenced code block; parsePRP looks for the outermost braces.
func parsePRP(raw []byte) (*research.PRP, error) {
	trimmed := bytes.TrimSpace(raw)
	start := bytes.IndexByte(trimmed, '{')
	end := bytes.LastIndexByte(trimmed, '}')
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object found in output")
	}

	var prp research.PRP
	if err := json.Unmarshal(trimmed[start:end+1], &prp); err != nil {
		return nil, fmt.Errorf("unmarshaling PRP: %w", err)
	}
	return &prp, nil
}

var invalidFilenameChars = regexp.MustCompile(`[/\\:*?"<>|\s]`)

// generateLogFilename creates a unique, timestamped transcript filename for subtaskID.
func generateLogFilename(subtaskID string) string {
	timestamp := time.Now().Format("20060102-150405")
	if subtaskID == "" {
		subtaskID = "research"
	}
	safeID := invalidFilenameChars.ReplaceAllString(subtaskID, "-")
	return fmt.Sprintf("%s-%s.log", timestamp, safeID)
}
