package orchestrator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/harrison/conductor/internal/models"
)

// SubprocessAdapter implements Adapter by shelling out to a coding-agent
// CLI, writing the prompt to its standard input and reading line-delimited
// JSON StreamEvent records from its standard output.
//
// Grounded on the teacher's internal/agent/invoker.go Invoke: same
// exec.CommandContext + clean-environment shape, generalized from a single
// blocking cmd.Run() with one synchronous JSON parse at the end into an
// incremental bufio.Scanner read loop that forwards each decoded line to
// onEvent as it arrives, since the adapter contract in spec.md §6 is a
// stream of tokens rather than one shot of JSON on exit.
type SubprocessAdapter struct {
	// Command is the adapter executable, e.g. "claude" or "codex".
	Command string
	// Args are fixed arguments prepended before any per-invocation flags.
	Args []string
	// EnvSetter mirrors the teacher's claude.SetCleanEnv: an optional hook
	// to sanitize the subprocess environment before it starts.
	EnvSetter func(cmd *exec.Cmd)
}

// NewSubprocessAdapter constructs a SubprocessAdapter for the given
// executable and fixed arguments.
func NewSubprocessAdapter(command string, args ...string) *SubprocessAdapter {
	return &SubprocessAdapter{Command: command, Args: args}
}

// Run starts the adapter subprocess in spec.Workdir, writes spec.Prompt to
// its stdin, and streams decoded StreamEvent lines from its stdout to
// onEvent as they arrive. Cancelling ctx kills the subprocess via
// exec.CommandContext's standard kill-on-cancel behavior.
func (a *SubprocessAdapter) Run(ctx context.Context, spec TaskSpec, onEvent func(models.StreamEvent)) (*models.AdapterResult, error) {
	args := append(append([]string{}, a.Args...), "--task-id", spec.TaskID)
	cmd := exec.CommandContext(ctx, a.Command, args...)
	cmd.Dir = spec.Workdir
	if a.EnvSetter != nil {
		a.EnvSetter(cmd)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open adapter stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open adapter stdout: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start adapter: %w", err)
	}

	go func() {
		defer stdin.Close()
		io.WriteString(stdin, spec.Prompt)
	}()

	var filesChanged []string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		evt, files, ok := decodeAdapterLine(line)
		if !ok {
			onEvent(models.StreamEvent{Type: models.StreamText, Text: line})
			continue
		}
		if len(files) > 0 {
			filesChanged = append(filesChanged, files...)
		}
		onEvent(evt)
	}

	waitErr := cmd.Wait()

	result := &models.AdapterResult{
		FilesChanged: filesChanged,
		Stderr:       strings.TrimSpace(stderr.String()),
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if waitErr != nil {
		return result, waitErr
	}
	return result, nil
}

// adapterLine is the line-delimited-JSON wire shape an adapter emits on
// stdout: either a plain StreamEvent, or a terminal "result" record
// carrying the files the adapter changed.
type adapterLine struct {
	Type         models.StreamEventType `json:"type"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	Text         string                 `json:"text,omitempty"`
	FilesChanged []string               `json:"files_changed,omitempty"`
}

func decodeAdapterLine(line string) (models.StreamEvent, []string, bool) {
	var raw adapterLine
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return models.StreamEvent{}, nil, false
	}
	return models.StreamEvent{Type: raw.Type, Payload: raw.Payload, Text: raw.Text}, raw.FilesChanged, true
}
