package sessionhost

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/nextlevelbuilder/goclaw/pkg/protocol"
)

// agentProc is one running instance of the agent subprocess, piped
// for line-delimited JSON on stdin/stdout and line-logged stderr.
type agentProc struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner
	stderr *bufio.Scanner
}

// buildArgs renders the CLI-invocation contract (spec §6) for a
// single agent launch.
func buildArgs(params protocol.AgentCLIParams, resumeID string) []string {
	args := []string{
		"--input-format", "stream-json",
		"--output-format", "stream-json",
	}
	if params.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(params.MaxTurns))
	}
	for _, tool := range params.AllowedTools {
		args = append(args, "--allowedTools", tool)
	}
	if params.SystemPromptAppend != "" {
		args = append(args, "--append-system-prompt", params.SystemPromptAppend)
	}
	if resumeID != "" {
		args = append(args, "--resume", resumeID)
	}
	args = append(args, params.Args...)
	return args
}

// spawnAgent launches the agent binary with streaming-JSON stdio,
// optionally resuming from a prior session identifier.
func spawnAgent(params protocol.AgentCLIParams, workingDir, resumeID string) (*agentProc, error) {
	binary := params.Binary
	if binary == "" {
		return nil, fmt.Errorf("sessionhost: agent binary not configured")
	}

	cmd := exec.Command(binary, buildArgs(params, resumeID)...)
	if workingDir != "" {
		cmd.Dir = workingDir
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start agent: %w", err)
	}

	outScanner := bufio.NewScanner(stdout)
	outScanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	errScanner := bufio.NewScanner(stderr)
	errScanner.Buffer(make([]byte, 0, 64*1024), 1*1024*1024)

	return &agentProc{cmd: cmd, stdin: stdin, stdout: outScanner, stderr: errScanner}, nil
}
