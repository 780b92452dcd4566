package warehouse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// ServerConfig describes how to spawn the warehouse tool server over stdio.
// The usual deployment launches a Snowflake MCP server as a child process;
// any server speaking the same protocol works.
type ServerConfig struct {
	Command string
	Args    []string
	Dir     string
	Env     []string

	// Stderr receives the server's standard error stream. Defaults to
	// os.Stderr when nil.
	Stderr io.Writer

	Options Options
}

// Dial starts the configured command and binds its stdin/stdout pipes to a
// client session. The caller owns the returned client and must Close it.
// Any failure before the handshake completes stops the child process and
// returns a *ConnectionError.
func Dial(ctx context.Context, cfg ServerConfig) (*Client, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, &ConnectionError{Err: errors.New("server command is required")}
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}
	if cfg.Stderr != nil {
		cmd.Stderr = cfg.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("start command: %w", err)}
	}

	transport := newStdioTransport(stdin, stdout)
	client, err := NewClient(ctx, transport, cfg.Options)
	if err != nil {
		transport.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	// Close the transport when the process exits so pending reads unblock.
	var once sync.Once
	go func() {
		_ = cmd.Wait()
		once.Do(func() {
			_ = transport.Close()
		})
	}()

	return client, nil
}
