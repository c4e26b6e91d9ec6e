package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"bedrockmate/internal/jobs"
	"bedrockmate/internal/logger"
)

const (
	DefaultEngineTimeout = 300 * time.Second

	// pipeGrace bounds how long Wait keeps draining pipes after the process
	// group has been killed.
	pipeGrace = 2 * time.Second
)

// ExternalEngine runs the separately built world engine as a subprocess. Each
// call spawns exactly one process and never retries.
type ExternalEngine struct {
	Path    string
	Timeout time.Duration
	Logger  logger.Logger
}

func NewExternalEngine(path string, timeout time.Duration, log logger.Logger) *ExternalEngine {
	if timeout <= 0 {
		timeout = DefaultEngineTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ExternalEngine{Path: path, Timeout: timeout, Logger: log.With(logger.Component("engine"))}
}

func (e *ExternalEngine) LongRunning() bool { return true }

// Args builds the engine command line for p, without the program path.
func Args(seed string, p jobs.Params) ([]string, error) {
	switch p.JobType() {
	case jobs.TypeStructures, jobs.TypeBiome:
	default:
		return nil, fmt.Errorf("%w: engine has no verb for %s", jobs.ErrUnsupportedJobType, p.JobType())
	}
	g := p.Area()
	return []string{
		string(p.JobType()),
		"--seed", seed,
		"-x", strconv.Itoa(g.CenterX),
		"-z", strconv.Itoa(g.CenterZ),
		"--radius", strconv.Itoa(g.Radius),
		"-t", p.Filter(),
		"--output", "json",
	}, nil
}

func (e *ExternalEngine) Compute(ctx context.Context, seed string, p jobs.Params) (json.RawMessage, error) {
	args, err := Args(seed, p)
	if err != nil {
		return nil, err
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultEngineTimeout
	}
	log := e.Logger
	if log == nil {
		log = logger.Nop()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = pipeGrace
	configureProcess(cmd)

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		log.Warn("engine aborted",
			logger.String("verb", args[0]),
			logger.Duration("elapsed", elapsed),
			logger.Err(ctxErr))
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: engine exceeded %s", ErrExternalTimeout, timeout)
		}
		return nil, fmt.Errorf("engine cancelled: %w", ctxErr)
	}

	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		log.Warn("engine failed",
			logger.String("verb", args[0]),
			logger.Duration("elapsed", elapsed),
			logger.String("stderr", msg),
			logger.Err(err))
		return nil, fmt.Errorf("%w: %s", ErrExternalFailure, msg)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if !json.Valid(out) {
		return nil, fmt.Errorf("%w: %s", ErrResultParse, truncate(string(out), 200))
	}
	log.Debug("engine finished",
		logger.String("verb", args[0]),
		logger.Duration("elapsed", elapsed),
		logger.Int("bytes", len(out)))
	return json.RawMessage(out), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
