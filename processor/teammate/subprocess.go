package teammate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360studio/taskorchestrator/task"
)

// requestPayload is the JSON object written to the subprocess's stdin.
type requestPayload struct {
	Mode       string    `json:"mode"`
	TeammateID string    `json:"teammate_id"`
	Task       *task.Task `json:"task"`
}

// SubprocessAdapter delegates plan/execution text generation to external
// commands: a JSON request on stdin, stdout as the result, stderr mirrored
// to the orchestrator's own log and (when streaming is wanted) both streams
// fed line-by-line to a progress callback.
type SubprocessAdapter struct {
	PlanCommand    []string
	ExecuteCommand []string
	Timeout        time.Duration
	StreamLogs     bool
	Logger         *slog.Logger
}

// NewSubprocessAdapter builds a SubprocessAdapter with a 120-second default
// per-invocation timeout.
func NewSubprocessAdapter(planCommand, executeCommand []string, logger *slog.Logger) *SubprocessAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubprocessAdapter{
		PlanCommand:    planCommand,
		ExecuteCommand: executeCommand,
		Timeout:        120 * time.Second,
		StreamLogs:     true,
		Logger:         logger,
	}
}

func (a *SubprocessAdapter) BuildPlan(ctx context.Context, teammateID string, t *task.Task) (string, error) {
	return a.run(ctx, a.PlanCommand, requestPayload{Mode: "plan", TeammateID: teammateID, Task: t}, nil)
}

func (a *SubprocessAdapter) ExecuteTask(ctx context.Context, teammateID string, t *task.Task, onProgress ProgressFunc) (string, error) {
	return a.run(ctx, a.ExecuteCommand, requestPayload{Mode: "execute", TeammateID: teammateID, Task: t}, onProgress)
}

func (a *SubprocessAdapter) run(ctx context.Context, command []string, payload requestPayload, onProgress ProgressFunc) (string, error) {
	if len(command) == 0 {
		return "", fmt.Errorf("teammate: empty command")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("teammate: marshal request: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, command[0], command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", fmt.Errorf("teammate: stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("teammate: stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("teammate: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("teammate: start %s: %w", strings.Join(command, " "), err)
	}

	if _, err := stdin.Write(body); err != nil {
		stdin.Close()
		return "", fmt.Errorf("teammate: write stdin: %w", err)
	}
	stdin.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	group, _ := errgroup.WithContext(context.Background())
	group.Go(func() error {
		return drain(stdoutPipe, &stdoutBuf, task.ProgressSourceStdout, onProgress, false, a.Logger)
	})
	group.Go(func() error {
		return drain(stderrPipe, &stderrBuf, task.ProgressSourceStderr, onProgress, a.StreamLogs, a.Logger)
	})
	drainErr := group.Wait()

	waitErr := cmd.Wait()

	if runCtx.Err() == context.DeadlineExceeded {
		return "", &task.AdapterTimeoutError{TeammateID: payload.TeammateID, Timeout: a.Timeout.String()}
	}
	if waitErr != nil {
		stderrText := strings.TrimSpace(stderrBuf.String())
		if stderrText == "" {
			stderrText = "no stderr"
		}
		return "", &task.AdapterFailureError{TeammateID: payload.TeammateID, Reason: fmt.Sprintf("command failed: %s :: %s", strings.Join(command, " "), stderrText)}
	}
	if drainErr != nil {
		return "", fmt.Errorf("teammate: stream read: %w", drainErr)
	}

	stdoutText := strings.TrimSpace(stdoutBuf.String())
	if stdoutText == "" {
		return "", &task.AdapterFailureError{TeammateID: payload.TeammateID, Reason: "empty response from command: " + strings.Join(command, " ")}
	}
	return stdoutText, nil
}

func drain(reader io.Reader, buf *bytes.Buffer, source task.ProgressSource, onProgress ProgressFunc, mirror bool, logger *slog.Logger) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')
		if text := strings.TrimRight(line, "\r"); text != "" && onProgress != nil {
			onProgress(source, text)
		}
		if mirror {
			logger.Info("teammate subprocess output", "source", source, "line", line)
		}
	}
	return scanner.Err()
}
