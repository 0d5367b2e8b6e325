package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/trioagent/trio/internal/config"
	"github.com/trioagent/trio/internal/displaybus"
	"github.com/trioagent/trio/internal/eventlog"
	"github.com/trioagent/trio/internal/logging"
	"github.com/trioagent/trio/internal/orchestrator"
	"github.com/trioagent/trio/pkg/types"
)

var (
	claudePrompt     string
	claudePromptFile string
	claudePath       string
)

// claudeCmd runs one end-to-end orchestration session: Architect plans,
// Driver implements, Navigator reviews, per spec.md §6's CLI surface. The
// subcommand name is kept as "claude" for backward naming.
var claudeCmd = &cobra.Command{
	Use:   "claude",
	Short: "Run an orchestration session for a task",
	RunE:  runClaude,
}

func init() {
	claudeCmd.Flags().StringVarP(&claudePrompt, "prompt", "p", "", "Task prompt")
	claudeCmd.Flags().StringVarP(&claudePromptFile, "file", "f", "", "Task prompt read from file")
	claudeCmd.Flags().StringVar(&claudePath, "path", "", "Project directory (defaults to current directory)")
}

func runClaude(cmd *cobra.Command, args []string) error {
	task, err := resolveTask(claudePrompt, claudePromptFile)
	if err != nil {
		return err
	}

	workDir, err := resolveProjectPath(claudePath)
	if err != nil {
		return err
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return fmt.Errorf("trio: prepare state directories: %w", err)
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}

	if len(task) < 1 || len(task) > cfg.MaxPromptLength {
		return &config.ValidationError{Field: "prompt", Reason: fmt.Sprintf("length %d out of range [1, %d]", len(task), cfg.MaxPromptLength)}
	}

	unsubscribe := displaybus.SubscribeAll(printEvent)
	defer unsubscribe()

	sessionID := ulid.Make().String()
	if logWriter, err := eventlog.Open(paths.EventLogPath(), sessionID); err != nil {
		logging.Warn().Err(err).Msg("trio: diagnostic event log disabled")
	} else {
		unsubscribeLog := logWriter.Subscribe()
		defer unsubscribeLog()
		defer func() {
			if err := logWriter.Close(); err != nil {
				logging.Warn().Err(err).Msg("trio: close diagnostic event log")
			}
		}()
	}

	ctx := context.Background()
	orch, err := orchestrator.New(ctx, cfg, workDir)
	if err != nil {
		return fmt.Errorf("trio: %w", err)
	}

	if err := orch.Run(ctx, task); err != nil {
		fmt.Fprintf(os.Stderr, "trio: session ended: %v\n", err)
	}

	// Exit codes: validation errors above already returned non-nil (exit 1);
	// a session ending in error, timeout, or normal completion all exit 0
	// (spec.md §6 "the process exits 0 after completion via an explicit
	// graceful shutdown").
	return nil
}

// resolveTask builds the task text from --prompt or --file, enforcing
// spec.md §6's file constraints (regular file, ≤100KB, UTF-8).
func resolveTask(prompt, file string) (string, error) {
	if file != "" {
		info, err := os.Stat(file)
		if err != nil {
			return "", fmt.Errorf("trio: stat prompt file: %w", err)
		}
		if !info.Mode().IsRegular() {
			return "", &config.ValidationError{Field: "file", Reason: "not a regular file"}
		}
		if info.Size() > 100*1024 {
			return "", &config.ValidationError{Field: "file", Reason: "exceeds 100KB"}
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("trio: read prompt file: %w", err)
		}
		if !utf8.Valid(data) {
			return "", &config.ValidationError{Field: "file", Reason: "not valid UTF-8"}
		}
		return strings.TrimSpace(string(data)), nil
	}

	if prompt == "" {
		return "", &config.ValidationError{Field: "prompt", Reason: "one of --prompt or --file is required"}
	}
	return prompt, nil
}

// resolveProjectPath expands "~" and validates the path exists and is a
// directory (spec.md §6).
func resolveProjectPath(path string) (string, error) {
	if path == "" {
		return os.Getwd()
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("trio: resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", &config.ValidationError{Field: "path", Reason: err.Error()}
	}
	if !info.IsDir() {
		return "", &config.ValidationError{Field: "path", Reason: "not a directory"}
	}
	return filepath.Abs(path)
}

// printEvent renders orchestrator progress events to stdout. This is
// the minimal text rendering the core needs for a usable CLI; a richer
// terminal UI is explicitly out of scope (spec.md §1).
func printEvent(event displaybus.Event) {
	switch event.Type {
	case displaybus.PlanReady:
		data := event.Data.(displaybus.PlanReadyData)
		fmt.Printf("\n--- plan ---\n%s\n------------\n\n", string(data.Plan))
	case displaybus.DriverBatchReceived:
		data := event.Data.(displaybus.DriverBatchData)
		if text := data.Batch.Joined(); text != "" {
			fmt.Print(text)
		}
		for _, t := range data.Batch.Tools {
			fmt.Printf("\n[tool] %s\n", t.ToolName)
		}
	case displaybus.PermissionRequested:
		data := event.Data.(displaybus.PermissionRequestedData)
		fmt.Printf("\n[permission requested] %s on %v\n", data.Request.ToolName, toolPath(data.Request.Input))
	case displaybus.PermissionResolved:
		data := event.Data.(displaybus.PermissionResolvedData)
		if data.Decision.Allow {
			fmt.Printf("[permission granted]\n")
		} else {
			fmt.Printf("[permission denied] %s\n", data.Decision.Reason)
		}
	case displaybus.NavigatorVerdict:
		data := event.Data.(displaybus.NavigatorVerdictData)
		if data.Command.Kind == types.NavigatorCodeReview {
			if data.Command.Pass {
				fmt.Printf("\n[review] pass: %s\n", data.Command.Comment)
			} else {
				fmt.Printf("\n[review] fail: %s\n", data.Command.Comment)
			}
		}
	case displaybus.SessionEnded:
		data := event.Data.(displaybus.SessionEndedData)
		if data.Err != "" {
			fmt.Printf("\n[session ended: %s] %s\n", data.Reason, data.Err)
		} else {
			fmt.Printf("\n[session ended: %s]\n", data.Reason)
		}
	}
}

func toolPath(input map[string]any) string {
	if p, ok := input["filePath"].(string); ok {
		return p
	}
	return ""
}
