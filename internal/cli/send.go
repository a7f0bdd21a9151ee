package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yubzen/specpilot/internal/agent"
	"github.com/yubzen/specpilot/internal/prompt"
	"github.com/yubzen/specpilot/internal/stream"
	"github.com/yubzen/specpilot/internal/tui"
)

type sendFlags struct {
	contextFile  string
	systemPrompt string
	addDirs      []string
	sessionID    string
	jsonOutput   bool
	interactive  bool
	width        int
}

func newSendCmd(rt *runtime) *cobra.Command {
	var f sendFlags
	cmd := &cobra.Command{
		Use:   "send <message|->",
		Short: "Send a message to the CLI and stream the resulting events",
		Long:  "Send a message to the CLI and stream the resulting events. Pass - to read the message from stdin. Ctrl+C cancels the request.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message, err := readMessage(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			opts := agent.SendOptions{
				SystemPrompt: f.systemPrompt,
				IncludeFiles: f.addDirs,
				SessionID:    f.sessionID,
			}
			if f.contextFile != "" {
				pc, err := prompt.LoadProjectContext(f.contextFile)
				if err != nil {
					return err
				}
				opts.Context = pc
			}

			var sink eventSink = newTerminalSink(cmd.OutOrStdout(), f.width)
			if f.jsonOutput {
				sink = newJSONSink(cmd.OutOrStdout())
			}

			svc := rt.service()
			defer svc.Dispose()

			if f.interactive {
				return runInteractive(svc, message, opts)
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSend(sigCtx, svc, message, opts, sink)
		},
	}
	cmd.Flags().StringVarP(&f.contextFile, "context", "c", "", "YAML project context rendered into the system prompt")
	cmd.Flags().StringVar(&f.systemPrompt, "system-prompt", "", "System prompt used when no --context is given")
	cmd.Flags().StringArrayVar(&f.addDirs, "add-dir", nil, "Extra directory the CLI may access (repeatable)")
	cmd.Flags().StringVar(&f.sessionID, "session", "", "Session identifier (recorded in logs only)")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Print events as JSON lines")
	cmd.Flags().BoolVar(&f.interactive, "tui", false, "Show the request in an interactive viewer")
	cmd.MarkFlagsMutuallyExclusive("json", "tui")
	cmd.Flags().IntVar(&f.width, "width", 100, "Wrap width for terminal output (0 disables wrapping)")
	return cmd
}

// sender is the part of agent.Service that runSend drives.
type sender interface {
	SendMessage(ctx context.Context, message string, opts agent.SendOptions) (<-chan stream.Event, error)
	Cancel()
}

// runSend streams one request into sink. Cancelling ctx cancels the request
// while still rendering its terminal event.
func runSend(ctx context.Context, svc sender, message string, opts agent.SendOptions, sink eventSink) error {
	events, err := svc.SendMessage(context.Background(), message, opts)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, svc.Cancel)
	defer stop()

	var last stream.Event
	var sinkErr error
	for ev := range events {
		last = ev
		if sinkErr == nil {
			sinkErr = sink.Handle(ev)
		}
	}
	if sinkErr != nil {
		return fmt.Errorf("render events: %w", sinkErr)
	}
	return terminalError(last)
}

// runInteractive shows the request in the full-screen viewer, which handles
// ctrl+c itself.
func runInteractive(svc sender, message string, opts agent.SendOptions) error {
	events, err := svc.SendMessage(context.Background(), message, opts)
	if err != nil {
		return err
	}
	last, err := tui.Run(events, svc.Cancel)
	if err != nil {
		return fmt.Errorf("run viewer: %w", err)
	}
	return terminalError(last)
}

func terminalError(last stream.Event) error {
	if last.Type == stream.EventError {
		return &agent.Error{Code: last.Code, Message: last.Message}
	}
	return nil
}

func readMessage(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read message from stdin: %w", err)
		}
		args = []string{string(raw)}
	}
	message := strings.TrimSpace(strings.Join(args, " "))
	if message == "" {
		return "", errors.New("message is empty")
	}
	return message, nil
}
