package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yubzen/specpilot/internal/prompt"
)

func newContextCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Inspect the system prompt built from a project context file",
	}

	var watch, stats bool
	render := &cobra.Command{
		Use:   "render <project.yaml>",
		Short: "Print the rendered system prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			b := rt.builder()
			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
			if err := renderContext(out, errOut, b, path, stats); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchFile(ctx, path, rt.logger, func() {
				fmt.Fprintln(out, "\n---")
				if err := renderContext(out, errOut, b, path, stats); err != nil {
					rt.logger.Warn("re-render failed", zap.String("path", path), zap.Error(err))
					fmt.Fprintf(errOut, "warning: %v\n", err)
				}
			})
		},
	}
	render.Flags().BoolVarP(&watch, "watch", "w", false, "Re-render whenever the file changes")
	render.Flags().BoolVar(&stats, "stats", false, "Print size and omission counts to stderr")

	cmd.AddCommand(render)
	return cmd
}

func renderContext(out, errOut io.Writer, b *prompt.Builder, path string, stats bool) error {
	pc, err := prompt.LoadProjectContext(path)
	if err != nil {
		return err
	}
	res := b.Render(pc)
	if _, err := io.WriteString(out, res.Text); err != nil {
		return err
	}
	if stats {
		fmt.Fprintf(errOut, "size=%d max=%d summarized=%t omitted_requirements=%d omitted_decisions=%d omitted_specs=%d\n",
			len(res.Text), b.Options().MaxSize, res.Summarized,
			res.OmittedRequirements, res.OmittedDecisions, res.OmittedSpecs)
	}
	return nil
}
