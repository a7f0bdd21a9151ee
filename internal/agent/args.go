package agent

import (
	"github.com/yubzen/specpilot/internal/prompt"
	"github.com/yubzen/specpilot/internal/scrub"
)

var baseArgs = []string{"--print", "--output-format", "stream-json", "--verbose"}

type SendOptions struct {
	// Context, when set, is rendered into the system prompt and takes
	// precedence over SystemPrompt.
	Context      *prompt.ProjectContext
	SystemPrompt string
	// IncludeFiles are passed to the CLI as --add-dir entries.
	IncludeFiles []string

	// SessionID and ContinueSession are accepted but not forwarded.
	SessionID       string
	ContinueSession bool
}

// buildArgs assembles the CLI argument vector. The message is always last.
func (s *Service) buildArgs(message string, opts SendOptions) []string {
	args := append([]string(nil), baseArgs...)

	system := opts.SystemPrompt
	if opts.Context != nil {
		system = s.builder.Build(opts.Context)
	}
	if system != "" {
		args = append(args, "--system-prompt", s.clean(system))
	}

	for _, dir := range s.extraDirs {
		args = append(args, "--add-dir", dir)
	}
	for _, dir := range opts.IncludeFiles {
		args = append(args, "--add-dir", dir)
	}
	return append(args, s.clean(message))
}

func (s *Service) clean(text string) string {
	if !s.scrub {
		return text
	}
	return scrub.Clean(text)
}
