// Package cli wires the specpilot cobra commands.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yubzen/specpilot/internal/agent"
	"github.com/yubzen/specpilot/internal/config"
	"github.com/yubzen/specpilot/internal/logging"
	"github.com/yubzen/specpilot/internal/process"
	"github.com/yubzen/specpilot/internal/prompt"
)

// runtime holds what PersistentPreRunE resolved for the running command.
type runtime struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

func (rt *runtime) load() error {
	path := rt.configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return err
	}
	if rt.logLevel != "" {
		cfg.Log.Level = rt.logLevel
	}
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return err
	}
	rt.cfg = cfg
	rt.logger = logger
	return nil
}

func (rt *runtime) resolvedConfigPath() string {
	if rt.configPath != "" {
		return rt.configPath
	}
	return config.GetConfigPath()
}

func (rt *runtime) builder() *prompt.Builder {
	return prompt.NewBuilder(rt.cfg.BuilderOptions())
}

func (rt *runtime) manager() *process.Manager {
	return process.NewManager(rt.cfg.CLI.Executable,
		process.WithLogger(rt.logger.Named("process")),
		process.WithProbeTimeout(rt.cfg.ProbeTimeout()),
	)
}

func (rt *runtime) service() *agent.Service {
	return agent.NewService(rt.manager(),
		agent.WithLogger(rt.logger.Named("agent")),
		agent.WithTimeout(rt.cfg.Timeout()),
		agent.WithWorkingDir(rt.cfg.CLI.WorkingDir),
		agent.WithExtraDirs(rt.cfg.CLI.AddDirs...),
		agent.WithBuilder(rt.builder()),
		agent.WithScrub(rt.cfg.CLI.ScrubSecrets),
	)
}

func NewRootCmd() *cobra.Command {
	rt := &runtime{}
	root := &cobra.Command{
		Use:           "specpilot",
		Short:         "Drive the Claude CLI to write and refine project specs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.logger != nil {
				_ = rt.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&rt.configPath, "config", "", "Config file (default ~/.config/specpilot/config.toml)")
	root.PersistentFlags().StringVar(&rt.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(
		newSendCmd(rt),
		newCheckCmd(rt),
		newContextCmd(rt),
		newConfigCmd(rt),
	)
	return root
}
