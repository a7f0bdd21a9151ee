package process

import (
	"context"
	"os/exec"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Availability is the result of probing the CLI with --version.
type Availability struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
}

var versionPattern = regexp.MustCompile(`\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?`)

// CheckAvailability probes the executable outside the process slot, so it
// can run while a request is streaming. Concurrent probes share one run.
func (m *Manager) CheckAvailability(ctx context.Context) Availability {
	if ctx == nil {
		ctx = context.Background()
	}
	v, _, _ := m.probes.Do(probeFlightName, func() (any, error) {
		return m.probe(ctx), nil
	})
	return v.(Availability)
}

func (m *Manager) probe(ctx context.Context) Availability {
	ctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, m.executable, "--version").CombinedOutput()
	if err != nil {
		m.logger.Info("CLI version probe failed",
			zap.String("executable", m.executable),
			zap.Error(err),
			zap.String("output", strings.TrimSpace(string(out))),
		)
		return Availability{}
	}
	return Availability{
		Available: true,
		Version:   ParseVersion(string(out)),
	}
}

// ParseVersion returns the first semantic version found in output.
func ParseVersion(output string) string {
	return versionPattern.FindString(output)
}
