package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yubzen/specpilot/internal/agent"
	"github.com/yubzen/specpilot/internal/config"
	"github.com/yubzen/specpilot/internal/stream"
)

// scriptedSender replays events; when hold is set it waits for Cancel before
// sending the cancellation event.
type scriptedSender struct {
	events    []stream.Event
	hold      bool
	sendErr   error
	cancelled chan struct{}
	cancels   atomic.Int32
}

func (s *scriptedSender) SendMessage(context.Context, string, agent.SendOptions) (<-chan stream.Event, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	ch := make(chan stream.Event)
	go func() {
		defer close(ch)
		for _, ev := range s.events {
			ch <- ev
		}
		if s.hold {
			<-s.cancelled
			ch <- stream.Error("Request cancelled", stream.CodeCancelled)
		}
	}()
	return ch, nil
}

func (s *scriptedSender) Cancel() {
	if s.cancels.Add(1) == 1 && s.cancelled != nil {
		close(s.cancelled)
	}
}

func TestRunSendRendersUntilComplete(t *testing.T) {
	t.Parallel()

	svc := &scriptedSender{events: []stream.Event{stream.Start(time.Now()), stream.Text("hello\n"), stream.Complete(time.Now())}}
	var buf bytes.Buffer
	err := runSend(context.Background(), svc, "hi", agent.SendOptions{}, newTerminalSink(&buf, 0))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "hello\ndone\n")
	assert.Zero(t, svc.cancels.Load())
}

func TestRunSendReturnsTerminalError(t *testing.T) {
	t.Parallel()

	svc := &scriptedSender{events: []stream.Event{stream.Start(time.Now()), stream.Error("exit 2: boom", stream.CodeUnknown)}}
	var buf bytes.Buffer
	err := runSend(context.Background(), svc, "hi", agent.SendOptions{}, newJSONSink(&buf))

	var aerr *agent.Error
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, stream.CodeUnknown, aerr.Code)
	assert.Equal(t, "exit 2: boom", aerr.Message)
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestRunSendCancelsWhenContextEnds(t *testing.T) {
	t.Parallel()

	svc := &scriptedSender{events: []stream.Event{stream.Start(time.Now())}, hold: true, cancelled: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	var buf bytes.Buffer
	err := runSend(ctx, svc, "hi", agent.SendOptions{}, newTerminalSink(&buf, 0))
	assert.ErrorIs(t, err, agent.ErrCancelled)
	assert.Contains(t, buf.String(), "Request cancelled [CANCELLED]")
	assert.Equal(t, int32(1), svc.cancels.Load())
}

func TestRunSendBusy(t *testing.T) {
	t.Parallel()

	err := runSend(context.Background(), &scriptedSender{sendErr: agent.ErrBusy}, "hi", agent.SendOptions{}, newJSONSink(&bytes.Buffer{}))
	assert.ErrorIs(t, err, agent.ErrBusy)
}

func TestReadMessage(t *testing.T) {
	t.Parallel()

	msg, err := readMessage([]string{"write", "the", "spec"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "write the spec", msg)

	msg, err = readMessage([]string{"-"}, strings.NewReader("  from stdin\n"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin", msg)

	_, err = readMessage([]string{"-"}, strings.NewReader("   "))
	assert.EqualError(t, err, "message is empty")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func TestConfigInitShowAndPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "specpilot", "config.toml")

	out, err := execute(t, "config", "path", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)

	out, err = execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	_, err = execute(t, "config", "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")
	_, err = execute(t, "config", "init", "--config", path, "--force")
	assert.NoError(t, err)

	cfg, err := config.LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	out, err = execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "[cli]")
	assert.Contains(t, out, `executable = "claude"`)
	assert.Contains(t, out, "max_size = 16000")
}

func TestContextRender(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[context]\nmax_size = 100000\n"), 0o644))
	project := filepath.Join(dir, "project.yaml")
	require.NoError(t, os.WriteFile(project, []byte("name: Ledger\nmode: generate\nrequirements:\n  - id: R1\n    text: Accounts have a currency.\n"), 0o644))

	out, err := execute(t, "context", "render", project, "--config", cfgPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# Project: Ledger\n"))
	assert.Contains(t, out, "- [R1] Accounts have a currency.")

	_, err = execute(t, "context", "render", filepath.Join(dir, "missing.yaml"), "--config", cfgPath)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCheckReportsMissingExecutable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	missing := filepath.Join(dir, "no-such-cli")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[cli]\nexecutable = \""+missing+"\"\n"), 0o644))

	_, err := execute(t, "check", "--config", cfgPath)
	var aerr *agent.Error
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, stream.CodeNotAvailable, aerr.Code)
	assert.Contains(t, aerr.Message, missing)
}

func TestWatchFileCallsOnChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: one\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, path, zap.NewNop(), func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(2 * watchDebounce)
	defer tick.Stop()
wait:
	for {
		select {
		case <-changed:
			break wait
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, []byte("name: two\n"), 0o644))
		case <-deadline:
			t.Fatal("no change notification")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watchFile did not return after cancel")
	}
}
