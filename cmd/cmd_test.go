package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/enroll-cli/internal/config"
	"github.com/xkilldash9x/enroll-cli/internal/service"
)

type stubEngine struct {
	err error
	ran bool
}

func (s *stubEngine) Run(context.Context) error {
	s.ran = true
	return s.err
}

// fakeFactory records the configuration it was handed.
type fakeFactory struct {
	engine *stubEngine
	err    error
	cfg    config.Interface
}

func (f *fakeFactory) Create(_ context.Context, cfg config.Interface, _ *zap.Logger) (*service.Components, error) {
	f.cfg = cfg
	if f.err != nil {
		return nil, f.err
	}
	return &service.Components{Engine: f.engine}, nil
}

// execute runs a fresh command tree with the given factory and stdin.
func execute(t *testing.T, factory service.ComponentFactory, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd(factory)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCmd_VersionFlag(t *testing.T) {
	out, _, err := execute(t, &fakeFactory{}, "", "--version")
	require.NoError(t, err)
	assert.Equal(t, "enroll-cli version dev\n", out)
}

func TestVersionCmd(t *testing.T) {
	out, _, err := execute(t, &fakeFactory{}, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "enroll-cli version dev\n", out)
}

func TestRunCmd_ConfigEnvAndFlagPrecedence(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", `
flow:
  target_url: https://example.test/register
  max_attempts: 2
engine:
  instances: 1
`)
	t.Setenv("ENROLL_ENGINE_INSTANCES", "3")

	factory := &fakeFactory{engine: &stubEngine{}}
	_, _, err := execute(t, factory, "", "run", "--config", cfgPath, "--max-attempts", "5", "--headless=false")
	require.NoError(t, err)
	require.NotNil(t, factory.cfg)

	assert.Equal(t, "https://example.test/register", factory.cfg.Flow().TargetURL)
	assert.Equal(t, 3, factory.cfg.Engine().Instances, "env overrides the file")
	assert.Equal(t, 5, factory.cfg.Flow().MaxAttempts, "flag overrides the file")
	assert.False(t, factory.cfg.Browser().Headless)
	assert.True(t, factory.engine.ran)
}

func TestRunCmd_TargetFlag(t *testing.T) {
	factory := &fakeFactory{engine: &stubEngine{}}
	_, _, err := execute(t, factory, "", "run", "--target", "http://127.0.0.1:8080/signup", "-n", "4")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/signup", factory.cfg.Flow().TargetURL)
	assert.Equal(t, 4, factory.cfg.Engine().Instances)
	assert.Equal(t, 0, factory.cfg.Flow().MaxAttempts, "unbounded unless capped")
}

func TestRunCmd_Errors(t *testing.T) {
	t.Run("FactoryFailure", func(t *testing.T) {
		factory := &fakeFactory{err: errors.New("flow.target_url is required")}
		_, _, err := execute(t, factory, "", "run")
		assert.ErrorContains(t, err, "failed to initialize components: flow.target_url is required")
	})

	t.Run("EngineFailure", func(t *testing.T) {
		factory := &fakeFactory{engine: &stubEngine{err: errors.New("instance 1: failed to start")}}
		_, _, err := execute(t, factory, "", "run", "--target", "http://127.0.0.1/")
		assert.ErrorContains(t, err, "instance 1: failed to start")
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		cfgPath := writeFile(t, "bad.yaml", "engine:\n  instances: 0\n")
		_, _, err := execute(t, &fakeFactory{}, "", "run", "--config", cfgPath)
		assert.ErrorContains(t, err, "engine.instances must be a positive integer")
	})

	t.Run("InvalidFlagOverride", func(t *testing.T) {
		factory := &fakeFactory{engine: &stubEngine{}}
		_, _, err := execute(t, factory, "", "run", "--target", "http://127.0.0.1/", "--max-attempts", "-1")
		assert.ErrorContains(t, err, "invalid flag override: flow.max_attempts must not be negative")
		assert.Nil(t, factory.cfg)

		_, _, err = execute(t, factory, "", "run", "--target", "http://127.0.0.1/", "--instances", "0")
		assert.ErrorContains(t, err, "engine.instances must be a positive integer")
	})

	t.Run("UnreadableConfig", func(t *testing.T) {
		cfgPath := writeFile(t, "broken.yaml", "flow: [unterminated\n")
		_, _, err := execute(t, &fakeFactory{}, "", "run", "--config", cfgPath)
		assert.ErrorContains(t, err, "error reading config file")
	})

	t.Run("UnexpectedArgs", func(t *testing.T) {
		_, _, err := execute(t, &fakeFactory{}, "", "run", "extra")
		assert.Error(t, err)
	})
}
