package main

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"emotrack/internal/config"
	"emotrack/internal/testsupport"
)

const cliToken = "cli-token"

type cliTestEnv struct {
	server     *testsupport.APIServer
	cfg        *config.Config
	configPath string
}

// setupCLITestEnv serves a daemon API in-process and writes a config file
// pointing the CLI at it.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	isolateEnv(t)

	opts = append([]testsupport.ConfigOption{testsupport.WithAPIToken(cliToken)}, opts...)
	server := testsupport.StartAPI(t, opts...)
	cfg := *server.Config
	cfg.Paths.APIBind = strings.TrimPrefix(server.URL(), "http://")

	env := &cliTestEnv{server: server, cfg: &cfg}
	env.configPath = writeTestConfig(t, &cfg)
	return env
}

// setupOfflineEnv writes a config whose API address has nothing listening.
func setupOfflineEnv(t *testing.T) (*config.Config, string) {
	t.Helper()
	isolateEnv(t)

	cfg := testsupport.NewConfig(t, testsupport.WithModelFiles())
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	cfg.Paths.APIBind = listener.Addr().String()
	_ = listener.Close()
	return cfg, writeTestConfig(t, cfg)
}

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{"EMOTRACK_STORAGE_ROOT", "EMOTRACK_API_TOKEN", "EMOTRACK_MODEL_PATH"} {
		t.Setenv(key, "")
	}
}

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	content := fmt.Sprintf(`[paths]
storage_root = %q
state_dir = %q
log_dir = %q
api_bind = %q
api_token = %q

[model]
classifier_path = %q
cascade_path = %q
`,
		cfg.Paths.StorageRoot,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		cfg.Paths.APIToken,
		cfg.Model.ClassifierPath,
		cfg.Model.CascadePath,
	)
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "group.png")
	if err := os.WriteFile(path, testsupport.PNG(t, testsupport.Frame(64, 64)), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}
