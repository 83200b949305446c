package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"runview/internal/config"
	"runview/internal/form"
	"runview/internal/runclient"
	"runview/internal/web"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// useEvaluator points appCfg at a mocked /run endpoint.
func useEvaluator(t *testing.T, h http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Server.Addr, cfg.Server.Port = host, p
	cfg.Server.Timeout = "5s"
	appCfg = cfg
	logger = zap.NewNop()
}

// echo answers with the request body as results and "(body)" as AST.
func echo(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	json.NewEncoder(w).Encode(runclient.Result{Results: string(b), AST: "(" + string(b) + ")"})
}

func testCommand(in string) (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(in))
	return cmd, &out
}

// syncBuffer is a bytes.Buffer safe for one writer and one polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// =============================================================================
// PAYLOAD / OUTPUT
// =============================================================================

func TestResolvePayload(t *testing.T) {
	file := filepath.Join(t.TempDir(), "prog.txt")
	require.NoError(t, os.WriteFile(file, []byte("  from file\n"), 0o644))

	tests := []struct {
		name    string
		args    []string
		file    string
		stdin   string
		tty     bool
		want    string
		wantErr bool
	}{
		{name: "args joined", args: []string{"1", "+", "1"}, tty: true, want: "1 + 1"},
		{name: "file verbatim", file: file, tty: true, want: "  from file\n"},
		{name: "piped stdin", stdin: "1+1\n", want: "1+1\n"},
		{name: "args win over stdin", args: []string{"x"}, stdin: "ignored", want: "x"},
		{name: "args and file", args: []string{"x"}, file: file, wantErr: true},
		{name: "missing file", file: filepath.Join(t.TempDir(), "nope"), wantErr: true},
		{name: "nothing on a terminal", tty: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolvePayload(tt.args, tt.file, strings.NewReader(tt.stdin), tt.tty)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, runclient.Result{Results: "2", AST: "(+ 1 1)"}, false))
	assert.Equal(t, "RESULTS:\n2\n\nAST:\n(+ 1 1)\n", buf.String())

	buf.Reset()
	require.NoError(t, printResult(&buf, runclient.Result{Results: "2", AST: "(+ 1 1)"}, true))
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, map[string]string{"results": "2", "ast": "(+ 1 1)"}, decoded)
}

// =============================================================================
// RUN
// =============================================================================

func TestSubmitOnce_PrintsLabels(t *testing.T) {
	bodies := make(chan string, 1)
	useEvaluator(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies <- string(b)
		w.Write([]byte(`{"results":"2","ast":"(+ 1 1)"}`))
	})

	cmd, out := testCommand("")
	require.NoError(t, submitOnce(cmd, "1+1", false))

	assert.Equal(t, "1+1", <-bodies)
	assert.Equal(t, "RESULTS:\n2\n\nAST:\n(+ 1 1)\n", out.String())
}

func TestSubmitOnce_ErrorIsReturned(t *testing.T) {
	useEvaluator(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	cmd, out := testCommand("")
	err := submitOnce(cmd, "x", false)

	require.Error(t, err)
	var se *runclient.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Empty(t, out.String(), "nothing is printed for a failed run")
}

func TestSubmitOnce_Malformed(t *testing.T) {
	useEvaluator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":"only"}`))
	})

	cmd, _ := testCommand("")
	err := submitOnce(cmd, "x", false)
	assert.ErrorIs(t, err, runclient.ErrMissingField)
}

func TestRunRoot_PipedStdin(t *testing.T) {
	useEvaluator(t, echo)
	orig := stdinIsTerminal
	stdinIsTerminal = func() bool { return false }
	defer func() { stdinIsTerminal = orig }()

	cmd, out := testCommand("1+1")
	require.NoError(t, runRoot(cmd, nil))
	assert.Equal(t, "RESULTS:\n1+1\n\nAST:\n(1+1)\n", out.String())
}

// =============================================================================
// CONFIG
// =============================================================================

func flagCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&serverAddr, "addr", "", "")
	cmd.Flags().IntVar(&serverPort, "port", 0, "")
	cmd.Flags().StringVar(&timeout, "timeout", "", "")
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestLoadConfig_FlagsOverrideFileAndEnv(t *testing.T) {
	t.Setenv("SERVER_ADDR", "env-host")
	t.Setenv("SERVER_PORT", "7000")
	configPath = filepath.Join(t.TempDir(), "config.yaml")
	defer func() { configPath = "" }()

	cfg := config.DefaultConfig()
	cfg.Server.Addr = "file-host"
	require.NoError(t, cfg.Save(configPath))

	got, err := loadConfig(flagCommand(t))
	require.NoError(t, err)
	assert.Equal(t, "env-host", got.Server.Addr)
	assert.Equal(t, 7000, got.Server.Port)

	got, err = loadConfig(flagCommand(t, "--addr", "flag-host", "--port", "9000", "--timeout", "0"))
	require.NoError(t, err)
	assert.Equal(t, "http://flag-host:9000/run", got.Endpoint())
	assert.Equal(t, time.Duration(0), got.GetTimeout())
}

func TestLoadConfig_InvalidFlag(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "missing.yaml")
	defer func() { configPath = "" }()

	_, err := loadConfig(flagCommand(t, "--port", "70000"))
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestSetup_InteractiveRootLogsToFilesOnly(t *testing.T) {
	orig := stdinIsTerminal
	stdinIsTerminal = func() bool { return true }
	configPath = filepath.Join(t.TempDir(), "missing.yaml")
	defer func() {
		stdinIsTerminal = orig
		configPath = ""
		logger = zap.NewNop()
	}()

	require.NoError(t, setup(rootCmd, nil))
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel), "the terminal form owns stderr")

	require.NoError(t, setup(runCmd, nil))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel), "subcommands log to stderr")
	require.NotNil(t, appCfg)
}

func TestConfigInitAndShow(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "nested", "config.yaml")
	defer func() { configPath = ""; configForce = false }()

	cmd, out := testCommand("")
	require.NoError(t, configInit(cmd, nil))
	assert.Contains(t, out.String(), configPath)
	assert.FileExists(t, configPath)

	assert.Error(t, configInit(cmd, nil), "existing file is kept without --force")
	configForce = true
	assert.NoError(t, configInit(cmd, nil))

	appCfg, _ = config.Load(configPath)
	cmd, out = testCommand("")
	require.NoError(t, configShow(cmd, nil))
	assert.Contains(t, out.String(), "endpoint: http://localhost:8000/run")
	assert.Contains(t, out.String(), "port: 8000")
}

// =============================================================================
// WATCH / SERVE
// =============================================================================

func TestWatchFileRuns_ReRunsOnChange(t *testing.T) {
	useEvaluator(t, echo)
	path := filepath.Join(t.TempDir(), "prog.txt")
	require.NoError(t, os.WriteFile(path, []byte("1+1"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := newClient(appCfg)
	defer client.Close()

	var out syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- watchFileRuns(ctx, form.New(client), path, 20*time.Millisecond, &out, false)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "RESULTS:\n1+1\n")
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("2+2"), 0o644))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "RESULTS:\n2+2\n")
	}, 3*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "--- run #1 ")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestWatchFileRuns_ReportsFailures(t *testing.T) {
	useEvaluator(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	path := filepath.Join(t.TempDir(), "prog.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := newClient(appCfg)
	defer client.Close()

	var out syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- watchFileRuns(ctx, form.New(client), path, 20*time.Millisecond, &out, false)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "status 500")
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done, "failed runs do not stop watching")
}

func TestWatchFileRuns_MissingFile(t *testing.T) {
	useEvaluator(t, echo)
	client := newClient(appCfg)
	defer client.Close()

	err := watchFileRuns(context.Background(), form.New(client), filepath.Join(t.TempDir(), "nope"), 0, io.Discard, false)
	assert.Error(t, err)
}

func TestServeUntilDone(t *testing.T) {
	useEvaluator(t, echo)
	client := newClient(appCfg)
	defer client.Close()

	srv, err := web.New(form.New(client), web.Config{Listen: "127.0.0.1:0"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveUntilDone(ctx, srv) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(web.ShutdownGrace + time.Second):
		t.Fatal("serve did not stop")
	}
}
