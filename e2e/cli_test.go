package e2e_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/lessonprogress/internal/api"
	"github.com/mcoot/lessonprogress/internal/factory"
	"github.com/mcoot/lessonprogress/internal/model"
	"github.com/mcoot/lessonprogress/internal/testutil"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
	tokenFile  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(t.TempDir(), "progressctl-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/progressctl")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
		tokenFile:  filepath.Join(t.TempDir(), "token"),
	}
}

func (r *cliRunner) command(args ...string) *exec.Cmd {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--token-file", r.tokenFile,
		"--output", "json",
	}, args...)
	return exec.Command(r.binaryPath, fullArgs...)
}

func (r *cliRunner) run(args ...string) (string, error) {
	output, err := r.command(args...).CombinedOutput()
	return string(output), err
}

func (r *cliRunner) runWithToken(token string, args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--token", token,
		"--output", "json",
	}, args...)

	output, err := exec.Command(r.binaryPath, fullArgs...).CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	app, err := factory.New(context.Background(), factory.Config{})
	require.NoError(t, err)

	logger := testutil.NopLogger()
	router := api.NewRouter(api.RouterConfig{
		Logger:          logger,
		AuthService:     app.AuthService,
		ProgressService: app.ProgressService,
		HubManager:      app.HubManager,
	})

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	// Wait for server to be ready
	serverURL := "http://" + addr
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		addr: serverURL,
		shutdown: func() {
			app.HubManager.CloseAll()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
			_ = app.Close()
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing
type accountResponse struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
	IsGuest     bool   `json:"is_guest"`
}

type authResponse struct {
	Account      accountResponse `json:"account"`
	SessionToken string          `json:"session_token"`
}

type recordResponse struct {
	Owner             string   `json:"owner"`
	CompletedLessons  []string `json:"completed_lessons"`
	Points            uint32   `json:"points"`
	AllocatedBalance  uint64   `json:"allocated_balance"`
	RemainingCapacity int      `json:"remaining_capacity"`
}

type completionResponse struct {
	Outcome string         `json:"outcome"`
	Record  recordResponse `json:"record"`
}

type layoutResponse struct {
	Capacity          int  `json:"capacity"`
	MaxLessonIDLength int  `json:"max_lesson_id_length"`
	RecordSize        int  `json:"record_size"`
	Rewards           bool `json:"rewards"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func decode[T any](t *testing.T, output string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(output), &v), "output: %s", output)
	return v
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)
	assert.Equal(t, "ok", decode[healthResponse](t, output).Status)
}

func TestCLI_Layout(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("layout")
	require.NoError(t, err, "output: %s", output)

	layout := decode[layoutResponse](t, output)
	assert.Equal(t, model.DefaultCapacity, layout.Capacity)
	assert.Equal(t, model.DefaultLayout().Size(), layout.RecordSize)
	assert.True(t, layout.Rewards)
}

func TestCLI_AccountCommands(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Create guest
	output, err := cli.run("account", "guest", "--name", "Alice")
	require.NoError(t, err, "output: %s", output)

	authResp := decode[authResponse](t, output)
	assert.Equal(t, "Alice", authResp.Account.DisplayName)
	assert.True(t, authResp.Account.IsGuest)
	assert.NotEmpty(t, authResp.SessionToken)

	// Get me (token should be saved in token file)
	output, err = cli.run("account", "me")
	require.NoError(t, err, "output: %s", output)
	assert.Equal(t, authResp.Account.Identity, decode[accountResponse](t, output).Identity)

	// Register and login on a second runner
	other := newCLIRunner(t, ts.addr)
	output, err = other.run("account", "register", "--name", "Bob", "--user", "bob", "--pass", "pw123")
	require.NoError(t, err, "output: %s", output)
	registered := decode[authResponse](t, output)

	output, err = other.run("account", "login", "--user", "bob", "--pass", "pw123")
	require.NoError(t, err, "output: %s", output)
	assert.Equal(t, registered.Account.Identity, decode[authResponse](t, output).Account.Identity)

	// Logout invalidates the saved token
	_, err = other.run("account", "logout")
	require.NoError(t, err)
	output, err = other.run("account", "me")
	assert.Error(t, err)
	assert.Contains(t, output, "UNAUTHORIZED")
}

func TestCLI_ProgressWalkthrough(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("account", "guest", "--name", "Alice")
	require.NoError(t, err, "output: %s", output)
	alice := decode[authResponse](t, output).Account.Identity

	// Initialize
	output, err = cli.run("progress", "init")
	require.NoError(t, err, "output: %s", output)
	record := decode[recordResponse](t, output)
	assert.Equal(t, alice, record.Owner)
	assert.Empty(t, record.CompletedLessons)

	// Complete
	output, err = cli.run("progress", "complete", "--lesson", "intro-1", "--points", "10")
	require.NoError(t, err, "output: %s", output)
	completion := decode[completionResponse](t, output)
	assert.Equal(t, "applied", completion.Outcome)
	assert.Equal(t, uint32(10), completion.Record.Points)

	// Repeat
	output, err = cli.run("progress", "complete", "--lesson", "intro-1", "--points", "10")
	require.NoError(t, err, "output: %s", output)
	completion = decode[completionResponse](t, output)
	assert.Equal(t, "noop", completion.Outcome)
	assert.Equal(t, uint32(10), completion.Record.Points)

	// Reward
	output, err = cli.run("progress", "complete", "--lesson", "intro-2", "--points", "5", "--reward", "100")
	require.NoError(t, err, "output: %s", output)
	completion = decode[completionResponse](t, output)
	assert.Equal(t, uint32(15), completion.Record.Points)
	assert.Equal(t, uint64(100), completion.Record.AllocatedBalance)

	// Initialize again
	output, err = cli.run("progress", "init")
	assert.Error(t, err)
	assert.Contains(t, output, "ALREADY_INITIALIZED")

	// Show someone else's record
	other := newCLIRunner(t, ts.addr)
	_, err = other.run("account", "guest", "--name", "Bob")
	require.NoError(t, err)
	output, err = other.run("progress", "show", alice)
	require.NoError(t, err, "output: %s", output)
	assert.Equal(t, []string{"intro-1", "intro-2"}, decode[recordResponse](t, output).CompletedLessons)
}

func TestCLI_Events(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("account", "guest", "--name", "Alice")
	require.NoError(t, err, "output: %s", output)
	_, err = cli.run("progress", "init")
	require.NoError(t, err)

	// Stream events in the background
	stream := cli.command("events", "--json")
	stdout, err := stream.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, stream.Start())
	defer func() {
		_ = stream.Process.Kill()
		_ = stream.Wait()
	}()

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	nextEvent := func() string {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream closed")
			var evt struct {
				Event string `json:"event"`
			}
			require.NoError(t, json.Unmarshal([]byte(line), &evt), line)
			return evt.Event
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for event")
			return ""
		}
	}

	require.Equal(t, "connected", nextEvent())

	_, err = cli.run("progress", "complete", "--lesson", "intro-1", "--points", "10")
	require.NoError(t, err)
	assert.Equal(t, string(model.EventLessonCompleted), nextEvent())

	_, err = cli.run("progress", "complete", "--lesson", "intro-1", "--points", "10")
	require.NoError(t, err)
	assert.Equal(t, string(model.EventLessonAlreadyCompleted), nextEvent())
}

func TestCLI_ErrorHandling(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// No token
	output, err := cli.run("account", "me")
	assert.Error(t, err)
	assert.Contains(t, output, "UNAUTHORIZED")

	output, err = cli.run("account", "guest", "--name", "Alice")
	require.NoError(t, err, "output: %s", output)
	token := decode[authResponse](t, output).SessionToken

	// Record not found
	output, err = cli.runWithToken(token, "progress", "show")
	assert.Error(t, err)
	assert.Contains(t, output, "RECORD_NOT_FOUND")

	// Invalid identity
	output, err = cli.runWithToken(token, "progress", "show", "nothex")
	assert.Error(t, err)
	assert.Contains(t, output, "INVALID_IDENTITY")

	// Lesson id too long
	_, err = cli.runWithToken(token, "progress", "init")
	require.NoError(t, err)
	output, err = cli.runWithToken(token, "progress", "complete", "--lesson", strings.Repeat("x", model.DefaultMaxLessonIDLength+1))
	assert.Error(t, err)
	assert.Contains(t, output, "INVALID_LESSON_ID")
}
