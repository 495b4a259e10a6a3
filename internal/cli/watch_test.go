package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startWatch runs the watch command in the background and returns its
// completion channel.
func startWatch(t *testing.T, ctx context.Context, args ...string) <-chan error {
	t.Helper()

	t.Setenv("BLOCKWAIT_DISABLE_LOGS", "true")

	root := NewRootCommand()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(append([]string{"watch"}, args...))

	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()
	return done
}

// waitForEndpoint polls url until it answers 200 or the timeout lapses
func waitForEndpoint(t *testing.T, url string, timeout time.Duration) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

// requireStopped cancels the watch and waits for a clean exit
func requireStopped(t *testing.T, cancel context.CancelFunc, done <-chan error) {
	t.Helper()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestWatchCommandStopsOnContextCancel(t *testing.T) {
	// Arrange
	node := newFakeNode(t, 100, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Act
	done := startWatch(t, ctx, "--rpc-addr", node.addr(), "--track-interval", "100ms")

	// Let the tracker observe at least once
	time.Sleep(300 * time.Millisecond)

	// Assert
	requireStopped(t, cancel, done)
	assert.GreaterOrEqual(t, node.queryCount(), 1)
}

func TestWatchCommandServesAPI(t *testing.T) {
	// Arrange
	node := newFakeNode(t, 4242, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Act
	done := startWatch(t, ctx,
		"--rpc-addr", node.addr(),
		"--track-interval", "100ms",
		"--api", "--api-port", "19280")

	// Assert
	require.True(t, waitForEndpoint(t, "http://localhost:19280/ready", 3*time.Second))

	resp, err := http.Get("http://localhost:19280/api/v1/height")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, float64(4242), snap["height"])

	requireStopped(t, cancel, done)
}

func TestWatchCommandServesMetrics(t *testing.T) {
	// Arrange
	node := newFakeNode(t, 888, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Act
	done := startWatch(t, ctx,
		"--rpc-addr", node.addr(),
		"--track-interval", "100ms",
		"--metrics", "--metrics-port", "19281")

	// Assert
	require.True(t, waitForEndpoint(t, "http://localhost:19281/ready", 3*time.Second))

	resp, err := http.Get("http://localhost:19281/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "blockwait_current_height")
	assert.Contains(t, string(body), "blockwait_height_queries_total")

	requireStopped(t, cancel, done)
}

func TestWatchCommandWithConfigFile(t *testing.T) {
	// Arrange
	node := newFakeNode(t, 10, 1)
	path := filepath.Join(t.TempDir(), "blockwait.toml")
	content := fmt.Sprintf("rpc_addresses = [%q]\ntrack_interval = \"100ms\"\n", node.addr())
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Act
	done := startWatch(t, ctx, "--config", path)

	// Rewrite the file mid-run so the watcher sees a change
	time.Sleep(300 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(content+"quiet = true\n"), 0644))
	time.Sleep(300 * time.Millisecond)

	// Assert
	requireStopped(t, cancel, done)
	assert.GreaterOrEqual(t, node.queryCount(), 2)
}
