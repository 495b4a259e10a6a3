package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wemix/blockwait/pkg/types"
)

// fakeNode serves the JSON-RPC status method with a scripted height. The
// height grows by advance after every query, so the baseline query sees the
// starting value and each poll sees one step more.
type fakeNode struct {
	mu      sync.Mutex
	height  int64
	advance int64
	calls   int
	server  *httptest.Server
}

func newFakeNode(t *testing.T, height, advance int64) *fakeNode {
	t.Helper()

	n := &fakeNode{height: height, advance: advance}
	n.server = httptest.NewServer(http.HandlerFunc(n.handle))
	t.Cleanup(n.server.Close)
	return n
}

func (n *fakeNode) handle(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	h := n.height
	n.height += n.advance
	n.calls++
	n.mu.Unlock()

	fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":{"sync_info":{"latest_block_height":"%d","catching_up":false}}}`, h)
}

// addr returns the host:port form expected by --rpc-addr
func (n *fakeNode) addr() string {
	return strings.TrimPrefix(n.server.URL, "http://")
}

func (n *fakeNode) queryCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

// runCommand executes the CLI with the given arguments and captures output
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	t.Setenv("BLOCKWAIT_DISABLE_LOGS", "true")

	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func TestWaitCommandReachesTarget(t *testing.T) {
	// Arrange
	node := newFakeNode(t, 100, 1)

	// Act
	out, err := runCommand(t,
		"wait", "-n", "2",
		"--rpc-addr", node.addr(),
		"--poll-interval", "100ms",
		"--timeout", "10s")

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out, "reached height 102")
	assert.Contains(t, out, "baseline 100")
}

func TestWaitCommandZeroOffset(t *testing.T) {
	// Arrange
	node := newFakeNode(t, 500, 0)

	// Act
	out, err := runCommand(t, "wait", "-n", "0", "--rpc-addr", node.addr())

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out, "reached height 500")
	assert.Equal(t, 1, node.queryCount(), "zero offset should only need the baseline query")
}

func TestWaitCommandWritesReport(t *testing.T) {
	// Arrange
	node := newFakeNode(t, 100, 1)
	reportPath := filepath.Join(t.TempDir(), "report.json")

	// Act
	_, err := runCommand(t,
		"wait", "-n", "2",
		"--rpc-addr", node.addr(),
		"--poll-interval", "100ms",
		"--timeout", "10s",
		"--report-file", reportPath)

	// Assert
	require.NoError(t, err)

	reports, err := types.ParseReportFile(reportPath)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, types.StatusSucceeded, reports[0].Status)
	assert.Equal(t, int64(100), reports[0].BaselineHeight)
	assert.Equal(t, int64(102), reports[0].TargetHeight)
	assert.Equal(t, int64(102), reports[0].FinalHeight)
	assert.Equal(t, 2, reports[0].Cycles)
	assert.Empty(t, reports[0].Cause)
}

func TestWaitCommandJSONOutput(t *testing.T) {
	// Arrange
	node := newFakeNode(t, 100, 1)

	// Act
	out, err := runCommand(t,
		"wait", "-n", "1",
		"--rpc-addr", node.addr(),
		"--poll-interval", "100ms",
		"--timeout", "10s",
		"--json")

	// Assert
	require.NoError(t, err)

	var reports []types.WaitReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, types.StatusSucceeded, reports[0].Status)
	assert.Equal(t, int64(101), reports[0].FinalHeight)
}

func TestWaitCommandTimesOut(t *testing.T) {
	// Arrange: height never advances
	node := newFakeNode(t, 100, 0)

	// Act
	out, err := runCommand(t,
		"wait", "-n", "5",
		"--rpc-addr", node.addr(),
		"--poll-interval", "100ms",
		"--timeout", "300ms")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWaitTimedOut))
	assert.False(t, errors.Is(err, ErrWaitFailed))
	assert.Contains(t, out, "timed out at height 100")
}

func TestWaitCommandBaselineFailure(t *testing.T) {
	// Arrange: nothing listening on the address anymore
	node := newFakeNode(t, 100, 0)
	node.server.Close()

	// Act
	out, err := runCommand(t,
		"wait", "-n", "1",
		"--rpc-addr", node.addr(),
		"--poll-interval", "100ms")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWaitFailed))
	assert.Contains(t, out, "baseline_query_failed")
}

func TestWaitCommandMultipleNodes(t *testing.T) {
	// Arrange
	fast := newFakeNode(t, 100, 2)
	slow := newFakeNode(t, 9000, 1)
	reportPath := filepath.Join(t.TempDir(), "report.json")

	// Act
	_, err := runCommand(t,
		"wait", "-n", "2",
		"--rpc-addr", fast.addr(),
		"--rpc-addr", slow.addr(),
		"--poll-interval", "100ms",
		"--timeout", "10s",
		"--report-file", reportPath)

	// Assert
	require.NoError(t, err)

	reports, err := types.ParseReportFile(reportPath)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	// Report order follows the configured address order
	assert.Equal(t, "http://"+fast.addr(), reports[0].Node)
	assert.Equal(t, "http://"+slow.addr(), reports[1].Node)
	for _, r := range reports {
		assert.Equal(t, types.StatusSucceeded, r.Status)
	}
	assert.Equal(t, int64(9002), reports[1].TargetHeight)
}

func TestWaitCommandFailureOutranksTimeout(t *testing.T) {
	// Arrange: one node stuck, one node dead
	stuck := newFakeNode(t, 100, 0)
	dead := newFakeNode(t, 0, 0)
	dead.server.Close()

	// Act
	_, err := runCommand(t,
		"wait", "-n", "3",
		"--rpc-addr", stuck.addr(),
		"--rpc-addr", dead.addr(),
		"--poll-interval", "100ms",
		"--timeout", "300ms")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWaitFailed))
	assert.False(t, errors.Is(err, ErrWaitTimedOut))
}

func TestWaitCommandEthSource(t *testing.T) {
	// Arrange: eth nodes answer eth_blockNumber with a hex quantity
	var mu sync.Mutex
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		h := 0x100 + calls
		calls++
		mu.Unlock()
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":"0x%x"}`, h)
	}))
	defer server.Close()

	// Act
	out, err := runCommand(t,
		"wait", "-n", "1",
		"--source", "eth",
		"--rpc-addr", strings.TrimPrefix(server.URL, "http://"),
		"--poll-interval", "100ms",
		"--timeout", "10s")

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out, "reached height 257")
}

func TestWaitCommandRejectsInvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{
			name: "unknown source",
			args: []string{"wait", "--source", "solana"},
		},
		{
			name: "negative offset",
			args: []string{"wait", "--offset=-3"},
		},
		{
			name: "poll interval too short",
			args: []string{"wait", "--poll-interval", "10ms"},
		},
		{
			name: "zero max query retries",
			args: []string{"wait", "--max-query-retries", "0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCommand(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}
