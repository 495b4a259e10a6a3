package await

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wemix/blockwait/internal/source"
	"github.com/wemix/blockwait/pkg/logger"
)

func TestAwaitAllMixedOutcomes(t *testing.T) {
	// Arrange - one healthy node, one that cannot even answer the
	// baseline query
	good := &climbingSource{name: "node-a", height: 100}
	bad := newMockSource(step{err: errors.New("connection refused")})
	bad.name = "node-b"

	sources := []source.HeightSource{good, bad}
	req := Request{Offset: 2, PollInterval: 5 * time.Millisecond}

	// Act
	results := AwaitAll(context.Background(), sources, logger.NewTestLogger(), Options{}, req)

	// Assert
	require.Len(t, results, 2)

	assert.Equal(t, "node-a", results[0].Source)
	assert.Equal(t, StatusSucceeded, results[0].Outcome.Status)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, int64(102), results[0].Outcome.Height)

	assert.Equal(t, "node-b", results[1].Source)
	assert.Equal(t, StatusFailed, results[1].Outcome.Status)
	assert.True(t, errors.Is(results[1].Err, ErrBaselineQuery))

	assert.False(t, AllSucceeded(results))
}

func TestAwaitAllIndependentBaselines(t *testing.T) {
	// Nodes at different heights each measure the offset from their own
	// baseline.
	low := &climbingSource{name: "low", height: 10}
	high := &climbingSource{name: "high", height: 9000}

	results := AwaitAll(context.Background(),
		[]source.HeightSource{low, high},
		logger.NewTestLogger(),
		Options{},
		Request{Offset: 1, PollInterval: 5 * time.Millisecond})

	require.Len(t, results, 2)
	assert.Equal(t, int64(10), results[0].Outcome.Baseline)
	assert.Equal(t, int64(11), results[0].Outcome.Height)
	assert.Equal(t, int64(9000), results[1].Outcome.Baseline)
	assert.Equal(t, int64(9001), results[1].Outcome.Height)
	assert.True(t, AllSucceeded(results))
}

func TestAwaitAllEmpty(t *testing.T) {
	results := AwaitAll(context.Background(), nil, logger.NewTestLogger(), Options{}, Request{Offset: 1})

	assert.Empty(t, results)
	assert.True(t, AllSucceeded(results))
}

func TestAllSucceeded(t *testing.T) {
	tests := []struct {
		name    string
		results []NodeOutcome
		want    bool
	}{
		{
			name: "all succeeded",
			results: []NodeOutcome{
				{Outcome: Outcome{Status: StatusSucceeded}},
				{Outcome: Outcome{Status: StatusSucceeded}},
			},
			want: true,
		},
		{
			name: "one timed out",
			results: []NodeOutcome{
				{Outcome: Outcome{Status: StatusSucceeded}},
				{Outcome: Outcome{Status: StatusTimedOut}},
			},
			want: false,
		},
		{
			name: "one failed",
			results: []NodeOutcome{
				{Outcome: Outcome{Status: StatusFailed}},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AllSucceeded(tt.results))
		})
	}
}
