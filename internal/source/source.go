package source

import (
	"context"
	"fmt"

	"github.com/wemix/blockwait/internal/config"
)

// HeightSource is the single seam between the wait machinery and a node.
// Everything above this interface treats the chain as a monotonically
// advancing counter.
type HeightSource interface {
	// CurrentHeight returns the node's latest block height. Failures are
	// reported as *QueryError so callers can inspect how the query broke.
	CurrentHeight(ctx context.Context) (int64, error)

	// Name identifies the source in logs and reports.
	Name() string
}

// ErrorKind classifies how a height query failed.
type ErrorKind int

const (
	// KindUnreachable means the node could not be reached at all.
	KindUnreachable ErrorKind = iota
	// KindBadResponse means the node answered with something that could
	// not be decoded into a height.
	KindBadResponse
	// KindRPCRejected means the node answered with an RPC-level error.
	KindRPCRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindBadResponse:
		return "bad_response"
	case KindRPCRejected:
		return "rpc_rejected"
	default:
		return "unknown"
	}
}

// QueryError wraps a failed height query with its classification.
type QueryError struct {
	Kind ErrorKind
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Func adapts a plain function to the HeightSource interface
type Func func(ctx context.Context) (int64, error)

func (f Func) CurrentHeight(ctx context.Context) (int64, error) {
	return f(ctx)
}

func (f Func) Name() string {
	return "func"
}

// FromConfig builds a height source of the configured kind for a single
// RPC address.
func FromConfig(cfg *config.Config, rpcAddress string) (HeightSource, error) {
	switch cfg.Source {
	case config.SourceWBFT:
		return NewStatusSource(rpcAddress), nil
	case config.SourceEth:
		return NewEthSource(rpcAddress), nil
	default:
		return nil, fmt.Errorf("unknown height source: %s", cfg.Source)
	}
}
