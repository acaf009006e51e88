package evm

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/devblac/warden/internal/bridge"
	"github.com/ethereum/go-ethereum/rpc"
)

// JSON-RPC codes that nodes and providers use for overload or rate limiting.
var transientRPCCodes = map[int]struct{}{
	-32005: {}, // limit exceeded
	-32603: {}, // internal error
	429:    {},
}

var transientMessages = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"timeout",
	"timed out",
	"too many requests",
	"rate limit",
	"header not found",
	"unexpected eof",
}

// classify marks err as transient (network, timeout, overload) or permanent
// (the node understood and rejected the request).
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if k := bridge.Classify(err); k != bridge.KindInternal {
		return err
	}
	if isTransient(err) {
		return bridge.Transient(err, op)
	}
	return bridge.Permanent(err, op)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		_, ok := transientRPCCodes[rpcErr.ErrorCode()]
		return ok
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
