package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/devblac/warden/internal/bridge"
)

// RPCChecker pings the head of every chain the warden talks to.
type RPCChecker struct {
	clients map[bridge.Role]bridge.ChainClient
}

// NewRPCChecker creates a checker over the given chain clients.
func NewRPCChecker(clients map[bridge.Role]bridge.ChainClient) *RPCChecker {
	return &RPCChecker{clients: clients}
}

// Ping checks all configured RPC endpoints and joins their failures.
func (c *RPCChecker) Ping(ctx context.Context) error {
	var errs []error
	for _, role := range bridge.Roles {
		cli, ok := c.clients[role]
		if !ok {
			continue
		}
		if _, err := cli.HeadHeight(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s rpc: %w", role, err))
		}
	}
	return errors.Join(errs...)
}
