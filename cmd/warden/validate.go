package main

import (
	"fmt"

	"github.com/devblac/warden/internal/bridge"
	"github.com/devblac/warden/internal/chain/evm"
	"github.com/devblac/warden/internal/config"
	"github.com/devblac/warden/internal/registry"
	"github.com/devblac/warden/internal/relayer"
	"github.com/devblac/warden/internal/signer"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config, contract info and keys, then ping RPC endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		ctx := cmd.Context()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}
		fmt.Fprintf(out, "config OK (version %d)\n", cfg.Version)

		reg, err := registry.Load(cfg.Resolve(cfg.ContractInfo), signerKeyIDs(cfg))
		if err != nil {
			return fmt.Errorf("contract info invalid: %w", err)
		}
		keys, err := signer.Open(cfg.Keys, cfg.Resolve)
		if err != nil {
			return fmt.Errorf("keys invalid: %w", err)
		}

		chains := map[bridge.Role]relayer.Chain{}
		for _, role := range bridge.Roles {
			contract, err := reg.Resolve(role)
			if err != nil {
				return err
			}
			s, err := keys.Get(contract.SignerKeyID)
			if err != nil {
				return err
			}
			chains[role] = relayer.Chain{Contract: contract, Signer: s, Events: cfg.Chain(role).Events}
			fmt.Fprintf(out, "- %s contract %s signer %s (%s)\n", role, contract.Address.Hex(), s.Address().Hex(), contract.SignerKeyID)
		}
		for _, role := range bridge.Roles {
			if err := relayer.CheckCapabilities(role, chains[role], chains[role.Counterpart()]); err != nil {
				return err
			}
		}
		fmt.Fprintln(out, "capabilities OK")

		timeout, err := cfg.RPCTimeout()
		if err != nil {
			return bridge.ConfigErrorf("%v", err)
		}
		failures := 0
		for _, role := range bridge.Roles {
			ch := cfg.Chain(role)
			client, err := evm.Dial(ctx, role, ch.RPCURL, ch.ChainID, timeout)
			if err != nil {
				failures++
				fmt.Fprintf(out, "- %s rpc: ERROR %v\n", role, err)
				continue
			}
			head, err := client.HeadHeight(ctx)
			client.Close()
			if err != nil {
				failures++
				fmt.Fprintf(out, "- %s rpc: chainId %d, head ERROR %v\n", role, ch.ChainID, err)
				continue
			}
			fmt.Fprintf(out, "- %s rpc: chainId %d head %d OK\n", role, ch.ChainID, head)
		}

		if failures > 0 {
			return fmt.Errorf("validate: %d chain(s) failed connectivity", failures)
		}

		fmt.Fprintln(out, "validate: success")
		return nil
	},
}
