package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/devblac/warden/internal/bridge"
	"github.com/devblac/warden/internal/chain/evm"
	"github.com/devblac/warden/internal/config"
	"github.com/devblac/warden/internal/cursor"
	"github.com/devblac/warden/internal/dedup"
	"github.com/devblac/warden/internal/mapper"
	"github.com/devblac/warden/internal/metrics"
	"github.com/devblac/warden/internal/notify"
	"github.com/devblac/warden/internal/registry"
	"github.com/devblac/warden/internal/relayer"
	"github.com/devblac/warden/internal/signer"
	"github.com/devblac/warden/internal/storage"
	"github.com/ethereum/go-ethereum/common"
)

// app holds the resources shared by the commands that touch chains.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   *storage.Store
	reg     *registry.Registry
	clients map[bridge.Role]*evm.Client

	closers []func() error
}

// loadApp reads config, contract info and the local store. It makes no RPC call.
func loadApp() (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	log, auditFile, err := newLogger(cfg, os.Stdout)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, closers: []func() error{auditFile.Close}}

	if a.reg, err = registry.Load(cfg.Resolve(cfg.ContractInfo), signerKeyIDs(cfg)); err != nil {
		a.Close()
		return nil, err
	}

	if a.store, err = storage.Open(cfg.Resolve(cfg.Global.DBPath)); err != nil {
		a.Close()
		return nil, bridge.ConfigErrorf("open storage: %v", err)
	}
	a.closers = append(a.closers, a.store.Close)
	return a, nil
}

func signerKeyIDs(cfg *config.Config) map[bridge.Role]string {
	ids := map[bridge.Role]string{}
	for _, role := range bridge.Roles {
		ids[role] = cfg.Chain(role).SignerKeyID
	}
	return ids
}

func (a *app) dial(ctx context.Context) error {
	timeout, err := a.cfg.RPCTimeout()
	if err != nil {
		return bridge.ConfigErrorf("%v", err)
	}
	a.clients = map[bridge.Role]*evm.Client{}
	for _, role := range bridge.Roles {
		ch := a.cfg.Chain(role)
		c, err := evm.Dial(ctx, role, ch.RPCURL, ch.ChainID, timeout)
		if err != nil {
			return err
		}
		a.clients[role] = c
		a.closers = append(a.closers, func() error { c.Close(); return nil })
		a.log.Debug("rpc connected", "chain", c.Role(), "chain_id", c.ChainID())
	}
	return nil
}

// chainClients exposes the dialled clients through the bridge interface.
func (a *app) chainClients() map[bridge.Role]bridge.ChainClient {
	out := make(map[bridge.Role]bridge.ChainClient, len(a.clients))
	for role, c := range a.clients {
		out[role] = c
	}
	return out
}

// relayPlan is every relay component that can be built from local config.
type relayPlan struct {
	chains map[bridge.Role]relayer.Chain
	mapper *mapper.Mapper
	cursor *cursor.EventCursor
	sender notify.Sender
}

// planRelay opens keys and compiles guards, start blocks and sinks. Like
// loadApp it makes no RPC call, so config errors surface first.
func (a *app) planRelay() (*relayPlan, error) {
	keys, err := signer.Open(a.cfg.Keys, a.cfg.Resolve)
	if err != nil {
		return nil, err
	}

	p := &relayPlan{chains: map[bridge.Role]relayer.Chain{}}
	bridges := map[bridge.Role]common.Address{}
	where := map[bridge.Role][]string{}
	start := map[bridge.Role]string{}
	for _, role := range bridge.Roles {
		ch := a.cfg.Chain(role)
		contract, err := a.reg.Resolve(role)
		if err != nil {
			return nil, err
		}
		s, err := keys.Get(contract.SignerKeyID)
		if err != nil {
			return nil, err
		}
		ceiling, err := ch.GasPriceCeiling()
		if err != nil {
			return nil, bridge.ConfigErrorf("chains.%s: %v", role, err)
		}
		p.chains[role] = relayer.Chain{
			Contract:      contract,
			Signer:        s,
			Events:        ch.Events,
			Confirmations: ch.Confirmations,
			GasLimit:      ch.GasLimit,
			MaxGasPrice:   ceiling,
		}
		bridges[role] = contract.Address
		where[role] = ch.Where
		start[role] = ch.StartBlock
	}
	for _, role := range bridge.Roles {
		if err := relayer.CheckCapabilities(role, p.chains[role], p.chains[role.Counterpart()]); err != nil {
			return nil, err
		}
	}

	if p.mapper, err = mapper.New(bridges, where); err != nil {
		return nil, err
	}
	if p.cursor, err = cursor.New(a.store, a.cfg.Global.WindowSize, start); err != nil {
		return nil, err
	}
	if p.sender, err = notify.FromConfig(a.cfg.Sinks); err != nil {
		return nil, bridge.ConfigErrorf("sinks: %v", err)
	}
	return p, nil
}

// relayer binds the dialled clients into the plan.
func (a *app) relayer(p *relayPlan, mtr *metrics.Metrics) (*relayer.Relayer, error) {
	chains := make(map[bridge.Role]relayer.Chain, len(p.chains))
	for role, ch := range p.chains {
		ch.Client = a.clients[role]
		chains[role] = ch
		a.log.Info("chain ready",
			"chain", role,
			"contract", ch.Contract.Address.Hex(),
			"signer", ch.Signer.Address().Hex(),
			"key_id", ch.Contract.SignerKeyID,
			"events", ch.Events,
		)
	}
	return relayer.New(relayer.Options{
		Chains:            chains,
		Mapper:            p.mapper,
		Cursor:            p.cursor,
		Guard:             dedup.NewSQLGuard(a.store),
		Locks:             relayer.NewNonceLocks(),
		MaxActionsPerPass: a.cfg.Global.MaxActionsPerPass,
		Logger:            a.log,
		Metrics:           mtr,
		Notifier:          p.sender,
	})
}

// setupRelay loads and checks everything local, then dials both chains.
func setupRelay(ctx context.Context, mtr *metrics.Metrics) (*app, *relayer.Relayer, error) {
	a, err := loadApp()
	if err != nil {
		return nil, nil, err
	}
	plan, err := a.planRelay()
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	if err := a.dial(ctx); err != nil {
		a.Close()
		return nil, nil, err
	}
	r, err := a.relayer(plan, mtr)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, r, nil
}

// Close releases everything loadApp opened, newest first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.log != nil {
			a.log.Warn("close", "err", err)
		}
	}
	a.closers = nil
}
