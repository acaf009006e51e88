package main

import (
	"github.com/devblac/warden/internal/bridge"
	"github.com/devblac/warden/internal/config"
	"github.com/devblac/warden/internal/storage"
)

// openStore opens only the local database, for commands that never touch a chain.
func openStore() (*config.Config, *storage.Store, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(cfg.Resolve(cfg.Global.DBPath))
	if err != nil {
		return nil, nil, bridge.ConfigErrorf("open storage: %v", err)
	}
	return cfg, store, nil
}
