package main

import (
	"fmt"

	"type-royale/internal/config"
	"type-royale/internal/db"
	"type-royale/internal/events"
	"type-royale/internal/snippets"
	"type-royale/internal/store"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type deps struct {
	store    store.Store
	events   events.Publisher
	snippets *snippets.Pool
	conn     *gorm.DB
}

func buildDeps(cfg config.Config, clock clockwork.Clock) (*deps, error) {
	d := &deps{}
	switch cfg.StoreBackend {
	case config.StoreMemory:
		d.store = store.NewMemory(clock)
	case config.StorePostgres:
		conn, err := db.Open(cfg)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(conn); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		d.conn = conn
		d.store = store.NewPostgres(conn, clock)
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	publishers := events.Multi{events.NewLogPublisher(log.Logger)}
	if cfg.PersistEvents {
		if d.conn == nil {
			return nil, fmt.Errorf("EVENT_LOG requires the postgres store backend")
		}
		publishers = append(publishers, events.NewStorePublisher(d.conn))
	}
	if cfg.NATSURL != "" {
		natsCfg := events.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsCfg.SubjectPrefix = cfg.NATSSubjectPrefix
		pub, err := events.NewNATSPublisher(natsCfg)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, pub)
		log.Info().Str("url", cfg.NATSURL).Msg("publishing room events to NATS")
	}
	d.events = publishers

	d.snippets = snippets.Default()
	if cfg.SnippetsPath != "" {
		pool, err := snippets.Load(cfg.SnippetsPath)
		if err != nil {
			return nil, err
		}
		d.snippets = pool
	}
	log.Info().Str("store", cfg.StoreBackend).Int("snippets", d.snippets.Len()).Msg("dependencies ready")
	return d, nil
}

func (d *deps) Close() {
	if d.conn == nil {
		return
	}
	if sqlDB, err := d.conn.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
