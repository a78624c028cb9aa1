package markers

import (
	"fmt"
	"io"

	"fwbot-go/internal/config"
	"fwbot-go/internal/database"
	"fwbot-go/internal/fwbot"
)

// Store is a marker store that can also list its contents.
type Store interface {
	fwbot.MarkerStore
	fwbot.MarkerLister
}

// Stores holds the firmware and kernel marker stores of one backend.
type Stores struct {
	Firmware Store
	Kernel   Store

	closer io.Closer
}

// Close releases the backend. Stores backed by the shared database leave
// it open.
func (s *Stores) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// NewStoresFromConfig creates the marker stores selected by cfg.Type. db is
// used by the "database" backend; redisPassword by the "redis" backend.
func NewStoresFromConfig(cfg config.MarkersConfig, db *database.SQLiteDatabase, redisPassword string) (*Stores, error) {
	switch cfg.Type {
	case "", "database":
		if db == nil {
			return nil, fmt.Errorf("database marker store requires an open database")
		}
		return &Stores{
			Firmware: db.Markers(fwbot.MarkerFirmware),
			Kernel:   db.Markers(fwbot.MarkerKernel),
		}, nil
	case "memory":
		return &Stores{Firmware: NewMemoryStore(), Kernel: NewMemoryStore()}, nil
	case "bolt":
		if cfg.BoltPath == "" {
			return nil, fmt.Errorf("bolt marker store requires bolt_path to be set")
		}
		b, err := OpenBolt(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Firmware: b.Store(fwbot.MarkerFirmware),
			Kernel:   b.Store(fwbot.MarkerKernel),
			closer:   b,
		}, nil
	case "redis":
		r, err := NewRedis(RedisConfig{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: redisPassword,
			Database: cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, err
		}
		return &Stores{
			Firmware: r.Store(fwbot.MarkerFirmware),
			Kernel:   r.Store(fwbot.MarkerKernel),
			closer:   r,
		}, nil
	default:
		return nil, fmt.Errorf("unknown marker store type: %s", cfg.Type)
	}
}
