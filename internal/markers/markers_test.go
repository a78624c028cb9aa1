package markers

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fwbot-go/internal/config"
	"fwbot-go/internal/database"
	"fwbot-go/internal/fwbot"
)

// backends returns a fresh pair of stores for every backend.
func backends(t *testing.T) map[string]*Stores {
	t.Helper()

	mini := miniredis.RunT(t)
	r, err := NewRedis(RedisConfig{Addr: mini.Addr(), Prefix: "test"})
	require.NoError(t, err)

	b, err := OpenBolt(filepath.Join(t.TempDir(), "markers", "markers.db"))
	require.NoError(t, err)

	db, err := database.NewDatabaseFromConfig(config.DatabaseConfig{Type: "memory"})
	require.NoError(t, err)

	out := map[string]*Stores{
		"memory":   {Firmware: NewMemoryStore(), Kernel: NewMemoryStore()},
		"bolt":     {Firmware: b.Store(fwbot.MarkerFirmware), Kernel: b.Store(fwbot.MarkerKernel), closer: b},
		"redis":    {Firmware: r.Store(fwbot.MarkerFirmware), Kernel: r.Store(fwbot.MarkerKernel), closer: r},
		"database": {Firmware: db.Markers(fwbot.MarkerFirmware), Kernel: db.Markers(fwbot.MarkerKernel), closer: db},
	}
	t.Cleanup(func() {
		for _, s := range out {
			_ = s.Close()
		}
	})
	return out
}

func TestStores_GetSet(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.Firmware.Get(ctx, "SM-G991B")
			require.NoError(t, err)
			assert.Empty(t, got, "unknown model reads as empty")

			require.NoError(t, s.Firmware.Set(ctx, "SM-G991B", "G991BXXU5CVLL"))
			require.NoError(t, s.Firmware.Set(ctx, "SM-G991B", "G991BXXU5DWA1"))

			got, err = s.Firmware.Get(ctx, "SM-G991B")
			require.NoError(t, err)
			assert.Equal(t, "G991BXXU5DWA1", got)

			got, err = s.Kernel.Get(ctx, "SM-G991B")
			require.NoError(t, err)
			assert.Empty(t, got, "kinds are independent")

			require.NoError(t, s.Firmware.Set(ctx, "SM-G991B", ""))
			got, err = s.Firmware.Get(ctx, "SM-G991B")
			require.NoError(t, err)
			assert.Empty(t, got, "reset to unknown")
		})
	}
}

func TestStores_All(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Kernel.Set(ctx, "SM-A525F", "A525FXXU4CWB1"))
			require.NoError(t, s.Kernel.Set(ctx, "SM-S911B", "S911BXXU2BWF1"))

			all, err := s.Kernel.All(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[string]string{
				"SM-A525F": "A525FXXU4CWB1",
				"SM-S911B": "S911BXXU2BWF1",
			}, all)

			fw, err := s.Firmware.All(ctx)
			require.NoError(t, err)
			assert.Empty(t, fw)
		})
	}
}

func TestStores_ConcurrentSet(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					assert.NoError(t, s.Kernel.Set(ctx, fmt.Sprintf("SM-%02d", i), "XXU1AWA1"))
				}(i)
			}
			wg.Wait()

			all, err := s.Kernel.All(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 16)
		})
	}
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "markers.db")

	b, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, b.Store(fwbot.MarkerKernel).Set(ctx, "SM-G991B", "G991BXXU5CVLL"))
	require.NoError(t, b.Close())

	b, err = OpenBolt(path)
	require.NoError(t, err)
	defer b.Close()

	got, err := b.Store(fwbot.MarkerKernel).Get(ctx, "SM-G991B")
	require.NoError(t, err)
	assert.Equal(t, "G991BXXU5CVLL", got)
}

func TestBoltStore_CanceledContext(t *testing.T) {
	b, err := OpenBolt(filepath.Join(t.TempDir(), "markers.db"))
	require.NoError(t, err)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Store(fwbot.MarkerFirmware).Set(ctx, "SM-G991B", "x"), context.Canceled)
}

func TestRedisStore_KeyLayout(t *testing.T) {
	mini := miniredis.RunT(t)
	r, err := NewRedis(RedisConfig{Addr: mini.Addr(), Prefix: "fw"})
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Store(fwbot.MarkerFirmware).Set(context.Background(), "SM-G991B", "G991BXXU5CVLL"))
	assert.Equal(t, "G991BXXU5CVLL", mini.HGet("fw:markers:firmware", "SM-G991B"))
}

func TestNewRedis_Unreachable(t *testing.T) {
	_, err := NewRedis(RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestNewStoresFromConfig(t *testing.T) {
	db, err := database.NewDatabaseFromConfig(config.DatabaseConfig{Type: "memory"})
	require.NoError(t, err)
	defer db.Close()

	mini := miniredis.RunT(t)

	tests := []struct {
		name    string
		cfg     config.MarkersConfig
		db      *database.SQLiteDatabase
		wantErr bool
	}{
		{name: "database", cfg: config.MarkersConfig{Type: "database"}, db: db},
		{name: "empty type defaults to database", cfg: config.MarkersConfig{}, db: db},
		{name: "database without db", cfg: config.MarkersConfig{Type: "database"}, wantErr: true},
		{name: "memory", cfg: config.MarkersConfig{Type: "memory"}},
		{name: "bolt", cfg: config.MarkersConfig{Type: "bolt", BoltPath: filepath.Join(t.TempDir(), "m.db")}},
		{name: "bolt without path", cfg: config.MarkersConfig{Type: "bolt"}, wantErr: true},
		{name: "redis", cfg: config.MarkersConfig{Type: "redis", RedisAddr: mini.Addr()}},
		{name: "unknown", cfg: config.MarkersConfig{Type: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStoresFromConfig(tt.cfg, tt.db, "")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer got.Close()

			require.NoError(t, got.Kernel.Set(context.Background(), "SM-G991B", "v"))
			v, err := got.Kernel.Get(context.Background(), "SM-G991B")
			require.NoError(t, err)
			assert.Equal(t, "v", v)
		})
	}
}
