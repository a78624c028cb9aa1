package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for fwbot.
type Config struct {
	InstanceID string         `toml:"instance_id"`
	BaseDir    string         `toml:"base_dir"`
	LogDir     string         `toml:"log_dir"`
	WorkDir    string         `toml:"work_dir"`
	Database   DatabaseConfig `toml:"database"`
	Markers    MarkersConfig  `toml:"markers"`
	Poll       PollConfig     `toml:"poll"`
	Provider   ProviderConfig `toml:"provider"`
	Mirror     MirrorConfig   `toml:"mirror"`
	Notify     NotifyConfig   `toml:"notify"`
	Vault      VaultConfig    `toml:"vault"`
	Secrets    SecretsConfig  `toml:"secrets"`
}

// Duration is a time.Duration written as "90s" or "15m" in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// DatabaseConfig represents configuration for the catalog and history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// MarkersConfig selects where version markers live.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type MarkersConfig struct {
	Type string `toml:"type"` // "database" (default), "memory", "bolt" or "redis"

	// Bolt-specific fields (only used when Type == "bolt")
	BoltPath string `toml:"bolt_path,omitempty"`

	// Redis-specific fields (only used when Type == "redis")
	RedisAddr     string `toml:"redis_addr,omitempty"`
	RedisUsername string `toml:"redis_username,omitempty"`
	RedisDB       int    `toml:"redis_db,omitempty"`
	RedisPrefix   string `toml:"redis_prefix,omitempty"`
}

// PollConfig tunes the check cycle.
type PollConfig struct {
	Interval        Duration `toml:"interval"`
	FirmwareWorkers int      `toml:"firmware_workers"`
	KernelWorkers   int      `toml:"kernel_workers"`
	DownloadWorkers int      `toml:"download_workers"`
	RequestSpacing  Duration `toml:"request_spacing"`  // minimum gap between requests to the vendor host
	RequestTimeout  Duration `toml:"request_timeout"`
	DownloadTimeout Duration `toml:"download_timeout"`
}

// ProviderConfig points at the scraper service that talks to vendor sites.
type ProviderConfig struct {
	BaseURL   string `toml:"base_url"`
	UserAgent string `toml:"user_agent,omitempty"`
}

// MirrorConfig describes the git mirror kernel sources are pushed to.
type MirrorConfig struct {
	RemoteURL   string `toml:"remote_url"`
	WebURL      string `toml:"web_url,omitempty"`
	Account     string `toml:"account"`
	AuthorName  string `toml:"author_name"`
	AuthorEmail string `toml:"author_email"`
	KernelDir   string `toml:"kernel_dir"`     // subtree imported from patch releases
	Prefix      string `toml:"staging_prefix"` // staging trees are "<prefix>-<model>"
}

// NotifyConfig represents configuration for the notification sink.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type NotifyConfig struct {
	Type            string   `toml:"type"` // "telegram" or "log"
	FirmwareChannel string   `toml:"firmware_channel"`
	KernelChannel   string   `toml:"kernel_channel"`
	MaxAttempts     int      `toml:"max_attempts"`
	RetryDelay      Duration `toml:"retry_delay"`
	IdleDelay       Duration `toml:"idle_delay"`
	SendInterval    Duration `toml:"send_interval"` // minimum gap between delivered messages

	// Telegram-specific fields (only used when Type == "telegram")
	APIEndpoint string `toml:"api_endpoint,omitempty"`
}

// VaultConfig represents configuration for the package archive.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "none", "memory", "filesystem" or "s3"

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// SecretsConfig locates the sealed credentials file.
type SecretsConfig struct {
	SealedPath   string `toml:"sealed_path"`
	IdentityPath string `toml:"identity_path"`
	EnvFile      string `toml:"env_file,omitempty"`
}

// NewConfig creates a new Config with the provided values and defaults.
func NewConfig(instanceID, baseDir string) *Config {
	return &Config{
		InstanceID: instanceID,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		WorkDir:    filepath.Join(baseDir, "work"),
		Database:   DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Markers:    MarkersConfig{Type: "database"},
		Poll: PollConfig{
			Interval:        Duration{15 * time.Minute},
			FirmwareWorkers: 10,
			KernelWorkers:   10,
			DownloadWorkers: 2,
			RequestSpacing:  Duration{2 * time.Second},
			RequestTimeout:  Duration{30 * time.Second},
			DownloadTimeout: Duration{30 * time.Minute},
		},
		Provider: ProviderConfig{BaseURL: "http://127.0.0.1:8090"},
		Mirror: MirrorConfig{
			Account:     "fwbot",
			AuthorName:  "fwbot",
			AuthorEmail: "fwbot@users.noreply.github.com",
			KernelDir:   "kernel",
			Prefix:      "kernel",
		},
		Notify: NotifyConfig{
			Type:         "log",
			MaxAttempts:  5,
			RetryDelay:   Duration{20 * time.Second},
			IdleDelay:    Duration{time.Second},
			SendInterval: Duration{3 * time.Second},
		},
		Vault: VaultConfig{Type: "none"},
		Secrets: SecretsConfig{
			SealedPath:   filepath.Join(baseDir, "secrets", "credentials.age"),
			IdentityPath: filepath.Join(baseDir, "secrets", "identity.txt"),
			EnvFile:      filepath.Join(baseDir, ".env"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
