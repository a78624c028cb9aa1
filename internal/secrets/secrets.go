// Package secrets resolves the tokens fwbot needs at runtime. Values come
// from an age-sealed TOML file, an optional dotenv file and the process
// environment, in increasing order of precedence.
package secrets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"fwbot-go/internal/config"
)

// Environment variables that override sealed values.
const (
	EnvGitToken      = "FWBOT_GIT_TOKEN"
	EnvTelegramToken = "FWBOT_TELEGRAM_TOKEN"
	EnvRedisPassword = "FWBOT_REDIS_PASSWORD"
	EnvS3AccessKey   = "FWBOT_S3_ACCESS_KEY"
	EnvS3SecretKey   = "FWBOT_S3_SECRET_KEY"
)

// Credentials are the secret values used by the mirror, notifier and stores.
type Credentials struct {
	GitToken      string `toml:"git_token,omitempty"`
	TelegramToken string `toml:"telegram_token,omitempty"`
	RedisPassword string `toml:"redis_password,omitempty"`
	S3AccessKey   string `toml:"s3_access_key,omitempty"`
	S3SecretKey   string `toml:"s3_secret_key,omitempty"`
}

// fields maps environment variable names to credential fields.
func (c *Credentials) fields() map[string]*string {
	return map[string]*string{
		EnvGitToken:      &c.GitToken,
		EnvTelegramToken: &c.TelegramToken,
		EnvRedisPassword: &c.RedisPassword,
		EnvS3AccessKey:   &c.S3AccessKey,
		EnvS3SecretKey:   &c.S3SecretKey,
	}
}

// Names returns the environment variable names of the credentials, in a
// stable order.
func Names() []string {
	return []string{EnvGitToken, EnvTelegramToken, EnvRedisPassword, EnvS3AccessKey, EnvS3SecretKey}
}

// Set stores value under the credential named by the environment variable name.
func (c *Credentials) Set(name, value string) error {
	f, ok := c.fields()[name]
	if !ok {
		return fmt.Errorf("unknown credential %q", name)
	}
	*f = value
	return nil
}

// Get returns the credential named by the environment variable name, or ""
// for unknown names.
func (c *Credentials) Get(name string) string {
	if f, ok := c.fields()[name]; ok {
		return *f
	}
	return ""
}

func (c *Credentials) overlay(lookup func(string) (string, bool)) {
	for name, f := range c.fields() {
		if v, ok := lookup(name); ok && v != "" {
			*f = v
		}
	}
}

// Resolve builds the credentials for cfg. Missing sealed or dotenv files are
// not an error; a sealed file that exists but cannot be opened is.
func Resolve(cfg config.SecretsConfig, lookupEnv func(string) (string, bool)) (*Credentials, error) {
	creds := &Credentials{}

	if cfg.SealedPath != "" {
		if _, err := os.Stat(cfg.SealedPath); err == nil {
			sealed, err := Open(cfg.IdentityPath, cfg.SealedPath)
			if err != nil {
				return nil, err
			}
			creds = sealed
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("checking sealed file: %w", err)
		}
	}

	if cfg.EnvFile != "" {
		values, err := godotenv.Read(cfg.EnvFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading env file %s: %w", cfg.EnvFile, err)
		}
		creds.overlay(func(k string) (string, bool) {
			v, ok := values[k]
			return v, ok
		})
	}

	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	creds.overlay(lookupEnv)
	return creds, nil
}

// Keygen writes a new X25519 identity to identityPath and returns its
// recipient string. An existing identity is never overwritten.
func Keygen(identityPath string) (string, error) {
	if _, err := os.Stat(identityPath); err == nil {
		return "", fmt.Errorf("identity already exists at %s", identityPath)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generating key pair: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(identityPath), 0700); err != nil {
		return "", fmt.Errorf("creating identity directory: %w", err)
	}

	recipient := identity.Recipient().String()
	content := fmt.Sprintf("# public key: %s\n%s\n", recipient, identity.String())
	if err := os.WriteFile(identityPath, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("writing identity: %w", err)
	}
	return recipient, nil
}

// Seal encrypts creds to the identity's recipient and writes them to sealedPath.
func Seal(identityPath, sealedPath string, creds *Credentials) error {
	identity, err := loadIdentity(identityPath)
	if err != nil {
		return err
	}

	var plain bytes.Buffer
	if err := toml.NewEncoder(&plain).Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(sealedPath), 0700); err != nil {
		return fmt.Errorf("creating secrets directory: %w", err)
	}
	f, err := os.OpenFile(sealedPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating sealed file: %w", err)
	}
	defer f.Close()

	w, err := age.Encrypt(f, identity.Recipient())
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.Copy(w, &plain); err != nil {
		return fmt.Errorf("encrypting credentials: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Open decrypts the sealed credentials file with the identity.
func Open(identityPath, sealedPath string) (*Credentials, error) {
	data, err := os.ReadFile(sealedPath)
	if err != nil {
		return nil, fmt.Errorf("reading sealed file: %w", err)
	}
	identity, err := loadIdentity(identityPath)
	if err != nil {
		return nil, err
	}

	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting credentials: %w", err)
	}

	var creds Credentials
	if _, err := toml.NewDecoder(r).Decode(&creds); err != nil {
		return nil, fmt.Errorf("decoding credentials: %w", err)
	}
	return &creds, nil
}

func loadIdentity(path string) (*age.X25519Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading identity: %w", err)
	}

	identities, err := age.ParseIdentities(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing identity: %w", err)
	}
	for _, id := range identities {
		if x, ok := id.(*age.X25519Identity); ok {
			return x, nil
		}
	}
	return nil, fmt.Errorf("no X25519 identity in %s", path)
}

// Redact shows only the last four characters of a secret.
func Redact(s string) string {
	if s == "" {
		return "(unset)"
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", 8) + s[len(s)-4:]
}
