package secrets

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"fwbot-go/internal/config"
)

func noEnv(string) (string, bool) { return "", false }

func TestSealOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	identity := filepath.Join(dir, "keys", "identity.txt")
	sealed := filepath.Join(dir, "secrets", "credentials.age")

	recipient, err := Keygen(identity)
	if err != nil {
		t.Fatalf("Keygen() error = %v", err)
	}
	if len(recipient) < 4 || recipient[:4] != "age1" {
		t.Errorf("recipient = %q, want age1...", recipient)
	}
	info, err := os.Stat(identity)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("identity mode = %v, want 0600", info.Mode().Perm())
	}

	want := &Credentials{GitToken: "ghp_secret", TelegramToken: "123:abc"}
	if err := Seal(identity, sealed, want); err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	raw, err := os.ReadFile(sealed)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(raw, []byte("ghp_secret")) {
		t.Error("sealed file contains the plaintext token")
	}

	got, err := Open(identity, sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if *got != *want {
		t.Errorf("Open() = %+v, want %+v", *got, *want)
	}
}

func TestKeygen_RefusesOverwrite(t *testing.T) {
	identity := filepath.Join(t.TempDir(), "identity.txt")
	if _, err := Keygen(identity); err != nil {
		t.Fatalf("Keygen() error = %v", err)
	}
	if _, err := Keygen(identity); err == nil {
		t.Error("second Keygen() expected error")
	}
}

func TestOpen_WrongIdentity(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	sealed := filepath.Join(dir, "creds.age")
	if _, err := Keygen(a); err != nil {
		t.Fatal(err)
	}
	if _, err := Keygen(b); err != nil {
		t.Fatal(err)
	}
	if err := Seal(a, sealed, &Credentials{GitToken: "x"}); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(b, sealed); err == nil {
		t.Error("Open() with the wrong identity expected error")
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	identity := filepath.Join(dir, "identity.txt")
	sealed := filepath.Join(dir, "credentials.age")
	envFile := filepath.Join(dir, ".env")

	if _, err := Keygen(identity); err != nil {
		t.Fatal(err)
	}
	if err := Seal(identity, sealed, &Credentials{
		GitToken:      "sealed-git",
		TelegramToken: "sealed-telegram",
		RedisPassword: "sealed-redis",
	}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(envFile, []byte("FWBOT_TELEGRAM_TOKEN=dotenv-telegram\nFWBOT_S3_ACCESS_KEY=dotenv-s3\n"), 0600); err != nil {
		t.Fatal(err)
	}

	env := map[string]string{EnvRedisPassword: "env-redis", EnvS3AccessKey: ""}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	got, err := Resolve(config.SecretsConfig{SealedPath: sealed, IdentityPath: identity, EnvFile: envFile}, lookup)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := Credentials{
		GitToken:      "sealed-git",
		TelegramToken: "dotenv-telegram",
		RedisPassword: "env-redis",
		S3AccessKey:   "dotenv-s3",
	}
	if *got != want {
		t.Errorf("Resolve() = %+v, want %+v", *got, want)
	}
}

func TestResolve_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := config.SecretsConfig{
		SealedPath:   filepath.Join(dir, "none.age"),
		IdentityPath: filepath.Join(dir, "none.txt"),
		EnvFile:      filepath.Join(dir, ".env"),
	}

	got, err := Resolve(cfg, func(k string) (string, bool) {
		if k == EnvGitToken {
			return "from-env", true
		}
		return "", false
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.GitToken != "from-env" || got.TelegramToken != "" {
		t.Errorf("Resolve() = %+v", got)
	}
}

func TestResolve_SealedWithoutIdentity(t *testing.T) {
	dir := t.TempDir()
	identity := filepath.Join(dir, "identity.txt")
	sealed := filepath.Join(dir, "credentials.age")
	if _, err := Keygen(identity); err != nil {
		t.Fatal(err)
	}
	if err := Seal(identity, sealed, &Credentials{GitToken: "x"}); err != nil {
		t.Fatal(err)
	}
	os.Remove(identity)

	if _, err := Resolve(config.SecretsConfig{SealedPath: sealed, IdentityPath: identity}, noEnv); err == nil {
		t.Error("Resolve() expected error when the identity is missing")
	}
}

func TestCredentials_Set(t *testing.T) {
	var c Credentials
	if err := c.Set(EnvGitToken, "abc"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if c.GitToken != "abc" {
		t.Errorf("GitToken = %q", c.GitToken)
	}
	if got := c.Get(EnvGitToken); got != "abc" {
		t.Errorf("Get() = %q, want %q", got, "abc")
	}
	if got := c.Get("FWBOT_UNKNOWN"); got != "" {
		t.Errorf("Get(unknown) = %q, want empty", got)
	}
	if err := c.Set("FWBOT_UNKNOWN", "x"); err == nil {
		t.Error("Set() expected error for unknown name")
	}
}

func TestRedact(t *testing.T) {
	tests := map[string]string{
		"":             "(unset)",
		"abc":          "***",
		"ghp_abcd1234": "********1234",
	}
	for in, want := range tests {
		if got := Redact(in); got != want {
			t.Errorf("Redact(%q) = %q, want %q", in, got, want)
		}
	}
}
