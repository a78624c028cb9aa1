package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("FWBOT_CONFIG_PATH", "/custom/config.toml")
		t.Setenv("FWBOT_HOME", "/custom/fwbot")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		want := map[string]string{
			"config_path": "/custom/config.toml",
			"base_dir":    "/custom/fwbot",
			"log_dir":     "/custom/fwbot/log",
			"work_dir":    "/custom/fwbot/work",
		}
		for k, v := range want {
			if defaults[k] != v {
				t.Errorf("%s = %q, want %q", k, defaults[k], v)
			}
		}
	})

	t.Run("expands tilde in env vars", func(t *testing.T) {
		t.Setenv("FWBOT_CONFIG_PATH", "~/fw.toml")
		t.Setenv("FWBOT_HOME", "~/fwdata")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()
		if defaults["config_path"] != filepath.Join(homeDir, "fw.toml") {
			t.Errorf("config_path = %q", defaults["config_path"])
		}
		if defaults["work_dir"] != filepath.Join(homeDir, "fwdata", "work") {
			t.Errorf("work_dir = %q", defaults["work_dir"])
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("FWBOT_CONFIG_PATH", "")
		t.Setenv("FWBOT_HOME", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()

		wantConfig := filepath.Join(homeDir, ".config", "fwbot.toml")
		if defaults["config_path"] != wantConfig {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], wantConfig)
		}

		wantBase := filepath.Join(homeDir, ".local", "share", "fwbot")
		if defaults["base_dir"] != wantBase {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], wantBase)
		}
		if defaults["log_dir"] != filepath.Join(wantBase, "log") {
			t.Errorf("log_dir = %q", defaults["log_dir"])
		}
	})
}
