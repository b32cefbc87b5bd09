package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		InstanceID: "test-instance-abc",
		BaseDir:    "/home/user/.local/share/themesync",
		LogDir:     "/home/user/.local/share/themesync/log",
		Actor:      "ops@example.com",
		Themes: ThemesConfig{
			Root:   "/srv/site/themes",
			Ignore: []string{"*.map", "node_modules"},
		},
		Database: DatabaseConfig{Type: "postgres", DSN: "postgres://cms@localhost/cms"},
		Vaults: []VaultConfig{
			{Type: "filesystem", Name: "local", FSVaultRoot: "/backup/vault"},
			{Type: "s3", Name: "offsite", S3Bucket: "snapshots", S3Region: "eu-west-1", S3Endpoint: "http://localhost:9000"},
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  "/home/user/.local/share/themesync/keys/themesync.pub",
			PrivateKeyPath: "/home/user/.local/share/themesync/keys/themesync.key",
		},
		Server: ServerConfig{Host: "0.0.0.0", Port: 9090, AllowedOrigins: []string{"https://admin.example.com"}},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.InstanceID != original.InstanceID {
		t.Errorf("InstanceID = %q, want %q", got.InstanceID, original.InstanceID)
	}
	if got.Actor != original.Actor {
		t.Errorf("Actor = %q, want %q", got.Actor, original.Actor)
	}
	if got.Themes.Root != "/srv/site/themes" || len(got.Themes.Ignore) != 2 {
		t.Errorf("Themes = %+v", got.Themes)
	}
	if got.Database.Type != "postgres" || got.Database.DSN != original.Database.DSN {
		t.Errorf("Database = %+v", got.Database)
	}
	if len(got.Vaults) != 2 {
		t.Fatalf("len(Vaults) = %d, want 2", len(got.Vaults))
	}
	if got.Vaults[0].FSVaultRoot != "/backup/vault" {
		t.Errorf("Vault.FSVaultRoot = %q, want %q", got.Vaults[0].FSVaultRoot, "/backup/vault")
	}
	if got.Vaults[1].S3Endpoint != "http://localhost:9000" {
		t.Errorf("Vault.S3Endpoint = %q", got.Vaults[1].S3Endpoint)
	}
	if got.Encryption.PrivateKeyPath != original.Encryption.PrivateKeyPath {
		t.Errorf("Encryption.PrivateKeyPath = %q, want %q", got.Encryption.PrivateKeyPath, original.Encryption.PrivateKeyPath)
	}
	if got.Server.Addr() != "0.0.0.0:9090" {
		t.Errorf("Server.Addr() = %q, want %q", got.Server.Addr(), "0.0.0.0:9090")
	}
}

func TestManager_Read_Invalid(t *testing.T) {
	m := &Manager{}
	if _, err := m.Read(strings.NewReader("instance_id = [")); err == nil {
		t.Error("Read() expected error for malformed TOML")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("instance-1", "/data/themesync")

	if cfg.InstanceID != "instance-1" {
		t.Errorf("InstanceID = %q, want %q", cfg.InstanceID, "instance-1")
	}
	if cfg.LogDir != "/data/themesync/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/themesync/log")
	}
	if cfg.Themes.Root != "/data/themesync/themes" {
		t.Errorf("Themes.Root = %q", cfg.Themes.Root)
	}
	if cfg.Database.Type != "sqlite" || cfg.Database.DataDir != "/data/themesync/db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Encryption.Type != "none" {
		t.Errorf("Encryption.Type = %q, want none", cfg.Encryption.Type)
	}
	if cfg.Encryption.PublicKeyPath != "/data/themesync/keys/themesync.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q", cfg.Encryption.PublicKeyPath)
	}
	if cfg.Server.Addr() != "127.0.0.1:8080" {
		t.Errorf("Server.Addr() = %q", cfg.Server.Addr())
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "themesync.toml")
		cfg := NewConfig("i1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "themesync.toml")
		cfg := NewConfig("i1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "themesync.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.InstanceID != "read-test" {
			t.Errorf("InstanceID = %q, want %q", got.InstanceID, "read-test")
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want memory", got.Database.Type)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/themesync.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
