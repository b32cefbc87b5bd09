package vault

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"themesync/internal/config"
	"themesync/internal/themesync"
)

func TestNewAzureVault_Config(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.VaultConfig
	}{
		{name: "missing container", cfg: config.VaultConfig{Type: "azure", AzureAccountURL: "https://acct.blob.core.windows.net"}},
		{name: "missing credentials", cfg: config.VaultConfig{Type: "azure", AzureContainer: "snapshots"}},
		{name: "bad connection string", cfg: config.VaultConfig{Type: "azure", AzureContainer: "snapshots", AzureConnectionString: "garbage"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAzureVault(tt.cfg); err == nil {
				t.Error("NewAzureVault() expected error")
			}
		})
	}
}

// TestAzureVault_Live runs against Azurite or a real storage account.
func TestAzureVault_Live(t *testing.T) {
	conn := os.Getenv("THEMESYNC_TEST_AZURE_CONNECTION_STRING")
	if conn == "" {
		t.Skip("THEMESYNC_TEST_AZURE_CONNECTION_STRING not set")
	}
	ctx := context.Background()

	v, err := NewAzureVault(config.VaultConfig{
		Type:                  "azure",
		Name:                  "live",
		AzureConnectionString: conn,
		AzureContainer:        os.Getenv("THEMESYNC_TEST_AZURE_CONTAINER"),
	})
	if err != nil {
		t.Fatalf("NewAzureVault() error = %v", err)
	}
	if err := v.ValidateSetup(ctx); err != nil {
		t.Fatalf("ValidateSetup() error = %v", err)
	}

	data := "live snapshot"
	if err := v.PutMetadata(ctx, "live-test", "db", strings.NewReader(data), int64(len(data)), 8); err != nil {
		t.Fatalf("PutMetadata() error = %v", err)
	}

	var buf bytes.Buffer
	if err := v.GetMetadata(ctx, "live-test", "db", &buf); err != nil {
		t.Fatalf("GetMetadata() error = %v", err)
	}
	if buf.String() != data {
		t.Errorf("GetMetadata() = %q, want %q", buf.String(), data)
	}

	version, err := v.GetMetadataVersion(ctx, "live-test", "db")
	if err != nil || version != 8 {
		t.Errorf("GetMetadataVersion() = %d, %v; want 8", version, err)
	}

	err = v.GetMetadata(ctx, "live-test", "missing", &buf)
	if !errors.Is(err, themesync.ErrNotFound) {
		t.Errorf("GetMetadata() error = %v, want ErrNotFound", err)
	}
}
