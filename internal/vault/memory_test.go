package vault

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"themesync/internal/themesync"
)

func TestMemoryVault_PutAndGetMetadata(t *testing.T) {
	ctx := context.Background()
	vault := NewMemoryVault("test-vault")

	tests := []struct {
		name    string
		item    string
		content string
	}{
		{name: "database snapshot", item: themesync.MetadataDatabase, content: "sqlite bytes"},
		{name: "empty item", item: "empty", content: ""},
		{name: "large item", item: "large", content: strings.Repeat("x", 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := vault.PutMetadata(ctx, "inst-1", tt.item, strings.NewReader(tt.content), int64(len(tt.content)), 7)
			if err != nil {
				t.Fatalf("PutMetadata() error: %v", err)
			}

			var buf bytes.Buffer
			if err := vault.GetMetadata(ctx, "inst-1", tt.item, &buf); err != nil {
				t.Fatalf("GetMetadata() error: %v", err)
			}
			if got := buf.String(); got != tt.content {
				t.Errorf("GetMetadata() = %q, want %q", got, tt.content)
			}
		})
	}
}

func TestMemoryVault_Versions(t *testing.T) {
	ctx := context.Background()
	vault := NewMemoryVault("test-vault")

	v, err := vault.GetMetadataVersion(ctx, "inst-1", themesync.MetadataDatabase)
	if err != nil {
		t.Fatalf("GetMetadataVersion() error: %v", err)
	}
	if v != 0 {
		t.Errorf("GetMetadataVersion() before put = %d, want 0", v)
	}

	for _, version := range []int64{3, 9} {
		data := "snapshot"
		if err := vault.PutMetadata(ctx, "inst-1", themesync.MetadataDatabase, strings.NewReader(data), int64(len(data)), version); err != nil {
			t.Fatalf("PutMetadata() error: %v", err)
		}
	}

	v, err = vault.GetMetadataVersion(ctx, "inst-1", themesync.MetadataDatabase)
	if err != nil {
		t.Fatalf("GetMetadataVersion() error: %v", err)
	}
	if v != 9 {
		t.Errorf("GetMetadataVersion() = %d, want 9", v)
	}

	// Instances and names are independent.
	if v, _ := vault.GetMetadataVersion(ctx, "inst-2", themesync.MetadataDatabase); v != 0 {
		t.Errorf("other instance version = %d, want 0", v)
	}
	if v, _ := vault.GetMetadataVersion(ctx, "inst-1", themesync.MetadataPublicKey); v != 0 {
		t.Errorf("other item version = %d, want 0", v)
	}
}

func TestMemoryVault_GetMetadataNotFound(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	var buf bytes.Buffer
	err := vault.GetMetadata(context.Background(), "nonexistent", themesync.MetadataDatabase, &buf)
	if !errors.Is(err, themesync.ErrNotFound) {
		t.Errorf("GetMetadata() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryVault_PutMetadataSizeMismatch(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	content := "test"
	err := vault.PutMetadata(context.Background(), "inst-1", "db", strings.NewReader(content), int64(len(content)+10), 1)
	if err == nil {
		t.Error("PutMetadata() expected error for size mismatch, got nil")
	}
	if v, _ := vault.GetMetadataVersion(context.Background(), "inst-1", "db"); v != 0 {
		t.Errorf("version after failed put = %d, want 0", v)
	}
}

func TestMemoryVault_CancelledContext(t *testing.T) {
	vault := NewMemoryVault("test-vault")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := vault.PutMetadata(ctx, "inst-1", "db", strings.NewReader("x"), 1, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("PutMetadata() error = %v, want context.Canceled", err)
	}
}

func TestMemoryVault_ValidateSetup(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	if err := vault.ValidateSetup(context.Background()); err != nil {
		t.Errorf("ValidateSetup() unexpected error: %v", err)
	}
}
