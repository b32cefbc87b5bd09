package encryption

import (
	"testing"

	"themesync/internal/config"
)

func TestNewEncryptorFromConfig(t *testing.T) {
	tests := []struct {
		typ     string
		want    string
		wantErr bool
	}{
		{typ: "", want: "plain"},
		{typ: "none", want: "plain"},
		{typ: "test", want: "plain"},
		{typ: "age", want: "age"},
		{typ: "rot13", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			got, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: tt.typ})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewEncryptorFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			switch got.(type) {
			case *PlainEncryptor:
				if tt.want != "plain" {
					t.Errorf("got %T, want %s", got, tt.want)
				}
			case *AgeEncryptor:
				if tt.want != "age" {
					t.Errorf("got %T, want %s", got, tt.want)
				}
			default:
				t.Errorf("unexpected type %T", got)
			}
		})
	}
}
