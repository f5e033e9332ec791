package storage_test

import (
	"strings"
	"testing"

	"github.com/JaimeStill/ratesheet/pkg/storage"
)

func TestFinalizeDefaults(t *testing.T) {
	cfg := storage.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.Provider != storage.ProviderLocal {
		t.Errorf("provider: got %s, want local", cfg.Provider)
	}
	if cfg.Local.Root != "./extraction-output" {
		t.Errorf("local.root: got %s, want ./extraction-output", cfg.Local.Root)
	}
	if cfg.Azure.ContainerName != "extractions" {
		t.Errorf("azure.container_name: got %s, want extractions", cfg.Azure.ContainerName)
	}
	if cfg.MaxListSize != 50 {
		t.Errorf("max_list_size: got %d, want 50", cfg.MaxListSize)
	}
}

func TestFinalizeEnvOverrides(t *testing.T) {
	t.Setenv("TEST_PROVIDER", "s3")
	t.Setenv("TEST_BUCKET", "artifacts")
	t.Setenv("TEST_PATH_STYLE", "true")
	t.Setenv("TEST_MAX_LIST", "999999")

	env := &storage.Env{
		Provider:       "TEST_PROVIDER",
		Bucket:         "TEST_BUCKET",
		ForcePathStyle: "TEST_PATH_STYLE",
		MaxListSize:    "TEST_MAX_LIST",
	}

	cfg := storage.Config{}
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.Provider != storage.ProviderS3 {
		t.Errorf("provider: got %s, want s3", cfg.Provider)
	}
	if cfg.S3.Bucket != "artifacts" {
		t.Errorf("s3.bucket: got %s, want artifacts", cfg.S3.Bucket)
	}
	if !cfg.S3.ForcePathStyle {
		t.Error("s3.force_path_style: got false, want true")
	}
	if cfg.MaxListSize != storage.MaxListCap {
		t.Errorf("max_list_size: got %d, want %d", cfg.MaxListSize, storage.MaxListCap)
	}
}

func TestFinalizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     storage.Config
		wantErr string
	}{
		{
			name:    "azure without credentials",
			cfg:     storage.Config{Provider: storage.ProviderAzure},
			wantErr: "azure.connection_string or azure.account_url required",
		},
		{
			name: "azure with account url",
			cfg: storage.Config{
				Provider: storage.ProviderAzure,
				Azure:    storage.AzureConfig{AccountURL: "https://acct.blob.core.windows.net"},
			},
		},
		{
			name:    "s3 without bucket",
			cfg:     storage.Config{Provider: storage.ProviderS3},
			wantErr: "s3.bucket required",
		},
		{
			name: "s3 with half a key pair",
			cfg: storage.Config{
				Provider: storage.ProviderS3,
				S3:       storage.S3Config{Bucket: "b", AccessKeyID: "id"},
			},
			wantErr: "must be set together",
		},
		{
			name:    "unknown provider",
			cfg:     storage.Config{Provider: "gcs"},
			wantErr: "unknown provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := storage.Config{
		Provider: storage.ProviderLocal,
		Local:    storage.LocalConfig{Root: "/data"},
	}
	base.Merge(&storage.Config{
		Provider: storage.ProviderAzure,
		Azure:    storage.AzureConfig{ConnectionString: "conn"},
	})

	if base.Provider != storage.ProviderAzure {
		t.Errorf("provider: got %s, want azure", base.Provider)
	}
	if base.Local.Root != "/data" {
		t.Errorf("local.root: got %s, want /data", base.Local.Root)
	}
	if base.Azure.ConnectionString != "conn" {
		t.Errorf("azure.connection_string: got %s, want conn", base.Azure.ConnectionString)
	}
}
