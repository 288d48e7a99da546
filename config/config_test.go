package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleTOML = `
version = "v0.1.0"

[server]
name = "geonear"
environment = "test"

[server.http]
addr = ":9090"
max_body_bytes = 1048576

[index]
strategy = "kdtree"
leaf_size = 8
parallel_workers = 4

[storage.minio]
endpoint = "minio:9000"
access_key_id = "geonear"
secret_access_key = "supersecret"
bucket_name = "grids"

[[datasets]]
name = "t2m"
source = "minio"
object = "hrrr/t2m.csv"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geonear.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("GEONEAR_INDEX_LEAF_SIZE", "16")

	var cfg Config
	if err := Load(writeConfig(t, sampleTOML), &cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTP.Addr != ":9090" {
		t.Errorf("http addr = %q, want :9090", cfg.Server.HTTP.Addr)
	}
	if cfg.Index.LeafSize != 16 {
		t.Errorf("leaf size = %d, want env override 16", cfg.Index.LeafSize)
	}
	if cfg.Index.ParallelThreshold != 4096 {
		t.Errorf("parallel threshold = %d, want default 4096", cfg.Index.ParallelThreshold)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("cache ttl = %v, want default 10m", cfg.Cache.TTL)
	}
	if !cfg.Storage.Minio.Enabled() {
		t.Error("minio source should be enabled")
	}
	if len(cfg.Datasets) != 1 || cfg.Datasets[0].Object != "hrrr/t2m.csv" {
		t.Errorf("datasets = %+v", cfg.Datasets)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	body := strings.Replace(sampleTOML, `strategy = "kdtree"`, `strategy = "rtree"`, 1)
	var cfg Config
	err := Load(writeConfig(t, body), &cfg)
	if err == nil || !strings.Contains(err.Error(), "validation") {
		t.Fatalf("Load() error = %v, want validation failure", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg Config
	if err := Load(filepath.Join(t.TempDir(), "absent.toml"), &cfg); err == nil {
		t.Fatal("Load() of a missing file succeeded")
	}
}

func TestMasked(t *testing.T) {
	var cfg Config
	cfg.Server.Name = "geonear"
	cfg.Storage.Minio.SecretAccessKey = "supersecret"
	cfg.Storage.Minio.Endpoint = "minio:9000"

	out, err := Masked(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "supersecret") {
		t.Errorf("secret leaked: %s", out)
	}
	if !strings.Contains(out, "minio:9000") {
		t.Errorf("non-sensitive field masked: %s", out)
	}
}
