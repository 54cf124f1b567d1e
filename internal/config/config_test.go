package config

import (
	"testing"
	"time"

	"github.com/satriahrh/papantulis/server/internal/cluster"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "APP_ENV", "GENERATOR_URL", "CLUSTER_EPSILON", "CLUSTER_MIN_POINTS", "CLUSTER_MARGIN", "SNAPSHOT_SCALE", "NARRATION_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" || !cfg.IsLocal() {
		t.Errorf("Expected port 8080 in local env, got %s / %s", cfg.Port, cfg.Env)
	}
	if cfg.Cluster != cluster.DefaultConfig() {
		t.Errorf("Expected default clustering, got %+v", cfg.Cluster)
	}
	if cfg.SnapshotScale != 1 || cfg.NarrationTimeout != 0 || cfg.GeneratorURL != "" {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", ":9000")
	t.Setenv("APP_ENV", "production")
	t.Setenv("GENERATOR_URL", "http://generator:5000/")
	t.Setenv("CLUSTER_EPSILON", "55.5")
	t.Setenv("CLUSTER_MIN_POINTS", "2")
	t.Setenv("CLUSTER_MARGIN", "not-a-number")
	t.Setenv("NARRATION_TIMEOUT", "45s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "9000" || cfg.IsLocal() {
		t.Errorf("Unexpected port/env %s / %s", cfg.Port, cfg.Env)
	}
	if cfg.GeneratorURL != "http://generator:5000" {
		t.Errorf("Expected the trailing slash to be trimmed, got %s", cfg.GeneratorURL)
	}
	if cfg.Cluster.Epsilon != 55.5 || cfg.Cluster.MinPoints != 2 || cfg.Cluster.Margin != cluster.DefaultMargin {
		t.Errorf("Unexpected cluster config %+v", cfg.Cluster)
	}
	if cfg.NarrationTimeout != 45*time.Second {
		t.Errorf("Expected 45s, got %s", cfg.NarrationTimeout)
	}
}
