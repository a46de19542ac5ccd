package config

import (
	"testing"
)

func TestLoad_MemoryOnlyDefaults(t *testing.T) {
	t.Setenv("DB_ENABLED", "false")

	if err := InitConfig("test"); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Enabled {
		t.Error("expected persistence disabled")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default server port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 9090 {
		t.Errorf("expected default metrics port 9090, got %d", cfg.Server.MetricsPort)
	}
	if !cfg.Cache.Enabled {
		t.Error("expected cache enabled by default")
	}
	if cfg.Cache.TTLMinutes != 5 {
		t.Errorf("expected default cache TTL of 5 minutes, got %d", cfg.Cache.TTLMinutes)
	}
}

func TestLoad_RequiresPasswordWhenPersistent(t *testing.T) {
	t.Setenv("DB_ENABLED", "true")
	t.Setenv("DB_PASSWORD", "")

	if err := InitConfig("test"); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for missing DB_PASSWORD")
	}
}

func TestConnectionString(t *testing.T) {
	c := DatabaseConfig{
		Host:     "localhost",
		Port:     15432,
		User:     "portier",
		Password: "secret",
		Database: "portier_dev",
		SSLMode:  "disable",
	}
	want := "host=localhost port=15432 user=portier password=secret dbname=portier_dev sslmode=disable"
	if got := c.ConnectionString(); got != want {
		t.Errorf("unexpected connection string: %s", got)
	}
}
