package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE_DRIVER", "ARRIVALS_WINDOW_MINUTES", "OBA_API_KEY", "SESSION_IDLE_MINUTES", "REGION_MAX_DISTANCE_METERS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Store.Driver != "memory" {
		t.Fatalf("unexpected driver: %s", cfg.Store.Driver)
	}
	if cfg.Dialog.ArrivalsWindowMinutes != 35 || cfg.Dialog.StopSearchRadiusMeters != 40000 {
		t.Fatalf("unexpected dialog config: %+v", cfg.Dialog)
	}
	if cfg.Transit.APIKey != "TEST" {
		t.Fatalf("unexpected transit key: %s", cfg.Transit.APIKey)
	}
	if cfg.Session.Idle != 30*time.Minute {
		t.Fatalf("unexpected idle: %s", cfg.Session.Idle)
	}
	if cfg.Geo.MaxDistanceMeters != 160934 {
		t.Fatalf("unexpected max distance: %f", cfg.Geo.MaxDistanceMeters)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9090")
	t.Setenv("STORE_DRIVER", "Redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SPEAK_REGION_LIST", "false")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9090" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Store.Driver != "redis" || cfg.Store.Redis.DB != 3 {
		t.Fatalf("unexpected store settings: %+v", cfg.Store)
	}
	if cfg.Dialog.SpeakRegionList {
		t.Fatal("expected region list to be disabled")
	}
	if cfg.Geo.Timeout != 4*time.Second || cfg.Transit.Timeout != 4*time.Second {
		t.Fatalf("unexpected timeouts: %s %s", cfg.Geo.Timeout, cfg.Transit.Timeout)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":                    "80 80",
		"STORE_DRIVER":            "postgres",
		"ARRIVALS_WINDOW_MINUTES": "soon",
		"SPEAK_REGION_LIST":       "maybe",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}
