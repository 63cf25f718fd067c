package config

import (
	"testing"
	"time"

	"github.com/osk4114/GestionDocumentaria-sub001/pkg/logging"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(logging.Discard(), "no-such-config-file")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Errorf("server.address = %q", cfg.Server.Address)
	}
	if cfg.Server.Auth.CookieName != "sgd-token" {
		t.Errorf("server.auth.cookieName = %q", cfg.Server.Auth.CookieName)
	}
	if cfg.Transport.PingInterval != 45*time.Second {
		t.Errorf("transport.pingInterval = %v", cfg.Transport.PingInterval)
	}
	if cfg.Realtime.AuthGracePeriod != 30*time.Second {
		t.Errorf("realtime.authGracePeriod = %v", cfg.Realtime.AuthGracePeriod)
	}
	if cfg.Realtime.SessionTTL != 12*time.Hour {
		t.Errorf("realtime.sessionTTL = %v", cfg.Realtime.SessionTTL)
	}
	if cfg.Database.MaxOpenConns != 10 {
		t.Errorf("database.maxOpenConns = %d", cfg.Database.MaxOpenConns)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SGD_SERVER_ADDRESS", ":9999")
	t.Setenv("SGD_REALTIME_AUTHGRACEPERIOD", "5s")

	cfg, err := Load(logging.Discard(), "no-such-config-file")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address != ":9999" {
		t.Errorf("server.address = %q, want :9999", cfg.Server.Address)
	}
	if cfg.Realtime.AuthGracePeriod != 5*time.Second {
		t.Errorf("realtime.authGracePeriod = %v, want 5s", cfg.Realtime.AuthGracePeriod)
	}
}
