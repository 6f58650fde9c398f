package utils

import (
	"testing"
	"time"
)

func TestPoolConfigDefaults(t *testing.T) {
	cfg := PostgresPoolConfig{}.withDefaults()
	if cfg.MaxOpenConns <= 0 || cfg.MaxIdleConns <= 0 {
		t.Fatalf("expected pool defaults, got %+v", cfg)
	}
	if cfg.PingTimeout <= 0 || cfg.PingTimeout > 30*time.Second {
		t.Fatalf("unreasonable ping timeout default: %v", cfg.PingTimeout)
	}
}
