package config

import "testing"

func TestConfigNormalizeDefaultsWebCaseToSnake(t *testing.T) {
	cfg := &Config{Web: WebConfig{Case: "  Weird  "}}
	cfg.normalize()
	if cfg.Web.Case != "snake" {
		t.Fatalf("expected snake, got %q", cfg.Web.Case)
	}
}

func TestConfigNormalizeAcceptsCamelCaseInsensitively(t *testing.T) {
	cfg := &Config{Web: WebConfig{Case: "CAMEL"}}
	cfg.normalize()
	if cfg.Web.Case != "camel" {
		t.Fatalf("expected camel, got %q", cfg.Web.Case)
	}
}

func TestConfigNormalizeDefaultsChannelBackendToMemory(t *testing.T) {
	cfg := &Config{}
	cfg.normalize()
	if cfg.Channel.Backend != "memory" {
		t.Fatalf("expected memory, got %q", cfg.Channel.Backend)
	}
}

func TestConfigNormalizeLowercasesChannelBackend(t *testing.T) {
	cfg := &Config{Channel: ChannelConfig{Backend: "REDIS"}}
	cfg.normalize()
	if cfg.Channel.Backend != "redis" {
		t.Fatalf("expected redis, got %q", cfg.Channel.Backend)
	}
}

func TestConfigNormalizeDefaultsWorkerSweepCron(t *testing.T) {
	cfg := &Config{}
	cfg.normalize()
	if cfg.Worker.SweepCron != "*/1 * * * *" {
		t.Fatalf("expected default cron, got %q", cfg.Worker.SweepCron)
	}
}
