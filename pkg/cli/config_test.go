package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", ""},
		{"1234", "****"},
		{"12345678", "********"},
		{"123456789", "1234*6789"},
		{"sk-1234567890abcdef", "sk-1***********cdef"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := MaskAPIKey(tt.key); got != tt.want {
				t.Errorf("MaskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestContext_Extra(t *testing.T) {
	ctx := &Context{Name: "test"}
	if got := ctx.GetExtra("key"); got != "" {
		t.Errorf("GetExtra on nil map = %q, want empty string", got)
	}
	ctx.SetExtra("key", "value")
	if got := ctx.GetExtra("key"); got != "value" {
		t.Errorf("GetExtra(key) = %q, want %q", got, "value")
	}
}

func newTestConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := LoadConfigWithPath("omnicall", filepath.Join(t.TempDir(), "omnicall", "config.yaml"))
	if err != nil {
		t.Fatalf("LoadConfigWithPath error: %v", err)
	}
	return cfg
}

func TestLoadConfigWithPath_NewConfig(t *testing.T) {
	cfg := newTestConfig(t)
	if cfg.AppName != "omnicall" {
		t.Errorf("AppName = %q, want %q", cfg.AppName, "omnicall")
	}
	if cfg.Contexts == nil {
		t.Error("Contexts should be initialized")
	}
	if _, err := os.Stat(cfg.Path()); err != nil {
		t.Errorf("config file not created: %v", err)
	}
}

func TestConfig_Contexts(t *testing.T) {
	cfg := newTestConfig(t)

	if err := cfg.AddContext("", &Context{}); err == nil {
		t.Error("AddContext with empty name succeeded")
	}
	if err := cfg.AddContext("prod", &Context{APIKey: "sk-prod", Model: "omni-turbo"}); err != nil {
		t.Fatalf("AddContext error: %v", err)
	}
	if err := cfg.AddContext("dev", &Context{APIKey: "sk-dev", BaseURL: "ws://localhost:8080"}); err != nil {
		t.Fatalf("AddContext error: %v", err)
	}

	if got := cfg.ListContexts(); len(got) != 2 || got[0] != "dev" || got[1] != "prod" {
		t.Errorf("ListContexts = %v, want [dev prod]", got)
	}

	if err := cfg.UseContext("missing"); err == nil {
		t.Error("UseContext(missing) succeeded")
	}
	if err := cfg.UseContext("prod"); err != nil {
		t.Fatalf("UseContext error: %v", err)
	}

	ctx, err := cfg.ResolveContext("")
	if err != nil {
		t.Fatalf("ResolveContext error: %v", err)
	}
	if ctx.Name != "prod" || ctx.Model != "omni-turbo" {
		t.Errorf("current context = %+v", ctx)
	}
	if ctx, err := cfg.ResolveContext("dev"); err != nil || ctx.BaseURL != "ws://localhost:8080" {
		t.Errorf("ResolveContext(dev) = %+v, %v", ctx, err)
	}

	if err := cfg.DeleteContext("prod"); err != nil {
		t.Fatalf("DeleteContext error: %v", err)
	}
	if cfg.CurrentContext != "" {
		t.Errorf("CurrentContext = %q after delete", cfg.CurrentContext)
	}
	if err := cfg.DeleteContext("prod"); err == nil {
		t.Error("DeleteContext twice succeeded")
	}
}

func TestConfig_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := LoadConfigWithPath("omnicall", path)
	if err != nil {
		t.Fatalf("LoadConfigWithPath error: %v", err)
	}
	ctx := &Context{APIKey: "sk-test", Voice: "Chelsie", MaxReconnects: 5}
	ctx.SetExtra("region", "cn")
	if err := cfg.AddContext("test", ctx); err != nil {
		t.Fatalf("AddContext error: %v", err)
	}
	if err := cfg.UseContext("test"); err != nil {
		t.Fatalf("UseContext error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config mode = %v, want 0600", perm)
	}

	again, err := LoadConfigWithPath("omnicall", path)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	got, err := again.ResolveContext("")
	if err != nil {
		t.Fatalf("ResolveContext error: %v", err)
	}
	if got.APIKey != "sk-test" || got.Voice != "Chelsie" || got.MaxReconnects != 5 || got.GetExtra("region") != "cn" {
		t.Errorf("reloaded context = %+v", got)
	}
}

func TestConfig_ResolveContext_Env(t *testing.T) {
	cfg := newTestConfig(t)

	t.Setenv(EnvAPIKey, "")
	if _, err := cfg.ResolveContext(""); !errors.Is(err, ErrNoContext) {
		t.Errorf("ResolveContext without env = %v, want ErrNoContext", err)
	}

	t.Setenv(EnvAPIKey, "sk-env")
	t.Setenv(EnvBaseURL, "wss://example.com/realtime")
	t.Setenv(EnvModel, "omni-test")
	ctx, err := cfg.ResolveContext("")
	if err != nil {
		t.Fatalf("ResolveContext error: %v", err)
	}
	if ctx.Name != EnvContextName || ctx.APIKey != "sk-env" || ctx.BaseURL != "wss://example.com/realtime" || ctx.Model != "omni-test" {
		t.Errorf("env context = %+v", ctx)
	}

	// A configured current context wins over the environment.
	if err := cfg.AddContext("file", &Context{APIKey: "sk-file"}); err != nil {
		t.Fatal(err)
	}
	if err := cfg.UseContext("file"); err != nil {
		t.Fatal(err)
	}
	if ctx, _ := cfg.ResolveContext(""); ctx.APIKey != "sk-file" {
		t.Errorf("APIKey = %q, want sk-file", ctx.APIKey)
	}
}

func TestPaths(t *testing.T) {
	p := &Paths{AppName: "omnicall", HomeDir: t.TempDir()}
	if want := filepath.Join(p.HomeDir, ".omnicall", "omnicall", "config.yaml"); p.ConfigFile() != want {
		t.Errorf("ConfigFile = %q, want %q", p.ConfigFile(), want)
	}
	dir, err := p.EnsurePlaybackDir()
	if err != nil {
		t.Fatalf("EnsurePlaybackDir error: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("playback dir not created: %v", err)
	}
}
