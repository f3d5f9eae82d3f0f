package internal

import (
	"strings"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLibraryConfig_ExtensionWithoutDot(t *testing.T) {
	cfg := LibraryConfig{Path: "./library", Extensions: []string{"safetensors"}}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("extension without dot should fail")
	}
	if !strings.Contains(err.Error(), "must start with a dot") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSidecarsConfig_UnknownKind(t *testing.T) {
	cfg := SidecarsConfig{Suffixes: map[string]string{".json": "mystery"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown sidecar kind should fail")
	}
}

func TestSidecarsConfig_EmptyUsesBuiltins(t *testing.T) {
	cfg := SidecarsConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty sidecar config should pass: %v", err)
	}
	if cfg.Registry() != nil {
		t.Error("empty config should yield nil registry (built-in set)")
	}
}

func TestSidecarsConfig_CustomRegistry(t *testing.T) {
	cfg := SidecarsConfig{Suffixes: map[string]string{".meta.json": "metadata-json"}}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	reg := cfg.Registry()
	if len(reg) != 1 {
		t.Fatalf("registry = %v", reg)
	}
}

func TestResolverConfig_AutoAcceptBelowMin(t *testing.T) {
	cfg := ResolverConfig{MinScore: 0.8, AutoAccept: 0.5, MaxCandidates: 5}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("auto_accept below min_score should fail")
	}
}

func TestResolverConfig_ScoreOutOfRange(t *testing.T) {
	cfg := ResolverConfig{MinScore: 1.5, AutoAccept: 1.6, MaxCandidates: 5}
	if err := cfg.Validate(); err == nil {
		t.Fatal("scores above 1.0 should fail")
	}
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}
