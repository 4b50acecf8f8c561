package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsEmptyValues(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Values) != 0 {
		t.Errorf("Values = %v, want empty", cfg.Values)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enhancedterm.yaml")
	cfg := FileConfig{Path: path, Values: map[string]string{"log_level": "debug", "poll_interval_ms": "50"}}
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Values["log_level"] != "debug" {
		t.Errorf("log_level = %q, want %q", loaded.Values["log_level"], "debug")
	}
	if loaded.Values["poll_interval_ms"] != "50" {
		t.Errorf("poll_interval_ms = %q, want %q", loaded.Values["poll_interval_ms"], "50")
	}
}

func TestResolveStringPrefersEnvOverDefaults(t *testing.T) {
	t.Setenv("ENHANCEDTERM_TEST_KEY", "from-env")
	value := ResolveString("ENHANCEDTERM_TEST_KEY", map[string]string{"ENHANCEDTERM_TEST_KEY": "from-file"})
	if value != "from-env" {
		t.Errorf("ResolveString = %q, want %q", value, "from-env")
	}
}

func TestResolveStringFallsBackToDefaults(t *testing.T) {
	os.Unsetenv("ENHANCEDTERM_UNSET_KEY")
	value := ResolveString("ENHANCEDTERM_UNSET_KEY", map[string]string{"ENHANCEDTERM_UNSET_KEY": "from-file"})
	if value != "from-file" {
		t.Errorf("ResolveString = %q, want %q", value, "from-file")
	}
}

func TestResolveBoolRecognizesTruthyForms(t *testing.T) {
	for _, truthy := range []string{"1", "true", "TRUE", "yes", "on"} {
		t.Setenv("ENHANCEDTERM_BOOL_KEY", truthy)
		if !ResolveBool("ENHANCEDTERM_BOOL_KEY", nil) {
			t.Errorf("ResolveBool(%q) = false, want true", truthy)
		}
	}
}

func TestResolveBoolDefaultsToFalse(t *testing.T) {
	os.Unsetenv("ENHANCEDTERM_BOOL_UNSET")
	if ResolveBool("ENHANCEDTERM_BOOL_UNSET", nil) {
		t.Error("ResolveBool on unset key = true, want false")
	}
}

func TestResolveIntParsesOrFallsBack(t *testing.T) {
	t.Setenv("ENHANCEDTERM_INT_KEY", "250")
	if got := ResolveInt("ENHANCEDTERM_INT_KEY", nil, 100); got != 250 {
		t.Errorf("ResolveInt = %d, want 250", got)
	}

	t.Setenv("ENHANCEDTERM_INT_KEY", "not-a-number")
	if got := ResolveInt("ENHANCEDTERM_INT_KEY", nil, 100); got != 100 {
		t.Errorf("ResolveInt with unparsable value = %d, want fallback 100", got)
	}
}
