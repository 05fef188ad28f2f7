package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// unsetEnvForTest unsets an environment variable and registers cleanup to
// restore its original state (including distinguishing "unset" from "set to
// empty string").
func unsetEnvForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	unsetEnvForTest(t, "SUBTEST_EXEC_TIMEOUT")
	unsetEnvForTest(t, "SUBTEST_EXEC_KILL_DELAY")
	unsetEnvForTest(t, "SUBTEST_EXEC_REPORT")
	unsetEnvForTest(t, "SUBTEST_LOG_LEVEL")
	unsetEnvForTest(t, "SUBTEST_LOG_FILE")
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfig(t)

	cfg := Load()

	if got := cfg.Timeout(); got != 0 {
		t.Errorf("Timeout() = %v, want 0", got)
	}
	if got := cfg.KillDelay(); got != DefaultKillDelay {
		t.Errorf("KillDelay() = %v, want %v", got, DefaultKillDelay)
	}
	if got := cfg.ReportFormat(); got != DefaultReportFormat {
		t.Errorf("ReportFormat() = %q, want %q", got, DefaultReportFormat)
	}
	if got := cfg.LogLevel(); got != DefaultLogLevel {
		t.Errorf("LogLevel() = %q, want %q", got, DefaultLogLevel)
	}
	if got := cfg.LogFile(); got != "" {
		t.Errorf("LogFile() = %q, want empty", got)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolateConfig(t)
	t.Setenv("SUBTEST_EXEC_TIMEOUT", "30s")
	t.Setenv("SUBTEST_EXEC_REPORT", "json")
	t.Setenv("SUBTEST_LOG_LEVEL", "debug")

	cfg := Load()

	if got := cfg.Timeout(); got != 30*time.Second {
		t.Errorf("Timeout() = %v, want 30s", got)
	}
	if got := cfg.ReportFormat(); got != "json" {
		t.Errorf("ReportFormat() = %q, want json", got)
	}
	if got := cfg.LogLevel(); got != "debug" {
		t.Errorf("LogLevel() = %q, want debug", got)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	isolateConfig(t)

	home := os.Getenv("HOME")
	configDir := filepath.Join(home, ".config", "subtest")
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	content := "exec:\n  timeout: 5s\n  report: yaml\n"
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := Load()

	if got := cfg.Timeout(); got != 5*time.Second {
		t.Errorf("Timeout() = %v, want 5s", got)
	}
	if got := cfg.ReportFormat(); got != "yaml" {
		t.Errorf("ReportFormat() = %q, want yaml", got)
	}
	// Env beats file once set.
	t.Setenv("SUBTEST_EXEC_REPORT", "json")
	if got := Load().ReportFormat(); got != "json" {
		t.Errorf("ReportFormat() with env override = %q, want json", got)
	}
}

func TestSetPersists(t *testing.T) {
	isolateConfig(t)

	cfg := Load()
	if err := cfg.Set("exec.report", "json"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if got := Load().ReportFormat(); got != "json" {
		t.Errorf("ReportFormat() after Set = %q, want json", got)
	}
}

func TestAllIncludesDefaults(t *testing.T) {
	isolateConfig(t)

	all := Load().All()
	if _, ok := all["exec"]; !ok {
		t.Errorf("All() missing exec section: %v", all)
	}
}
