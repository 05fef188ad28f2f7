package main

import (
	"io"
	"strings"
	"testing"

	"github.com/subtest-dev/subtest/internal/testutil"
)

func TestConfigList_Defaults_Golden(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	w, buf, _ := testWriter()
	cmd := newConfigListCmd(w)
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("config list should succeed: %v", err)
	}

	testutil.AssertGolden(t, buf.String(), "config_list_defaults.golden")
}

func TestConfigGet_EnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SUBTEST_EXEC_REPORT", "json")

	w, buf, _ := testWriter()
	cmd := newConfigGetCmd(w)
	cmd.SetArgs([]string{"exec.report"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("config get should succeed: %v", err)
	}

	if got, want := buf.String(), "exec.report = json\n"; got != want {
		t.Errorf("config get = %q, want %q", got, want)
	}
}

func TestConfigGet_Unset(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	w, buf, _ := testWriter()
	cmd := newConfigGetCmd(w)
	cmd.SetArgs([]string{"nonexistent.key"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("config get should succeed: %v", err)
	}

	if !strings.Contains(buf.String(), "not set") {
		t.Errorf("config get = %q, want not-set notice", buf.String())
	}
}

func TestConfigSet_RoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	w, buf, _ := testWriter()
	setCmd := newConfigSetCmd(w)
	setCmd.SetArgs([]string{"exec.report", "yaml"})
	setCmd.SetOut(io.Discard)
	setCmd.SetErr(io.Discard)

	if err := setCmd.Execute(); err != nil {
		t.Fatalf("config set should succeed: %v", err)
	}
	if !strings.Contains(buf.String(), "Set exec.report = yaml") {
		t.Errorf("config set = %q, want confirmation", buf.String())
	}

	w2, buf2, _ := testWriter()
	getCmd := newConfigGetCmd(w2)
	getCmd.SetArgs([]string{"exec.report"})
	getCmd.SetOut(io.Discard)
	getCmd.SetErr(io.Discard)

	if err := getCmd.Execute(); err != nil {
		t.Fatalf("config get should succeed: %v", err)
	}
	if got, want := buf2.String(), "exec.report = yaml\n"; got != want {
		t.Errorf("config get after set = %q, want %q", got, want)
	}
}

func TestFlattenSettings(t *testing.T) {
	nested := map[string]interface{}{
		"exec": map[string]interface{}{
			"report": "text",
			"nested": map[string]interface{}{"deep": 1},
		},
		"top": "value",
	}

	flat := flattenSettings("", nested)

	want := map[string]interface{}{
		"exec.report":      "text",
		"exec.nested.deep": 1,
		"top":              "value",
	}

	for key, wantVal := range want {
		if got, ok := flat[key]; !ok || got != wantVal {
			t.Errorf("flat[%q] = %v (present=%v), want %v", key, got, ok, wantVal)
		}
	}
}
