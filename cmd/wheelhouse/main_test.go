package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestRootHasSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "config", "version"} {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected root command to include %s", name)
		}
	}
}

func TestConfigInitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"config", "init", "--output", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out.String(), path) {
		t.Fatalf("output = %q", out.String())
	}
	root = newRootCmd()
	root.SetOut(out)
	root.SetArgs([]string{"config", "init", "--output", path})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected error on existing config without --force")
	}
}

func TestVersionPrintsModule(t *testing.T) {
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out.String(), "wheelhouse") {
		t.Fatalf("output = %q", out.String())
	}
}
