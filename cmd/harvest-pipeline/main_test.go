package main

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseFlags_Overrides(t *testing.T) {
	t.Setenv("HARVEST_CONFIG", "")

	fs := flag.NewFlagSet("harvest-pipeline", flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{
		"-seeds", "list.txt",
		"-base-dir", "data/",
		"-chunks", "10",
		"-workers", "4",
		"-from-stage", " Hydrate ",
		"-debug",
	})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.FromStage != "hydrate" {
		t.Fatalf("FromStage=%q", cfg.FromStage)
	}
	if cfg.CacheDir() != filepath.Join("data", "cache_novel_work") {
		t.Fatalf("CacheDir=%q", cfg.CacheDir())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.FromStage, cfg.OnlyStage = "cache", "export"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for both stage flags")
	}
	cfg = defaultConfig()
	cfg.OnlyStage = "summarize"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown stage")
	}
}

func TestStagesFrom(t *testing.T) {
	t.Parallel()

	got := stagesFrom(allStages, "export")
	if strings.Join(got, ",") != "export,schema" {
		t.Fatalf("stagesFrom=%v", got)
	}
	if len(stagesFrom(allStages, "nope")) != len(allStages) {
		t.Fatalf("unknown stage should keep every stage")
	}
}

func TestStageArgs(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.BaseDir = "data"
	cfg.Debug = true
	cfg.Verbose = true
	cfg.ConfigPath = "harvest.yaml"

	args, err := stageArgs(cfg, "cache")
	if err != nil {
		t.Fatalf("stageArgs: %v", err)
	}
	line := strings.Join(args, " ")
	for _, want := range []string{"./cmd/work-cache", "-debug", "-verbose", "-config harvest.yaml", "-chunks 100"} {
		if !strings.Contains(line, want) {
			t.Fatalf("args=%q, missing %q", line, want)
		}
	}

	args, err = stageArgs(cfg, "schema")
	if err != nil {
		t.Fatalf("stageArgs: %v", err)
	}
	if strings.Contains(strings.Join(args, " "), "-verbose") {
		t.Fatalf("schema stage takes no -verbose flag: %v", args)
	}
	if _, err := stageArgs(cfg, "bogus"); err == nil {
		t.Fatalf("expected error for unknown stage")
	}
}

func TestDirHasChunks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if dirHasChunks(dir, "novel_work") {
		t.Fatalf("empty dir reported chunks")
	}
	if err := os.WriteFile(filepath.Join(dir, "novel_work_0.json"), []byte("[]\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !dirHasChunks(dir, "novel_work") {
		t.Fatalf("dir with novel_work_0.json reported no chunks")
	}
}

func TestParseFlags_SettingsLayoutReachesStages(t *testing.T) {
	t.Setenv("HARVEST_CONFIG", "")

	path := filepath.Join(t.TempDir(), "harvest.yaml")
	yaml := "cache_dir: /srv/cache\nout_dir: /srv/dataset\ndb: /srv/works.db\nschema_dir: /srv/schemas\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	fs := flag.NewFlagSet("harvest-pipeline", flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{"-config", path, "-base-dir", "data"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}

	want := map[string][]string{
		"cache":   {"-cache-dir /srv/cache"},
		"hydrate": {"-cache-dir /srv/cache", "-out /srv/dataset"},
		"export":  {"-in /srv/dataset", "-db /srv/works.db"},
		"schema":  {"-schema-dir /srv/schemas"},
	}
	for stage, parts := range want {
		args, err := stageArgs(cfg, stage)
		if err != nil {
			t.Fatalf("stageArgs(%s): %v", stage, err)
		}
		line := strings.Join(args, " ")
		for _, p := range parts {
			if !strings.Contains(line, p) {
				t.Fatalf("%s args=%q, missing %q", stage, line, p)
			}
		}
	}

	fs = flag.NewFlagSet("harvest-pipeline", flag.ContinueOnError)
	cfg, err = parseFlags(fs, []string{"-config", path, "-out", "mine"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.OutputDir() != "mine" || cfg.CacheDir() != filepath.Clean("/srv/cache") {
		t.Fatalf("OutputDir=%q CacheDir=%q, want flag over file", cfg.OutputDir(), cfg.CacheDir())
	}
}
