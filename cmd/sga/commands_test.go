package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rc-ventura/smart-grading-assistant/internal/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadGradingInput(t *testing.T) {
	dir := t.TempDir()
	rubricPath := writeFile(t, dir, "rubric.json",
		`{"name":"Go Exercise","criteria":[{"name":"Quality","description":"readability","max_score":100}]}`)
	submissionPath := writeFile(t, dir, "main.go", "package main\n")

	input, err := loadGradingInput(rubricPath, submissionPath)
	if err != nil {
		t.Fatalf("loadGradingInput: %v", err)
	}
	if input.Rubric.Name != "Go Exercise" || len(input.Rubric.Criteria) != 1 {
		t.Fatalf("unexpected rubric: %+v", input.Rubric)
	}
	if input.Rubric.Criteria[0].Slug != "quality" {
		t.Fatalf("expected slug to be filled, got %q", input.Rubric.Criteria[0].Slug)
	}
	if input.Submission != "package main\n" {
		t.Fatalf("unexpected submission: %q", input.Submission)
	}
}

func TestLoadGradingInputRejectsInvalidRubric(t *testing.T) {
	dir := t.TempDir()
	rubricPath := writeFile(t, dir, "rubric.json", `{"name":"empty"}`)
	submissionPath := writeFile(t, dir, "main.go", "package main\n")

	if _, err := loadGradingInput(rubricPath, submissionPath); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadGradingInputRejectsEmptySubmission(t *testing.T) {
	dir := t.TempDir()
	rubricPath := writeFile(t, dir, "rubric.json",
		`{"name":"r","criteria":[{"name":"q","description":"d","max_score":10}]}`)
	submissionPath := writeFile(t, dir, "empty.go", "  \n")

	if _, err := loadGradingInput(rubricPath, submissionPath); err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected empty submission error, got %v", err)
	}
}

func TestLoadGradingInputRequiresPaths(t *testing.T) {
	if _, err := loadGradingInput("", "x"); err == nil {
		t.Fatalf("expected error for missing rubric path")
	}
	if _, err := loadGradingInput("x", ""); err == nil {
		t.Fatalf("expected error for missing submission path")
	}
}

func TestFingerprintDefaults(t *testing.T) {
	env := &environment{settings: config.DefaultSettings()}

	fp := env.fingerprint("", "")
	if fp.Provider != "gemini" || fp.Model == "" {
		t.Fatalf("expected configured defaults, got %+v", fp)
	}

	fp = env.fingerprint("OpenAI", "")
	if fp.Provider != "openai" {
		t.Fatalf("provider must be lowercased, got %q", fp.Provider)
	}
	if fp.Model != env.settings.ProviderFor("openai").Model {
		t.Fatalf("model must default per provider, got %q", fp.Model)
	}

	fp = env.fingerprint("gemini", "custom-model")
	if fp.Model != "custom-model" {
		t.Fatalf("explicit model must win, got %q", fp.Model)
	}
}
