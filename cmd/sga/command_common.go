package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rc-ventura/smart-grading-assistant/internal/config"
	"github.com/rc-ventura/smart-grading-assistant/internal/llm"
	"github.com/rc-ventura/smart-grading-assistant/internal/logging"
	"github.com/rc-ventura/smart-grading-assistant/internal/pipeline"
	"github.com/rc-ventura/smart-grading-assistant/internal/registry"
	"github.com/rc-ventura/smart-grading-assistant/internal/rubric"
	"github.com/rc-ventura/smart-grading-assistant/internal/run"
	"github.com/rc-ventura/smart-grading-assistant/internal/scoring"
	"github.com/rc-ventura/smart-grading-assistant/internal/store"
	"github.com/rc-ventura/smart-grading-assistant/internal/types"
)

type environmentFactory func() (*environment, error)

// environment is the wired-up application: settings, logging, the
// execution context registry, the run controller and the archive.
type environment struct {
	settings config.Settings
	logger   logging.Logger
	logFile  *os.File
	reg      *registry.Registry
	ctrl     *run.Controller
	repo     store.Repository
}

func newEnvironment() (*environment, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.Nop()
	var logFile *os.File
	if path, err := config.LogPath(); err == nil {
		if fileLogger, f, err := logging.NewFile(path, logging.ParseLevel(settings.Logging.Level)); err == nil {
			logger = fileLogger
			logFile = f
		}
	}

	factory := func(fp registry.Fingerprint) (llm.Client, error) {
		ps := settings.ProviderFor(fp.Provider)
		client, err := llm.NewClient(llm.ClientConfig{
			Provider: fp.Provider,
			Model:    fp.Model,
			APIKey:   ps.APIKey,
			BaseURL:  ps.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		return llm.NewRetryingClient(client, settings.Grading.RetryAttempts, time.Second), nil
	}
	reg, err := registry.NewRegistry(factory, logger)
	if err != nil {
		return nil, err
	}

	archivePath, err := config.ArchivePath()
	if err != nil {
		return nil, err
	}
	repo, err := store.NewBboltRepository(archivePath)
	if err != nil {
		return nil, err
	}

	gate := scoring.GatePolicy{
		FailingThreshold:     settings.Grading.FailingThreshold,
		ExceptionalThreshold: settings.Grading.ExceptionalThreshold,
	}
	backend := pipeline.New(gate, logger)
	ctrl := run.NewController(backend, reg, repo.Runs(), logger)

	return &environment{
		settings: settings,
		logger:   logger,
		logFile:  logFile,
		reg:      reg,
		ctrl:     ctrl,
		repo:     repo,
	}, nil
}

func (e *environment) Close() {
	e.ctrl.Close()
	e.reg.Close()
	_ = e.repo.Close()
	if e.logFile != nil {
		_ = e.logFile.Close()
	}
}

// fingerprint resolves the provider and model, falling back to the
// configured defaults.
func (e *environment) fingerprint(provider, model string) registry.Fingerprint {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = e.settings.Provider
	}
	if strings.TrimSpace(model) == "" {
		model = e.settings.ProviderFor(provider).Model
	}
	return registry.Fingerprint{Provider: provider, Model: model}
}

// loadGradingInput reads and validates the rubric and submission files.
func loadGradingInput(rubricPath, submissionPath string) (types.GradingInput, error) {
	if strings.TrimSpace(rubricPath) == "" {
		return types.GradingInput{}, fmt.Errorf("-rubric is required")
	}
	if strings.TrimSpace(submissionPath) == "" {
		return types.GradingInput{}, fmt.Errorf("-submission is required")
	}
	rubricRaw, err := os.ReadFile(rubricPath)
	if err != nil {
		return types.GradingInput{}, fmt.Errorf("read rubric: %w", err)
	}
	submission, err := os.ReadFile(submissionPath)
	if err != nil {
		return types.GradingInput{}, fmt.Errorf("read submission: %w", err)
	}
	if len(strings.TrimSpace(string(submission))) == 0 {
		return types.GradingInput{}, fmt.Errorf("submission %s is empty", submissionPath)
	}
	parsed, result := rubric.Parse(string(rubricRaw))
	if err := result.Err(); err != nil {
		return types.GradingInput{}, err
	}
	return types.GradingInput{
		Rubric:     parsed,
		RubricJSON: string(rubricRaw),
		Submission: string(submission),
	}, nil
}

func printRuns(output io.Writer, states []types.RunState) {
	writer := tabwriter.NewWriter(output, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tSTATUS\tSCORE\tGRADE\tSTARTED")
	for _, state := range states {
		score := "-"
		grade := "-"
		if state.Final != nil {
			score = fmt.Sprintf("%.1f%%", state.Final.Percentage)
			grade = state.Final.LetterGrade
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			state.RunID, state.Status, score, grade, state.StartedAt.Local().Format(time.DateTime))
	}
	_ = writer.Flush()
}

func exitOnErr(label string, err error, stderr io.Writer) {
	if err == nil {
		return
	}
	fmt.Fprintf(stderr, "%s error: %v\n", label, err)
	os.Exit(1)
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		var revision string
		var modified string
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				revision = setting.Value
			case "vcs.modified":
				modified = setting.Value
			}
		}
		if revision != "" {
			if modified == "true" {
				return revision + "-dirty"
			}
			return revision
		}
	}
	return "dev"
}
