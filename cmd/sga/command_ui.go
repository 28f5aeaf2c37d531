package main

import (
	"flag"
	"io"

	"github.com/rc-ventura/smart-grading-assistant/internal/app"
)

type UICommand struct {
	stderr io.Writer
	newEnv environmentFactory
}

func NewUICommand(stderr io.Writer, newEnv environmentFactory) *UICommand {
	return &UICommand{stderr: stderr, newEnv: newEnv}
}

func (c *UICommand) Run(args []string) error {
	fs := flag.NewFlagSet("ui", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	rubricPath := fs.String("rubric", "", "path to the rubric JSON file")
	submissionPath := fs.String("submission", "", "path to the submission file")
	provider := fs.String("provider", "", "llm provider (gemini, openai)")
	model := fs.String("model", "", "model name override")
	if err := fs.Parse(args); err != nil {
		return err
	}

	input, err := loadGradingInput(*rubricPath, *submissionPath)
	if err != nil {
		return err
	}
	env, err := c.newEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	return app.Run(env.ctrl, env.repo.Runs(), input, env.fingerprint(*provider, *model))
}
