package main

import (
	"flag"
	"io"
)

type RunsCommand struct {
	stdout io.Writer
	stderr io.Writer
	newEnv environmentFactory
}

func NewRunsCommand(stdout, stderr io.Writer, newEnv environmentFactory) *RunsCommand {
	return &RunsCommand{stdout: stdout, stderr: stderr, newEnv: newEnv}
}

func (c *RunsCommand) Run(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	limit := fs.Int("n", 20, "number of runs to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := c.newEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	states, err := env.repo.Runs().RecentRuns(*limit)
	if err != nil {
		return err
	}
	printRuns(c.stdout, states)
	return nil
}
