package main

import (
	"io"
	"os"
)

type commandRunner interface {
	Run(args []string) error
}

type commandWiring struct {
	stdout  io.Writer
	stderr  io.Writer
	stdin   io.Reader
	newEnv  environmentFactory
	version string
}

func defaultCommandWiring(stdout, stderr io.Writer) commandWiring {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return commandWiring{
		stdout:  stdout,
		stderr:  stderr,
		stdin:   os.Stdin,
		newEnv:  newEnvironment,
		version: buildVersion(),
	}
}

func buildCommands(wiring commandWiring) map[string]commandRunner {
	return map[string]commandRunner{
		"grade": NewGradeCommand(wiring.stdout, wiring.stderr, wiring.stdin, wiring.newEnv),
		"ui":    NewUICommand(wiring.stderr, wiring.newEnv),
		"runs":  NewRunsCommand(wiring.stdout, wiring.stderr, wiring.newEnv),
	}
}
