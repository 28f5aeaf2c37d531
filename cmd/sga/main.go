package main

import (
	"fmt"
	"os"
)

const usageText = `sga grades student submissions against a rubric.

Usage:
  sga <command> [flags]

Commands:
  grade    run a single grading pass (prompts for approval on stdin)
  ui       run the interactive terminal UI
  runs     list archived runs
  version  print build version
  help     show help

Flags:
  -h, --help   show help

Examples:
  sga grade -rubric rubric.json -submission main.go
  sga grade -rubric rubric.json -submission main.go -provider openai
  sga ui -rubric rubric.json -submission main.go
  sga runs -n 10
`

func printUsage() {
	fmt.Fprint(os.Stderr, usageText)
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		return
	}

	wiring := defaultCommandWiring(os.Stdout, os.Stderr)
	commands := buildCommands(wiring)

	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
		return
	case "version":
		fmt.Fprintln(wiring.stdout, wiring.version)
		return
	}

	runner, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
	exitOnErr(args[0], runner.Run(args[1:]), wiring.stderr)
}
