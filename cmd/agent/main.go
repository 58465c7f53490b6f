package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

// flagOutput receives flag parse errors and usage.
var flagOutput io.Writer = os.Stderr

func main() {
	// A .env next to the binary is optional.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		showUsage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "--help", "-h", "help":
		showUsage()
		return
	case "serve":
		err = runServe(ctx, args)
	case "demo":
		err = runDemo(ctx, args)
	case "send":
		err = runSend(ctx, args, os.Stdin, os.Stdout)
	case "doctor":
		err = runDoctor(ctx, args, os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'a2a-agent --help' for usage information.\n", cmd)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`a2a-agent - agents that delegate to each other over A2A JSON-RPC

USAGE:
    a2a-agent COMMAND [FLAGS]

COMMANDS:
    serve       Run one agent
                Flags: --config, --preset research|writer|routing, --listen, --peer (repeatable)
    demo        Run the research, writer and routing agents in one process
                Flags: --config, --output-dir
    send        Send a message to an agent
                Flags: --url, --session, -i
    doctor      Check config, LLM key, tool servers and peers

CONFIGURATION:
    Config file: ./config.yaml (missing file = defaults)
    Environment: A2A_* variables override config; a .env file is loaded if present

EXAMPLES:
    a2a-agent serve --preset research
    a2a-agent serve --preset routing --peer http://localhost:8001
    a2a-agent demo --output-dir ./output
    a2a-agent send --url http://localhost:8000 "Find the latest Go release and save it to notes.md"
    a2a-agent send -i --session s1`)
}
