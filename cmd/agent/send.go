package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/vidya-hub/a2a-orchestrator/internal/adapter/a2a"
	"github.com/vidya-hub/a2a-orchestrator/internal/domain"
)

const defaultAgentURL = "http://localhost:8000"

func runSend(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(flagOutput)
	url := fs.String("url", defaultAgentURL, "agent base URL")
	session := fs.String("session", "", "conversation id to continue (generated if empty)")
	interactive := fs.Bool("i", false, "interactive mode")
	if err := fs.Parse(args); err != nil {
		return err
	}
	message := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if message == "" && !*interactive {
		return fmt.Errorf("a message is required unless -i is set")
	}

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	dim := color.New(color.Faint)

	client := a2a.NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)))
	baseURL := strings.TrimRight(*url, "/")
	card, err := client.FetchCard(ctx, baseURL)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", baseURL, err)
	}
	cyan.Fprintf(out, "Connected to: %s\n", card.Name)

	contextID := *session
	if contextID == "" {
		contextID = uuid.NewString()
	}
	dim.Fprintf(out, "Session: %s (pass --session %s to continue)\n\n", contextID, contextID)

	send := func(text string) error {
		task, err := client.SendMessage(ctx, baseURL, text, contextID)
		if err != nil {
			return err
		}
		reply := a2a.MessageText(task.Status.Message)
		if domain.TaskState(task.Status.State) == domain.TaskFailed {
			red.Fprintf(out, "Task failed: %s\n", reply)
			return nil
		}
		green.Fprintf(out, "%s: ", card.Name)
		fmt.Fprintln(out, reply)
		return nil
	}

	if message != "" {
		if err := send(message); err != nil {
			return err
		}
	}
	if !*interactive {
		return nil
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		if err := send(line); err != nil {
			red.Fprintf(out, "Error: %v\n", err)
		}
	}
}
