package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/berinia/berinia/pkg/agent"
	"github.com/berinia/berinia/pkg/bootstrap"
	"github.com/berinia/berinia/pkg/logger"
)

const replHelp = `Built-in commands:
  help         show this help
  status       show agent statuses
  logs [n]     show the last n lines of the system log (default 20)
  tasks        list pending scheduled tasks
  performance  show runtime counters
  exit         quit

Prefix a line with ! to issue an administrator command.
Anything else is sent to the MetaAgent.`

// InteractCmd is the REPL front door: free text goes to the MetaAgent,
// !-prefixed lines to the AdminInterpreter.
type InteractCmd struct{}

func (c *InteractCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	rt, err := bootstrap.Start(ctx, bootstrap.Options{
		ConfigPath:    cli.Config,
		WithScheduler: true,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	fmt.Println("BerinIA interactive console. Type help for commands.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch parts := strings.Fields(line); parts[0] {
		case "exit", "quit":
			return nil
		case "help":
			fmt.Println(replHelp)
		case "status":
			printStatus(rt)
		case "logs":
			printLogs(rt, parts)
		case "tasks":
			printTasks(rt)
		case "performance":
			printPerformance(rt)
		default:
			if strings.HasPrefix(line, "!") {
				runAdminCommand(ctx, rt, scanner, strings.TrimSpace(line[1:]))
			} else {
				runMetaMessage(ctx, rt, line)
			}
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func printStatus(rt *bootstrap.Runtime) {
	state := rt.Overseer.SystemState()
	if len(state) == 0 {
		fmt.Println("No live agents.")
		return
	}
	for _, name := range rt.Registry.KnownNames() {
		if status, ok := state[name]; ok {
			fmt.Printf("  %-22s %s\n", name, status)
		}
	}
}

func printLogs(rt *bootstrap.Runtime, parts []string) {
	lines := 20
	if len(parts) > 1 {
		fmt.Sscanf(parts[1], "%d", &lines)
	}
	tail, err := logger.TailFile(filepath.Join(rt.Config.Logger.Directory(), "system.log"), lines)
	if err != nil {
		fmt.Printf("cannot read log: %v\n", err)
		return
	}
	for _, line := range tail {
		fmt.Println(line)
	}
}

func printTasks(rt *bootstrap.Runtime) {
	pending := rt.Scheduler.ListPending()
	if len(pending) == 0 {
		fmt.Println("No pending tasks.")
		return
	}
	for _, task := range pending {
		recurring := ""
		if task.Recurring {
			recurring = fmt.Sprintf(" (every %ds)", task.IntervalS)
		}
		fmt.Printf("  %-38s %s.%s at %d prio %d%s\n",
			task.ID, task.Data.TargetAgent, task.Data.Action, task.Timestamp, task.Priority, recurring)
	}
}

func printPerformance(rt *bootstrap.Runtime) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	fmt.Printf("  goroutines:     %d\n", runtime.NumGoroutine())
	fmt.Printf("  heap in use:    %d KB\n", mem.HeapInuse/1024)
	fmt.Printf("  live agents:    %d\n", len(rt.Registry.Instances()))
	fmt.Printf("  pending tasks:  %d\n", rt.Scheduler.Len())
}

// runAdminCommand interprets an administrator command and asks for
// confirmation before dispatching the delegation.
func runAdminCommand(ctx context.Context, rt *bootstrap.Runtime, scanner *bufio.Scanner, command string) {
	if command == "" {
		fmt.Println("Empty admin command.")
		return
	}

	result := rt.Overseer.Execute(ctx, "AdminInterpreter", map[string]any{"message": command})
	if agent.IsError(result) {
		fmt.Printf("Interpretation failed: %s\n", agent.Message(result))
		return
	}
	if intent, _ := result["intent"].(string); intent == "unknown" {
		fmt.Println("Command not understood. Rephrase or type help.")
		return
	}

	target, _ := result["target_agent"].(string)
	action, _ := result["action"].(string)
	params, _ := result["parameters"].(map[string]any)
	if original, ok := result["original_target"].(string); ok {
		fmt.Printf("Note: %q is not a known agent, using %s instead.\n", original, target)
	}

	fmt.Printf("Execute %s.%s with %v? [y/N] ", target, action, params)
	if !scanner.Scan() || !strings.EqualFold(strings.TrimSpace(scanner.Text()), "y") {
		fmt.Println("Cancelled.")
		return
	}

	input := make(map[string]any, len(params)+1)
	for k, v := range params {
		input[k] = v
	}
	input["action"] = action
	printResult(rt.Overseer.Execute(ctx, target, input))
}

func runMetaMessage(ctx context.Context, rt *bootstrap.Runtime, message string) {
	printResult(rt.Overseer.Execute(ctx, "MetaAgent", map[string]any{"message": message}))
}

func printResult(result map[string]any) {
	if agent.IsError(result) {
		fmt.Printf("Error: %s\n", agent.Message(result))
		return
	}
	if response, ok := result["response"].(string); ok && response != "" {
		fmt.Println(response)
		return
	}
	fmt.Printf("%v\n", result)
}
