// Command berinia runs the BerinIA agent runtime.
//
// Usage:
//
//	berinia init --with-scheduler
//	berinia interact
//	berinia webhook --host 0.0.0.0 --port 8001
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/berinia/berinia/pkg/bootstrap"
)

// CLI defines the command-line interface.
type CLI struct {
	Init     InitCmd     `cmd:"" help:"Initialize the system: agents, knowledge store, scheduler."`
	Interact InteractCmd `cmd:"" help:"Interactive REPL over the MetaAgent and AdminInterpreter."`
	Webhook  WebhookCmd  `cmd:"" help:"Start the webhook HTTP server."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config string `short:"c" help:"Path to the YAML config file." type:"path"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(cli *CLI) error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("berinia %s\n", version)
	return nil
}

// InitCmd brings the runtime up, reports what was created, and exits unless
// the scheduler was requested, in which case it keeps running until
// interrupted.
type InitCmd struct {
	WithScheduler bool `name:"with-scheduler" help:"Also start the task scheduler and keep running."`
}

func (c *InitCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	rt, err := bootstrap.Start(ctx, bootstrap.Options{
		ConfigPath:    cli.Config,
		WithScheduler: c.WithScheduler,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	fmt.Println("Agents:")
	for _, name := range rt.Registry.KnownNames() {
		category, _ := rt.Registry.CategoryOf(name)
		fmt.Printf("  %-22s %s\n", name, category)
	}
	fmt.Printf("Scheduled tasks: %d\n", rt.Scheduler.Len())

	if c.WithScheduler {
		fmt.Println("Scheduler running; press Ctrl+C to stop.")
		<-ctx.Done()
	}
	return nil
}

// WebhookCmd starts the webhook server and blocks until interrupted.
type WebhookCmd struct {
	Host string `help:"Listen host." default:""`
	Port int    `help:"Listen port." default:"0"`
}

func (c *WebhookCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	rt, err := bootstrap.Start(ctx, bootstrap.Options{
		ConfigPath:    cli.Config,
		WithScheduler: true,
		WithWebhook:   true,
		WebhookHost:   c.Host,
		WebhookPort:   c.Port,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- rt.Webhook.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("berinia"),
		kong.Description("BerinIA - multi-agent outbound prospecting runtime"),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
