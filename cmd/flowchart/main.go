// Command flowchart lists, renders and edits flowcharts held by a
// flowchart store.
//
// Usage:
//
//	flowchart [-config path] [-v] <command> [flags]
//
// Commands:
//
//	login    authenticate and cache a token
//	logout   forget the cached token
//	list     list flowcharts with their node and edge counts
//	show     render flowcharts as mermaid, json or yaml
//	sources  list the nodes a new step can attach to
//	append   append a step to a flowchart
//	move     move a node and persist its position
//	connect  draw a local edge between two nodes and render the result
//	create   create a flowchart or change its title and description
//	delete   delete a flowchart with its nodes and edges
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"flowchart/internal/client"
	"flowchart/internal/config"
	"flowchart/internal/controller"
	"flowchart/internal/logging"
	"flowchart/internal/planner"
	"flowchart/internal/session"

	"go.uber.org/zap"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app carries what every command needs
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	session *session.File
	stdout  io.Writer
	stderr  io.Writer
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"login", "authenticate and cache a token", runLogin},
	{"logout", "forget the cached token", runLogout},
	{"list", "list flowcharts", runList},
	{"show", "render flowcharts as mermaid, json or yaml", runShow},
	{"sources", "list the nodes a new step can attach to", runSources},
	{"append", "append a step to a flowchart", runAppend},
	{"move", "move a node and persist its position", runMove},
	{"connect", "draw a local edge and render the result", runConnect},
	{"create", "create or retitle a flowchart", runCreate},
	{"delete", "delete a flowchart", runDelete},
}

// usageError marks errors caused by bad arguments
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("flowchart", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Config file path (default: search standard locations)")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Usage = func() { printUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		printUsage(stderr)
		return exitUsage
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == fs.Arg(0) {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "unknown command %q\n\n", fs.Arg(0))
		printUsage(stderr)
		return exitUsage
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitError
	}
	if !*verbose && cfg.Log.Level == "info" {
		cfg.Log.Level = "warn"
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}

	logger, err := logging.New(cfg.Log, "cli")
	if err != nil {
		fmt.Fprintf(stderr, "logging: %v\n", err)
		return exitError
	}
	defer logger.Sync()

	a := &app{
		cfg:     cfg,
		logger:  logger,
		session: session.NewFile(cfg.Session.Path),
		stdout:  stdout,
		stderr:  stderr,
	}

	if err := cmd.run(ctx, a, fs.Args()[1:]); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(stderr, "%s: %s\n", cmd.name, ue.msg)
			return exitUsage
		}
		if errors.Is(err, flag.ErrHelp) {
			return exitUsage
		}
		fmt.Fprintf(stderr, "%s: %v\n", cmd.name, err)
		return exitError
	}
	return exitOK
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: flowchart [-config path] [-v] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// sessionToken only hands out the cached token for the store it came from
type sessionToken struct {
	file     *session.File
	storeURL string
}

func (t sessionToken) Token() string {
	s, err := t.file.Load()
	if err != nil || s.StoreURL != t.storeURL {
		return ""
	}
	return s.Token
}

func (a *app) client() *client.Client {
	return client.New(a.cfg.Store,
		client.WithTokenSource(sessionToken{file: a.session, storeURL: a.cfg.Store.URL}),
		client.WithLogger(a.logger.Named("client")),
	)
}

func (a *app) controller() *controller.Controller {
	return controller.New(a.client(),
		controller.WithPlanner(planner.FromConfig(a.cfg.Planner)),
		controller.WithLogger(a.logger.Named("controller")),
	)
}

// load creates a controller and fetches the list
func (a *app) load(ctx context.Context) (*controller.Controller, error) {
	ctrl := a.controller()
	if err := ctrl.Refresh(ctx); err != nil {
		_, msg := ctrl.State()
		fmt.Fprintln(a.stderr, msg)
		return nil, err
	}
	return ctrl, nil
}

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}
