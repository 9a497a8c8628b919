package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/vormadev/kiln/kiln/internal/config"
	"github.com/vormadev/kiln/kiln/tooling"
	"github.com/vormadev/kiln/kit/colorlog"
)

// Globals is shared by every command.
type Globals struct {
	Out io.Writer
	Log *slog.Logger

	// options lets tests swap in fakes.
	options func(*tooling.Options)
}

type CLI struct {
	Config  string           `short:"c" help:"Configuration file, relative to the project root." default:"kiln.yaml"`
	Root    string           `help:"Project root." default:"." type:"path"`
	Verbose bool             `short:"v" help:"Enable debug logging."`
	Version kong.VersionFlag `help:"Show version and exit."`

	Build BuildCmd `cmd:"" help:"Run the production build once."`
	Dev   DevCmd   `cmd:"" help:"Build, then watch and rebuild with live reload."`
	Run   RunCmd   `cmd:"" help:"Run tasks or aliases in order."`
	Pages PagesCmd `cmd:"" help:"Print the discovered bundles as JSON."`
	Tasks TasksCmd `cmd:"" help:"List tasks and aliases."`
}

// AfterApply sets up logging once flags are parsed.
func (c *CLI) AfterApply(g *Globals) error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	g.Log = colorlog.New("kiln", colorlog.Options{Level: level})
	return nil
}

func (c *CLI) builder(g *Globals) (*tooling.Builder, error) {
	if err := config.LoadDotEnv(c.Root); err != nil {
		return nil, err
	}
	cfg, err := config.Load(c.Root, c.Config)
	if err != nil {
		return nil, err
	}
	if cfg.Package.Name != "" {
		g.Log.Info("Project", "name", cfg.Package.Name, "version", cfg.Package.Version)
	}

	opts := tooling.Options{Config: cfg, Log: g.Log}
	if g.options != nil {
		g.options(&opts)
	}
	return tooling.New(opts)
}

type BuildCmd struct{}

func (BuildCmd) Run(ctx context.Context, cli *CLI, g *Globals) error {
	return runTasks(ctx, cli, g, "build")
}

type DevCmd struct{}

func (DevCmd) Run(ctx context.Context, cli *CLI, g *Globals) error {
	b, err := cli.builder(g)
	if err != nil {
		return err
	}
	defer b.Close()
	return b.Dev(ctx)
}

type RunCmd struct {
	Tasks []string `arg:"" name:"task" help:"Tasks or aliases to run, e.g. js style file_v."`
}

func (r RunCmd) Run(ctx context.Context, cli *CLI, g *Globals) error {
	return runTasks(ctx, cli, g, r.Tasks...)
}

func runTasks(ctx context.Context, cli *CLI, g *Globals, names ...string) error {
	b, err := cli.builder(g)
	if err != nil {
		return err
	}
	defer b.Close()
	return b.Run(ctx, names...)
}

type PagesCmd struct{}

func (PagesCmd) Run(ctx context.Context, cli *CLI, g *Globals) error {
	b, err := cli.builder(g)
	if err != nil {
		return err
	}
	defer b.Close()

	set, err := b.Bundles(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(g.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(set)
}

type TasksCmd struct{}

func (TasksCmd) Run(cli *CLI, g *Globals) error {
	b, err := cli.builder(g)
	if err != nil {
		return err
	}
	defer b.Close()

	r := b.Registry()
	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	for _, name := range r.Names() {
		fmt.Fprintf(tw, "%s\t%s\n", name, r.Describe(name))
	}
	return tw.Flush()
}
