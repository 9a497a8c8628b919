package main

import (
	"context"
	"os"

	"github.com/alecthomas/kong"
	"github.com/vormadev/kiln/kit/colorlog"
	"github.com/vormadev/kiln/kit/grace"
)

var version = "dev"

func newParser(ctx context.Context, cli *CLI, g *Globals, opts ...kong.Option) (*kong.Kong, error) {
	opts = append([]kong.Option{
		kong.Name("kiln"),
		kong.Description("Front-end asset pipeline: Sass, scripts, images, revisioning and live reload."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.Bind(g),
		kong.BindTo(ctx, (*context.Context)(nil)),
	}, opts...)
	return kong.New(cli, opts...)
}

func main() {
	log := colorlog.New("kiln")
	ctx, stop := grace.SignalContext(context.Background(), log)
	defer stop()

	var cli CLI
	g := &Globals{Out: os.Stdout, Log: log}
	parser, err := newParser(ctx, &cli, g)
	if err != nil {
		panic(err)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	if err := kctx.Run(); err != nil {
		g.Log.Error(err.Error())
		stop()
		os.Exit(1)
	}
}
