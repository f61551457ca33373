// Command fakedapr imitates the parts of the dapr CLI used by daprrun: run, list and stop.
// Runs are recorded as files named by app id in FAKEDAPR_STATE_DIR. It can also act as a
// trivial application with the app command.
//
// FAKEDAPR_MODE changes how run behaves: "exit" fails before printing that the sidecar is
// up, "quiet" exits cleanly without printing it, and "hang" never prints it.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	configo11y "github.com/circleci/daprit/config/o11y"
)

type cli struct {
	O11yFormat string `name:"o11y-format" env:"FAKEDAPR_O11Y_FORMAT" default:"none" help:"Trace output format."`

	Run  runCmd  `cmd:"" help:"Run a sidecar, and optionally an application."`
	List listCmd `cmd:"" help:"List running sidecars."`
	Stop stopCmd `cmd:"" help:"Stop a sidecar."`
	App  appCmd  `cmd:"" help:"Run a fake application."`
}

func main() {
	c := &cli{}
	kctx := kong.Parse(c, kong.Name("dapr"))

	ctx, closeProvider, err := configo11y.Setup(context.Background(), configo11y.Config{
		Format:  c.O11yFormat,
		Service: "fakedapr",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	kctx.BindTo(ctx, (*context.Context)(nil))
	err = kctx.Run()
	closeProvider(ctx)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
