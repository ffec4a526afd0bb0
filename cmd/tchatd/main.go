package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/tradechat/internal/daemon"
	"github.com/matheus3301/tradechat/internal/session"
	"go.uber.org/fx"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	debugFlag := flag.Bool("debug", false, "write debug entries to the log file")
	flag.Parse()

	sessionName, err := session.Resolve(*sessionFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{SessionName: sessionName, Debug: *debugFlag}),
		fx.NopLogger,
	)

	app.Run()
}
