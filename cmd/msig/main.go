package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/solfarm/multisig-cli/pkg/msig/command"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := command.Execute(ctx, command.NewHandler(os.Stdout, os.Stderr), os.Args[1:])
	stop()
	os.Exit(code)
}
