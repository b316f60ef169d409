package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"homeworkbot/cmd/homeworkbot/cmds"
	logx "homeworkbot/pkg/logx"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmds.Execute(ctx); err != nil {
		logx.NewConsole("info").Error("fatal", logx.Err(err))
		cancel()
		os.Exit(1)
	}
}
