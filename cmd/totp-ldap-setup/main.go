package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/aakso/totp-ldap-setup/internal/ui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := RootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		ui.New().Error("%s", err)
		os.Exit(1)
	}
}
