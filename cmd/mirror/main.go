package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	appruntime "slMirror/internal/app/runtime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := appruntime.Start(ctx, appruntime.Options{})
	if err != nil {
		log.Fatalf("runtime start failed: %v", err)
	}

	<-ctx.Done()

	if err := run.Stop(); err != nil {
		log.Printf("runtime stop: %v", err)
	}
}
