// Package main starts the session continuity service and handles
// termination.
//
// The process is a transport adapter around presence tracking, bot
// takeover, and host migration so game rule state remains owned by the
// engine collaborator.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	continuitycmd "github.com/louisbranch/tablekeep/internal/cmd/continuity"
)

func main() {
	cfg, err := continuitycmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[CONTINUITY] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := continuitycmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
