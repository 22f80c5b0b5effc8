package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/valpere/geopogoda/internal/bot"
	"github.com/valpere/geopogoda/internal/config"
	"github.com/valpere/geopogoda/internal/locations"
	"github.com/valpere/geopogoda/internal/version"
)

func main() {
	// Command-line flags
	versionFlag := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	log.Printf("Starting GeoPogoda %s", version.GetInfo().Short())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	weatherBot, err := bot.New(cfg)
	if err != nil {
		if errors.Is(err, locations.ErrStorageCorrupt) {
			log.Fatalf("Location storage is corrupt, fix or remove it before restarting: %v", err)
		}
		log.Fatalf("Failed to create bot: %v", err)
	}

	startErr := make(chan error, 1)
	go func() {
		startErr <- weatherBot.Start(ctx)
	}()

	// Wait for interrupt signal or a failed start
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-sigCh:
		log.Println("Shutting down GeoPogoda...")
	case err := <-startErr:
		if err != nil {
			log.Printf("Bot failed: %v", err)
			exitCode = 1
		}
	}
	cancel()

	// Stop writes pending locations even when Start failed.
	if err := weatherBot.Stop(); err != nil {
		log.Printf("Error during shutdown: %v", err)
		exitCode = 1
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	log.Println("GeoPogoda stopped gracefully")
}
