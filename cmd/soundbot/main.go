// cmd/soundbot/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"soundbot/internal/config"
	"soundbot/internal/console"
	"soundbot/internal/discord"
	"soundbot/internal/dispatcher"
	"soundbot/internal/session"
	"soundbot/internal/storage"
	v "soundbot/internal/version"
)

func main() {
	log.Printf("[INFO] Starting %v...", v.AppName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.New()

	info, err := os.Stat(cfg.SoundsDir)
	if err != nil {
		log.Fatalf("[ERR] Sounds directory %q is not usable: %v", cfg.SoundsDir, err)
	}
	if !info.IsDir() {
		log.Fatalf("[ERR] Sounds directory %q is not a directory", cfg.SoundsDir)
	}

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	registry := session.New()
	disp := dispatcher.New(registry, cfg.SoundsDir, store)
	bot := discord.NewBot(cfg, registry, disp)

	errCh := make(chan error, 1)
	go func() {
		if err := bot.Run(ctx); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	go console.Run(ctx, disp, cancel, os.Stdin, os.Stdout)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Printf("[INFO] Received signal %s, shutting down...", s)
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Println("[ERR] Discord bot error:", err)
		}
		cancel()
	case <-ctx.Done():
	}

	// Wait for the bot goroutine to finish disconnecting voice sessions.
	<-errCh

	log.Printf("[INFO] %v exited cleanly", v.AppName)
}
