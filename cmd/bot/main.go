package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"indibot/internal/app"
)

// resolveDebug combines the -debug flag with the DEBUG environment variable.
// When the variable is set it is authoritative in both directions: DEBUG=0
// turns debug mode off even if the flag enabled it.
func resolveDebug(flagDebug bool) bool {
	if v, ok := os.LookupEnv("DEBUG"); ok {
		return v == "1" || v == "true"
	}
	return flagDebug
}

func main() {
	var cfgPath string
	var debug bool
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml")
	flag.BoolVar(&debug, "debug", false, "debug mode: wide fetch windows, verbose logs")
	flag.Parse()

	// Optional .env next to the binary; real env still wins.
	_ = godotenv.Load()

	debug = resolveDebug(debug)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(app.Options{ConfigPath: cfgPath, Debug: debug})
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		os.Exit(1)
	}

	exitCode := 0
	select {
	case <-ctx.Done():
	case <-a.Done():
		exitCode = 1
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx); err != nil {
		fmt.Fprintln(os.Stderr, "stop:", err)
		if exitCode == 0 {
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}
