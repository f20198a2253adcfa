package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/timothywashburn/pat-client/api"
	"github.com/timothywashburn/pat-client/internal/config"
	"github.com/timothywashburn/pat-client/lifecycle"
	"github.com/timothywashburn/pat-client/live"
	"github.com/timothywashburn/pat-client/secrets"
	"github.com/timothywashburn/pat-client/session"
	"github.com/timothywashburn/pat-client/token"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error running client: %s\n", err)
	}
	log.Printf("Client stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	secretStore, err := secrets.NewFileStore(c.GetDataFolder(), c.GetServiceName(), c.GetPassphrase())
	if err != nil {
		return fmt.Errorf("secrets.NewFileStore: %w", err)
	}
	tokens := token.NewStore(secretStore, logger)

	apiClient, err := api.New(c, logger)
	if err != nil {
		return fmt.Errorf("api.New: %w", err)
	}
	sess, err := session.NewManager(apiClient, tokens, logger)
	if err != nil {
		return fmt.Errorf("session.NewManager: %w", err)
	}
	conn, err := live.NewConnection(c, tokens, sess, logger)
	if err != nil {
		return fmt.Errorf("live.NewConnection: %w", err)
	}
	coordinator, err := lifecycle.NewCoordinator(sess, conn, tokens, logger)
	if err != nil {
		return fmt.Errorf("lifecycle.NewCoordinator: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess.Bootstrap(ctx)

	done := make(chan struct{})
	go func() {
		coordinator.Run(ctx)
		close(done)
	}()

	waitForStopSignal()
	cancel()
	<-done
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
