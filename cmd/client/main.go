package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/seabattle-client/internal/channel"
	"github.com/DoyleJ11/seabattle-client/internal/config"
	"github.com/DoyleJ11/seabattle-client/internal/httpapi"
	"github.com/DoyleJ11/seabattle-client/internal/remote"
	"github.com/DoyleJ11/seabattle-client/internal/session"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "seabattle:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, quit := context.WithCancel(ctx)
	defer quit()

	ch := channel.NewClient(channel.Config{
		URL:            cfg.ChannelURL,
		Attempts:       cfg.ReconnectAttempts,
		InitialBackoff: cfg.BackoffInitial,
		MaxBackoff:     cfg.BackoffMax,
		Heartbeat:      cfg.Heartbeat,
		Logger:         log,
	})
	sess := session.New(ctx, session.Config{
		Remote:            remote.NewClient(cfg.ServerURL, cfg.RequestTimeout, log),
		Channel:           ch,
		LobbyInterval:     cfg.LobbyInterval,
		PlacementInterval: cfg.PlacementInterval,
		BattleInterval:    cfg.BattleInterval,
		PollMax:           cfg.PollMax,
		RequestTimeout:    cfg.RequestTimeout,
		Logger:            log,
	})
	defer func() {
		sess.Close()
		<-sess.Done()
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// a degraded channel leaves the session on polling; not fatal
		if err := ch.Run(gctx); err != nil && !errors.Is(err, channel.ErrDegraded) {
			return err
		}
		return nil
	})

	if cfg.InspectAddr != "" {
		srv := &http.Server{
			Addr:              cfg.InspectAddr,
			Handler:           httpapi.SetupRoutes(sess, log.Named("inspect")),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("inspector listening", zap.String("addr", cfg.InspectAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("inspector: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	r := newREPL(sess, os.Stdout, cfg.PlayerName, cfg.RequestTimeout)
	g.Go(func() error { return r.follow(gctx) })
	g.Go(func() error {
		defer quit()
		return r.run(gctx, readLines(os.Stdin))
	})

	return g.Wait()
}

// readLines feeds stdin into a channel so the REPL can also watch ctx. The
// goroutine stays blocked on the last read until the process exits.
func readLines(f *os.File) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return lines
}
