// Command hsmctl is a reference host process for the hsm interpreter: it
// runs one demo service, streams its transitions to a devtools inspector
// over a websocket, and optionally republishes them onto an external bus.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kandev/hsm"
	"github.com/kandev/hsm/devtools"
	"github.com/kandev/hsm/internal/hsmconfig"
	"github.com/kandev/hsm/internal/hsmlog"
	"github.com/kandev/hsm/obsbus"
)

func main() {
	cfg, err := hsmconfig.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := hsmlog.New(hsmlog.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting hsmctl")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var bus obsbus.Bus
	if cfg.Bus.URL != "" {
		log.Info("connecting to nats", zap.String("url", cfg.Bus.URL))
		natsBus, err := obsbus.NewNATSBus(cfg.Bus, log)
		if err != nil {
			log.Error("failed to connect to nats, falling back to in-memory bus", zap.Error(err))
			bus = obsbus.NewMemoryBus(log)
		} else {
			bus = natsBus
		}
	} else {
		bus = obsbus.NewMemoryBus(log)
	}
	defer bus.Close()

	hub := devtools.NewHub(log)
	go hub.Run(ctx)

	svc := hsm.New(trafficLight{}, hsm.Options{
		Logger:   hsmlog.Adapt(log),
		DevTools: devtools.NewBridgeConnector("traffic-light", hub),
	})
	obsbus.Observe(svc, bus, cfg.Bus.Subject, log)
	svc.Start(nil)
	defer svc.Stop()

	if !cfg.Devtools.Enabled {
		waitForShutdown(log)
		return
	}

	router := gin.New()
	router.Use(gin.Recovery())

	devtoolsGroup := router.Group("/devtools")
	devtools.SetupRoutes(devtoolsGroup, hub, log)

	addr := fmt.Sprintf("%s:%d", cfg.Devtools.Host, cfg.Devtools.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Devtools.ReadTimeoutDuration(),
		WriteTimeout: cfg.Devtools.WriteTimeoutDuration(),
	}

	go func() {
		log.Info("devtools bridge listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("devtools server failed", zap.Error(err))
		}
	}()

	waitForShutdown(log)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}

func waitForShutdown(log *hsmlog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
}
