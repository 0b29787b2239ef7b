package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"usdfcterminal/api"
	"usdfcterminal/breaker"
	"usdfcterminal/clients"
	"usdfcterminal/clients/dex"
	"usdfcterminal/clients/explorer"
	"usdfcterminal/clients/indexer"
	"usdfcterminal/clients/rpc"
	"usdfcterminal/config"
	"usdfcterminal/gateway/middleware"
	"usdfcterminal/history"
	obsmetrics "usdfcterminal/observability"
	"usdfcterminal/observability/logging"
	telemetry "usdfcterminal/observability/otel"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Get()
	env := strings.TrimSpace(os.Getenv("USDFC_ENV"))
	slogger := logging.Setup("usdfcterminal", env)
	logger := log.New(os.Stdout, "usdfcterminal ", log.LstdFlags|log.Lmsgprefix)

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "usdfcterminal",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		slogger.Error("failed to initialise telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	httpDoer := &http.Client{Timeout: cfg.RPCTimeout}

	rpcClient := rpc.New(append([]string{cfg.RPCURL}, cfg.RPCFallbackURLs...), rpc.Contracts{
		USDFCToken:         cfg.USDFCToken,
		TroveManager:       cfg.TroveManager,
		SortedTroves:       cfg.SortedTroves,
		PriceFeed:          cfg.PriceFeed,
		MultiTroveGetter:   cfg.MultiTroveGetter,
		StabilityPool:      cfg.StabilityPool,
		ActivePool:         cfg.ActivePool,
		BorrowerOperations: cfg.BorrowerOperations,
	}, clients.HTTPDoer(httpDoer), cfg.RPCTimeout, cfg.RPCRetryCount)
	rpcClient.OnDebtProxyFallback(func() {
		obsmetrics.Core().RecordDebtProxyFallback()
		logger.Printf("total debt RPC reverted, falling back to supply proxy")
	})

	explorerClient := explorer.New(cfg.BlockscoutURL, clients.HTTPDoer(httpDoer), cfg.RPCTimeout)
	indexerClient := indexer.New(cfg.SubgraphURL, clients.HTTPDoer(httpDoer), cfg.RPCTimeout)
	dexClient := dex.New(cfg.GeckoTerminalURL, clients.HTTPDoer(httpDoer), cfg.RPCTimeout)

	breakers := breaker.NewRegistry(breaker.DefaultConfig(), time.Now)

	store, err := history.OpenStore(cfg.DatabasePath)
	if err != nil {
		logger.Fatalf("open history store: %v", err)
	}
	defer store.Close()

	ring := history.NewRing(int(cfg.HistoryRetentionSecs / 60))

	facade := api.New(
		api.Clients{RPC: rpcClient, Explorer: explorerClient, Indexer: indexerClient, DEX: dexClient},
		breakers,
		ring,
		store,
		api.PoolConfig{PrimaryPool: cfg.PoolUSDFCWFIL},
		api.TokenConfig{USDFCToken: cfg.USDFCToken, CurrencyUSDFC: cfg.CurrencyUSDFC},
		time.Now,
	)

	bgCtx, cancelBG := context.WithCancel(context.Background())
	defer cancelBG()

	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-bgCtx.Done():
				return
			case <-ticker.C:
				facade.PurgeCaches()
			}
		}
	}()

	collector := history.NewCollector(facade.HistorySources(), ring, store, int(cfg.HistoryRetentionSecs/60), cfg.RefreshInterval, time.Now, slogger)
	if err := collector.Hydrate(bgCtx); err != nil {
		logger.Printf("hydrate history ring: %v", err)
	}
	go func() {
		if err := collector.Run(bgCtx); err != nil && bgCtx.Err() == nil {
			logger.Printf("history collector stopped: %v", err)
		}
	}()

	observability := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName:   "usdfcterminal",
		MetricsPrefix: "usdfcterminal",
		LogRequests:   true,
		Enabled:       true,
	}, logger)

	handler := facade.NewRouter(api.RouterConfig{
		CORS: middleware.CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "OPTIONS"},
		},
		Observability: observability,
		Security: api.SecurityConfig{
			ConnectSrc: []string{cfg.RPCURL, cfg.BlockscoutURL, cfg.SubgraphURL, cfg.GeckoTerminalURL},
		},
	})

	instrumentedHandler := otelhttp.NewHandler(handler, "usdfcterminal")

	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      instrumentedHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatalf("listen: %v", err)
	}
	go func() {
		logger.Printf("listening on http://%s", listener.Addr())
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("listen and serve: %v", err)
		}
	}()

	<-ctx.Done()
	cancelBG()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

