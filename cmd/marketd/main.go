package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nftmarket/config"
	"nftmarket/core"
	"nftmarket/core/events"
	"nftmarket/crypto"
	"nftmarket/observability"
	"nftmarket/observability/logging"
	telemetry "nftmarket/observability/otel"
	"nftmarket/rpc"
	"nftmarket/services/indexer"
	"nftmarket/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./market.toml", "path to marketplace configuration")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	logOut, logCloser := logging.Output(os.Stdout, logging.FileConfig{
		Path:       cfg.LogFile.Path,
		MaxSizeMB:  cfg.LogFile.MaxSizeMB,
		MaxBackups: cfg.LogFile.MaxBackups,
		MaxAgeDays: cfg.LogFile.MaxAgeDays,
		Compress:   cfg.LogFile.Compress,
	})
	defer logCloser.Close()
	logger := logging.SetupWriter(logOut, "marketd", cfg.Environment, logging.ParseLevel(cfg.LogLevel))

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "marketd",
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		Market: telemetry.MarketResource{
			AddressPrefix:  cfg.AddressPrefix,
			StrictDenom:    cfg.StrictDenom,
			IndexerEnabled: cfg.IndexerDSN != "",
		},
	})
	if err != nil {
		logger.Error("failed to initialise telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("open state database", "dataDir", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	stream := events.NewStream(cfg.EventHistory)
	emitters := events.Fanout{observability.Events(), stream}
	var eventSource rpc.EventSource
	if cfg.IndexerDSN != "" {
		gdb, err := indexer.Open(cfg.IndexerDSN)
		if err != nil {
			logger.Error("open event index", logging.MaskField("dsn", cfg.IndexerDSN), "error", err)
			os.Exit(1)
		}
		sink := indexer.NewSink(gdb, logger.With("component", "indexer"))
		emitters = append(emitters, sink)
		eventSource = sink
	}

	host, err := core.NewHost(db, core.HostConfig{
		Codec:       crypto.CodecForPrefix(cfg.AddressPrefix),
		StrictDenom: cfg.StrictDenom,
		Emitter:     emitters,
		Logger:      logger.With("component", "host"),
		Metrics:     observability.Marketplace(),
	})
	if err != nil {
		logger.Error("start marketplace host", "error", err)
		os.Exit(1)
	}
	if cfg.AuthToken == "" && cfg.JWT.Secret == "" {
		logger.Warn("no RPC credentials configured; mutating methods are disabled")
	}
	logger.Info("marketplace ready",
		slog.String("dataDir", cfg.DataDir),
		slog.String("addressPrefix", cfg.AddressPrefix),
		slog.Bool("strictDenom", cfg.StrictDenom),
		logging.MaskField("authToken", cfg.AuthToken))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := rpc.NewServer(host, rpc.ServerConfig{
		AuthToken: cfg.AuthToken,
		JWT: rpc.JWTAuth{
			Secret:    cfg.JWT.Secret,
			Issuer:    cfg.JWT.Issuer,
			Audience:  cfg.JWT.Audience,
			ClockSkew: time.Duration(cfg.JWT.ClockSkewSeconds) * time.Second,
		},
		RateLimit: rpc.RateLimit{RequestsPerMinute: cfg.RPCRequestsPerMinute, Burst: cfg.RPCBurst},
		Events:    eventSource,
		Stream:    stream,
		Logger:    logger.With("component", "rpc"),
	})
	if err := server.Serve(ctx, cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("marketplace stopped")
}
