package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/GeorgeStrakhov/briefboarder/pkg/cache"
	"github.com/GeorgeStrakhov/briefboarder/pkg/collab"
	"github.com/GeorgeStrakhov/briefboarder/pkg/config"
	"github.com/GeorgeStrakhov/briefboarder/pkg/core"
	"github.com/GeorgeStrakhov/briefboarder/pkg/imagegen"
	"github.com/GeorgeStrakhov/briefboarder/pkg/llms"
	"github.com/GeorgeStrakhov/briefboarder/pkg/logging"
	"github.com/GeorgeStrakhov/briefboarder/pkg/server"
	"github.com/GeorgeStrakhov/briefboarder/pkg/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "briefboarder: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := buildLogger(cfg.Logging)
	logging.SetLogger(logger)
	ctx := context.Background()

	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	model := core.ModelID(cfg.LLM.Model)
	if model == "" {
		model = core.ModelAnthropicSonnet
	}
	var endpoint *core.EndpointConfig
	if cfg.LLM.Endpoint != "" {
		endpoint = &core.EndpointConfig{BaseURL: cfg.LLM.Endpoint}
	}
	llm, err := llms.NewLLM(cfg.LLM.APIKey, model, endpoint)
	if err != nil {
		return err
	}
	logger.Info(ctx, "using %s model %s", llm.ProviderName(), llm.ModelID())

	imageCache := cache.NewMemoryCache(
		cache.WithMaxEntries(cfg.ImageGen.CacheEntries),
		cache.WithDefaultTTL(cfg.ImageGen.CacheTTL),
	)
	defer imageCache.Close()

	images, err := imagegen.NewClient(cfg.ImageGen.BaseURL, cfg.ImageGen.APIKey,
		imagegen.WithCache(imageCache, cfg.ImageGen.CacheTTL))
	if err != nil {
		return err
	}

	sessions, err := collab.NewIssuer(cfg.Collab.Secret, cfg.Collab.TokenTTL)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, store, llm, images, sessions, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info(ctx, "received %s, shutting down", sig)
		return srv.Shutdown(ctx)
	}
}

func buildLogger(cfg config.LoggingConfig) *logging.Logger {
	severity := logging.ParseSeverity(cfg.Level)

	var output logging.Output
	if cfg.Format == "json" {
		output = logging.NewJSONOutput(os.Stdout)
	} else {
		output = logging.NewConsoleOutput(false)
	}

	return logging.NewLogger(logging.Config{
		Severity: severity,
		Outputs:  []logging.Output{output},
	})
}
