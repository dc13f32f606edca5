package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sjsage522/harvester/config"
	"sjsage522/harvester/internal/api"
	"sjsage522/harvester/internal/crawler"
	"sjsage522/harvester/internal/menu"
	"sjsage522/harvester/internal/probe"
	"sjsage522/harvester/internal/render"
	"sjsage522/harvester/internal/site"
	"sjsage522/harvester/internal/store"
	"sjsage522/harvester/logger"
	"sjsage522/harvester/services/cache"
	"sjsage522/harvester/services/publisher"
	"sjsage522/harvester/services/worker"
)

const usage = `usage: harvester [command] [flags]

commands:
  menu                                 interactive menu (default)
  harvest -site <id> [-category <n>|all]
  harvest -all                         harvest every category of every site
  stats                                print store statistics
  serve                                run the read API
  daemon                               harvest every site on HARVEST_INTERVAL_SECONDS
`

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	command := "menu"
	args := os.Args[1:]
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("environment", cfg.Environment).
		Str("command", command).
		Str("store", cfg.StoreDriver).
		Str("renderer", cfg.Renderer).
		Msg("Starting application")

	services, err := initializeServices(ctx, cfg, command != "stats" && command != "serve")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}

	err = run(ctx, command, args, cfg, services)
	services.Cleanup()

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		log.Info().Msg("Shutting down gracefully...")
	case errors.Is(err, flag.ErrHelp):
		os.Exit(2)
	default:
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string, cfg *config.Config, s *Services) error {
	switch command {
	case "menu":
		s.Prober.ProbeAll(ctx, s.definitions())
		return menu.New(s.Harvester, s.Store, s.Registry, s.Status, os.Stdin, os.Stdout).Run(ctx)
	case "harvest":
		return runHarvest(ctx, args, s)
	case "stats":
		s.Prober.ProbeAll(ctx, s.definitions())
		return menu.PrintStats(ctx, os.Stdout, s.Store, s.Registry, s.Status)
	case "serve":
		return serve(ctx, cfg.APIAddr, api.NewServer(s.Store, s.Registry, s.Status))
	case "daemon":
		return worker.NewWorker(s.Harvester, s.Publisher, cfg.HarvestInterval).Start(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return flag.ErrHelp
	}
}

func runHarvest(ctx context.Context, args []string, s *Services) error {
	fs := flag.NewFlagSet("harvest", flag.ContinueOnError)
	siteID := fs.String("site", "", "site id ("+fmt.Sprint(s.Registry.IDs())+")")
	category := fs.String("category", "all", "1-based category number or all")
	all := fs.Bool("all", false, "harvest every site")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var results []crawler.Result
	var err error
	switch {
	case *all:
		results, err = s.Harvester.HarvestAll(ctx)
	case *siteID == "":
		fs.Usage()
		return flag.ErrHelp
	case *category == "all":
		var res crawler.Result
		res, err = s.Harvester.Harvest(ctx, *siteID)
		results = append(results, res)
	default:
		n, convErr := strconv.Atoi(*category)
		if convErr != nil {
			return fmt.Errorf("invalid category %q: %w", *category, convErr)
		}
		var res crawler.Result
		res, err = s.Harvester.HarvestCategory(ctx, *siteID, n)
		results = append(results, res)
	}

	for _, res := range results {
		if res.Mode == "" {
			continue
		}
		fmt.Printf("%s: added %d (live %d, demo %d), skipped %d, mode %s",
			res.Site, res.Added, res.LiveAdded, res.DemoAdded, res.Skipped, res.Mode)
		if res.Reason != crawler.ReasonNone {
			fmt.Printf(" (%s)", res.Reason)
		}
		fmt.Println()
	}
	if s.Publisher != nil {
		if trimErr := s.Publisher.TrimStreams(); trimErr != nil {
			logger.LogError("StreamTrimming", trimErr, "failed to trim product streams")
		}
	}
	return err
}

func serve(ctx context.Context, addr string, srv *api.Server) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API listening on %s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// Services holds all the initialized services
type Services struct {
	Registry  *site.Registry
	Status    *site.Status
	Store     store.Store
	Cache     cache.CacheService
	Prober    *probe.Prober
	Renderer  render.Renderer
	Publisher publisher.Publisher
	Harvester *crawler.Harvester
}

func (s *Services) definitions() []site.Definition {
	var defs []site.Definition
	for _, id := range s.Registry.IDs() {
		def, _ := s.Registry.Definition(id)
		defs = append(defs, def)
	}
	return defs
}

// Cleanup closes every service that holds a connection or process
func (s *Services) Cleanup() {
	if s.Renderer != nil {
		if err := s.Renderer.Close(); err != nil {
			logger.LogError("Renderer", err, "failed to close renderer")
		}
	}
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// initializeServices initializes all required services. The renderer is
// only started for commands that harvest.
func initializeServices(ctx context.Context, cfg *config.Config, withRenderer bool) (*Services, error) {
	services := &Services{Status: site.NewStatus()}

	// Load the site catalog
	var err error
	if cfg.SitesFile != "" {
		services.Registry, err = site.LoadFile(cfg.SitesFile)
	} else {
		services.Registry, err = site.Default()
	}
	if err != nil {
		return nil, err
	}

	// Open the record store
	services.Store, err = store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Opened %s store", cfg.StoreDriver)

	// Initialize cache service for host cooldowns
	if cfg.MemcacheAddr != "" {
		cacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := cacheService.Ping(); err != nil {
			logger.Warn("Memcache at %s unavailable, cooldowns disabled: %v", cfg.MemcacheAddr, err)
		} else {
			services.Cache = cacheService
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	}
	cooldown := cache.NewCooldown(services.Cache, cfg.CooldownTime)

	// Initialize publisher
	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLength)
		if err := redisPublisher.Ping(); err != nil {
			redisPublisher.Close()
			services.Cleanup()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		services.Publisher = redisPublisher
		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)", cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	services.Prober = probe.New(services.Status, cfg.UserAgent, cfg.ProbeTimeout, cooldown)

	// Start the renderer. A browser that cannot start leaves every run on
	// demo data.
	if withRenderer {
		var renderer render.Renderer
		switch cfg.Renderer {
		case config.RendererHTTP:
			renderer = render.NewHTTPRenderer(nil, cfg.UserAgent)
		default:
			browser, err := render.NewBrowserRenderer(cfg.BrowserControlURL, cfg.UserAgent)
			if err != nil {
				logger.Warn("Browser unavailable, harvests will use demo data: %v", err)
			} else {
				renderer = browser
			}
		}
		if renderer != nil {
			services.Renderer = render.WithCooldown(renderer, cooldown)
		}
	}

	services.Harvester = crawler.NewHarvester(
		services.Registry,
		services.Status,
		services.Prober,
		services.Store,
		services.Renderer,
		services.Publisher,
		crawler.OptionsFromConfig(cfg),
	)

	return services, nil
}
