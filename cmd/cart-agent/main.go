package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/amazon-cart-agent/internal/agent"
	"github.com/maltedev/amazon-cart-agent/internal/api"
	"github.com/maltedev/amazon-cart-agent/internal/browser"
	"github.com/maltedev/amazon-cart-agent/internal/cart"
	"github.com/maltedev/amazon-cart-agent/internal/checkout"
	"github.com/maltedev/amazon-cart-agent/internal/config"
	"github.com/maltedev/amazon-cart-agent/internal/events"
	"github.com/maltedev/amazon-cart-agent/internal/models"
	"github.com/maltedev/amazon-cart-agent/internal/parser"
	"github.com/maltedev/amazon-cart-agent/internal/progress"
	"github.com/maltedev/amazon-cart-agent/internal/prompt"
	"github.com/maltedev/amazon-cart-agent/internal/ratelimit"
	"github.com/maltedev/amazon-cart-agent/internal/session"
	"github.com/maltedev/amazon-cart-agent/internal/storage"
	"github.com/maltedev/amazon-cart-agent/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		query          = flag.String("query", "", "Search term (overrides PRODUCT_TO_SEARCH and is the prompt default)")
		maxItems       = flag.Int("max", 0, "Maximum number of items to add (overrides MAX_PRODUCTS)")
		headless       = flag.Bool("headless", false, "Run browser in headless mode")
		install        = flag.Bool("install", false, "Install the playwright driver and Chromium before running")
		nonInteractive = flag.Bool("non-interactive", false, "Do not prompt; use flags and environment only")
		envFile        = flag.String("env", "", "Env file to load instead of .env")
	)
	flag.Parse()

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *maxItems > 0 {
		cfg.Amazon.MaxProducts = *maxItems
	}
	if *query != "" {
		cfg.Amazon.SearchTerm = *query
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	runID := uuid.New().String()
	logger = logger.With("run_id", runID)
	logger.Info("Starting Amazon cart agent", "base_url", cfg.Amazon.BaseURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	req := agent.Request{
		BaseURL:  cfg.Amazon.BaseURL,
		Email:    cfg.Amazon.Email,
		Password: cfg.Amazon.Password,
		Query:    cfg.Amazon.SearchTerm,
		MaxItems: cfg.Amazon.MaxProducts,
	}
	if !*nonInteractive {
		answers, err := prompt.New(os.Stdin, os.Stdout).Ask(cfg.Amazon.SearchTerm)
		if err != nil {
			logger.Error("Failed to read search input", "error", err)
			os.Exit(1)
		}
		req.Query = answers.Query
		req.Criteria = answers.Criteria
	}

	if *install || cfg.Browser.Install {
		logger.Info("Installing playwright browsers")
		if err := browser.Install(); err != nil {
			logger.Error("Failed to install browsers", "error", err)
			os.Exit(1)
		}
	}

	publisher := newPublisher(cfg.Redis, logger)
	tracker := progress.NewTracker(runID, publisher, logger)
	defer func() {
		if err := tracker.Close(); err != nil {
			logger.Warn("Failed to close event publisher", "error", err)
		}
	}()

	if cfg.Server.StatusAddr != "" {
		srv := api.NewServer(cfg.Server.StatusAddr, api.NewHandlers(tracker, logger), logger)
		srv.Start()
		defer func() {
			if err := srv.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
				logger.Warn("Status server shutdown failed", "error", err)
			}
		}()
	}

	store, err := storage.NewArtifactStore(cfg.Storage.DebugDir)
	if err != nil {
		logger.Error("Failed to prepare debug directory", "error", err)
		os.Exit(1)
	}

	browserOpts := browser.DefaultOptions()
	browserOpts.Headless = *headless || cfg.Browser.Headless
	browserOpts.Timeout = cfg.Browser.Timeout

	b, err := browser.New(browserOpts, logger)
	if err != nil {
		logger.Error("Failed to initialize browser", "error", err)
		os.Exit(1)
	}
	closeBrowser := func() {
		if err := b.Close(); err != nil {
			logger.Warn("Failed to close browser", "error", err)
		}
	}

	page, err := b.NewPage()
	if err != nil {
		closeBrowser()
		logger.Error("Failed to open page", "error", err)
		os.Exit(1)
	}

	adder := cart.NewAdder(logger, ratelimit.NewClickPacer(cfg.Cart.ClickDelayMin, cfg.Cart.ClickDelayMax), cart.Options{
		ConfirmTimeout: cfg.Cart.ConfirmTimeout,
		PollInterval:   cfg.Cart.ConfirmInterval,
	})
	adder.OnAttempt = func(a cart.Attempt) { tracker.RecordAttempt(ctx, a) }

	a := agent.New(agent.Deps{
		Page:    page,
		Session: session.New(page, logger, session.Options{BaseURL: cfg.Amazon.BaseURL, Timeout: cfg.Browser.Timeout}),
		Parser:  parser.NewAmazonParser(),
		Adder:   adder,
		Visual:  cart.NewVisualFallback(logger, adder, store),
		Detail:  cart.NewDetailPageFallback(logger, adder, b),
		Advancer: checkout.NewAdvancer(logger, page, checkout.Options{
			BaseURL:       cfg.Amazon.BaseURL,
			Timeout:       cfg.Checkout.Timeout,
			PollInterval:  cfg.Cart.ConfirmInterval,
			NotifyTimeout: cfg.Checkout.NotifyTimeout,
		}),
		Samples: store,
		Tracker: tracker,
		Logger:  logger,
	})

	report, err := a.Run(ctx, req)
	if err != nil {
		logger.Error("Run aborted", "error", err)
		closeBrowser()
		if errors.Is(err, session.ErrAuthentication) {
			fmt.Println("Login failed. If a captcha was shown, solve it manually and run again.")
		}
		os.Exit(1)
	}

	printSummary(req, report)

	if cfg.Checkout.InspectLinger > 0 {
		logger.Info("Leaving the browser open for inspection", "linger", cfg.Checkout.InspectLinger)
		select {
		case <-ctx.Done():
		case <-time.After(cfg.Checkout.InspectLinger):
		}
	}
	closeBrowser()
	logger.Info("Cart agent finished", "added", len(report.Added))
}

func newPublisher(cfg config.RedisConfig, logger *slog.Logger) events.Publisher {
	if cfg.Addr == "" {
		return events.Nop{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	logger.Info("Publishing run events", "addr", cfg.Addr, "stream", cfg.Stream)
	return events.NewRedisPublisher(client, cfg.Stream, logger)
}

func printSummary(req agent.Request, report *agent.Report) {
	fmt.Printf("\n=== Cart agent summary ===\n")
	fmt.Printf("Search: %q\n", req.Query)
	fmt.Printf("Filters: %s\n", describeCriteria(req.Criteria))
	fmt.Printf("Candidates: %d scraped, %d kept\n", len(report.Candidates), len(report.Filtered))

	fmt.Printf("Added %d of %d:\n", len(report.Added), req.MaxItems)
	for i, item := range report.Added {
		fmt.Printf("  %d. %s (%s) via %s\n", i+1, item.Title, item.ASIN, item.Path)
	}

	switch {
	case report.Checkout.Reached:
		fmt.Printf("Checkout reached at %s. Complete payment manually.\n", report.Checkout.URL)
	case report.CheckoutErr != nil:
		fmt.Printf("Checkout not reached: %v\n", report.CheckoutErr)
	}
}

func describeCriteria(c models.Criteria) string {
	if c.IsEmpty() {
		return "none"
	}
	bound := func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%g", *v)
	}
	return fmt.Sprintf("price %s..%s, rating >= %s", bound(c.MinPrice), bound(c.MaxPrice), bound(c.MinRating))
}
