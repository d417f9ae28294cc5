package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"RateKeeper/internal/admin"
	"RateKeeper/internal/collector"
	"RateKeeper/internal/config"
	"RateKeeper/internal/notifier"
	"RateKeeper/internal/ratemodel"
	"RateKeeper/internal/recorder"
	"RateKeeper/internal/scheduler"
	"RateKeeper/internal/state"
	"RateKeeper/internal/upkeep"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] RateKeeper starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	if cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
			log.Fatalf("[FATAL] create log dir: %v", err)
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		}
		defer rotating.Close()
		log.SetOutput(io.MultiWriter(os.Stderr, rotating))
	}

	// Init reserve view
	reserve, err := newReserve(cfg)
	if err != nil {
		log.Fatalf("[FATAL] init reserve: %v", err)
	}
	log.Printf("[INFO] reserve source: %s", reserve.Name())

	// Init rate model and controller
	params, err := cfg.RateParams()
	if err != nil {
		log.Fatalf("[FATAL] rate model params: %v", err)
	}
	configurator := common.HexToAddress(cfg.RateModel.Configurator)
	rates, err := ratemodel.New(params, configurator)
	if err != nil {
		log.Fatalf("[FATAL] init rate model: %v", err)
	}
	history, err := cfg.InitialHistory()
	if err != nil {
		log.Fatalf("[FATAL] initial history: %v", err)
	}
	keeperAddr := common.HexToAddress(cfg.Upkeep.Address)
	ctrl, err := upkeep.New(upkeep.Config{
		Interval:       cfg.Upkeep.Interval,
		WindowSize:     cfg.Upkeep.WindowSize,
		Address:        keeperAddr,
		InitialHistory: history,
	}, reserve, rates)
	if err != nil {
		log.Fatalf("[FATAL] init upkeep controller: %v", err)
	}

	// Restore persisted state, or hand the updater role to the controller on first start
	store := state.NewStore(cfg.State.File, ctrl)
	restored, err := store.Restore()
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}
	if !restored {
		if err := rates.GrantUpdater(configurator, keeperAddr); err != nil {
			log.Fatalf("[FATAL] grant updater: %v", err)
		}
		if err := store.Save(); err != nil {
			log.Fatalf("[FATAL] %v", err)
		}
		log.Printf("[INFO] fresh state written to %s", store.Path())
	}

	// Init notifier
	var tn *notifier.TelegramNotifier
	var notify notifier.Notifier = notifier.Noop{}
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		notify = tn
	} else {
		log.Println("[WARN] telegram not configured, notifications are logged only")
	}

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
			log.Printf("[WARN] create database dir: %v", err)
		}
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init scheduler
	col := collector.NewCollector(reserve, cfg.Asset)
	sched := scheduler.NewScheduler(ctx, ctrl, col, store, notify, rec)
	sched.ReserveFactor = cfg.RateModel.ReserveFactor
	sched.WatchRateModel()
	if err := sched.RegisterAll(cfg.Schedule.CheckCron, cfg.Schedule.ReportCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	g, gCtx := errgroup.WithContext(ctx)

	// Admin API
	if cfg.Admin.Listen != "" {
		srv := &admin.Server{Controller: ctrl, Recorder: rec, Asset: cfg.Asset, ReserveFactor: cfg.RateModel.ReserveFactor}
		g.Go(func() error {
			return srv.ListenAndServe(gCtx, cfg.Admin.Listen)
		})
	}

	// Start Telegram polling
	if tn != nil {
		g.Go(func() error {
			tn.StartPolling(gCtx, sched.HandleCommand)
			return nil
		})
		log.Println("[INFO] Telegram polling started")
	}

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, checking upkeep now")
		go sched.RunCheck()
	}

	log.Println("[INFO] RateKeeper is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			log.Printf("[INFO] %s received, stopping...", sig)
			cancel()
		case <-gCtx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[ERROR] RateKeeper exited with error: %v", err)
	}
	log.Println("[INFO] RateKeeper stopped")
}

func newReserve(cfg *config.Config) (collector.Reserve, error) {
	switch cfg.Reserve.Source {
	case "http":
		return collector.NewHTTPReserve(cfg.Reserve.BaseURL, cfg.Asset, cfg.Reserve.APIKey, cfg.Proxy, cfg.Reserve.RequestsPerSecond), nil
	case "evm":
		return collector.DialEVMReserve(cfg.Reserve.RPCURL, collector.ReserveTokens{
			LiquidityToken:    common.HexToAddress(cfg.Reserve.LiquidityToken),
			VariableDebtToken: common.HexToAddress(cfg.Reserve.VariableDebtToken),
			StableDebtToken:   common.HexToAddress(cfg.Reserve.StableDebtToken),
		}, cfg.Reserve.RequestsPerSecond)
	default:
		supply, variableDebt, stableDebt, err := cfg.StaticAmounts()
		if err != nil {
			return nil, err
		}
		return collector.NewStaticReserve(supply, variableDebt, stableDebt), nil
	}
}
