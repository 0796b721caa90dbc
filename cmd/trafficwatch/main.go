package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trafficwatch/internal/auth"
	"trafficwatch/internal/capture"
	"trafficwatch/internal/config"
	"trafficwatch/internal/database"
	"trafficwatch/internal/detection"
	"trafficwatch/internal/metrics"
	"trafficwatch/internal/pipeline"
	"trafficwatch/internal/server"
	"trafficwatch/internal/storage"
	"trafficwatch/internal/telegram"
	"trafficwatch/internal/ws"
)

func main() {
	var (
		portF   = flag.Int("http-port", 0, "HTTP port (overrides PORT)")
		sourceF = flag.String("source", "", "Video source (overrides VIDEO_SOURCE)")
		outF    = flag.String("output-dir", "", "Evidence output directory (overrides OUTPUT_DIR)")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[trafficwatch] ", log.Ltime)

	cfg := config.Load()
	if *portF != 0 {
		cfg.Port = *portF
	}
	if *sourceF != "" {
		cfg.Source = *sourceF
	}
	if *outF != "" {
		cfg.OutputDir = *outF
	}

	// Model backend is required; an unreachable or unhealthy backend
	// aborts startup.
	model := detection.NewHTTPModelClient(cfg.ModelEndpoint, float32(cfg.ConfThreshold))

	detectorCfg := detection.DetectorConfig{Model: model}
	if cfg.PlateEndpoint != "" {
		detectorCfg.Plates = detection.NewHTTPPlateReader(cfg.PlateEndpoint)
	}

	detector, err := detection.NewDetector(detectorCfg)
	if err != nil {
		logger.Fatalf("detector initialization failed: %v", err)
	}
	defer model.Close()

	store, err := storage.NewEvidenceStore(cfg.OutputDir)
	if err != nil {
		logger.Fatalf("evidence store initialization failed: %v", err)
	}

	db, err := database.New(cfg.DBPath)
	if err != nil {
		logger.Fatalf("database initialization failed: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		logger.Fatalf("database migration failed: %v", err)
	}

	bus := pipeline.NewEventBus()
	hub := ws.NewHub()

	var bot *telegram.Bot
	tgCfg := telegram.Config{
		BotToken:        cfg.TelegramBotToken,
		ChatID:          cfg.TelegramChatID,
		Enabled:         cfg.TelegramEnabled,
		CooldownSeconds: cfg.TelegramCooldown,
	}
	if err := telegram.ValidateConfig(tgCfg); err != nil {
		logger.Fatalf("telegram configuration invalid: %v", err)
	}
	if cfg.TelegramEnabled {
		bot = telegram.NewBot(tgCfg)
	}

	registerSubscribers(bus, db, hub, bot, logger)

	analyzer := pipeline.NewTrafficAnalyzer()
	recorder := pipeline.NewViolationRecorder(store, detector, bus)
	m := metrics.New()
	processor := pipeline.NewFrameProcessor(detector, analyzer, recorder, bus, m)

	worker := pipeline.NewStreamWorker(cfg.Source, capture.Options{
		FPS:    cfg.FPS,
		Width:  cfg.FrameWidth,
		Height: cfg.FrameHeight,
	}, processor)

	if err := worker.Start(); err != nil {
		// The API stays useful for ad-hoc analysis even without a
		// live stream.
		logger.Printf("stream worker not started: %v", err)
	}

	authenticator := auth.NewAuthenticator(auth.Config{
		Enabled:   cfg.AuthEnabled,
		Username:  cfg.AuthUsername,
		Password:  cfg.AuthPassword,
		JWTSecret: cfg.JWTSecret,
		JWTExpiry: cfg.JWTExpiry,
	})

	srv := server.New(worker, processor, db, hub, authenticator, m, cfg.Source)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.Routes(),
	}

	// Channel used by both the signal handler and the server goroutine
	// to notify the main goroutine when to stop.
	errc := make(chan error)

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	go func() {
		logger.Printf("HTTP server listening on %s", httpServer.Addr)
		errc <- httpServer.ListenAndServe()
	}()

	statusDone := make(chan struct{})
	go broadcastStatus(worker, hub, m, statusDone)

	logger.Printf("exiting (%v)", <-errc)

	close(statusDone)
	worker.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Printf("HTTP shutdown: %v", err)
	}

	logger.Println("exited")
}

// registerSubscribers wires the violation index, the WebSocket hub and
// the optional Telegram notifier onto the event bus.
func registerSubscribers(bus *pipeline.EventBus, db *database.Database, hub *ws.Hub, bot *telegram.Bot, logger *log.Logger) {
	must := func(err error) {
		if err != nil {
			logger.Fatalf("event subscription failed: %v", err)
		}
	}

	must(bus.Register(pipeline.EventViolation, func(payload interface{}) error {
		rec, ok := payload.(*storage.ViolationRecord)
		if !ok {
			return fmt.Errorf("unexpected violation payload %T", payload)
		}
		return db.SaveViolation(rec)
	}))

	must(bus.Register(pipeline.EventViolation, func(payload interface{}) error {
		rec, ok := payload.(*storage.ViolationRecord)
		if !ok {
			return fmt.Errorf("unexpected violation payload %T", payload)
		}
		msg := ws.NewViolationMessage(rec.ID, string(rec.Type), rec.Source, rec.Timestamp, rec.Confidence)
		msg.ImagePath = rec.ImagePath
		if rec.PlateInfo != nil {
			msg.PlateNumber = rec.PlateInfo.Number
		}
		hub.BroadcastJSON(msg)
		return nil
	}))

	if bot != nil {
		must(bus.Register(pipeline.EventViolation, func(payload interface{}) error {
			rec, ok := payload.(*storage.ViolationRecord)
			if !ok {
				return fmt.Errorf("unexpected violation payload %T", payload)
			}
			var evidence []byte
			if rec.ImagePath != "" {
				evidence, _ = os.ReadFile(rec.ImagePath)
			}
			var plate string
			if rec.PlateInfo != nil {
				plate = rec.PlateInfo.Number
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return bot.SendViolationAlert(ctx, string(rec.Type), rec.Source, plate, rec.Timestamp, evidence)
		}))
	}

	must(bus.Register(pipeline.EventVehicleCount, func(payload interface{}) error {
		ev, ok := payload.(pipeline.VehicleCountEvent)
		if !ok {
			return fmt.Errorf("unexpected vehicle count payload %T", payload)
		}
		hub.BroadcastJSON(ws.NewVehicleCountMessage(ev.Source, ev.Timestamp, ev.Count))
		return nil
	}))
}

// broadcastStatus pushes periodic pipeline status to WebSocket clients
// and refreshes the FPS gauge.
func broadcastStatus(worker *pipeline.StreamWorker, hub *ws.Hub, m *metrics.Metrics, done chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			status := worker.Status()
			m.SetFPS(status.FPS)

			if !hub.HasClients() {
				continue
			}
			violations := make(map[string]int, len(status.CurrentViolations))
			for vtype, n := range status.CurrentViolations {
				violations[string(vtype)] = n
			}
			hub.BroadcastJSON(&ws.StatusMessage{
				Type:                "status",
				Timestamp:           time.Now(),
				IsRunning:           status.IsRunning,
				FPS:                 status.FPS,
				FrameCount:          status.FrameCount,
				VehicleCount:        status.CurrentVehicleCount,
				Violations:          violations,
				TrafficDensity:      status.TrafficDensity,
				PredictedCongestion: status.PredictedCongestion,
			})
		}
	}
}
