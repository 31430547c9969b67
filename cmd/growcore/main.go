package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/growlab/growcore/internal/bridge"
	"github.com/growlab/growcore/internal/eventbus"
	"github.com/growlab/growcore/internal/model"
	"github.com/growlab/growcore/internal/scheduler"
	"github.com/growlab/growcore/internal/simulator"
	"github.com/growlab/growcore/internal/sink"
	"github.com/growlab/growcore/pkg/broker"
	"github.com/growlab/growcore/pkg/logger"
)

func main() {
	cfg := loadConfig()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "growcore")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bus := eventbus.New(cfg.HistoryCapacity, log)
	gen := simulator.NewGenerator(simulator.DefaultPatterns(), time.Now().UnixNano())
	sim := simulator.New(bus, gen, log)

	coord := scheduler.New(bus, log,
		scheduler.WithTimeout(time.Duration(cfg.TaskTimeoutSec)*time.Second),
		scheduler.WithWorkers(cfg.Workers),
		scheduler.WithHistoryCapacity(cfg.HistoryCapacity),
		scheduler.WithEnricher(busEnricher(bus)),
	)

	devices := defaultDevices()
	for _, d := range devices {
		if err := sim.RegisterDevice(d); err != nil {
			log.Fatal("register device", zap.String("device_id", d.ID), zap.Error(err))
		}
	}
	for _, t := range defaultTasks(devices) {
		if err := coord.RegisterTask(t); err != nil {
			log.Fatal("register task", zap.String("task_id", t.ID), zap.Error(err))
		}
	}

	var influxSink *sink.Sink
	if cfg.InfluxToken != "" {
		client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
		defer client.Close()
		influxSink = sink.New(client.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket), log)
		influxSink.Attach(bus)
		log.Info("influx sink attached", zap.String("url", cfg.InfluxURL), zap.String("bucket", cfg.InfluxBucket))
	}

	var eventBridge *bridge.Bridge
	var pub broker.Publisher
	if cfg.MQTTEnabled {
		client, err := broker.Connect(ctx, broker.Config{
			Host:     cfg.MQTTHost,
			Port:     cfg.MQTTPort,
			User:     cfg.MQTTUser,
			Password: cfg.MQTTPassword,
			ClientID: cfg.MQTTClientID,
		}, log)
		if err != nil {
			log.Fatal("mqtt connect", zap.Error(err))
		}
		pub = broker.NewPublisher(client, 0, log)
		eventBridge = bridge.New(pub, log)
		eventBridge.Attach(bus)

		commands := bridge.NewCommandHandler(sim, coord, log)
		consumer := broker.NewConsumer(client, bridge.CommandTopic, 1, commands.Handle, log)
		go consumer.Consume(ctx)
		log.Info("mqtt bridge attached", zap.String("host", cfg.MQTTHost), zap.Int("port", cfg.MQTTPort))
	}

	sim.Start()
	if err := coord.Start(); err != nil {
		log.Fatal("start coordinator", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if influxSink != nil && influxSink.LastErrorAge() < time.Minute {
			http.Error(w, "influx sink degraded", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux}
	go func() {
		log.Info("http server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server", zap.Error(err))
		}
	}()

	log.Info("growcore running",
		zap.Int("devices", len(devices)),
		zap.Bool("mqtt", cfg.MQTTEnabled),
		zap.Bool("influx", influxSink != nil))

	<-ctx.Done()
	log.Info("shutting down")

	sim.Stop()
	coord.Stop()
	if eventBridge != nil {
		eventBridge.Close()
	}
	if pub != nil {
		pub.Close()
	}
	if influxSink != nil {
		influxSink.Close()
	}
	bus.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	log.Info("stopped")
}

// busEnricher feeds recent bus history into the payload-driven tasks at
// trigger time. Handlers stay isolated: they only ever see the copy.
func busEnricher(bus eventbus.Bus) scheduler.Enricher {
	return func(task model.ScheduledTask) map[string]any {
		switch task.Kind {
		case model.TaskProcessing, model.TaskAnalysis:
			events := bus.RecentEvents(&eventbus.Filter{Type: model.EventSensorReading}, 200)
			samples := make([]any, 0, len(events))
			// Newest first from the bus; the trend fit wants oldest first.
			for i := len(events) - 1; i >= 0; i-- {
				r, ok := events[i].(model.SensorReading)
				if !ok {
					continue
				}
				if v, ok := r.Metrics["temperature"]; ok {
					samples = append(samples, v)
				}
			}
			return map[string]any{"samples": samples}
		case model.TaskCleanup, model.TaskBackup:
			events := bus.RecentEvents(nil, 500)
			entries := make([]any, 0, len(events))
			for _, e := range events {
				entries = append(entries, map[string]any{
					"event_id":  e.ID(),
					"type":      string(e.Type()),
					"timestamp": e.Timestamp().Format(time.RFC3339),
				})
			}
			return map[string]any{"entries": entries}
		default:
			return nil
		}
	}
}
