package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/saviobatista/rid-tracker/internal/capture"
	"github.com/saviobatista/rid-tracker/internal/config"
	"github.com/saviobatista/rid-tracker/internal/nats"
	"github.com/saviobatista/rid-tracker/internal/parser"
	"github.com/saviobatista/rid-tracker/internal/types"
)

// Publisher interface for testability
type Publisher interface {
	PublishAdvertisement(adv *types.Advertisement) error
	PublishSensorStatus(status *types.SensorStatus) error
}

// Sensor forwards one capture feed to the tracker and reports its radio
// state.
type Sensor struct {
	id     string
	pub    Publisher
	logger *log.Logger
	now    func() time.Time

	mu       sync.Mutex
	software bool
	hardware bool

	published uint64
	rejected  uint64
}

// NewSensor creates a sensor whose radio is assumed on until the feed says
// otherwise.
func NewSensor(id string, pub Publisher) *Sensor {
	return &Sensor{
		id:       id,
		pub:      pub,
		logger:   log.Default().WithPrefix("sensor"),
		now:      func() time.Time { return time.Now().UTC() },
		software: true,
		hardware: true,
	}
}

// HandleLine parses one feed line and publishes what it carries. A radio
// state change is published immediately.
func (s *Sensor) HandleLine(msg capture.Message) error {
	rec, err := parser.ParseMessage(msg.Line, s.id, msg.Timestamp)
	if err != nil {
		s.mu.Lock()
		s.rejected++
		s.mu.Unlock()
		return fmt.Errorf("failed to parse line from %s: %w", msg.Source, err)
	}
	if rec == nil {
		return nil
	}

	switch rec.Type {
	case parser.RecordAdvertisement:
		if err := s.pub.PublishAdvertisement(rec.Advertisement); err != nil {
			return fmt.Errorf("failed to publish advertisement: %w", err)
		}
		s.mu.Lock()
		s.published++
		s.mu.Unlock()
	case parser.RecordRadio:
		s.mu.Lock()
		changed := s.software != rec.Status.SoftwareOn || s.hardware != rec.Status.HardwareOn
		s.software = rec.Status.SoftwareOn
		s.hardware = rec.Status.HardwareOn
		s.mu.Unlock()
		if changed {
			s.logger.Info("radio state changed", "software", rec.Status.SoftwareOn, "hardware", rec.Status.HardwareOn)
			return s.Heartbeat()
		}
	}
	return nil
}

// Heartbeat publishes the current radio state.
func (s *Sensor) Heartbeat() error {
	return s.pub.PublishSensorStatus(s.status(true))
}

// Offline tells the tracker this sensor is going away.
func (s *Sensor) Offline() error {
	return s.pub.PublishSensorStatus(s.status(false))
}

func (s *Sensor) status(online bool) *types.SensorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &types.SensorStatus{
		SensorID:   s.id,
		Online:     online,
		SoftwareOn: s.software,
		HardwareOn: s.hardware,
		Timestamp:  s.now(),
	}
}

// Counts returns the number of published advertisements and rejected lines.
func (s *Sensor) Counts() (published, rejected uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published, s.rejected
}

// Run forwards lines and sends a heartbeat every interval until ctx is done
// or lines is closed.
func (s *Sensor) Run(ctx context.Context, lines <-chan capture.Message, interval time.Duration) {
	if err := s.Heartbeat(); err != nil {
		s.logger.Error("Failed to publish heartbeat", "err", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-lines:
			if !ok {
				return
			}
			if err := s.HandleLine(msg); err != nil {
				s.logger.Warn("Dropped line", "err", err)
			}
		case <-ticker.C:
			if err := s.Heartbeat(); err != nil {
				s.logger.Error("Failed to publish heartbeat", "err", err)
			}
			published, rejected := s.Counts()
			s.logger.Debug("forwarding", "published", published, "rejected", rejected)
		}
	}
}

// heartbeatInterval keeps at least three heartbeats inside the tracker's
// sensor timeout.
func heartbeatInterval(timeout time.Duration) time.Duration {
	interval := timeout / 3
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

func parseFlags(cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("sensor", pflag.ContinueOnError)
	fs.StringVar(&cfg.SensorID, "id", cfg.SensorID, "sensor id announced to the tracker")
	fs.StringSliceVar(&cfg.Sources, "source", cfg.Sources, "capture feed address (repeatable)")
	return fs.Parse(args)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}
	if err := parseFlags(cfg, os.Args[1:]); err != nil {
		log.Error("Failed to parse flags", "err", err)
		os.Exit(2)
	}
	logger := cfg.NewLogger("sensor")
	if err := cfg.RequireSources(); err != nil {
		logger.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}

	client, err := nats.New(cfg.NATSURL)
	if err != nil {
		logger.Error("Failed to create NATS client", "err", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feed := capture.New(cfg.Sources)
	if err := feed.Start(); err != nil {
		logger.Error("Failed to start capture", "err", err)
		os.Exit(1)
	}

	sensor := NewSensor(cfg.SensorID, client)
	logger.Info("forwarding", "sensor", cfg.SensorID, "sources", cfg.Sources)
	sensor.Run(ctx, feed.Messages(), heartbeatInterval(cfg.SensorTimeout))

	logger.Info("Shutting down...")
	feed.Stop()
	if err := sensor.Offline(); err != nil {
		logger.Error("Failed to announce shutdown", "err", err)
	}
}
