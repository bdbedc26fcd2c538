package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/saviobatista/rid-tracker/internal/config"
	"github.com/saviobatista/rid-tracker/internal/nats"
	"github.com/saviobatista/rid-tracker/internal/parser"
	"github.com/saviobatista/rid-tracker/internal/storage"
	"github.com/saviobatista/rid-tracker/internal/types"
)

// Subscriber interface for testability
type Subscriber interface {
	SubscribeAdvertisements(handler func(*types.Advertisement)) error
	SubscribeSensorStatus(handler func(*types.SensorStatus)) error
}

// LineWriter is the archive file the logger appends to.
type LineWriter interface {
	WriteLine(line string) error
}

// Archiver writes every advertisement and radio report seen on the bus as a
// timestamped capture feed line, so a day of traffic can be replayed.
type Archiver struct {
	out    LineWriter
	logger *log.Logger

	written atomic.Uint64
	failed  atomic.Uint64
}

// NewArchiver creates an archiver writing to out.
func NewArchiver(out LineWriter) *Archiver {
	return &Archiver{
		out:    out,
		logger: log.Default().WithPrefix("archive"),
	}
}

// Subscribe attaches the archiver to both sensor subjects.
func (a *Archiver) Subscribe(sub Subscriber) error {
	if err := sub.SubscribeAdvertisements(a.Advertisement); err != nil {
		return fmt.Errorf("failed to subscribe to advertisements: %w", err)
	}
	if err := sub.SubscribeSensorStatus(a.Status); err != nil {
		return fmt.Errorf("failed to subscribe to sensor status: %w", err)
	}
	return nil
}

// Advertisement archives one beacon.
func (a *Archiver) Advertisement(adv *types.Advertisement) {
	a.write(archiveLine(adv.Timestamp, adv.SensorID, parser.FormatAdvertisement(adv)))
}

// Status archives a radio report. Offline announcements are kept as comments.
func (a *Archiver) Status(status *types.SensorStatus) {
	line := parser.FormatRadio(status)
	if !status.Online {
		line = "# offline"
	}
	a.write(archiveLine(status.Timestamp, status.SensorID, line))
}

func (a *Archiver) write(line string) {
	if err := a.out.WriteLine(line); err != nil {
		a.failed.Add(1)
		a.logger.Error("Failed to write line", "err", err)
		return
	}
	a.written.Add(1)
}

// Counts returns the number of written and failed lines.
func (a *Archiver) Counts() (written, failed uint64) {
	return a.written.Load(), a.failed.Load()
}

func archiveLine(at time.Time, sensorID, line string) string {
	return fmt.Sprintf("%s %s %s", at.UTC().Format(time.RFC3339Nano), sensorID, line)
}

func parseFlags(cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("logger", pflag.ContinueOnError)
	fs.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "directory for daily archive files")
	fs.StringVar(&cfg.NATSURL, "nats", cfg.NATSURL, "NATS server URL")
	return fs.Parse(args)
}

// runLogger contains the main application logic and can be tested
func runLogger(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	store, err := storage.New(cfg.OutputDir, "rid-adv")
	if err != nil {
		return err
	}
	if err := store.Start(); err != nil {
		return fmt.Errorf("failed to start storage: %w", err)
	}
	defer func() {
		if err := store.Stop(); err != nil {
			logger.Error("Failed to close archive", "err", err)
		}
	}()

	client, err := nats.New(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("failed to create NATS client: %w", err)
	}
	defer client.Close()

	archiver := NewArchiver(store)
	if err := archiver.Subscribe(client); err != nil {
		return err
	}
	logger.Info("archiving", "dir", cfg.OutputDir, "nats", cfg.NATSURL)

	<-ctx.Done()
	written, failed := archiver.Counts()
	logger.Info("Shutting down...", "written", written, "failed", failed)
	return nil
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
	logger := cfg.NewLogger("logger")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runLogger(ctx, cfg, logger); err != nil {
		logger.Error("Logger failed", "err", err)
		os.Exit(1)
	}
}
