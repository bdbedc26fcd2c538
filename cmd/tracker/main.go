package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/saviobatista/rid-tracker/internal/api"
	"github.com/saviobatista/rid-tracker/internal/catalog"
	"github.com/saviobatista/rid-tracker/internal/config"
	"github.com/saviobatista/rid-tracker/internal/db"
	"github.com/saviobatista/rid-tracker/internal/decoder"
	"github.com/saviobatista/rid-tracker/internal/nats"
	"github.com/saviobatista/rid-tracker/internal/radio"
	"github.com/saviobatista/rid-tracker/internal/redis"
	"github.com/saviobatista/rid-tracker/internal/remoteid"
	"github.com/saviobatista/rid-tracker/internal/session"
	"github.com/saviobatista/rid-tracker/internal/stats"
	"github.com/saviobatista/rid-tracker/internal/storage"
	"github.com/saviobatista/rid-tracker/internal/types"
)

// statusHistory is how many status events /api/status returns.
const statusHistory = 200

// Recorder receives diagnostic records; *db.Writer satisfies it.
type Recorder interface {
	SessionStarted(s *types.ScanSession)
	SessionEnded(sessionID string, at time.Time)
	Status(e *types.StatusEvent)
	Location(r *types.LocationReport)
}

// LineWriter receives human readable status lines; *storage.Storage
// satisfies it.
type LineWriter interface {
	WriteLine(line string) error
}

// Deps are the optional collaborators of a Tracker. Nil members are skipped.
type Deps struct {
	Stats      *stats.Stats
	Mirror     session.Sink
	Recorder   Recorder
	Lines      LineWriter
	AutoStart  bool
	SessionIDs func() string
}

// Tracker owns the session controller and the broadcaster catalog. Both are
// only touched from the goroutine running Run; radio notifications and API
// calls are queued to it.
type Tracker struct {
	controller *session.Controller
	catalog    *catalog.Aggregator
	stats      *stats.Stats
	mirror     session.Sink
	recorder   Recorder
	lines      LineWriter
	autoStart  bool
	logger     *log.Logger
	now        func() time.Time

	notes chan session.Notification
	calls chan func()
	done  chan struct{}

	status       []types.StatusEvent
	pendingStart bool
}

// NewTracker creates a tracker scanning through r.
func NewTracker(r session.Radio, deps Deps) *Tracker {
	t := &Tracker{
		catalog:   catalog.New(),
		stats:     deps.Stats,
		mirror:    deps.Mirror,
		recorder:  deps.Recorder,
		lines:     deps.Lines,
		autoStart: deps.AutoStart,
		logger:    log.Default().WithPrefix("tracker"),
		now:       func() time.Time { return time.Now().UTC() },
		notes:     make(chan session.Notification, 64),
		calls:     make(chan func()),
		done:      make(chan struct{}),
	}
	if t.stats == nil {
		t.stats = stats.New()
	}

	opts := []session.Option{session.WithStatus(t.onStatus)}
	if deps.SessionIDs != nil {
		opts = append(opts, session.WithSessionIDs(deps.SessionIDs))
	}
	t.controller = session.New(r, countingDecoder{decoder: decoder.New(), stats: t.stats}, t, opts...)
	return t
}

// Notify queues a radio notification. It is safe to call from any goroutine
// and drops the notification once the tracker has stopped.
func (t *Tracker) Notify(n session.Notification) {
	select {
	case t.notes <- n:
	case <-t.done:
	}
}

// Run binds an interface and processes notifications and calls until ctx is
// done. A running session is stopped on exit.
func (t *Tracker) Run(ctx context.Context) {
	defer close(t.done)

	if err := t.controller.Discover(); err == nil && t.autoStart {
		t.pendingStart = true
	}
	t.startPending()

	for {
		select {
		case <-ctx.Done():
			if t.controller.State() == session.Scanning {
				_ = t.controller.Stop()
			}
			return
		case n := <-t.notes:
			t.logger.Debug("notification", "type", n.Type, "interface", n.InterfaceID)
			t.controller.Handle(n)
		case fn := <-t.calls:
			fn()
		}
		t.startPending()
	}
}

// Done is closed when Run returns.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

func (t *Tracker) startPending() {
	if !t.pendingStart {
		return
	}
	t.pendingStart = false
	if t.controller.State() == session.Idle {
		_ = t.controller.Start()
	}
}

// do runs fn on the event loop and waits for it.
func (t *Tracker) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case t.calls <- func() { fn(); close(finished) }:
	case <-t.done:
		return api.ErrUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// View implements api.Backend.
func (t *Tracker) View(ctx context.Context) (api.View, error) {
	var v api.View
	err := t.do(ctx, func() {
		v = api.View{Order: t.catalog.Broadcasters(), Catalog: t.catalog.Snapshot()}
	})
	return v, err
}

// Entry implements api.Backend.
func (t *Tracker) Entry(ctx context.Context, id string, kind remoteid.MessageKind) (remoteid.Message, bool, error) {
	var (
		msg remoteid.Message
		ok  bool
	)
	err := t.do(ctx, func() { msg, ok = t.catalog.Get(id, kind) })
	return msg, ok, err
}

// StartScan implements api.Backend.
func (t *Tracker) StartScan(ctx context.Context) error {
	var startErr error
	if err := t.do(ctx, func() { startErr = t.controller.Start() }); err != nil {
		return err
	}
	return startErr
}

// StopScan implements api.Backend.
func (t *Tracker) StopScan(ctx context.Context) error {
	var stopErr error
	if err := t.do(ctx, func() { stopErr = t.controller.Stop() }); err != nil {
		return err
	}
	return stopErr
}

// Session implements api.Backend.
func (t *Tracker) Session(ctx context.Context) (api.SessionInfo, error) {
	var info api.SessionInfo
	err := t.do(ctx, func() {
		info = api.SessionInfo{
			State:     t.controller.State().String(),
			Interface: t.controller.Interface(),
			SessionID: t.controller.SessionID(),
		}
	})
	return info, err
}

// Status implements api.Backend.
func (t *Tracker) Status(ctx context.Context) ([]types.StatusEvent, error) {
	var events []types.StatusEvent
	err := t.do(ctx, func() {
		events = append([]types.StatusEvent(nil), t.status...)
	})
	return events, err
}

// Ingest implements session.Sink: the catalog first, then the mirrors.
func (t *Tracker) Ingest(id string, msgs []remoteid.Message) {
	msgs = remoteid.Present(msgs)
	if len(msgs) == 0 {
		return
	}
	t.catalog.Ingest(id, msgs)
	if t.mirror != nil {
		t.mirror.Ingest(id, msgs)
	}
	t.stats.AddMessages(msgs)
	t.stats.SetActiveBroadcasters(uint64(t.catalog.Len()))

	if t.recorder == nil {
		return
	}
	for _, msg := range msgs {
		if loc, ok := msg.(*remoteid.Location); ok {
			t.recorder.Location(db.NewLocationReport(t.controller.SessionID(), id, loc, t.now()))
		}
	}
}

// Clear implements session.Sink.
func (t *Tracker) Clear() {
	t.catalog.Clear()
	if t.mirror != nil {
		t.mirror.Clear()
	}
	t.stats.SetActiveBroadcasters(0)
}

// onStatus fans a controller report out to the log, the counters, the status
// history and the diagnostic sinks.
func (t *Tracker) onStatus(r session.Report) {
	now := t.now()
	line := r.String()

	switch r.Level {
	case session.LevelError:
		t.logger.Error(line, "session", r.SessionID)
	case session.LevelWarn:
		t.logger.Warn(line, "session", r.SessionID)
	default:
		t.logger.Info(line, "session", r.SessionID)
	}

	switch r.Event {
	case session.EventScanStarted:
		t.stats.IncrementScansStarted()
	case session.EventScanCompleted:
		t.stats.IncrementScansCompleted()
	case session.EventScanFailed, session.EventScanRequestFailed:
		t.stats.IncrementScansFailed()
	case session.EventDecodeAnomaly:
		t.stats.IncrementDecodeAnomalies()
	case session.EventInterfaceBound:
		if t.autoStart {
			t.pendingStart = true
		}
	}

	event := types.StatusEvent{
		Time:      now,
		SessionID: r.SessionID,
		Level:     r.Level.String(),
		Message:   line,
	}
	t.status = append(t.status, event)
	if len(t.status) > statusHistory {
		t.status = t.status[len(t.status)-statusHistory:]
	}

	if t.lines != nil {
		if err := t.lines.WriteLine(fmt.Sprintf("%s %-5s %s", now.Format(time.RFC3339), event.Level, line)); err != nil {
			t.logger.Warn("failed to write status line", "err", err)
		}
	}

	if t.recorder == nil {
		return
	}
	switch r.Event {
	case session.EventScanStarted:
		t.recorder.SessionStarted(&types.ScanSession{
			SessionID:   r.SessionID,
			InterfaceID: t.controller.Interface(),
			StartedAt:   now,
		})
	case session.EventScanStopped:
		t.recorder.SessionEnded(r.SessionID, now)
	}
	t.recorder.Status(&event)
}

// logStats periodically logs statistics
func (t *Tracker) logStats(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.logger.Info("statistics\n" + t.stats.String())
		}
	}
}

// countingDecoder counts every advertisement handed to the decoder.
type countingDecoder struct {
	decoder session.Decoder
	stats   *stats.Stats
}

func (d countingDecoder) DecodeInformationElements(raw []byte) ([]remoteid.Message, error) {
	d.stats.IncrementAdvertisements()
	return d.decoder.DecodeInformationElements(raw)
}

// createClients creates all the required clients for the application
func createClients(cfg *config.Config) (*nats.Client, *db.Client, *redis.Client, error) {
	natsClient, err := nats.New(cfg.NATSURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create NATS client: %w", err)
	}

	dbClient, err := db.New(cfg.DBConnStr)
	if err != nil {
		natsClient.Close()
		return nil, nil, nil, fmt.Errorf("failed to create database client: %w", err)
	}

	redisClient, err := redis.New(cfg.RedisAddr)
	if err != nil {
		natsClient.Close()
		if closeErr := dbClient.Close(); closeErr != nil {
			log.Error("error closing database client", "err", closeErr)
		}
		return nil, nil, nil, fmt.Errorf("failed to create Redis client: %w", err)
	}

	return natsClient, dbClient, redisClient, nil
}

// newRegistry registers the tracker metrics next to the runtime collectors.
func newRegistry(st *stats.Stats) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		stats.NewCollector(st),
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return registry
}

// parseFlags lets command line flags override the loaded configuration.
func parseFlags(cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("tracker", pflag.ContinueOnError)
	fs.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP listen address")
	fs.BoolVar(&cfg.AutoStart, "auto-start", cfg.AutoStart, "start scanning as soon as an interface is bound")
	fs.DurationVar(&cfg.ScanWindow, "scan-window", cfg.ScanWindow, "duration of one scan")
	fs.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "directory for status log files")
	return fs.Parse(args)
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	natsClient, dbClient, redisClient, err := createClients(cfg)
	if err != nil {
		return err
	}
	defer func() {
		natsClient.Close()
		if err := dbClient.Close(); err != nil {
			logger.Error("error closing database client", "err", err)
		}
		if err := redisClient.Close(); err != nil {
			logger.Error("error closing Redis client", "err", err)
		}
	}()

	lines, err := storage.New(cfg.OutputDir, "rid-status")
	if err != nil {
		return err
	}
	if err := lines.Start(); err != nil {
		return fmt.Errorf("failed to start status log: %w", err)
	}
	defer lines.Stop()

	st := stats.New()
	st.SetStore(dbClient)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	var tracker *Tracker

	// The sinks outlive the tracker so the records of its final stop are
	// written before they exit.
	sinkCtx, sinkCancel := context.WithCancel(context.Background())
	defer sinkCancel()
	var sinks sync.WaitGroup
	mirror := redis.NewMirror(redisClient, 1024)
	writer := db.NewWriter(dbClient, 1024)
	sinks.Add(2)
	go func() {
		defer sinks.Done()
		mirror.Run(sinkCtx)
	}()
	go func() {
		defer sinks.Done()
		writer.Run(sinkCtx)
	}()
	stopSinks := func() {
		<-tracker.Done()
		sinkCancel()
		sinks.Wait()
	}

	remote := radio.New(cfg.ScanWindow, cfg.SensorTimeout, func(n session.Notification) { tracker.Notify(n) })
	tracker = NewTracker(remote, Deps{
		Stats:     st,
		Mirror:    mirror,
		Recorder:  writer,
		Lines:     lines,
		AutoStart: cfg.AutoStart,
	})

	spawn(func() { tracker.Run(ctx) })
	if err := remote.Subscribe(natsClient); err != nil {
		cancel()
		wg.Wait()
		stopSinks()
		return fmt.Errorf("failed to subscribe to sensors: %w", err)
	}
	spawn(func() { remote.Run(ctx) })
	spawn(func() { st.StartPersistence(ctx, 5*time.Minute) })
	spawn(func() { tracker.logStats(ctx, time.Minute) })

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.New(tracker, newRegistry(st)).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("HTTP shutdown failed", "err", shutdownErr)
	}
	cancel()
	wg.Wait()
	stopSinks()
	return err
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
	logger := cfg.NewLogger("tracker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Tracker failed", "err", err)
		os.Exit(1)
	}
}
