package capture

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// maxLineSize bounds one feed line; a beacon's IEs are at most a few KiB in hex.
const maxLineSize = 64 * 1024

// Message represents one line received from a capture source
type Message struct {
	Source    string
	Line      string
	Timestamp time.Time
}

// Capture reads line framed capture feeds from TCP sources and reconnects
// when a source drops.
type Capture struct {
	sources        []string
	conns          map[string]net.Conn
	msgChan        chan Message
	wg             sync.WaitGroup
	stopChan       chan struct{}
	stopOnce       sync.Once
	mu             sync.Mutex
	logger         *log.Logger
	reconnectDelay time.Duration
	idleTimeout    time.Duration
}

// New creates a new Capture instance
func New(sources []string) *Capture {
	return &Capture{
		sources:        sources,
		conns:          make(map[string]net.Conn),
		msgChan:        make(chan Message, 1000),
		stopChan:       make(chan struct{}),
		logger:         log.Default().WithPrefix("capture"),
		reconnectDelay: 5 * time.Second,
		idleTimeout:    30 * time.Second,
	}
}

// SetReconnectDelay sets the wait between connection attempts.
func (c *Capture) SetReconnectDelay(d time.Duration) {
	c.reconnectDelay = d
}

// SetIdleTimeout sets how long a connection may stay silent before it is
// dropped and dialled again.
func (c *Capture) SetIdleTimeout(d time.Duration) {
	c.idleTimeout = d
}

// Start begins reading from all sources
func (c *Capture) Start() error {
	for _, source := range c.sources {
		c.wg.Add(1)
		go c.connectToSource(source)
	}
	return nil
}

// Stop closes every connection, waits for the readers and closes the
// message channel. It is safe to call more than once.
func (c *Capture) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
		c.mu.Lock()
		for _, conn := range c.conns {
			conn.Close()
		}
		c.mu.Unlock()
		c.wg.Wait()
		close(c.msgChan)
	})
}

// Messages returns the channel for receiving messages
func (c *Capture) Messages() <-chan Message {
	return c.msgChan
}

// handleConnectionError handles connection errors and returns updated state
func (c *Capture) handleConnectionError(connected bool, disconnectTime time.Time) (bool, time.Time) {
	if connected {
		if disconnectTime.IsZero() {
			disconnectTime = time.Now()
		}
		connected = false
	}
	select {
	case <-time.After(c.reconnectDelay):
	case <-c.stopChan:
	}
	return connected, disconnectTime
}

// configureTCPKeepalive configures TCP keepalive settings
func (c *Capture) configureTCPKeepalive(conn net.Conn, source string) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tcpConn.SetKeepAlive(true); err != nil {
		c.logger.Warn("failed to set keepalive", "source", source, "err", err)
	}
	if err := tcpConn.SetKeepAlivePeriod(2 * time.Second); err != nil {
		c.logger.Warn("failed to set keepalive period", "source", source, "err", err)
	}
	if err := tcpConn.SetNoDelay(true); err != nil {
		c.logger.Warn("failed to set no delay", "source", source, "err", err)
	}
}

// handleSuccessfulConnection handles successful connection logic
func (c *Capture) handleSuccessfulConnection(connected bool, disconnectTime time.Time, source string) (bool, time.Time) {
	if connected {
		return connected, disconnectTime
	}
	if !disconnectTime.IsZero() {
		duration := time.Since(disconnectTime)
		if duration >= 100*time.Millisecond && duration < 10*time.Second {
			c.logger.Info("connection hiccup", "source", source, "seconds", duration.Seconds())
		} else if duration >= 10*time.Second {
			c.logger.Info("connection reestablished", "source", source, "minutes", duration.Minutes())
		}
		disconnectTime = time.Time{}
	} else {
		c.logger.Info("connected", "source", source)
	}
	return true, disconnectTime
}

func (c *Capture) stopped() bool {
	select {
	case <-c.stopChan:
		return true
	default:
		return false
	}
}

func (c *Capture) connectToSource(source string) {
	defer c.wg.Done()

	connected := false
	var disconnectTime time.Time
	c.logger.Info("connecting", "source", source)

	for !c.stopped() {
		conn, err := net.DialTimeout("tcp", source, 5*time.Second)
		if err != nil {
			c.logger.Debug("dial failed", "source", source, "err", err)
			connected, disconnectTime = c.handleConnectionError(connected, disconnectTime)
			continue
		}

		c.configureTCPKeepalive(conn, source)
		connected, disconnectTime = c.handleSuccessfulConnection(connected, disconnectTime, source)

		c.mu.Lock()
		if c.stopped() {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conns[source] = conn
		c.mu.Unlock()

		c.handleConnection(source, conn)

		c.mu.Lock()
		delete(c.conns, source)
		c.mu.Unlock()

		if connected {
			disconnectTime = time.Now()
			connected = false
		}
	}
}

// handleConnection forwards every line of conn until it fails, goes idle or
// the capture stops.
func (c *Capture) handleConnection(source string, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(deadlineReader{conn: conn, timeout: c.idleTimeout})
	scanner.Buffer(make([]byte, 4096), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		select {
		case c.msgChan <- Message{Source: source, Line: line, Timestamp: time.Now().UTC()}:
		case <-c.stopChan:
			return
		}
	}

	if err := scanner.Err(); err != nil && !c.stopped() {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			c.logger.Warn("source idle, reconnecting", "source", source)
			return
		}
		c.logger.Warn("read failed", "source", source, "err", err)
	}
}

// deadlineReader refreshes the read deadline before every read.
type deadlineReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r deadlineReader) Read(p []byte) (int, error) {
	if r.timeout > 0 {
		if err := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
			return 0, err
		}
	}
	return r.conn.Read(p)
}
