// Package storage writes line oriented logs into daily files and gzips each
// file once the day is over.
package storage

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

// Storage handles writing log lines to daily files
type Storage struct {
	outputDir string
	pattern   *strftime.Strftime
	now       func() time.Time

	file     *os.File
	current  string
	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
	logger   *log.Logger
}

// New creates a Storage writing <prefix>_YYYY-MM-DD.log files into outputDir.
func New(outputDir, prefix string) (*Storage, error) {
	pattern, err := strftime.New(prefix + "_%Y-%m-%d.log")
	if err != nil {
		return nil, fmt.Errorf("invalid file prefix %q: %w", prefix, err)
	}
	return &Storage{
		outputDir: outputDir,
		pattern:   pattern,
		now:       func() time.Time { return time.Now().UTC() },
		stopChan:  make(chan struct{}),
		logger:    log.Default().WithPrefix("storage"),
	}, nil
}

// FileName returns the file name used for the day containing t.
func (s *Storage) FileName(t time.Time) string {
	return filepath.Join(s.outputDir, s.pattern.FormatString(t.UTC()))
}

// Start opens today's file and starts the rotation timer
func (s *Storage) Start() error {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	s.mu.Lock()
	err := s.openFile()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go s.rotationTimer()
	return nil
}

// Stop closes the current file and stops the rotation timer
func (s *Storage) Stop() error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}

// WriteMessage writes one line to the current file, adding the newline when
// it is missing.
func (s *Storage) WriteMessage(message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		if err := s.openFile(); err != nil {
			return err
		}
	}

	if len(message) == 0 || message[len(message)-1] != '\n' {
		message = append(message[:len(message):len(message)], '\n')
	}
	_, err := s.file.Write(message)
	return err
}

// WriteLine writes a string line.
func (s *Storage) WriteLine(line string) error {
	return s.WriteMessage([]byte(line))
}

// rotationTimer rotates at every UTC midnight
func (s *Storage) rotationTimer() {
	defer s.wg.Done()

	for {
		now := s.now()
		next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)

		select {
		case <-time.After(next.Sub(now)):
			if err := s.Rotate(); err != nil {
				s.logger.Error("rotation failed", "err", err)
			}
		case <-s.stopChan:
			return
		}
	}
}

// Rotate closes the current file, compresses it if its day is over and opens
// the file for the current day.
func (s *Storage) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.current
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			s.logger.Warn("failed to close log file", "file", previous, "err", err)
		}
		s.file = nil
	}

	if previous != "" && previous != s.FileName(s.now()) {
		if err := CompressFile(previous); err != nil {
			return fmt.Errorf("failed to compress file: %w", err)
		}
	}

	return s.openFile()
}

// CompressFile gzips path into path.gz and removes the original.
func CompressFile(path string) error {
	source, err := os.Open(path)
	if err != nil {
		return err
	}
	defer source.Close()

	target, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer target.Close()

	gz := gzip.NewWriter(target)
	gz.Name = filepath.Base(path)
	if _, err := io.Copy(gz, source); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}

	return os.Remove(path)
}

// openFile opens the file for the current day. Callers hold s.mu.
func (s *Storage) openFile() error {
	name := s.FileName(s.now())
	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	s.file = file
	s.current = name
	return nil
}
