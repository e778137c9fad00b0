package localserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"
)

// DefaultMode is the permission applied to the socket file.
const DefaultMode fs.FileMode = 0o600

// Server serves an http.Handler on a Unix domain socket.
type Server struct {
	path   string
	mode   fs.FileMode
	srv    *http.Server
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New creates a server for socketPath. A zero mode selects DefaultMode.
func New(socketPath string, mode fs.FileMode, handler http.Handler, logger *slog.Logger) *Server {
	if mode == 0 {
		mode = DefaultMode
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		path:   socketPath,
		mode:   mode,
		logger: logger,
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Listen binds the socket, replacing a stale socket file left by an
// earlier process. A path held by a live listener is an error.
func (s *Server) Listen() error {
	if err := removeStale(s.path); err != nil {
		return err
	}

	l, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.path, err)
	}
	if err := os.Chmod(s.path, s.mode); err != nil {
		l.Close()
		return fmt.Errorf("chmod %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	return nil
}

// Serve accepts connections until Shutdown. Listen must be called first.
// It returns nil after a graceful shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l == nil {
		return errors.New("localserver: Serve called before Listen")
	}

	s.logger.Info("local socket listening", "path", s.path)
	if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe binds the socket and serves it.
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown stops accepting connections, waits for in-flight requests
// (bounded by ctx) and removes the socket file.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}

func removeStale(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("localserver: %s exists and is not a socket", path)
	}

	conn, err := net.DialTimeout("unix", path, time.Second)
	if err == nil {
		conn.Close()
		return fmt.Errorf("localserver: %s is in use", path)
	}
	return os.Remove(path)
}
