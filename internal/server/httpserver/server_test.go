package httpserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s := New(Config{Addr: ":8080", ReadTimeout: time.Second}, handler)
	if s == nil {
		t.Fatal("New returned nil")
	}
	if s.httpServer.Addr != ":8080" {
		t.Errorf("Addr = %q", s.httpServer.Addr)
	}
	if s.httpServer.ReadHeaderTimeout != time.Second {
		t.Errorf("ReadHeaderTimeout = %v, want 1s", s.httpServer.ReadHeaderTimeout)
	}
	if s.handler == nil {
		t.Error("handler is nil")
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "pong")
	})

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := New(Config{}, handler)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve(l)
	}()

	resp, err := http.Get("http://" + l.Addr().String() + "/ping")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "pong" {
		t.Errorf("body = %q, want pong", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown error: %v", err)
	}

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Serve returned %v after Shutdown, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for Serve to return")
	}
}
