package broadcast

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// FindFreePort scans [start, end] inclusive for the first port this process
// can bind, per spec.md §4.3's 8080..=8100 scan. It probes by opening and
// immediately closing a listener rather than trusting a later bind to
// succeed, mirroring cmd/api/main.go's "listen on port 8080" literal
// generalized into a loop.
func FindFreePort(start, end int) (int, error) {
	for port := start; port <= end; port++ {
		addr := fmt.Sprintf("127.0.0.1:%d", port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			continue
		}
		ln.Close()
		return port, nil
	}
	return 0, fmt.Errorf("broadcast: no free port in [%d, %d]", start, end)
}

// Bus bundles a Hub with the status producer loop and the net/http server
// that exposes it at ws://127.0.0.1:<port>/ws.
type Bus struct {
	Hub  *Hub
	Port int

	server *http.Server
}

// StatusSource is called once per status tick to build the next Status
// frame payload; supplied by the device inventory at wiring time.
type StatusSource func(ctx context.Context) DeviceStatus

// Start binds the first free port in [portStart, portEnd], serves the /ws
// upgrade endpoint, and launches the status producer on its own goroutine.
// It returns the bound URL immediately; shutdown happens via ctx
// cancellation.
func Start(ctx context.Context, portStart, portEnd int, statusInterval time.Duration, source StatusSource) (*Bus, string, error) {
	port, err := FindFreePort(portStart, portEnd)
	if err != nil {
		return nil, "", err
	}

	hub := NewHub()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeHTTP)

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	srv := &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("broadcast: bind %s: %w", addr, err)
	}

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("broadcast server stopped", "error", err)
		}
	}()

	bus := &Bus{Hub: hub, Port: port, server: srv}
	go bus.runStatusProducer(ctx, statusInterval, source)

	url := fmt.Sprintf("ws://%s/ws", addr)
	log.Info("broadcast bus listening", "url", url)
	return bus, url, nil
}

func (b *Bus) runStatusProducer(ctx context.Context, interval time.Duration, source StatusSource) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = b.server.Shutdown(context.Background())
			return
		case <-ticker.C:
			b.Hub.SendStatus(source(ctx))
		}
	}
}
