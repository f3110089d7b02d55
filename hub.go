package main

import (
	"fmt"
	"log/slog"
	"sync"
)

// Hub tracks live WebSocket clients and caps connections per address and in
// total, in front of the Registry's per-address attempt rate limit.
type Hub struct {
	registry *Registry
	logger   *slog.Logger

	maxPerIP int
	maxTotal int

	mu      sync.Mutex
	clients map[*Client]bool
	ipConns map[string]int
}

// NewHub creates a Hub in front of registry
func NewHub(registry *Registry, maxPerIP, maxTotal int, logger *slog.Logger) *Hub {
	return &Hub{
		registry: registry,
		logger:   logger,
		maxPerIP: maxPerIP,
		maxTotal: maxTotal,
		clients:  make(map[*Client]bool),
		ipConns:  make(map[string]int),
	}
}

// Admit decides whether ip may open another connection. It consumes one
// rate-limit attempt even when the caps reject it.
func (h *Hub) Admit(ip string) error {
	if err := h.registry.Admit(ip); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.maxTotal > 0 && len(h.clients) >= h.maxTotal {
		return fmt.Errorf("%w: %d connections open", ErrCapacityExceeded, len(h.clients))
	}
	if h.maxPerIP > 0 && h.ipConns[ip] >= h.maxPerIP {
		return fmt.Errorf("%w: too many connections from %s", ErrCapacityExceeded, ip)
	}
	return nil
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	h.ipConns[c.remoteAddr]++
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	h.ipConns[c.remoteAddr]--
	if h.ipConns[c.remoteAddr] <= 0 {
		delete(h.ipConns, c.remoteAddr)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll closes every client; used on shutdown
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.Close()
	}
}
