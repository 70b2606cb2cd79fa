package realtime

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/example/delivery-dispatch/internal/observability"
)

var (
	// ErrNotAuthenticated rejects channel operations from a client id
	// with no registered connection.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidCredential rejects a failed authentication handshake.
	// The connection stays open and may retry.
	ErrInvalidCredential = errors.New("invalid credential")
)

// Transport is the opaque per-connection send capability supplied by the
// transport layer. The registry never inspects transport internals.
type Transport interface {
	Send(v any) error
}

// Identity is the result of a verified credential token.
type Identity struct {
	UserID string
	Role   string
}

// TokenVerifier is the external collaborator that checks credential
// tokens.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

type client struct {
	id        string
	role      string
	transport Transport
	channels  map[string]struct{}
}

// Hub is the realtime pub/sub registry: at most one live connection per
// client id, channel subscriptions with replace semantics, best-effort
// fan-out. A single lock guards all registry state; sends happen on a
// snapshot outside the lock so a slow transport never blocks mutations.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*client
	verifier TokenVerifier
	logger   *slog.Logger
}

func NewHub(verifier TokenVerifier, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{clients: make(map[string]*client), verifier: verifier, logger: logger}
}

// Authenticate verifies the token and registers the transport under the
// resulting client id. A prior connection under the same id is replaced;
// the stale transport's lifecycle belongs to the transport layer.
func (h *Hub) Authenticate(t Transport, token string) (Identity, error) {
	ident, err := h.verifier.Verify(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	h.mu.Lock()
	// a connection re-authenticating under a new id gives up its old one
	for id, c := range h.clients {
		if c.transport == t && id != ident.UserID {
			delete(h.clients, id)
		}
	}
	h.clients[ident.UserID] = &client{
		id:        ident.UserID,
		role:      ident.Role,
		transport: t,
		channels:  make(map[string]struct{}),
	}
	n := len(h.clients)
	h.mu.Unlock()

	observability.ClientsConnected.Set(float64(n))
	h.logger.Info("client authenticated", "client_id", ident.UserID, "role", ident.Role)
	return ident, nil
}

// Subscribe replaces (not merges) the client's subscription set.
func (h *Hub) Subscribe(clientID string, channels []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[clientID]
	if !ok {
		return fmt.Errorf("%w: client %s", ErrNotAuthenticated, clientID)
	}
	set := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		set[ch] = struct{}{}
	}
	c.channels = set
	return nil
}

// Publish delivers event to every registered client subscribed to channel.
// Delivery is at-most-once and best-effort: a dead transport is skipped
// and never fails the call or other recipients.
func (h *Hub) Publish(channel string, event any) {
	h.mu.RLock()
	targets := make([]Transport, 0, len(h.clients))
	for _, c := range h.clients {
		if _, ok := c.channels[channel]; ok {
			targets = append(targets, c.transport)
		}
	}
	h.mu.RUnlock()
	h.send(targets, event)
}

// PublishAny delivers event once to every client subscribed to at least
// one of the channels, mirroring the orders/order_{id} channel pairs.
func (h *Hub) PublishAny(event any, channels ...string) {
	h.mu.RLock()
	targets := make([]Transport, 0, len(h.clients))
	for _, c := range h.clients {
		for _, ch := range channels {
			if _, ok := c.channels[ch]; ok {
				targets = append(targets, c.transport)
				break
			}
		}
	}
	h.mu.RUnlock()
	h.send(targets, event)
}

// Unicast delivers directly to one client id; silently no-ops when the
// client is not connected.
func (h *Hub) Unicast(clientID string, event any) {
	h.mu.RLock()
	c, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.send([]Transport{c.transport}, event)
}

// BroadcastRole delivers to every connected client with the given role.
func (h *Hub) BroadcastRole(role string, event any) {
	h.mu.RLock()
	targets := make([]Transport, 0, len(h.clients))
	for _, c := range h.clients {
		if c.role == role {
			targets = append(targets, c.transport)
		}
	}
	h.mu.RUnlock()
	h.send(targets, event)
}

// Disconnect removes every registry entry owning this transport. Idempotent;
// a transport already replaced by a newer connection is simply not found.
func (h *Hub) Disconnect(t Transport) {
	h.mu.Lock()
	var removed string
	for id, c := range h.clients {
		if c.transport == t {
			delete(h.clients, id)
			removed = id
		}
	}
	n := len(h.clients)
	h.mu.Unlock()

	if removed != "" {
		observability.ClientsConnected.Set(float64(n))
		h.logger.Info("client disconnected", "client_id", removed)
	}
}

func (h *Hub) send(targets []Transport, event any) {
	for _, t := range targets {
		if err := t.Send(event); err != nil {
			observability.DeliveriesDroppedTotal.Inc()
			h.logger.Debug("realtime send dropped", "error", err)
		}
	}
}
