package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/rahul/stepwise/internal/agent"
)

// Messenger defines the interface for communication gateways (Telegram, Discord, etc.)
type Messenger interface {
	// Start listens for messages until ctx is cancelled or the gateway fails.
	Start(ctx context.Context) error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

var errNoGateways = errors.New("no gateways enabled")

const fallbackReply = "I'm having trouble thinking right now..."

// ChatID qualifies a gateway-local chat id so replies from the scheduler
// and the send_message tool reach the right gateway.
func ChatID(gateway, id string) string {
	return gateway + ":" + id
}

// SplitChatID is the inverse of ChatID.
func SplitChatID(chatID string) (gateway, id string, ok bool) {
	return strings.Cut(chatID, ":")
}

// reply runs one incoming message through the brain. Failures are logged
// and answered with a fallback so the chat is never left hanging.
func reply(ctx context.Context, brain agent.Brain, chatID, text string) string {
	response, err := brain.Think(ctx, chatID, text)
	if err != nil {
		log.Printf("Error thinking for chat %s: %v", chatID, err)
		return fallbackReply
	}
	if strings.TrimSpace(response) == "" {
		return "(no report)"
	}
	return response
}

// Mux routes Send calls to the gateway named in the chat id.
type Mux struct {
	mu       sync.RWMutex
	gateways map[string]Messenger
}

func NewMux() *Mux {
	return &Mux{gateways: make(map[string]Messenger)}
}

func (m *Mux) Register(name string, g Messenger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gateways[name] = g
}

// Len returns the number of registered gateways.
func (m *Mux) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.gateways)
}

func (m *Mux) Send(chatID string, text string) error {
	name, _, ok := SplitChatID(chatID)
	if !ok {
		return fmt.Errorf("chat id %q names no gateway", chatID)
	}
	m.mu.RLock()
	g, ok := m.gateways[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("gateway %s is not running", name)
	}
	return g.Send(chatID, text)
}

// Start runs every gateway and returns when the first one stops.
func (m *Mux) Start(ctx context.Context) error {
	m.mu.RLock()
	running := make(map[string]Messenger, len(m.gateways))
	for name, g := range m.gateways {
		running[name] = g
	}
	m.mu.RUnlock()
	if len(running) == 0 {
		return errNoGateways
	}

	errs := make(chan error, len(running))
	for name, g := range running {
		go func() {
			log.Printf("Starting %s gateway", name)
			if err := g.Start(ctx); err != nil {
				errs <- fmt.Errorf("%s gateway: %w", name, err)
				return
			}
			errs <- nil
		}()
	}
	return <-errs
}

func (m *Mux) Stop() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var firstErr error
	for name, g := range m.gateways {
		if err := g.Stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s gateway: %w", name, err)
		}
	}
	return firstErr
}
