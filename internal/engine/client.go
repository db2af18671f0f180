package engine

import (
	"context"
	"sort"
	"sync"
)

// answerPrompt is the fixed system instruction sent with every tracked query.
// It nudges engines toward naming concrete brands so detection has something
// to work with, without steering toward any particular brand.
const answerPrompt = "You are a helpful assistant. Answer the question comprehensively. " +
	"Name specific companies, products, or services when relevant."

// Client is the capability every AI answer engine exposes: one synchronous
// completion of a prompt into plain text. Provider-specific request shapes
// and response envelopes stay behind this interface.
type Client interface {
	// Name returns the engine identifier (chatgpt, perplexity, gemini).
	Name() string

	// BaseConfidence returns the calibrated trust floor for citations
	// detected in this engine's responses.
	BaseConfidence() float64

	// EmptyResponseOK reports whether an empty completion is legitimate
	// for this provider rather than a failure.
	EmptyResponseOK() bool

	// Complete sends the prompt and returns the extracted answer text.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Registry holds the engine clients constructed at startup. Clients are built
// once per process and injected; a provider whose key is absent is simply
// never registered, which disables that engine without affecting the others.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

// NewRegistry creates an empty client registry
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register adds a client, keyed by its engine name
func (r *Registry) Register(client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.Name()] = client
}

// Get returns the client for an engine name
func (r *Registry) Get(name string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[name]
	return client, ok
}

// Names returns the registered engine names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
