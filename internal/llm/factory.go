package llm

import (
	"fmt"
	"sync"

	"github.com/nulzo/reliability-forge/internal/config"
	"go.uber.org/zap"
)

// Deps carries what a provider constructor may need besides its descriptor.
type Deps struct {
	Credentials config.Credentials
	Transport   TransportConfig
	Logger      *zap.Logger
	// Tokens overrides the ambient identity credential of cloud providers.
	Tokens TokenSource
}

type Factory func(desc config.ModelDescriptor, deps Deps) (Client, error)

var (
	mu        sync.RWMutex
	factories = make(map[config.Provider]Factory)
)

// Register makes a provider constructor available. It panics on duplicates
// and is meant to be called from init.
func Register(provider config.Provider, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[provider]; exists {
		panic(fmt.Sprintf("provider factory %s already registered", provider))
	}
	factories[provider] = f
}

func Get(provider config.Provider) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[provider]
	if !ok {
		return nil, fmt.Errorf("provider factory not found for type: %s", provider)
	}
	return f, nil
}

// New builds the client for one descriptor through the registered factory.
func New(desc config.ModelDescriptor, deps Deps) (Client, error) {
	f, err := Get(desc.Provider)
	if err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return f(desc, deps)
}
