package typegoose

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

const defaultEngine = "default"

var (
	enginesOnce       sync.Once
	enginesInstance   *EngineRegistry
	ErrEngineNotFound = errors.New("engine not found")
)

// EngineRegistry holds named engine connections
type EngineRegistry struct {
	mutex   sync.RWMutex
	engines map[string]Engine
}

// NewEngineRegistry creates an empty engine registry
func NewEngineRegistry() *EngineRegistry {
	return &EngineRegistry{engines: make(map[string]Engine)}
}

// Engines returns the singleton instance of EngineRegistry
func Engines() *EngineRegistry {
	enginesOnce.Do(func() {
		enginesInstance = NewEngineRegistry()
	})
	return enginesInstance
}

// Register adds an engine under name, replacing any engine already there
func (r *EngineRegistry) Register(name string, engine Engine) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.engines[name] = engine
	Logger().Debug("engine registered", zap.String("name", name), zap.String("engine", engine.Name()))
}

// SetDefault registers engine as the default connection
func (r *EngineRegistry) SetDefault(engine Engine) {
	r.Register(defaultEngine, engine)
}

// Get retrieves an engine by name, or the default one
func (r *EngineRegistry) Get(name ...string) (Engine, error) {
	engineName := defaultEngine
	if len(name) > 0 && name[0] != "" {
		engineName = name[0]
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	engine, exists := r.engines[engineName]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrEngineNotFound, engineName)
	}
	return engine, nil
}

// MustGet retrieves an engine by name, panics if not found
func (r *EngineRegistry) MustGet(name ...string) Engine {
	engine, err := r.Get(name...)
	if err != nil {
		panic(err)
	}
	return engine
}

// List returns the registered engine names, sorted
func (r *EngineRegistry) List() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return sortedKeys(r.engines)
}

// Remove closes and removes an engine from the registry
func (r *EngineRegistry) Remove(name string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	engine, exists := r.engines[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrEngineNotFound, name)
	}
	if err := engine.Close(); err != nil {
		return fmt.Errorf("error closing engine: %w", err)
	}
	delete(r.engines, name)
	return nil
}

// RemoveAll closes and removes all engines. Every engine is closed even if
// an earlier one fails; the errors are joined.
func (r *EngineRegistry) RemoveAll() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := r.engines[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing engine %s: %w", name, err))
		}
	}
	r.engines = make(map[string]Engine)
	return errors.Join(errs...)
}

// HealthCheck checks the health of all registered engines
func (r *EngineRegistry) HealthCheck() map[string]error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	results := make(map[string]error, len(r.engines))
	for name, engine := range r.engines {
		results[name] = engine.Health()
	}
	return results
}
