package inference

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Components lists the model assets the runtime must hold before any
// verification can run. All of them load or none do.
var Components = []string{
	"face_detector",
	"face_landmark_68",
	"face_recognition",
	"face_expression",
	"age_gender",
}

// ModelLoadError reports a failed load sequence with per-component detail so
// operators can tell which asset is missing or corrupt. It is an
// infrastructure failure: no user action can resolve it.
type ModelLoadError struct {
	// Loaded maps each component name to whether it loaded successfully.
	Loaded map[string]bool
	// Errors holds one message per failed component.
	Errors []string
}

// Error implements the error interface.
func (e *ModelLoadError) Error() string {
	failed := make([]string, 0, len(e.Loaded))
	for _, name := range Components {
		if ok, known := e.Loaded[name]; known && !ok {
			failed = append(failed, name)
		}
	}
	return fmt.Sprintf("model load failed for [%s]: %s",
		strings.Join(failed, ", "), strings.Join(e.Errors, "; "))
}

// Loader fetches the model components exactly once per process lifetime.
// Concurrent callers racing on an unloaded state share a single underlying
// load sequence; after a failure the state stays unloaded so a later call
// retries.
type Loader struct {
	client  Client
	baseURL string
	logger  *zap.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	loaded bool
}

// NewLoader builds a loader that resolves component URIs against baseURL.
func NewLoader(client Client, baseURL string, logger *zap.Logger) *Loader {
	return &Loader{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.Named("model_loader"),
	}
}

// Ready reports whether all components are loaded.
func (l *Loader) Ready() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded
}

// EnsureLoaded loads every model component if that has not happened yet. It
// is idempotent and safe under concurrent invocation: losers of the race wait
// for the winner's result instead of starting a second load.
func (l *Loader) EnsureLoaded(ctx context.Context) error {
	if l.Ready() {
		return nil
	}

	_, err, _ := l.group.Do("load", func() (interface{}, error) {
		if l.Ready() {
			return nil, nil
		}
		return nil, l.loadAll(ctx)
	})
	return err
}

func (l *Loader) loadAll(ctx context.Context) error {
	status := make(map[string]bool, len(Components))
	var errs []string

	for _, name := range Components {
		uri := l.baseURL + "/" + name
		if err := l.client.LoadModel(ctx, name, uri); err != nil {
			status[name] = false
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			l.logger.Error("model component failed to load",
				zap.String("component", name), zap.String("uri", uri), zap.Error(err))
			continue
		}
		status[name] = true
		l.logger.Info("model component loaded", zap.String("component", name))
	}

	if len(errs) > 0 {
		return &ModelLoadError{Loaded: status, Errors: errs}
	}

	l.mu.Lock()
	l.loaded = true
	l.mu.Unlock()
	l.logger.Info("all model components loaded", zap.Int("components", len(Components)))
	return nil
}
