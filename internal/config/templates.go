package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/okian/fightlog/internal/domain/encounter"
	"github.com/okian/fightlog/pkg/logger"
)

// TemplateFile is the on-disk layout of a raid template file.
type TemplateFile struct {
	Templates []encounter.RaidTemplate `yaml:"templates"`
}

// TemplateLoader reads a raid template file and optionally watches it.
type TemplateLoader struct {
	path     string
	log      logger.Logger
	mu       sync.RWMutex
	current  []encounter.RaidTemplate
	onChange []func([]encounter.RaidTemplate)
}

// TemplateOption configures a TemplateLoader.
type TemplateOption func(*TemplateLoader)

// WithTemplateLogger sets the loader's logger.
func WithTemplateLogger(l logger.Logger) TemplateOption {
	return func(t *TemplateLoader) {
		if l != nil {
			t.log = l
		}
	}
}

// NewTemplateLoader creates a loader and performs the initial load.
func NewTemplateLoader(path string, opts ...TemplateOption) (*TemplateLoader, error) {
	l := &TemplateLoader{path: filepath.Clean(path), log: logger.OrDiscard("templates")}
	for _, opt := range opts {
		opt(l)
	}
	ts, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = ts
	return l, nil
}

// Path is the watched file.
func (l *TemplateLoader) Path() string { return l.path }

// Templates returns the most recently loaded templates.
func (l *TemplateLoader) Templates() []encounter.RaidTemplate {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.current)
}

// OnChange registers a callback invoked after every successful reload.
func (l *TemplateLoader) OnChange(fn func([]encounter.RaidTemplate)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Reload re-reads the file and notifies callbacks. A file that fails to
// parse leaves the previous templates in place.
func (l *TemplateLoader) Reload() ([]encounter.RaidTemplate, error) {
	ts, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = ts
	callbacks := slices.Clone(l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(slices.Clone(ts))
	}
	return ts, nil
}

// Watch reloads the file whenever it is written or replaced, until ctx is
// done or stop is called. The parent directory is watched so editors that
// save by rename are picked up.
func (l *TemplateLoader) Watch(ctx context.Context) (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: template watcher: %w", ErrLoadConfig, err)
	}
	dir := filepath.Dir(l.path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("%w: watch %s: %w", ErrLoadConfig, dir, err)
	}

	done := make(chan struct{})
	var once sync.Once
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != l.path || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				ts, err := l.Reload()
				if err != nil {
					l.log.Warn(ctx, "raid template reload failed", logger.String("path", l.path), logger.Error(err))
					continue
				}
				l.log.Info(ctx, "raid templates reloaded", logger.String("path", l.path), logger.Int("templates", len(ts)))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.log.Warn(ctx, "template watcher error", logger.Error(err))
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }, nil
}

func (l *TemplateLoader) load() ([]encounter.RaidTemplate, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read templates %s: %w", ErrLoadConfig, l.path, err)
	}
	var f TemplateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parse templates %s: %w", ErrLoadConfig, l.path, err)
	}
	return f.Templates, nil
}
