package tone

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Source is anything that resolves presets. Both *Catalog and *Live satisfy it.
type Source interface {
	Resolve(id string) Preset
	IDs() []string
	Fallback() Preset
}

// Live is a Catalog that can be swapped at runtime, e.g. when the presets
// file on disk changes. Readers always see a complete catalog.
type Live struct {
	cur atomic.Pointer[Catalog]
}

// NewLive wraps c.
func NewLive(c *Catalog) *Live {
	l := &Live{}
	l.cur.Store(c)
	return l
}

// Current returns the catalog in effect.
func (l *Live) Current() *Catalog { return l.cur.Load() }

func (l *Live) Resolve(id string) Preset { return l.Current().Resolve(id) }
func (l *Live) IDs() []string            { return l.Current().IDs() }
func (l *Live) Fallback() Preset         { return l.Current().Fallback() }

// LoadFile parses path and swaps it in. On error the current catalog stays.
func (l *Live) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tone.LoadFile: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return fmt.Errorf("tone.LoadFile: %s: %w", path, err)
	}
	l.cur.Store(c)
	return nil
}

// Watch reloads path whenever it is written or replaced, until ctx is done.
// The parent directory is watched so editors that rename over the file are seen.
func (l *Live) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tone.Watch: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("tone.Watch: %w", err)
	}
	go func() {
		defer watcher.Close()
		target := filepath.Clean(path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					continue
				}
				if err := l.LoadFile(path); err != nil {
					log.Printf("tone.Watch: keeping previous presets: %v", err)
					continue
				}
				log.Printf("tone.Watch: reloaded %d presets from %s", len(l.IDs()), path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("tone.Watch: %v", err)
			}
		}
	}()
	return nil
}
