package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/atlasforge/assessor/internal/agents"
)

const rosterReloadDebounce = 500 * time.Millisecond

// RosterWatcher hot-reloads the agent roster override file. Running
// workflows keep the roster they started with; only new runs pick up the
// reloaded roster.
type RosterWatcher struct {
	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	mu       sync.RWMutex
	roster   []agents.TaskSpec
	onChange func([]agents.TaskSpec)

	reloadTimer *time.Timer
	done        chan struct{}
}

// NewRosterWatcher loads the roster at path and begins watching its
// directory. Editors replace files on save, so the directory is watched
// rather than the file itself.
func NewRosterWatcher(path string, logger *zap.Logger) (*RosterWatcher, error) {
	roster, err := agents.LoadRoster(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	rw := &RosterWatcher{
		path:    path,
		logger:  logger,
		watcher: watcher,
		roster:  roster,
		done:    make(chan struct{}),
	}
	go rw.loop()
	return rw, nil
}

// OnChange registers a callback invoked with each successfully reloaded
// roster. Set during startup wiring, before any reload can fire.
func (rw *RosterWatcher) OnChange(fn func([]agents.TaskSpec)) {
	rw.mu.Lock()
	rw.onChange = fn
	rw.mu.Unlock()
}

// Roster returns the current roster snapshot.
func (rw *RosterWatcher) Roster() []agents.TaskSpec {
	rw.mu.RLock()
	defer rw.mu.RUnlock()
	out := make([]agents.TaskSpec, len(rw.roster))
	copy(out, rw.roster)
	return out
}

// Close stops the watch loop.
func (rw *RosterWatcher) Close() error {
	close(rw.done)
	return rw.watcher.Close()
}

func (rw *RosterWatcher) loop() {
	for {
		select {
		case <-rw.done:
			return
		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(rw.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			rw.scheduleReload()
		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			rw.logger.Warn("Roster watch error", zap.Error(err))
		}
	}
}

// scheduleReload debounces bursts of write events from a single save.
func (rw *RosterWatcher) scheduleReload() {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.reloadTimer != nil {
		rw.reloadTimer.Stop()
	}
	rw.reloadTimer = time.AfterFunc(rosterReloadDebounce, rw.reload)
}

func (rw *RosterWatcher) reload() {
	roster, err := agents.LoadRoster(rw.path)
	if err != nil {
		// Keep serving the last good roster.
		rw.logger.Error("Roster reload failed, keeping previous roster",
			zap.String("path", rw.path),
			zap.Error(err),
		)
		return
	}
	rw.mu.Lock()
	rw.roster = roster
	notify := rw.onChange
	rw.mu.Unlock()
	if notify != nil {
		notify(roster)
	}
	rw.logger.Info("Roster reloaded",
		zap.String("path", rw.path),
		zap.Int("agents", len(roster)),
	)
}
