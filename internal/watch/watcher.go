// Package watch polls mail folders on cron schedules and reports new
// arrivals.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wesm/inboxctl/internal/config"
)

// PollFunc is invoked when a folder is due. It should fetch the folder and
// report anything new.
type PollFunc func(ctx context.Context, folder string) error

// FolderStatus describes one watched folder.
type FolderStatus struct {
	Folder    string    `json:"folder"`
	Running   bool      `json:"running"`
	LastRun   time.Time `json:"last_run,omitempty"`
	NextRun   time.Time `json:"next_run"`
	Schedule  string    `json:"schedule"`
	LastError string    `json:"last_error,omitempty"`
}

// Watcher runs a PollFunc per folder on a cron schedule. A folder is never
// polled twice at once.
type Watcher struct {
	cron   *cron.Cron
	poll   PollFunc
	logger *slog.Logger

	mu        sync.RWMutex
	jobs      map[string]cron.EntryID // folder -> cron entry ID
	schedules map[string]string       // folder -> cron expression
	running   map[string]bool
	lastRun   map[string]time.Time
	lastErr   map[string]error

	ctx     context.Context    // cancelled on Stop
	cancel  context.CancelFunc // cancels ctx
	wg      sync.WaitGroup     // tracks running polls
	started bool
	stopped bool
}

func newParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
}

// New creates a Watcher that calls poll for each due folder.
func New(poll PollFunc) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		cron:      cron.New(cron.WithParser(newParser())),
		poll:      poll,
		logger:    slog.Default(),
		jobs:      make(map[string]cron.EntryID),
		schedules: make(map[string]string),
		running:   make(map[string]bool),
		lastRun:   make(map[string]time.Time),
		lastErr:   make(map[string]error),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// WithLogger sets the logger.
func (w *Watcher) WithLogger(logger *slog.Logger) *Watcher {
	w.logger = logger
	return w
}

// AddFolder polls folder on cronExpr, replacing any earlier schedule.
func (w *Watcher) AddFolder(folder, cronExpr string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if entryID, exists := w.jobs[folder]; exists {
		w.cron.Remove(entryID)
		delete(w.jobs, folder)
		delete(w.schedules, folder)
	}

	entryID, err := w.cron.AddFunc(cronExpr, func() {
		w.mu.Lock()
		if w.stopped || w.running[folder] {
			w.mu.Unlock()
			return
		}
		w.running[folder] = true
		w.wg.Add(1)
		w.mu.Unlock()
		w.runPoll(folder)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	w.jobs[folder] = entryID
	w.schedules[folder] = cronExpr
	w.logger.Info("watching folder",
		"folder", folder,
		"schedule", cronExpr,
		"next_run", w.cron.Entry(entryID).Next)
	return nil
}

// AddFoldersFromConfig watches every configured folder on the configured
// schedule. It returns the number of folders added and any errors.
func (w *Watcher) AddFoldersFromConfig(cfg *config.Config) (int, []error) {
	var errs []error
	added := 0
	for _, folder := range cfg.Watch.Folders {
		if folder == "" {
			continue
		}
		if err := w.AddFolder(folder, cfg.Watch.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", folder, err))
			continue
		}
		added++
	}
	return added, errs
}

// RemoveFolder stops watching folder.
func (w *Watcher) RemoveFolder(folder string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if entryID, exists := w.jobs[folder]; exists {
		w.cron.Remove(entryID)
		delete(w.jobs, folder)
		delete(w.schedules, folder)
		w.logger.Info("stopped watching folder", "folder", folder)
	}
}

// Start begins executing scheduled polls.
func (w *Watcher) Start() {
	w.mu.Lock()
	w.started = true
	w.stopped = false
	n := len(w.jobs)
	w.mu.Unlock()

	w.cron.Start()
	w.logger.Info("watcher started", "folders", n)
}

// IsRunning reports whether the watcher has been started and not stopped.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started && !w.stopped
}

// Stop halts the schedule, cancels running polls and returns a context that
// is done once they have all returned.
func (w *Watcher) Stop() context.Context {
	w.logger.Info("watcher stopping")

	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	cronCtx := w.cron.Stop()
	w.cancel()

	done := make(chan struct{})
	go func() {
		<-cronCtx.Done()
		w.wg.Wait()
		close(done)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-done
		cancel()
	}()
	return ctx
}

// runPoll polls one folder. The caller must have already called wg.Add(1)
// and set running[folder].
func (w *Watcher) runPoll(folder string) {
	defer w.wg.Done()
	defer func() {
		w.mu.Lock()
		w.running[folder] = false
		w.mu.Unlock()
	}()

	start := time.Now()
	err := w.poll(w.ctx, folder)

	w.mu.Lock()
	if err != nil {
		w.lastErr[folder] = err
		w.logger.Error("poll failed",
			"folder", folder,
			"duration", time.Since(start),
			"error", err)
	} else {
		w.lastRun[folder] = time.Now()
		w.lastErr[folder] = nil
		w.logger.Debug("poll completed",
			"folder", folder,
			"duration", time.Since(start))
	}
	w.mu.Unlock()
}

// IsWatched reports whether folder has a schedule.
func (w *Watcher) IsWatched(folder string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, exists := w.jobs[folder]
	return exists
}

// Trigger polls folder now, outside its schedule. It fails when the
// watcher is stopped, the folder is not watched or a poll is running.
func (w *Watcher) Trigger(folder string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return fmt.Errorf("watcher is stopped")
	}
	if _, exists := w.jobs[folder]; !exists {
		return fmt.Errorf("folder %s is not watched", folder)
	}
	if w.running[folder] {
		return fmt.Errorf("poll already running for %s", folder)
	}

	w.running[folder] = true
	w.wg.Add(1)
	go w.runPoll(folder)
	return nil
}

// Status returns the state of every watched folder.
func (w *Watcher) Status() []FolderStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var statuses []FolderStatus
	for folder, entryID := range w.jobs {
		entry := w.cron.Entry(entryID)
		status := FolderStatus{
			Folder:   folder,
			Running:  w.running[folder],
			LastRun:  w.lastRun[folder],
			NextRun:  entry.Next,
			Schedule: w.schedules[folder],
		}
		if err := w.lastErr[folder]; err != nil {
			status.LastError = err.Error()
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// ValidateCronExpr checks a five-field cron expression.
func ValidateCronExpr(expr string) error {
	if _, err := newParser().Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}
