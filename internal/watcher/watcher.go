// Package watcher converts images dropped into a watch folder. It uses OS
// file system events to notice new files and submits them as batches once
// the folder has been quiet for a short while.
package watcher

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vrsandeep/webpress/internal/jobs"
	"github.com/vrsandeep/webpress/internal/models"
	"github.com/vrsandeep/webpress/internal/util"
)

// Submitter starts a batch. *jobs.Manager implements it.
type Submitter interface {
	Submit(inputs []string, opts models.Options) (*jobs.Batch, error)
}

// Service watches a folder tree and converts new JPEG and PNG files.
type Service struct {
	submitter     Submitter
	root          string
	opts          models.Options
	watcher       *fsnotify.Watcher
	pending       map[string]bool
	submitted     map[string]time.Time
	mu            sync.Mutex
	debounceTimer *time.Timer
	debounceDelay time.Duration
	stopChan      chan struct{}
	stopped       bool
}

// NewService creates a watcher for root. Renaming is always disabled so the
// output of every file can be found again by Sweep.
func NewService(submitter Submitter, root string, opts models.Options, debounce time.Duration) *Service {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	opts.RenameEnabled = false
	return &Service{
		submitter:     submitter,
		root:          root,
		opts:          opts,
		pending:       make(map[string]bool),
		submitted:     make(map[string]time.Time),
		debounceDelay: debounce,
		stopChan:      make(chan struct{}),
	}
}

// Start begins watching root and all of its subdirectories.
func (w *Service) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	err = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		// Files are watched via their parent directory
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return err
	}

	log.Printf("File watcher started for folder: %s", w.root)
	go w.processEvents()
	return nil
}

// Stop stops the watcher. Pending files are dropped.
func (w *Service) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()

	close(w.stopChan)
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Service) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)

		case <-w.stopChan:
			return
		}
	}
}

func (w *Service) handleEvent(event fsnotify.Event) {
	// Only creations and writes can produce something to convert.
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			w.watcher.Add(event.Name)
			// Files copied in together with the folder raise no events of their own.
			w.Sweep()
		}
		return
	}
	if util.IsSupportedImage(event.Name) {
		w.Enqueue(event.Name)
	}
}

// Enqueue adds path to the next batch and restarts the debounce timer.
func (w *Service) Enqueue(paths ...string) {
	if len(paths) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	for _, p := range paths {
		w.pending[p] = true
	}
	w.armLocked()
}

func (w *Service) armLocked() {
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.flush)
}

// Sweep queues every image under root that has no WebP output yet and was
// not already submitted in its current version. Files that failed to convert
// are only picked up again once they change.
func (w *Service) Sweep() int {
	var found []string
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, the rest is still swept.
			return nil
		}
		if d.IsDir() || !util.IsSupportedImage(path) {
			return nil
		}
		if w.alreadySubmitted(path) {
			return nil
		}
		if _, err := os.Stat(w.outputFor(path)); os.IsNotExist(err) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		log.Printf("Sweep of %s failed: %v", w.root, err)
	}
	if len(found) > 0 {
		log.Printf("Sweep found %d unconverted image(s) in %s", len(found), w.root)
	}
	w.Enqueue(found...)
	return len(found)
}

func (w *Service) alreadySubmitted(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submittedLocked(path, info.ModTime())
}

func (w *Service) submittedLocked(path string, modTime time.Time) bool {
	at, ok := w.submitted[path]
	return ok && at.Equal(modTime)
}

func (w *Service) outputFor(path string) string {
	dir, _ := util.ResolveOutputDir(w.opts.OutputDir, []string{path})
	return filepath.Join(dir, util.OutputFileName(path, 0, 1, "", false))
}

// flush submits the pending files. Without a fixed output folder only the
// files of one directory go into a batch, since outputs land next to the
// first input. Whatever is not submitted stays pending for the next round.
func (w *Service) flush() {
	w.mu.Lock()
	if w.stopped || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	var all []string
	modTimes := make(map[string]time.Time, len(w.pending))
	for p := range w.pending {
		info, err := os.Stat(p)
		if err != nil {
			// Removed again before we got to it.
			delete(w.pending, p)
			continue
		}
		// Queued twice, or converted in the meantime by a batch that was
		// still running when the file was queued.
		if w.submittedLocked(p, info.ModTime()) {
			delete(w.pending, p)
			continue
		}
		if out, err := os.Stat(w.outputFor(p)); err == nil && !out.ModTime().Before(info.ModTime()) {
			delete(w.pending, p)
			continue
		}
		all = append(all, p)
		modTimes[p] = info.ModTime()
	}
	if len(all) == 0 {
		w.mu.Unlock()
		return
	}
	util.SortPaths(all)

	var batch []string
	for _, p := range all {
		if w.opts.OutputDir == "" && filepath.Dir(p) != filepath.Dir(all[0]) {
			continue
		}
		batch = append(batch, p)
	}
	if len(batch) == 0 {
		w.mu.Unlock()
		return
	}
	for _, p := range batch {
		delete(w.pending, p)
		w.submitted[p] = modTimes[p]
	}
	w.mu.Unlock()

	_, err := w.submitter.Submit(batch, w.opts)
	switch {
	case errors.Is(err, jobs.ErrBatchRunning):
		// Try again once the folder and the running batch had time to settle.
		w.forget(batch)
		w.Enqueue(batch...)
		return
	case err != nil:
		w.forget(batch)
		log.Printf("File watcher could not submit %d file(s): %v", len(batch), err)
	default:
		log.Printf("File watcher submitted %d file(s) from %s", len(batch), filepath.Dir(batch[0]))
	}

	w.mu.Lock()
	if !w.stopped && len(w.pending) > 0 {
		w.armLocked()
	}
	w.mu.Unlock()
}

func (w *Service) forget(paths []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range paths {
		delete(w.submitted, p)
	}
}
