package registry

import (
	"fmt"
	"log"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher signals when the manifest directory changes. Long-lived processes
// use it to know a re-scan is due; discovery itself is still performed fresh
// per request, so the watcher only carries a hint, never descriptor data.
type Watcher struct {
	fsw     *fsnotify.Watcher
	changes chan string
	done    chan struct{}
}

// Watch starts watching the manifest directory for descriptor changes.
func Watch(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create manifest watcher: %w", err)
	}

	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch manifest directory %s: %w", path, err)
	}

	w := &Watcher{
		fsw:     fsw,
		changes: make(chan string, 8),
		done:    make(chan struct{}),
	}

	go w.loop()
	return w, nil
}

// Changes returns a channel that receives the path of each changed
// descriptor file. Events may be coalesced if the consumer is slow.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".md") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case w.changes <- event.Name:
			default:
				// Consumer is behind; the next scan picks everything up anyway.
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("[registry] watch error: %v", err)
		case <-w.done:
			return
		}
	}
}
