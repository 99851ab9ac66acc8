package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// rotatingWriter appends to a log file and, once the file exceeds maxBytes,
// moves it into the sibling archives/ directory with a timestamp suffix,
// keeping at most maxBackups archived copies per sink.
type rotatingWriter struct {
	mu         sync.Mutex
	path       string
	maxBytes   int
	maxBackups int
	file       *os.File
	size       int64
}

func newRotatingWriter(path string, maxBytes, maxBackups int) (*rotatingWriter, error) {
	w := &rotatingWriter{
		path:       path,
		maxBytes:   maxBytes,
		maxBackups: maxBackups,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *rotatingWriter) open() error {
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", w.path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	w.file = file
	w.size = info.Size()
	return nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > int64(w.maxBytes) && w.size > 0 {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	base := filepath.Base(w.path)
	archiveDir := filepath.Join(dir, "archives")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return err
	}

	stamp := time.Now().Format("20060102-150405.000000000")
	archived := filepath.Join(archiveDir, base+"."+stamp)
	if err := os.Rename(w.path, archived); err != nil {
		return err
	}

	w.pruneArchives(archiveDir, base)
	return w.open()
}

// pruneArchives removes the oldest archives beyond maxBackups. Archive names
// embed a sortable timestamp, so lexical order is age order.
func (w *rotatingWriter) pruneArchives(archiveDir, base string) {
	entries, err := os.ReadDir(archiveDir)
	if err != nil {
		return
	}

	var mine []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), base+".") {
			mine = append(mine, e.Name())
		}
	}
	if len(mine) <= w.maxBackups {
		return
	}

	sort.Strings(mine)
	for _, name := range mine[:len(mine)-w.maxBackups] {
		_ = os.Remove(filepath.Join(archiveDir, name))
	}
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
