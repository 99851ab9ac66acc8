package knowledge

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/berinia/berinia/pkg/config"
)

var wordPattern = regexp.MustCompile(`[a-zA-Z0-9_À-ÿ]+`)

// offlineStore answers searches from a directory of markdown documents using
// term-overlap scoring. It needs neither an embedder nor an external service,
// so it is the backend of last resort. A filesystem watcher reindexes the
// corpus when documents change.
type offlineStore struct {
	dir      string
	minScore float64

	mu     sync.RWMutex
	chunks map[string][]offlineChunk

	watcher *fsnotify.Watcher
	closed  chan struct{}
}

type offlineChunk struct {
	id       string
	content  string
	terms    map[string]struct{}
	metadata map[string]any
}

func newOfflineStore(cfg *config.KnowledgeConfig) *offlineStore {
	s := &offlineStore{
		dir:      cfg.FallbackDir,
		minScore: cfg.MinScore,
		chunks:   make(map[string][]offlineChunk),
		closed:   make(chan struct{}),
	}
	s.reindex()
	s.watch()
	return s
}

// reindex rebuilds the markdown collection from the corpus tree. Chunks are
// markdown paragraphs; each carries its source file and position.
func (s *offlineStore) reindex() {
	var chunks []offlineChunk

	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read knowledge document", "path", path, "error", err)
			return nil
		}

		source := d.Name()
		if rel, relErr := filepath.Rel(s.dir, path); relErr == nil {
			source = filepath.ToSlash(rel)
		}

		paragraphs := splitParagraphs(string(data))
		for i, paragraph := range paragraphs {
			chunks = append(chunks, offlineChunk{
				id:      newChunkID(),
				content: paragraph,
				terms:   termSet(paragraph),
				metadata: map[string]any{
					"source":       source,
					"category":     "documentation",
					"chunk_index":  i,
					"total_chunks": len(paragraphs),
					"created_at":   time.Now().UTC().Format(time.RFC3339),
				},
			})
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to read knowledge directory", "dir", s.dir, "error", err)
	}

	s.mu.Lock()
	s.chunks[CollectionKnowledge] = chunks
	s.mu.Unlock()

	if len(chunks) > 0 {
		slog.Info("offline knowledge corpus indexed", "dir", s.dir, "chunks", len(chunks))
	}
}

// watch reindexes the corpus when a markdown file changes anywhere in the
// tree. Best-effort: a missing directory or watcher failure just disables
// live reload.
func (s *offlineStore) watch() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("knowledge corpus watcher unavailable", "error", err)
		return
	}
	if err := watchTree(watcher, s.dir); err != nil {
		watcher.Close()
		return
	}
	s.watcher = watcher

	go func() {
		for {
			select {
			case <-s.closed:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Create != 0 {
					if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
						// Subdirectories created later join the watch.
						_ = watchTree(watcher, event.Name)
						s.reindex()
						continue
					}
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 &&
					strings.HasSuffix(event.Name, ".md") {
					s.reindex()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("knowledge corpus watcher error", "error", err)
			}
		}
	}()
}

func (s *offlineStore) CreateCollection(ctx context.Context, name string, vectorSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[name]; !ok {
		s.chunks[name] = nil
	}
	return nil
}

func (s *offlineStore) Add(ctx context.Context, collection, text string, metadata map[string]any) error {
	index, _ := metadata["chunk_index"].(int)
	total, _ := metadata["total_chunks"].(int)
	chunk := offlineChunk{
		id:       newChunkID(),
		content:  text,
		terms:    termSet(text),
		metadata: chunkMetadata(metadata, text, index, total),
	}

	s.mu.Lock()
	s.chunks[collection] = append(s.chunks[collection], chunk)
	s.mu.Unlock()
	return nil
}

// Search scores each chunk by the fraction of query terms it contains and
// returns the best matches above the score floor.
func (s *offlineStore) Search(ctx context.Context, collection, query string, limit int) ([]Hit, error) {
	queryTerms := termSet(query)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	chunks := s.chunks[collection]
	s.mu.RUnlock()

	var hits []Hit
	for _, chunk := range chunks {
		matched := 0
		for term := range queryTerms {
			if _, ok := chunk.terms[term]; ok {
				matched++
			}
		}
		score := float64(matched) / float64(len(queryTerms))
		if score < s.minScore || matched == 0 {
			continue
		}
		hits = append(hits, Hit{
			ID:       chunk.id,
			Score:    score,
			Content:  chunk.content,
			Metadata: chunk.metadata,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *offlineStore) Close() error {
	select {
	case <-s.closed:
		return nil
	default:
	}
	close(s.closed)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// watchTree registers root and every subdirectory beneath it.
func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func splitParagraphs(text string) []string {
	var out []string
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			out = append(out, block)
		}
	}
	return out
}

func termSet(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if len(word) < 3 {
			continue
		}
		terms[word] = struct{}{}
	}
	return terms
}
