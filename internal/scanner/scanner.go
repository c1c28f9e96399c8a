// Package scanner walks directory trees for auditable files and fans
// the work out over a fixed worker pool.
package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"sql-gate/internal/model"
)

// Finding is one audited statement located in a file. Line is the
// source line for statements extracted from code, or 0 for statements
// read from plain .sql scripts.
type Finding struct {
	Line int
	Node *model.CacheNode
}

// Result holds everything the pool produced for a single file.
type Result struct {
	Path     string
	Findings []Finding
	Err      error
}

// Processor audits one file and returns its findings.
type Processor func(path string) ([]Finding, error)

// FileWalker emits paths matching the configured extensions, skipping
// excluded directory names.
type FileWalker struct {
	extensions map[string]bool
	excludes   map[string]bool
}

func NewFileWalker(extensions, excludes []string) *FileWalker {
	w := &FileWalker{
		extensions: make(map[string]bool, len(extensions)),
		excludes:   make(map[string]bool, len(excludes)),
	}
	for _, ext := range extensions {
		w.extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	for _, ex := range excludes {
		w.excludes[ex] = true
	}
	return w
}

// Walk traverses root and streams matching file paths. Traversal
// errors are reported on the second channel; both channels close when
// the walk finishes or ctx is cancelled.
func (w *FileWalker) Walk(ctx context.Context, root string) (<-chan string, <-chan error) {
	paths := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(paths)
		defer close(errs)

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if w.excludes[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
			if !w.extensions[ext] {
				return nil
			}
			select {
			case paths <- path:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			errs <- err
		}
	}()

	return paths, errs
}

// WorkerPool runs a Processor over a stream of paths with bounded
// concurrency.
type WorkerPool struct {
	workers int
	proc    Processor
}

func NewWorkerPool(workers int, proc Processor) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{workers: workers, proc: proc}
}

// Start consumes paths until the channel closes and returns a channel
// of per-file results. The result channel closes once all workers
// drain.
func (p *WorkerPool) Start(ctx context.Context, paths <-chan string) <-chan Result {
	results := make(chan Result)

	var wg sync.WaitGroup
	wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func() {
			defer wg.Done()
			for path := range paths {
				findings, err := p.proc(path)
				res := Result{Path: path, Findings: findings, Err: err}
				select {
				case results <- res:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}
