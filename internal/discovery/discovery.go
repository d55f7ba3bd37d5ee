// Package discovery implements candidate discovery (spec §4.3): a parallel
// directory walk that finds files whose names match the pattern engine and
// emits them as conflict candidates.
//
// # Architecture Overview
//
// Discovery uses a concurrent fan-out/fan-in architecture to efficiently
// traverse directory trees while respecting system resource limits.
//
// # Concurrency Model
//
//  1. WALKER GOROUTINES (fan-out)
//     - One goroutine spawned per directory discovered
//     - Concurrency limited by a semaphore
//     - Each walker: acquires semaphore → lists directory → spawns child
//       walkers → releases semaphore (children wait for their own slot)
//
//  2. COLLECTOR GOROUTINE (fan-in)
//     - Single goroutine that drains the result channel into a slice
//
//  3. MAIN GOROUTINE (orchestrator)
//     - Spawns initial walkers, waits for them, closes the result channel,
//       waits for the collector, sorts the result for determinism.
//
// Bundles (spec §3) are emitted as a single candidate-eligible entry and
// never descended into. CloudPlaceholder entries are always skipped,
// regardless of IgnoreHidden.
package discovery

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/icloud-dedupe/icloud-dedupe/internal/events"
	"github.com/icloud-dedupe/icloud-dedupe/internal/pattern"
	"github.com/icloud-dedupe/icloud-dedupe/internal/progress"
	"github.com/icloud-dedupe/icloud-dedupe/internal/types"
)

// maxDefaultWorkers caps the worker count derived from runtime.NumCPU when
// the caller leaves Config.Workers unset (spec §5: min(logical_cpus, 8)).
const maxDefaultWorkers = 8

// Discoverer walks one or more root paths and emits conflict candidates.
//
// Designed for single-use: create with New, call Run once.
type Discoverer struct {
	cfg Config

	walkerWg  sync.WaitGroup
	walkerSem types.Semaphore
	resultCh  chan Candidate
	stats     *stats
	bar       *progress.Bar
}

// New creates a Discoverer for the given configuration.
func New(cfg Config) *Discoverer {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
		if cfg.Workers > maxDefaultWorkers {
			cfg.Workers = maxDefaultWorkers
		}
	}
	return &Discoverer{cfg: cfg}
}

type stats struct {
	scannedFiles  atomic.Int64
	candidates    atomic.Int64
	scannedBytes  atomic.Int64
	startTime     time.Time
}

func (s *stats) String() string {
	return fmt.Sprintf("Scanned %d (%s), found %d candidates in %.1fs",
		s.scannedFiles.Load(), humanize.IBytes(uint64(s.scannedBytes.Load())),
		s.candidates.Load(), time.Since(s.startTime).Seconds())
}

// Run executes the walk and returns candidates sorted by path, ascending,
// for deterministic display and testing (the walk itself runs concurrently
// with no ordering guarantee between sibling directories, per spec §5).
func (d *Discoverer) Run() []Candidate {
	d.walkerSem = types.NewSemaphore(d.cfg.Workers)
	d.bar = progress.New(d.cfg.ShowProgress, -1)
	d.stats = &stats{startTime: time.Now()}
	d.bar.Describe(d.stats)
	d.resultCh = make(chan Candidate, 1000)

	d.publish(events.Event{Kind: events.ScanStarted, Roots: d.cfg.Roots})

	var results []Candidate
	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go func() {
		for c := range d.resultCh {
			results = append(results, c)
		}
		collectorWg.Done()
	}()

	for _, root := range d.cfg.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			d.sendError(err)
			continue
		}
		d.walkDirectory(abs, 0)
	}

	d.walkerWg.Wait()
	close(d.resultCh)
	collectorWg.Wait()

	d.bar.Finish(d.stats)

	sorted := types.NewSorted(results, func(c Candidate) string { return c.Path })
	return sorted.Items()
}

// walkDirectory spawns a goroutine to process one directory and recursively
// spawn children for any subdirectories it lists (bundles are not
// descended into — classify treats them as leaves).
func (d *Discoverer) walkDirectory(dir string, depth int) {
	d.walkerWg.Add(1)
	go func() {
		defer d.walkerWg.Done()

		d.walkerSem.Acquire()
		defer d.walkerSem.Release()

		if d.cfg.MaxDepth > 0 && depth > d.cfg.MaxDepth {
			return
		}

		entries, err := listDirectory(dir)
		if err != nil {
			d.sendError(err)
			return
		}

		for _, entry := range entries {
			d.processEntry(dir, entry, depth)
		}
	}()
}

// processEntry classifies one directory entry and either recurses into it,
// emits it as a candidate, or skips it.
func (d *Discoverer) processEntry(dir string, entry os.DirEntry, depth int) {
	name := entry.Name()
	full := filepath.Join(dir, name)

	if isCloudPlaceholder(name) {
		return
	}

	if d.cfg.IgnoreHidden && strings.HasPrefix(name, ".") {
		return
	}

	if entry.IsDir() {
		if isBundle(name) {
			d.classifyAndEmit(full, name, types.KindBundle, depth)
			return
		}
		d.walkDirectory(full, depth+1)
		return
	}

	if entry.Type()&os.ModeSymlink != 0 {
		if !d.cfg.FollowSymlinks {
			return
		}
		info, err := os.Stat(full)
		if err != nil {
			return
		}
		if info.IsDir() {
			d.walkDirectory(full, depth+1)
			return
		}
		d.classifyAndEmit(full, name, types.KindRegular, depth)
		return
	}

	if !entry.Type().IsRegular() {
		return
	}

	d.classifyAndEmit(full, name, types.KindRegular, depth)
}

// classifyAndEmit applies the pattern engine to name and, on a match, sizes
// the entry and sends a Candidate to the result channel.
func (d *Discoverer) classifyAndEmit(full, name string, kind types.FileKind, _ int) {
	info, err := os.Lstat(full)
	if err != nil {
		d.sendError(err)
		return
	}

	size := info.Size()
	if kind != types.KindBundle {
		d.stats.scannedFiles.Add(1)
		d.stats.scannedBytes.Add(size)
	}

	m, ok := pattern.Detect(name)
	if !ok {
		d.bar.Describe(d.stats)
		return
	}

	original := pattern.DeriveOriginal(name, m)
	candidate := Candidate{
		Path:             full,
		Pattern:          m,
		PresumedOriginal: filepath.Join(filepath.Dir(full), original),
		Size:             size,
	}
	d.stats.candidates.Add(1)
	d.resultCh <- candidate
	d.bar.Describe(d.stats)
	d.publish(events.Event{Kind: events.CandidateFound, Path: candidate.Path, Pattern: candidate.Pattern.Kind.String()})
}

// isBundle reports whether name carries one of the recognized bundle
// extensions (spec §3).
func isBundle(name string) bool {
	return bundleExts[strings.ToLower(filepath.Ext(name))]
}

// isCloudPlaceholder reports whether name is a not-yet-downloaded iCloud
// stub: begins with "." and ends with ".icloud" (spec §3).
func isCloudPlaceholder(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".icloud")
}

// listDirectory reads a single directory's entries in batches, bounding
// memory usage for directories with very many entries.
func listDirectory(dirPath string) ([]os.DirEntry, error) {
	dir, err := os.Open(dirPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = dir.Close() }()

	const batchSize = 1000
	var entries []os.DirEntry
	for {
		batch, err := dir.ReadDir(batchSize)
		if len(batch) == 0 {
			if err != nil && err != io.EOF {
				return entries, err
			}
			break
		}
		entries = append(entries, batch...)
	}
	return entries, nil
}

// sendError sends err to the configured error channel, if any.
func (d *Discoverer) sendError(err error) {
	if d.cfg.ErrCh != nil {
		d.cfg.ErrCh <- err
	}
}

func (d *Discoverer) publish(ev events.Event) {
	if d.cfg.Bus != nil {
		d.cfg.Bus.Publish(ev)
	}
}
