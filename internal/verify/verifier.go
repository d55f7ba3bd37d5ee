// Package verify implements the verifier (spec §4.4): classifying each
// discovered candidate against the filesystem using the content hasher.
//
// # Architecture Overview
//
// The verifier uses a fixed worker pool pulling from a bounded job queue,
// with a WaitGroup tracking when every worker has exited so the results
// channel can be closed — the same fan-out/fan-in shape used by the candidate discovery walk, here
// applied to a flat list of independent verification jobs rather than a
// recursive directory tree.
//
// # Concurrency Model
//
//  1. WORKER GOROUTINES (fixed pool, size min(logical_cpus, 8) by default)
//     - Each worker pulls one candidate at a time from the job queue and
//       classifies it independently; workers share no state.
//
//  2. COLLECTOR (main goroutine)
//     - Reads outcomes from the results channel into a slice.
//
//  3. ORCHESTRATOR
//     - Queues one job per candidate, closes the queue once all jobs are
//       queued, and closes the results channel once all workers exit.
package verify

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/icloud-dedupe/icloud-dedupe/internal/cache"
	"github.com/icloud-dedupe/icloud-dedupe/internal/digest"
	"github.com/icloud-dedupe/icloud-dedupe/internal/discovery"
	"github.com/icloud-dedupe/icloud-dedupe/internal/events"
	"github.com/icloud-dedupe/icloud-dedupe/internal/progress"
	"github.com/icloud-dedupe/icloud-dedupe/internal/report"
	"github.com/icloud-dedupe/icloud-dedupe/internal/types"
)

// maxDefaultWorkers caps the worker count derived from runtime.NumCPU when
// the caller leaves Options.Workers unset (spec §5: min(logical_cpus, 8)).
const maxDefaultWorkers = 8

// Verifier confirms duplicates among candidates using content digests,
// optionally backed by a persistent digest cache.
//
// Designed for single-use: create with New, call Run once.
type Verifier struct {
	candidates []discovery.Candidate
	opts       Options
	cache      *cache.Cache
}

// New creates a Verifier for candidates. A disabled cache (cache.Open(""))
// is valid and simply disables caching.
func New(candidates []discovery.Candidate, opts Options, c *cache.Cache) *Verifier {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
		if opts.Workers > maxDefaultWorkers {
			opts.Workers = maxDefaultWorkers
		}
	}
	return &Verifier{candidates: candidates, opts: opts, cache: c}
}

// Run classifies every candidate in parallel and returns their outcomes in
// no particular order — callers canonicalize via report.Build.
func (v *Verifier) Run() []report.Outcome {
	if len(v.candidates) == 0 {
		return nil
	}

	jobCh := make(chan discovery.Candidate, len(v.candidates))
	resultsCh := make(chan report.Outcome, len(v.candidates))

	bar := progress.New(v.opts.ShowProgress, int64(len(v.candidates)))

	var workerWg sync.WaitGroup
	var done int
	var mu sync.Mutex

	for i := 0; i < v.opts.Workers; i++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			for c := range jobCh {
				outcome := v.verifyOne(c)
				resultsCh <- outcome

				mu.Lock()
				done++
				n := done
				mu.Unlock()
				bar.Set(uint64(n))
				v.publish(events.Event{
					Kind:    events.VerifyProgress,
					Done:    n,
					Total:   len(v.candidates),
					Current: c.Path,
				})
				v.publish(events.Event{Kind: events.VerifyOutcome, Outcome: outcome})
			}
		}()
	}

	for _, c := range v.candidates {
		jobCh <- c
	}
	close(jobCh)

	go func() {
		workerWg.Wait()
		close(resultsCh)
	}()

	var outcomes []report.Outcome
	for o := range resultsCh {
		outcomes = append(outcomes, o)
	}

	bar.Finish(finishStats{n: len(outcomes)})
	return outcomes
}

type finishStats struct{ n int }

func (f finishStats) String() string { return fmt.Sprintf("verified %d candidates", f.n) }

// verifyOne classifies a single candidate per the verify algorithm
// (spec §4.4): existence, readability, size, then digest comparison.
func (v *Verifier) verifyOne(c discovery.Candidate) report.Outcome {
	keepInfo, err := os.Lstat(c.PresumedOriginal)
	if os.IsNotExist(err) {
		return report.Outcome{
			Kind:      report.OrphanedConflict,
			Candidate: c.Path,
			Pattern:   c.Pattern,
		}
	}
	if err != nil {
		return v.skip(c.Path, err)
	}

	removeInfo, err := os.Lstat(c.Path)
	if os.IsNotExist(err) {
		return report.Outcome{Kind: report.Skipped, Candidate: c.Path, Reason: report.ReasonVanished}
	}
	if err != nil {
		return v.skip(c.Path, err)
	}

	kind := types.KindRegular
	if keepInfo.IsDir() {
		kind = types.KindBundle
	}

	// The size short-circuit only applies to regular files: Lstat's size
	// for a bundle directory is the directory entry's own size, not its
	// content size, so two identical bundles can disagree here even when
	// every file inside matches. Bundles always fall through to a full
	// digest comparison.
	if kind == types.KindRegular && keepInfo.Size() != removeInfo.Size() {
		return report.Outcome{
			Kind:   report.ContentDiverged,
			Keep:   c.PresumedOriginal,
			Remove: c.Path,
		}
	}

	keepEntry := types.Entry{Path: c.PresumedOriginal, Kind: kind, Size: keepInfo.Size(), ModTime: keepInfo.ModTime()}
	removeEntry := types.Entry{Path: c.Path, Kind: kind, Size: removeInfo.Size(), ModTime: removeInfo.ModTime()}

	keepDigest, err := v.digestOf(keepEntry)
	if err != nil {
		return v.skip(c.PresumedOriginal, err)
	}
	removeDigest, err := v.digestOf(removeEntry)
	if err != nil {
		return v.skip(c.Path, err)
	}

	if keepDigest.Equal(removeDigest) {
		return report.Outcome{
			Kind:   report.ConfirmedDuplicate,
			Keep:   c.PresumedOriginal,
			Remove: c.Path,
			Digest: keepDigest,
			Size:   removeInfo.Size(),
		}
	}

	return report.Outcome{
		Kind:         report.ContentDiverged,
		Keep:         c.PresumedOriginal,
		Remove:       c.Path,
		KeepDigest:   keepDigest,
		RemoveDigest: removeDigest,
	}
}

// digestOf consults the cache before falling back to a live digest
// computation, storing the result back on a miss.
func (v *Verifier) digestOf(e types.Entry) (types.ContentDigest, error) {
	if v.cache != nil {
		if d, ok := v.cache.Lookup(e); ok {
			return d, nil
		}
	}

	d, err := digest.ForPath(e.Path, e.Kind)
	if err != nil {
		return types.ContentDigest{}, err
	}

	if v.cache != nil {
		_ = v.cache.Store(e, d)
	}
	return d, nil
}

// skip classifies a failure into Skipped with the appropriate reason and
// forwards it to the error channel, if configured.
func (v *Verifier) skip(path string, err error) report.Outcome {
	v.sendError(fmt.Errorf("%s: %w", path, err))

	reason := report.ReasonReadError
	if errors.Is(err, os.ErrPermission) {
		reason = report.ReasonPermission
	}
	return report.Outcome{Kind: report.Skipped, Candidate: path, Reason: reason}
}

func (v *Verifier) sendError(err error) {
	if v.opts.ErrCh != nil {
		v.opts.ErrCh <- err
	}
}

func (v *Verifier) publish(ev events.Event) {
	if v.opts.Bus != nil {
		v.opts.Bus.Publish(ev)
	}
}
