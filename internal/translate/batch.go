package translate

import (
	"context"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// DefaultConcurrency is the default number of parallel translation calls.
const DefaultConcurrency = 10

// ProgressFunc receives one tick per completed chunk. done is monotonically
// increasing and reaches total exactly once on success; delivery order across
// chunks is not tied to chunk index order.
type ProgressFunc func(done, total int)

// TranslateAll translates every chunk with at most limit calls in flight and
// returns the results in input order regardless of completion order.
//
// Cancellation is cooperative: ctx is observed at chunk-completion
// boundaries, so a call already dispatched is allowed to finish and its
// result is discarded. On cancellation the error is ctx.Err()
// (context.Canceled); callers treat that as its own outcome, not a failure.
//
// If any single call fails, TranslateAll fails as a whole and no partial
// results are returned. Translation is document-atomic, not resumable.
func TranslateAll(ctx context.Context, tr Translator, chunks []string, limit int, onProgress ProgressFunc) ([]string, error) {
	total := len(chunks)
	if total == 0 {
		return nil, nil
	}
	if limit < 1 {
		limit = DefaultConcurrency
	}

	log.Infof("Translating %d chunks (max %d parallel)", total, limit)

	results := make([]string, total)
	sem := make(chan struct{}, limit)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex // guards done, firstErr and the progress callback
		done     int
		firstErr error
	)

	for i, chunk := range chunks {
		wg.Add(1)
		go func(idx int, text string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			// Skip dispatch once the batch is already doomed; in-flight
			// calls are left alone, queued ones are not started.
			mu.Lock()
			doomed := firstErr != nil || ctx.Err() != nil
			mu.Unlock()
			if doomed {
				return
			}

			log.Debugf("Translating chunk %d/%d (%d chars)", idx+1, total, len(text))
			out, err := tr.Translate(ctx, text)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}

			results[idx] = out
			done++
			if onProgress != nil {
				onProgress(done, total)
			}
			// Cancellation checkpoint: completed work is discarded, never
			// partially delivered.
			if firstErr == nil && ctx.Err() != nil {
				firstErr = ctx.Err()
			}
		}(i, chunk)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// Join reassembles translated chunks into one document. Chunk boundaries were
// cut at line breaks, so a blank-line separator restores paragraph spacing.
func Join(chunks []string) string {
	return strings.Join(chunks, "\n\n")
}
