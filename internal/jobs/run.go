package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"transbooks/internal/chunking"
	"transbooks/internal/extract"
	"transbooks/internal/models"
	"transbooks/internal/protect"
	"transbooks/internal/translate"
)

// run executes the translation pipeline for a confirmed job. It is the only
// place that decides terminal states, touches billing and releases scratch
// storage; lower layers never do any of that themselves.
func (m *Manager) run(ctx context.Context, run *jobRun) {
	job := run.job

	outputPath, err := m.pipeline(ctx, run)

	// Billing commits only after extraction, translation and assembly all
	// succeeded. Failure or cancellation at any stage leaves the balance
	// untouched; there is no debit-then-refund path.
	if err == nil {
		if _, derr := m.ledger.Debit(context.Background(), job.RequesterID, job.Cost, job.Filename); derr != nil {
			log.Errorf("Job %s: debit failed after successful pipeline: %v", job.ID, derr)
			err = fmt.Errorf("billing failed: %w", derr)
			m.removeOutput(outputPath)
			outputPath = ""
		}
	}

	m.mu.Lock()
	switch {
	case err == nil:
		job.Status = models.JobStatusCompleted
		run.outputPath = outputPath
		log.Infof("Job %s completed: %s (%d stars spent)", job.ID, outputPath, job.Cost)
	case errors.Is(err, context.Canceled):
		job.Status = models.JobStatusCancelled
		log.Infof("Job %s cancelled by requester %d", job.ID, job.RequesterID)
	default:
		job.Status = models.JobStatusFailed
		run.failure = err.Error()
		log.Errorf("Job %s failed: %v", job.ID, err)
	}
	m.publishLocked(run)
	delete(m.active, job.RequesterID)
	m.mu.Unlock()

	// Scratch is removed on every exit path, after all job-scoped work has
	// completed or been abandoned.
	m.removeWorkDir(job.WorkDir)
}

// pipeline runs extract -> protect -> split -> translate -> restore ->
// assemble and returns the delivered output path.
func (m *Manager) pipeline(ctx context.Context, run *jobRun) (string, error) {
	job := run.job

	extractor, err := extract.ForFile(job.SourcePath)
	if err != nil {
		return "", err
	}
	meta, err := extractor.Metadata(job.SourcePath)
	if err != nil {
		return "", err
	}
	text, err := extractor.ExtractMarkdown(job.SourcePath)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s", models.ErrNoText, job.Filename)
	}

	title := translate.TranslateOne(ctx, m.translator, meta.Title)

	protected, table := protect.Protect(text)
	log.Infof("Job %s: protected %d images from translation", job.ID, len(table))

	chunks := chunking.Split(protected, m.chunkSize)

	m.mu.Lock()
	run.total = len(chunks)
	m.mu.Unlock()

	results, err := translate.TranslateAll(ctx, m.translator, chunks, m.concurrency, func(done, total int) {
		m.mu.Lock()
		run.done, run.total = done, total
		m.publishLocked(run)
		m.mu.Unlock()
	})
	if err != nil {
		return "", err
	}

	body := protect.Restore(translate.Join(results), table)

	// Assemble in scratch, then move the artifact out before scratch is
	// reclaimed.
	assembled, err := extract.Assemble(job.WorkDir, job.Filename, title, body)
	if err != nil {
		return "", err
	}
	outputPath := filepath.Join(m.outDir, job.ID+"_"+filepath.Base(assembled))
	if err := os.Rename(assembled, outputPath); err != nil {
		return "", fmt.Errorf("deliver output: %w", err)
	}
	return outputPath, nil
}

func (m *Manager) removeOutput(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil {
		log.Warnf("Cleanup failed for %s: %v", path, err)
	}
}
