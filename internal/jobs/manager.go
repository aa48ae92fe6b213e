// Package jobs owns the per-requester translation job state machine:
// intake with cost estimation, confirmation gating, exclusivity, cooperative
// cancellation, billing commit-on-success and unconditional scratch cleanup.
//
// All cross-call state (pending jobs, active runs) lives behind one mutex on
// the Manager; nothing here is a free global map.
package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	log "github.com/sirupsen/logrus"

	"transbooks/internal/config"
	"transbooks/internal/extract"
	"transbooks/internal/ledger"
	"transbooks/internal/models"
	"transbooks/internal/translate"
	"transbooks/internal/util"
)

// Ledger is the slice of the account store the orchestrator needs.
type Ledger interface {
	GetOrCreate(ctx context.Context, requesterID int64, username string) (*models.User, error)
	Balance(ctx context.Context, requesterID int64) (int64, error)
	Debit(ctx context.Context, requesterID int64, amount int64, details string) (int64, error)
}

var _ Ledger = (*ledger.Store)(nil)

// Manager orchestrates translation jobs. Safe for concurrent use.
type Manager struct {
	ledger     Ledger
	translator translate.Translator

	tmpDir       string
	outDir       string
	chunkSize    int
	concurrency  int
	ratePer50    int64
	maxFileBytes int64
	allowedExts  map[string]bool

	mu      sync.Mutex
	pending map[string]*models.Job // job_id -> unconfirmed job
	active  map[int64]*jobRun      // requester -> running job
	runs    map[string]*jobRun     // job_id -> every confirmed run, kept after terminal
}

// jobRun is the mutable runtime state of one confirmed job. Guarded by the
// Manager mutex.
type jobRun struct {
	job        *models.Job
	cancel     context.CancelFunc
	done       int
	total      int
	outputPath string
	failure    string
	subs       []chan models.ProgressEvent
}

// NewManager wires the orchestrator and creates its scratch directories.
func NewManager(cfg *config.Config, led Ledger, tr translate.Translator) (*Manager, error) {
	tmpDir := filepath.Join(cfg.Storage.DataDir, "tmp")
	outDir := filepath.Join(cfg.Storage.DataDir, "out")
	for _, dir := range []string{tmpDir, outDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	allowed := make(map[string]bool, len(cfg.Intake.AllowedExtensions))
	for _, ext := range cfg.Intake.AllowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}

	return &Manager{
		ledger:       led,
		translator:   tr,
		tmpDir:       tmpDir,
		outDir:       outDir,
		chunkSize:    cfg.Translate.ChunkSize,
		concurrency:  cfg.Translate.Concurrency,
		ratePer50:    cfg.Billing.StarsPer50Pages,
		maxFileBytes: int64(cfg.Intake.MaxFileSizeMB) << 20,
		allowedExts:  allowed,
		pending:      make(map[string]*models.Job),
		active:       make(map[int64]*jobRun),
		runs:         make(map[string]*jobRun),
	}, nil
}

// Submit validates a source document, materializes scratch storage, estimates
// cost and records a pending job awaiting confirmation. On a validation or
// balance rejection no job is recorded and the scratch is released.
// A newly recorded pending job supersedes any earlier pending jobs of the
// same requester; their scratch is cleaned.
func (m *Manager) Submit(ctx context.Context, requesterID int64, source []byte, filename string) (*models.Job, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !m.allowedExts[ext] {
		return nil, fmt.Errorf("%w: unsupported file type %q", models.ErrValidation, ext)
	}
	if util.IsLikelyBinary(source) {
		return nil, fmt.Errorf("%w: %s looks like a binary file", models.ErrValidation, filename)
	}
	if int64(len(source)) > m.maxFileBytes {
		return nil, fmt.Errorf("%w: file too large (%.1f MB, max %d MB)",
			models.ErrValidation, float64(len(source))/(1<<20), m.maxFileBytes>>20)
	}

	jobID := uuid.NewString()
	workDir := filepath.Join(m.tmpDir, jobID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	sourcePath := filepath.Join(workDir, filepath.Base(filename))
	if err := os.WriteFile(sourcePath, source, 0o644); err != nil {
		m.removeWorkDir(workDir)
		return nil, fmt.Errorf("store source file: %w", err)
	}

	extractor, err := extract.ForFile(sourcePath)
	if err != nil {
		m.removeWorkDir(workDir)
		return nil, err
	}
	pages, err := extractor.CountPages(sourcePath)
	if err != nil {
		m.removeWorkDir(workDir)
		return nil, err
	}
	if pages == 0 {
		m.removeWorkDir(workDir)
		return nil, fmt.Errorf("%w: %s", models.ErrNoText, filename)
	}

	cost := Cost(pages, m.ratePer50)

	if _, err := m.ledger.GetOrCreate(ctx, requesterID, ""); err != nil {
		m.removeWorkDir(workDir)
		return nil, err
	}
	balance, err := m.ledger.Balance(ctx, requesterID)
	if err != nil {
		m.removeWorkDir(workDir)
		return nil, err
	}
	if balance < cost {
		m.removeWorkDir(workDir)
		return nil, &models.InsufficientBalanceError{Cost: cost, Balance: balance}
	}

	job := &models.Job{
		ID:          jobID,
		RequesterID: requesterID,
		Filename:    filepath.Base(filename),
		SourcePath:  sourcePath,
		WorkDir:     workDir,
		PageCount:   pages,
		Cost:        cost,
		Status:      models.JobStatusPendingConfirmation,
		CreatedAt:   time.Now(),
	}

	m.mu.Lock()
	m.abandonPendingLocked(requesterID)
	m.pending[jobID] = job
	m.mu.Unlock()

	log.Infof("Job %s submitted: requester=%d file=%s pages=%d cost=%d",
		jobID, requesterID, job.Filename, pages, cost)
	return job, nil
}

// Confirm promotes a pending job to running and starts the pipeline as a
// detached unit of work. Only the requester who created the job may confirm
// it, and the pending entry is consumed exactly once. A requester with a job
// already running is rejected without consuming the entry.
func (m *Manager) Confirm(requesterID int64, jobID string) error {
	m.mu.Lock()
	job, ok := m.pending[jobID]
	if !ok || job.RequesterID != requesterID {
		m.mu.Unlock()
		return fmt.Errorf("%w: job %s", models.ErrNotFound, jobID)
	}
	if _, busy := m.active[requesterID]; busy {
		m.mu.Unlock()
		return models.ErrJobActive
	}
	delete(m.pending, jobID)

	ctx, cancel := context.WithCancel(context.Background())
	job.Status = models.JobStatusRunning
	run := &jobRun{job: job, cancel: cancel}
	m.active[requesterID] = run
	m.runs[jobID] = run
	m.mu.Unlock()

	log.Infof("Job %s confirmed, starting pipeline", jobID)
	go m.run(ctx, run)
	return nil
}

// Cancel requests cooperative cancellation of the requester's running job.
// In-flight translation calls are left to finish; the pipeline unwinds at the
// next chunk-completion checkpoint. Returns false when nothing is running.
func (m *Manager) Cancel(requesterID int64) bool {
	m.mu.Lock()
	run, ok := m.active[requesterID]
	if ok && !run.job.Status.Terminal() {
		run.job.Status = models.JobStatusCancelling
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	log.Infof("Cancellation requested for job %s", run.job.ID)
	run.cancel()
	return true
}

// CancelPending abandons the requester's unconfirmed jobs, releasing their
// scratch storage. Returns the number of jobs abandoned.
func (m *Manager) CancelPending(requesterID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.abandonPendingLocked(requesterID)
}

func (m *Manager) abandonPendingLocked(requesterID int64) int {
	n := 0
	for id, job := range m.pending {
		if job.RequesterID == requesterID {
			delete(m.pending, id)
			m.removeWorkDir(job.WorkDir)
			n++
		}
	}
	return n
}

// Status returns a snapshot of a job in any state.
func (m *Manager) Status(jobID string) (*models.ProgressEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, ok := m.pending[jobID]; ok {
		return &models.ProgressEvent{JobID: jobID, Status: job.Status}, true
	}
	if run, ok := m.runs[jobID]; ok {
		ev := m.snapshotLocked(run)
		return &ev, true
	}
	return nil, false
}

// Job returns the job record in any state.
func (m *Manager) Job(jobID string) (*models.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.pending[jobID]; ok {
		return job, true
	}
	if run, ok := m.runs[jobID]; ok {
		return run.job, true
	}
	return nil, false
}

// Watch subscribes to a confirmed job's progress stream. The channel receives
// best-effort progress ticks and is closed after the terminal event. Watching
// an already-finished job yields just the terminal event.
func (m *Manager) Watch(jobID string) (<-chan models.ProgressEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[jobID]
	if !ok {
		return nil, false
	}
	ch := make(chan models.ProgressEvent, 64)
	if run.job.Status.Terminal() {
		ch <- m.snapshotLocked(run)
		close(ch)
		return ch, true
	}
	run.subs = append(run.subs, ch)
	return ch, true
}

func (m *Manager) snapshotLocked(run *jobRun) models.ProgressEvent {
	return models.ProgressEvent{
		JobID:      run.job.ID,
		Status:     run.job.Status,
		Done:       run.done,
		Total:      run.total,
		OutputPath: run.outputPath,
		Error:      run.failure,
	}
}

// publishLocked fans the current snapshot out to subscribers. Non-terminal
// ticks are best-effort: a slow subscriber loses ticks, never correctness.
// The terminal event displaces an old tick if the buffer is full, and the
// channel is closed so every watcher observes exactly one termination.
func (m *Manager) publishLocked(run *jobRun) {
	ev := m.snapshotLocked(run)
	terminal := run.job.Status.Terminal()
	for _, ch := range run.subs {
		if terminal {
			for {
				select {
				case ch <- ev:
				default:
					select {
					case <-ch:
					default:
					}
					continue
				}
				break
			}
			close(ch)
		} else {
			select {
			case ch <- ev:
			default:
			}
		}
	}
	if terminal {
		run.subs = nil
	}
}

// removeWorkDir releases job scratch storage. Failures are logged, never
// escalated.
func (m *Manager) removeWorkDir(dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		log.Warnf("Cleanup failed for %s: %v", dir, err)
	}
}
