package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transbooks/internal/config"
	"transbooks/internal/ledger"
	"transbooks/internal/models"
)

const requester = int64(100)

// funcTranslator adapts a function to the translate.Translator interface.
type funcTranslator func(ctx context.Context, text string) (string, error)

func (f funcTranslator) Translate(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// echoTranslator marks chunks as translated while preserving placeholders.
var echoTranslator = funcTranslator(func(ctx context.Context, text string) (string, error) {
	return "RU " + text, nil
})

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Storage.DataDir = t.TempDir()
	cfg.Translate.ChunkSize = 64
	cfg.Translate.Concurrency = 4
	cfg.Intake.MaxFileSizeMB = 1
	cfg.Intake.AllowedExtensions = []string{".md", ".txt"}
	cfg.Billing.StarsPer50Pages = 20
	return cfg
}

func newTestManager(t *testing.T, tr funcTranslator) (*Manager, *ledger.Store) {
	t.Helper()
	led, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { led.Close() })

	m, err := NewManager(testConfig(t), led, tr)
	require.NoError(t, err)
	return m, led
}

func fund(t *testing.T, led *ledger.Store, amount int64) {
	t.Helper()
	_, err := led.GetOrCreate(context.Background(), requester, "tester")
	require.NoError(t, err)
	if amount > 0 {
		_, err = led.Credit(context.Background(), requester, amount, models.TxTypeBuy, "test funding")
		require.NoError(t, err)
	}
}

// docOfPages builds a markdown document estimated at exactly n pages.
func docOfPages(n int) []byte {
	var b strings.Builder
	b.WriteString("# Book\n")
	line := strings.Repeat("word ", 10) // 50 chars + newline
	for b.Len() < n*1800-100 {
		b.WriteString(line + "\n")
	}
	return []byte(b.String())
}

func waitTerminal(t *testing.T, m *Manager, jobID string) models.ProgressEvent {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		ev, ok := m.Status(jobID)
		require.True(t, ok, "job %s disappeared", jobID)
		if ev.Status.Terminal() {
			return *ev
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", jobID)
	return models.ProgressEvent{}
}

func TestSubmitRejectsBadTypeAndSize(t *testing.T) {
	m, led := newTestManager(t, echoTranslator)
	fund(t, led, 1000)

	_, err := m.Submit(context.Background(), requester, []byte("x"), "book.pdf")
	assert.ErrorIs(t, err, models.ErrValidation)

	huge := make([]byte, 2<<20)
	_, err = m.Submit(context.Background(), requester, huge, "book.md")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = m.Submit(context.Background(), requester, []byte("  \n "), "empty.md")
	assert.ErrorIs(t, err, models.ErrNoText)
}

func TestSubmitInsufficientBalance(t *testing.T) {
	m, led := newTestManager(t, echoTranslator)
	fund(t, led, 40)

	// 120 pages at 20/50 = 48 stars; balance 40 leaves a deficit of 8.
	_, err := m.Submit(context.Background(), requester, docOfPages(120), "big.md")
	var ib *models.InsufficientBalanceError
	require.ErrorAs(t, err, &ib)
	assert.Equal(t, int64(48), ib.Cost)
	assert.Equal(t, int64(8), ib.Deficit())
}

func TestSubmitAcceptedWithSufficientBalance(t *testing.T) {
	m, led := newTestManager(t, echoTranslator)
	fund(t, led, 50)

	job, err := m.Submit(context.Background(), requester, docOfPages(120), "big.md")
	require.NoError(t, err)
	assert.Equal(t, int64(48), job.Cost)
	assert.Equal(t, 120, job.PageCount)
	assert.Equal(t, models.JobStatusPendingConfirmation, job.Status)

	_, statErr := os.Stat(job.SourcePath)
	assert.NoError(t, statErr, "scratch must exist while pending")
}

func TestSubmitSupersedesEarlierPendingJob(t *testing.T) {
	m, led := newTestManager(t, echoTranslator)
	fund(t, led, 1000)

	first, err := m.Submit(context.Background(), requester, docOfPages(2), "a.md")
	require.NoError(t, err)
	second, err := m.Submit(context.Background(), requester, docOfPages(2), "b.md")
	require.NoError(t, err)

	_, ok := m.Status(first.ID)
	assert.False(t, ok, "superseded pending job must be gone")
	_, err = os.Stat(first.WorkDir)
	assert.True(t, os.IsNotExist(err), "superseded scratch must be removed")

	_, ok = m.Status(second.ID)
	assert.True(t, ok)
}

func TestConfirmUnknownOrForeignJob(t *testing.T) {
	m, led := newTestManager(t, echoTranslator)
	fund(t, led, 1000)

	err := m.Confirm(requester, "no-such-job")
	assert.ErrorIs(t, err, models.ErrNotFound)

	job, err := m.Submit(context.Background(), requester, docOfPages(2), "a.md")
	require.NoError(t, err)

	// Someone else cannot confirm another requester's job.
	err = m.Confirm(requester+1, job.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestHappyPathBillsOnceAndCleansUp(t *testing.T) {
	m, led := newTestManager(t, echoTranslator)
	fund(t, led, 100)

	src := "# The Title\n\nSome prose here.\n\n![cover](img/cover.png)\n\nMore prose follows.\n"
	job, err := m.Submit(context.Background(), requester, []byte(src), "story.md")
	require.NoError(t, err)
	require.NoError(t, m.Confirm(requester, job.ID))

	ev := waitTerminal(t, m, job.ID)
	require.Equal(t, models.JobStatusCompleted, ev.Status)
	assert.Equal(t, ev.Total, ev.Done)
	assert.NotEmpty(t, ev.OutputPath)

	out, err := os.ReadFile(ev.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(out), "![cover](img/cover.png)")
	assert.Contains(t, string(out), "RU ")
	assert.NotContains(t, string(out), "<<IMG_0>>")

	bal, err := led.Balance(context.Background(), requester)
	require.NoError(t, err)
	assert.Equal(t, int64(100)-job.Cost, bal, "exactly one debit on success")

	_, err = os.Stat(job.WorkDir)
	assert.True(t, os.IsNotExist(err), "scratch removed after completion")

	// The consumed job cannot be confirmed again.
	err = m.Confirm(requester, job.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestImagesSurviveMultiChunkTranslation(t *testing.T) {
	m, led := newTestManager(t, echoTranslator)
	fund(t, led, 1000)

	var b strings.Builder
	b.WriteString("# Illustrated\n")
	refs := []string{"![one](i/1.png)", "![two](i/2.png)", "![three](i/3.png)"}
	for i, ref := range refs {
		b.WriteString(strings.Repeat(fmt.Sprintf("paragraph %d text\n", i), 10))
		b.WriteString(ref + "\n")
	}
	job, err := m.Submit(context.Background(), requester, []byte(b.String()), "pics.md")
	require.NoError(t, err)
	require.NoError(t, m.Confirm(requester, job.ID))

	ev := waitTerminal(t, m, job.ID)
	require.Equal(t, models.JobStatusCompleted, ev.Status)
	assert.Greater(t, ev.Total, 1, "document must have split into several chunks")

	out, err := os.ReadFile(ev.OutputPath)
	require.NoError(t, err)
	text := string(out)
	last := -1
	for _, ref := range refs {
		idx := strings.Index(text, ref)
		require.GreaterOrEqual(t, idx, 0, "missing %s", ref)
		assert.Greater(t, idx, last, "%s out of order", ref)
		last = idx
	}
}

func TestExclusivityWhileRunning(t *testing.T) {
	release := make(chan struct{})
	slow := funcTranslator(func(ctx context.Context, text string) (string, error) {
		<-release
		return text, nil
	})
	m, led := newTestManager(t, slow)
	fund(t, led, 1000)

	first, err := m.Submit(context.Background(), requester, docOfPages(1), "a.md")
	require.NoError(t, err)
	require.NoError(t, m.Confirm(requester, first.ID))

	second, err := m.Submit(context.Background(), requester, docOfPages(1), "b.md")
	require.NoError(t, err)
	err = m.Confirm(requester, second.ID)
	assert.ErrorIs(t, err, models.ErrJobActive)

	// The rejected confirm did not consume the pending entry.
	_, ok := m.Status(second.ID)
	assert.True(t, ok)

	close(release)
	waitTerminal(t, m, first.ID)
}

func TestFailureLeavesBalanceUntouched(t *testing.T) {
	boom := errors.New("backend down")
	failing := funcTranslator(func(ctx context.Context, text string) (string, error) {
		return "", boom
	})
	m, led := newTestManager(t, failing)
	fund(t, led, 500)

	job, err := m.Submit(context.Background(), requester, docOfPages(3), "c.md")
	require.NoError(t, err)
	before, _ := led.Balance(context.Background(), requester)

	require.NoError(t, m.Confirm(requester, job.ID))
	ev := waitTerminal(t, m, job.ID)
	assert.Equal(t, models.JobStatusFailed, ev.Status)
	assert.Contains(t, ev.Error, "backend down")

	after, _ := led.Balance(context.Background(), requester)
	assert.Equal(t, before, after, "failed job must not be billed")

	_, err = os.Stat(job.WorkDir)
	assert.True(t, os.IsNotExist(err), "scratch removed after failure")
}

func TestCancellationAfterTwoChunks(t *testing.T) {
	slow := funcTranslator(func(ctx context.Context, text string) (string, error) {
		time.Sleep(2 * time.Millisecond)
		return "RU " + text, nil
	})
	m, led := newTestManager(t, slow)
	m.concurrency = 1 // serial gate gives a deterministic checkpoint
	fund(t, led, 500)

	// Enough lines to split into at least five chunks at chunkSize 64.
	var b strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "line %02d %s\n", i, strings.Repeat("x", 40))
	}
	job, err := m.Submit(context.Background(), requester, []byte(b.String()), "d.md")
	require.NoError(t, err)
	before, _ := led.Balance(context.Background(), requester)

	require.NoError(t, m.Confirm(requester, job.ID))
	events, ok := m.Watch(job.ID)
	require.True(t, ok)

	for ev := range events {
		if !ev.Status.Terminal() && ev.Done == 2 {
			assert.True(t, m.Cancel(requester))
		}
	}

	ev := waitTerminal(t, m, job.ID)
	assert.Equal(t, models.JobStatusCancelled, ev.Status)

	after, _ := led.Balance(context.Background(), requester)
	assert.Equal(t, before, after, "cancelled job must not be billed")
	_, err = os.Stat(job.WorkDir)
	assert.True(t, os.IsNotExist(err), "scratch removed after cancellation")
}

func TestCancelWithNothingRunning(t *testing.T) {
	m, _ := newTestManager(t, echoTranslator)
	assert.False(t, m.Cancel(requester))
}

func TestCancelPendingReleasesScratch(t *testing.T) {
	m, led := newTestManager(t, echoTranslator)
	fund(t, led, 1000)

	job, err := m.Submit(context.Background(), requester, docOfPages(2), "e.md")
	require.NoError(t, err)

	assert.Equal(t, 1, m.CancelPending(requester))
	_, err = os.Stat(job.WorkDir)
	assert.True(t, os.IsNotExist(err))

	err = m.Confirm(requester, job.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestWatchTerminalJobYieldsOneEvent(t *testing.T) {
	m, led := newTestManager(t, echoTranslator)
	fund(t, led, 100)

	job, err := m.Submit(context.Background(), requester, docOfPages(1), "f.md")
	require.NoError(t, err)
	require.NoError(t, m.Confirm(requester, job.ID))
	waitTerminal(t, m, job.ID)

	events, ok := m.Watch(job.ID)
	require.True(t, ok)
	var got []models.ProgressEvent
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 1)
	assert.Equal(t, models.JobStatusCompleted, got[0].Status)
}
