package translate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// funcTranslator adapts a function to the Translator interface for tests.
type funcTranslator func(ctx context.Context, text string) (string, error)

func (f funcTranslator) Translate(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

func chunkTexts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("chunk-%d", i)
	}
	return out
}

func chunkIndex(t *testing.T, text string) int {
	t.Helper()
	idx, err := strconv.Atoi(strings.TrimPrefix(text, "chunk-"))
	require.NoError(t, err)
	return idx
}

func TestTranslateAllPreservesInputOrder(t *testing.T) {
	// Completion order is forced to be the exact reverse of input order:
	// chunk i blocks until chunk i+1 has finished.
	const n = 6
	finished := make([]chan struct{}, n)
	for i := range finished {
		finished[i] = make(chan struct{})
	}

	tr := funcTranslator(func(ctx context.Context, text string) (string, error) {
		idx := chunkIndex(t, text)
		if idx < n-1 {
			<-finished[idx+1]
		}
		defer close(finished[idx])
		return "ru:" + text, nil
	})

	out, err := TranslateAll(context.Background(), tr, chunkTexts(n), n, nil)
	require.NoError(t, err)
	require.Len(t, out, n)
	for i, got := range out {
		assert.Equal(t, fmt.Sprintf("ru:chunk-%d", i), got)
	}
}

func TestTranslateAllProgressMonotonicAndComplete(t *testing.T) {
	const n = 20
	tr := funcTranslator(func(ctx context.Context, text string) (string, error) {
		time.Sleep(time.Millisecond)
		return text, nil
	})

	var mu sync.Mutex
	var ticks []int
	_, err := TranslateAll(context.Background(), tr, chunkTexts(n), 4, func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, n, total)
		ticks = append(ticks, done)
	})
	require.NoError(t, err)

	require.Len(t, ticks, n)
	for i, d := range ticks {
		assert.Equal(t, i+1, d, "progress must increase by exactly one per completion")
	}
	assert.Equal(t, n, ticks[len(ticks)-1])
}

func TestTranslateAllRespectsConcurrencyLimit(t *testing.T) {
	const n, limit = 16, 3
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0

	tr := funcTranslator(func(ctx context.Context, text string) (string, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(2 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return text, nil
	})

	_, err := TranslateAll(context.Background(), tr, chunkTexts(n), limit, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, maxInFlight, limit)
}

func TestTranslateAllFailsAsAWhole(t *testing.T) {
	boom := errors.New("backend exploded")
	tr := funcTranslator(func(ctx context.Context, text string) (string, error) {
		if chunkIndex(t, text) == 3 {
			return "", boom
		}
		return text, nil
	})

	out, err := TranslateAll(context.Background(), tr, chunkTexts(8), 2, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, out, "no partial results on failure")
}

func TestTranslateAllCooperativeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := funcTranslator(func(ctx context.Context, text string) (string, error) {
		time.Sleep(time.Millisecond)
		return text, nil
	})

	var mu sync.Mutex
	lastDone := 0
	out, err := TranslateAll(ctx, tr, chunkTexts(5), 1, func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		lastDone = done
		if done == 2 {
			cancel()
		}
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
	// With a serial gate, the checkpoint fires before chunk 3 is dispatched.
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, lastDone)
}

func TestTranslateAllEmptyInput(t *testing.T) {
	tr := funcTranslator(func(ctx context.Context, text string) (string, error) {
		t.Fatal("translator must not be called for empty input")
		return "", nil
	})
	out, err := TranslateAll(context.Background(), tr, nil, 4, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTranslateOneFallsBackOnError(t *testing.T) {
	failing := funcTranslator(func(ctx context.Context, text string) (string, error) {
		return "", errors.New("nope")
	})
	assert.Equal(t, "Original Title", TranslateOne(context.Background(), failing, "Original Title"))

	ok := funcTranslator(func(ctx context.Context, text string) (string, error) {
		return `"Перевод"`, nil
	})
	assert.Equal(t, "Перевод", TranslateOne(context.Background(), ok, "Translation"))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a\n\nb", Join([]string{"a", "b"}))
	assert.Equal(t, "", Join(nil))
}
