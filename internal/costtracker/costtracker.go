package costtracker

import "sync"

// Usage is a point-in-time snapshot of accumulated OpenAI token spend.
type Usage struct {
	Calls            int64 `json:"calls"`
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// TotalTokens returns prompt plus completion tokens.
func (u Usage) TotalTokens() int64 {
	return u.PromptTokens + u.CompletionTokens
}

// Tracker accumulates token usage across translation calls. It is shared by
// every concurrent chunk translation, so all mutation happens under the lock.
type Tracker struct {
	mu    sync.Mutex
	usage Usage
}

func New() *Tracker {
	return &Tracker{}
}

// Record adds one completed API call's token counts.
func (t *Tracker) Record(promptTokens, completionTokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage.Calls++
	t.usage.PromptTokens += int64(promptTokens)
	t.usage.CompletionTokens += int64(completionTokens)
}

// Snapshot returns a copy of the current totals.
func (t *Tracker) Snapshot() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}
