// Package batch tracks the per-label state of a sticker batch: which labels
// are in flight, which failed and may be retried, and when the batch as a
// whole is done. It performs no network activity itself; callers drive one
// generation per label and report outcomes back.
package batch

import "sync"

// ItemStatus is the per-item state machine:
// idle -> generating -> success | failed, with failed -> generating allowed
// while the retry cap has not been reached.
type ItemStatus string

const (
	StatusIdle       ItemStatus = "idle"
	StatusGenerating ItemStatus = "generating"
	StatusSuccess    ItemStatus = "success"
	StatusFailed     ItemStatus = "failed"
)

func (s ItemStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// MaxRetries is the default automatic retry cap for labeled items: the first
// attempt plus MaxRetries retries (3 total attempts).
const MaxRetries = 2

// TextResult is the state of one labeled item. RetryCount counts retries, not
// attempts: it increases by exactly one per automatic retry.
type TextResult struct {
	Status       ItemStatus
	RetryCount   int
	ImageURL     string
	ErrorMessage string
}

// AuxResult is the state of a single-shot auxiliary item (main or tab image).
// Unlike TextResult, RetryCount counts attempts-so-far, and Start refuses once
// the cap is reached.
type AuxResult struct {
	Status       ItemStatus
	RetryCount   int
	ImageURL     string
	ErrorMessage string
}

// Start records one attempt. It returns false, without changing state, once
// the attempt cap has been reached.
func (a *AuxResult) Start(maxRetries int) bool {
	if a.RetryCount >= maxRetries {
		return false
	}
	a.RetryCount++
	a.Status = StatusGenerating
	a.ErrorMessage = ""
	return true
}

func (a *AuxResult) Succeed(imageURL string) {
	a.Status = StatusSuccess
	a.ImageURL = imageURL
	a.ErrorMessage = ""
}

func (a *AuxResult) Fail(message string) {
	a.Status = StatusFailed
	a.ErrorMessage = message
}

// Tracker is the aggregate state for one batch. Key order is preserved
// separately from the map so callers can render items in submission order.
type Tracker struct {
	mu         sync.Mutex
	maxRetries int
	keys       []string
	texts      map[string]*TextResult
	Main       AuxResult
	Tab        AuxResult
}

func NewTracker(maxRetries int) *Tracker {
	return &Tracker{
		maxRetries: maxRetries,
		texts:      make(map[string]*TextResult),
	}
}

// Start marks every requested key generating. State from an earlier batch is
// preserved for keys seen before: retry counts keep accumulating and a prior
// success image stays available. Keys not in this batch are dropped.
func (t *Tracker) Start(keys []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := make(map[string]*TextResult, len(keys))
	order := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, dup := next[key]; dup {
			continue
		}
		res := &TextResult{Status: StatusGenerating}
		if prev, ok := t.texts[key]; ok {
			res.RetryCount = prev.RetryCount
			res.ImageURL = prev.ImageURL
		}
		next[key] = res
		order = append(order, key)
	}
	t.texts = next
	t.keys = order
}

// MarkSuccess records a finished item. A success always clears the error.
func (t *Tracker) MarkSuccess(key, imageURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	res, ok := t.texts[key]
	if !ok {
		res = &TextResult{}
		t.texts[key] = res
		t.keys = append(t.keys, key)
	}
	res.Status = StatusSuccess
	res.ImageURL = imageURL
	res.ErrorMessage = ""
}

// MarkFailure records a failed item, preserving its retry count.
func (t *Tracker) MarkFailure(key, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	res, ok := t.texts[key]
	if !ok {
		res = &TextResult{}
		t.texts[key] = res
		t.keys = append(t.keys, key)
	}
	res.Status = StatusFailed
	res.ErrorMessage = message
}

// RetryFailed flips every failed item under the retry cap back to generating,
// bumping its retry count and clearing its error. It returns exactly the keys
// the caller must resubmit, in submission order.
func (t *Tracker) RetryFailed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var retry []string
	for _, key := range t.keys {
		res := t.texts[key]
		if res.Status != StatusFailed || res.RetryCount >= t.maxRetries {
			continue
		}
		res.RetryCount++
		res.Status = StatusGenerating
		res.ErrorMessage = ""
		retry = append(retry, key)
	}
	return retry
}

// Result returns a copy of the state for one key.
func (t *Tracker) Result(key string) (TextResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	res, ok := t.texts[key]
	if !ok {
		return TextResult{}, false
	}
	return *res, true
}

// Keys returns the requested keys in submission order.
func (t *Tracker) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Done reports whether every requested key is terminal. Partial failure is a
// valid terminal outcome, not an error.
func (t *Tracker) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, key := range t.keys {
		if !t.texts[key].Status.Terminal() {
			return false
		}
	}
	return true
}

// Progress is the share of requested keys in a terminal state, 0-100.
func (t *Tracker) Progress() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.keys) == 0 {
		return 0
	}
	terminal := 0
	for _, key := range t.keys {
		if t.texts[key].Status.Terminal() {
			terminal++
		}
	}
	return terminal * 100 / len(t.keys)
}

// SuccessCount counts items that finished successfully.
func (t *Tracker) SuccessCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, key := range t.keys {
		if t.texts[key].Status == StatusSuccess {
			n++
		}
	}
	return n
}

// StartAux begins an attempt for the main or tab image under the same cap.
func (t *Tracker) StartAux(aux *AuxResult) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return aux.Start(t.maxRetries)
}
