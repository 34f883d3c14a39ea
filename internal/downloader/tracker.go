package downloader

import (
	"net/url"
	"strings"
	"sync"
	"time"
)

// armedTTL bounds how long an armed expectation stays claimable
const armedTTL = 5 * time.Second

// Tracker correlates downloads started through fallback paths with the
// history record that armed them. Entries are keyed by normalized URL and
// expire after a short window, so a stray later download of the same URL
// is not misattributed.
type Tracker struct {
	mu    sync.Mutex
	armed map[string]armedEntry
	now   func() time.Time
}

type armedEntry struct {
	recordID string
	deadline time.Time
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{
		armed: make(map[string]armedEntry),
		now:   time.Now,
	}
}

// Arm registers an expectation that url is about to be downloaded on
// behalf of recordID. A second Arm for the same URL replaces the first.
func (t *Tracker) Arm(rawURL, recordID string) {
	key := normalizeURL(rawURL)
	if key == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune()
	t.armed[key] = armedEntry{
		recordID: recordID,
		deadline: t.now().Add(armedTTL),
	}
}

// Claim returns the record id armed for url and clears the entry. It
// returns "" when nothing was armed or the entry expired.
func (t *Tracker) Claim(rawURL string) string {
	key := normalizeURL(rawURL)
	if key == "" {
		return ""
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune()

	entry, ok := t.armed[key]
	if !ok {
		return ""
	}
	delete(t.armed, key)
	return entry.recordID
}

// Disarm clears any armed entry for url
func (t *Tracker) Disarm(rawURL string) {
	key := normalizeURL(rawURL)
	if key == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.armed, key)
}

// prune drops expired entries; callers hold the lock
func (t *Tracker) prune() {
	now := t.now()
	for key, entry := range t.armed {
		if now.After(entry.deadline) {
			delete(t.armed, key)
		}
	}
}

// normalizeURL strips the fragment and lowercases scheme and host so the
// same media URL claims consistently regardless of who formatted it
func normalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}
