package state

import (
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Asura0666/Ruia-Cosmic-Hackathon-ZenithX/internal/metrics"
)

// urlFields are the changes that can alter the serialized query.
const urlFields = ChangeCamera | ChangeTimeline | ChangeFrame | ChangeColorMode | ChangeSelection | ChangeQuery

// URLSync keeps a query string in step with a Store. The query is read once
// by Load; after that every relevant mutation schedules one debounced write
// of the coalesced state.
//
// Playback advances (ChangeClock) do not schedule writes. The current instant
// is written with the next user-driven change.
type URLSync struct {
	store    *Store
	write    func(query string)
	debounce *Debouncer
	logger   *slog.Logger

	once  sync.Once
	unsub func()

	mu   sync.Mutex
	last string
}

// NewURLSync creates a URLSync writing through write. write may be nil when
// only Query is used.
func NewURLSync(store *Store, delay time.Duration, write func(query string), logger *slog.Logger) *URLSync {
	u := &URLSync{store: store, write: write, logger: logger}
	u.debounce = NewDebouncer(delay, u.flush)
	return u
}

// Load parses query into the store and starts watching for changes. Only the
// first call has an effect; it reports whether this call loaded. Loading does
// not schedule a write.
func (u *URLSync) Load(query string) bool {
	loaded := false
	u.once.Do(func() {
		loaded = true
		values, err := url.ParseQuery(strings.TrimPrefix(query, "?"))
		if err != nil {
			u.logger.Warn("ignoring malformed view query", "error", err)
			values = url.Values{}
		}
		st := u.store.Replace(DecodeQuery(values, u.store.Defaults()))

		u.mu.Lock()
		u.last = EncodeQuery(st, u.store.Defaults())
		u.mu.Unlock()

		u.unsub = u.store.Subscribe(func(_ State, c Change) {
			if c&urlFields != 0 {
				u.debounce.Trigger()
			}
		})
	})
	return loaded
}

// flush serializes the store's current state. The state is read when the
// timer fires, so only the final coalesced state is written.
func (u *URLSync) flush() {
	q := EncodeQuery(u.store.Snapshot(), u.store.Defaults())

	u.mu.Lock()
	if q == u.last {
		u.mu.Unlock()
		return
	}
	u.last = q
	u.mu.Unlock()

	metrics.URLWrites.Inc()
	u.logger.Debug("view query written", "query", q)
	if u.write != nil {
		u.write(q)
	}
}

// Query returns the most recently written query string.
func (u *URLSync) Query() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.last
}

// Flush writes a pending change immediately.
func (u *URLSync) Flush() {
	u.debounce.Flush()
}

// Close stops watching the store and drops any pending write.
func (u *URLSync) Close() {
	u.debounce.Stop()
	if u.unsub != nil {
		u.unsub()
	}
}
