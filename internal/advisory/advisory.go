package advisory

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/Masterminds/semver/v3"
)

// Advisory is one security advisory against a package, reduced to the
// version spans it affects.
type Advisory struct {
	ID      string
	Package string
	Spans   []Span
	// Versions holds explicitly enumerated affected versions, used
	// when an advisory lists versions instead of ranges.
	Versions []string
}

// Span is a half-open affected interval [Introduced, Fixed). A nil
// Introduced means "from the beginning"; a nil Fixed with a nil
// LastAffected means "onward". LastAffected closes the interval
// inclusively when no fix exists.
type Span struct {
	Introduced   *semver.Version
	Fixed        *semver.Version
	LastAffected *semver.Version
}

// Contains reports whether v falls inside the span.
func (s Span) Contains(v *semver.Version) bool {
	if s.Introduced != nil && v.LessThan(s.Introduced) {
		return false
	}
	if s.Fixed != nil {
		return v.LessThan(s.Fixed)
	}
	if s.LastAffected != nil {
		return !v.GreaterThan(s.LastAffected)
	}
	return true
}

// Matches reports whether the advisory affects the given version.
func (a *Advisory) Matches(v *semver.Version) bool {
	for _, s := range a.Spans {
		if s.Contains(v) {
			return true
		}
	}
	for _, raw := range a.Versions {
		if ev, err := semver.NewVersion(raw); err == nil && ev.Equal(v) {
			return true
		}
	}
	return false
}

// DB is an immutable snapshot of the advisory database. Readers obtain
// a snapshot from a Holder and never observe it half-built.
type DB struct {
	byPackage map[string][]*Advisory
	count     int
}

// NewDB builds a snapshot from a list of advisories.
func NewDB(advisories []*Advisory) *DB {
	byPackage := make(map[string][]*Advisory)
	for _, a := range advisories {
		byPackage[a.Package] = append(byPackage[a.Package], a)
	}
	return &DB{byPackage: byPackage, count: len(advisories)}
}

// Vulnerable reports whether at least one advisory matches the package
// version.
func (db *DB) Vulnerable(name string, v *semver.Version) bool {
	for _, a := range db.byPackage[name] {
		if a.Matches(v) {
			return true
		}
	}
	return false
}

// Count returns the number of advisories in the snapshot.
func (db *DB) Count() int { return db.count }

// Fetcher retrieves the raw advisory export.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Load fetches and parses a fresh advisory snapshot. On failure the
// caller keeps its previous snapshot.
func Load(ctx context.Context, f Fetcher) (*DB, error) {
	raw, err := f.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch advisory export: %w", err)
	}
	db, err := ParseOSV(raw)
	if err != nil {
		return nil, fmt.Errorf("parse advisory export: %w", err)
	}
	return db, nil
}

// Holder publishes the live snapshot with pointer-swap semantics: a
// single writer replaces it while many readers query. A reader holds
// its reference only for the duration of one query.
type Holder struct {
	p atomic.Pointer[DB]
}

// NewHolder seeds a holder with an initial snapshot. A nil snapshot is
// replaced by an empty one so Get never returns nil.
func NewHolder(db *DB) *Holder {
	h := &Holder{}
	if db == nil {
		db = NewDB(nil)
	}
	h.p.Store(db)
	return h
}

// Get returns the current snapshot.
func (h *Holder) Get() *DB { return h.p.Load() }

// Swap atomically publishes a new snapshot.
func (h *Holder) Swap(db *DB) { h.p.Store(db) }
