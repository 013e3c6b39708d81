package profile

import (
	"sync"
	"time"

	"github.com/continuum-sec/continuum/internal/behavior"
	"github.com/continuum-sec/continuum/internal/syncutil"
)

// Store holds every enrolled profile for the process lifetime. Profiles are
// created exactly once per user id and never deleted; per-user mutation is
// serialized through a sharded mutex so concurrent requests for the same user
// never observe a half-applied update. Durable storage, if any, lives behind
// the surrounding service, not here.
type Store struct {
	mu       syncutil.ShardedMutex // per-user critical sections
	profiles sync.Map              // userID → *Profile
}

func (s *Store) load(userID string) (*Profile, bool) {
	v, ok := s.profiles.Load(userID)
	if !ok {
		return nil, false
	}
	return v.(*Profile), true
}

// NewStore creates an empty profile store.
func NewStore() *Store {
	return &Store{}
}

// GetOrEnroll returns a snapshot of the user's profile, atomically creating
// it from the enrollment batch when the user is unseen. Only the first
// concurrent enrollment for a given id succeeds; later callers observe the
// created profile. The batch must contain at least MinEnrollmentSamples
// vectors; otherwise nothing is created and ErrInsufficientSamples returns.
func (s *Store) GetOrEnroll(userID string, age int, batch []behavior.Vector, historySeed []behavior.Vector) (*Snapshot, bool, error) {
	unlock := s.mu.Lock(userID)
	defer unlock()

	if p, ok := s.load(userID); ok {
		return p.snapshot(), false, nil
	}

	if len(batch) < MinEnrollmentSamples {
		return nil, false, ErrInsufficientSamples
	}

	mean, stddev := behavior.BatchStats(batch)
	for i := range stddev {
		if stddev[i] < DeviationFloor {
			stddev[i] = DeviationFloor
		}
	}

	now := time.Now()
	p := &Profile{
		UserID:    userID,
		Reference: mean,
		Deviation: stddev,
		Age:       age,
		Enrolled:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, v := range historySeed {
		p.appendHistory(v)
	}

	s.profiles.Store(userID, p)
	return p.snapshot(), true, nil
}

// Get returns a snapshot of an existing profile.
func (s *Store) Get(userID string) (*Snapshot, error) {
	unlock := s.mu.Lock(userID)
	defer unlock()

	p, ok := s.load(userID)
	if !ok {
		return nil, ErrNotFound
	}
	return p.snapshot(), nil
}

// Exists reports whether a profile has been created for the user.
func (s *Store) Exists(userID string) bool {
	_, ok := s.profiles.Load(userID)
	return ok
}

// Count returns the number of enrolled profiles.
func (s *Store) Count() int {
	n := 0
	s.profiles.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Update feeds a scored sample into the baseline EMA. The update is a no-op
// when the sample's anomaly score is unavailable, at or above the moderate
// ceiling, or fewer than the minimum feature count is present — anomalous or
// sparse samples must not poison the reference profile. A scored sample
// always resets the idle streak, whether or not the EMA applies.
func (s *Store) Update(userID string, sample behavior.Vector, score *float64) error {
	unlock := s.mu.Lock(userID)
	defer unlock()

	p, ok := s.load(userID)
	if !ok {
		return ErrNotFound
	}
	if !p.Enrolled {
		return ErrNotEnrolled
	}

	p.IdleStreak = 0

	if score == nil || *score >= updateScoreCeiling || sample.NonzeroCount() < minUpdateFeatures {
		return nil
	}

	for i := range p.Reference {
		p.Reference[i] = alphaMean*sample[i] + (1-alphaMean)*p.Reference[i]
	}
	for i := range p.Deviation {
		spread := sample[i] - p.Reference[i]
		if spread < 0 {
			spread = -spread
		}
		p.Deviation[i] = alphaSpread*spread + (1-alphaSpread)*p.Deviation[i]
		if p.Deviation[i] < DeviationFloor {
			p.Deviation[i] = DeviationFloor
		}
	}
	p.UpdatedAt = time.Now()
	return nil
}

// MarkIdle increments the idle streak after a low-activity evaluation.
func (s *Store) MarkIdle(userID string) error {
	unlock := s.mu.Lock(userID)
	defer unlock()

	p, ok := s.load(userID)
	if !ok {
		return ErrNotFound
	}
	p.IdleStreak++
	return nil
}

// ResetIdle clears the idle streak after a scored sample that did not go
// through Update (escalated samples are scored but never fed to the EMA).
func (s *Store) ResetIdle(userID string) error {
	unlock := s.mu.Lock(userID)
	defer unlock()

	p, ok := s.load(userID)
	if !ok {
		return ErrNotFound
	}
	p.IdleStreak = 0
	return nil
}

// AppendHistory pushes a sample onto the rolling history, evicting the
// oldest entry once capacity is reached.
func (s *Store) AppendHistory(userID string, sample behavior.Vector) error {
	unlock := s.mu.Lock(userID)
	defer unlock()

	p, ok := s.load(userID)
	if !ok {
		return ErrNotFound
	}
	p.appendHistory(sample)
	return nil
}

func (p *Profile) appendHistory(sample behavior.Vector) {
	p.History = append(p.History, sample.Clone())
	if len(p.History) > HistoryCapacity {
		p.History = p.History[1:]
	}
}
