// Package memory is an in-process implementation of every repository the
// API needs. It backs the test suites and STORE=memory local runs; one mutex
// guards all state so multi-step operations are atomic.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/foozao/lao-cinema-sub007/internal/catalog"
	"github.com/foozao/lao-cinema-sub007/internal/identity"
	"github.com/foozao/lao-cinema-sub007/internal/pricing"
	"github.com/foozao/lao-cinema-sub007/internal/progress"
	"github.com/foozao/lao-cinema-sub007/internal/rental"
)

// Store holds every table in maps.
type Store struct {
	mu sync.Mutex

	sessions map[string]identity.Session // by token hash
	users    map[string]identity.User

	movies  map[string]catalog.Movie
	packs   map[string]catalog.Pack
	sources map[string]catalog.VideoSource

	rentals []rental.Rental
	txIDs   map[string]struct{}

	tiers  map[string]pricing.Tier
	promos map[string]pricing.PromoCode // by normalized code

	progress map[progressKey]progress.Progress
}

type progressKey struct {
	owner   string
	movieID string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		sessions: map[string]identity.Session{},
		users:    map[string]identity.User{},
		movies:   map[string]catalog.Movie{},
		packs:    map[string]catalog.Pack{},
		sources:  map[string]catalog.VideoSource{},
		txIDs:    map[string]struct{}{},
		tiers:    map[string]pricing.Tier{},
		promos:   map[string]pricing.PromoCode{},
		progress: map[progressKey]progress.Progress{},
	}
}

// ── seeding ───────────────────────────────────────────────────────────────────

func (s *Store) PutUser(u identity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// PutSession stores a session for the raw token.
func (s *Store) PutSession(token, userID string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := identity.HashToken(token)
	s.sessions[h] = identity.Session{TokenHash: h, UserID: userID, ExpiresAt: expiresAt}
}

func (s *Store) PutMovie(m catalog.Movie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movies[m.ID] = m
}

func (s *Store) PutPack(p catalog.Pack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.MovieIDs = append([]string(nil), p.MovieIDs...)
	s.packs[p.ID] = p
}

func (s *Store) PutVideoSource(v catalog.VideoSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[v.ID] = v
}

func (s *Store) PutTier(t pricing.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[t.ID] = t
}

func (s *Store) PutPromo(p pricing.PromoCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Code = pricing.NormalizeCode(p.Code)
	s.promos[p.Code] = p
}

// PutRental inserts r without any checks. Tests use it to build states the
// service would refuse to create.
func (s *Store) PutRental(r rental.Rental) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rentals = append(s.rentals, r)
	s.txIDs[r.TransactionID] = struct{}{}
}

// ── identity ──────────────────────────────────────────────────────────────────

func (s *Store) FindSession(_ context.Context, tokenHash string) (*identity.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[tokenHash]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return &sess, nil
}

func (s *Store) DeleteSession(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[tokenHash]; !ok {
		return identity.ErrNotFound
	}
	delete(s.sessions, tokenHash)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for h, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, h)
			n++
		}
	}
	return n, nil
}

func (s *Store) FindUser(_ context.Context, id string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return &u, nil
}

// ── catalog ───────────────────────────────────────────────────────────────────

func (s *Store) FindMovie(_ context.Context, id string) (*catalog.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movies[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &m, nil
}

func (s *Store) FindPack(_ context.Context, id string) (*catalog.Pack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.packs[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	p.MovieIDs = append([]string(nil), p.MovieIDs...)
	return &p, nil
}

func (s *Store) PacksContaining(_ context.Context, movieID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, p := range s.packs {
		if p.Contains(movieID) {
			ids = append(ids, p.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) FindVideoSource(_ context.Context, id string) (*catalog.VideoSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.sources[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &v, nil
}

// ── rentals ───────────────────────────────────────────────────────────────────

func (s *Store) FindActive(_ context.Context, owner rental.Owner, target rental.Target, now time.Time) ([]rental.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked(owner, target, now), nil
}

func (s *Store) activeLocked(owner rental.Owner, target rental.Target, now time.Time) []rental.Rental {
	var out []rental.Rental
	for _, r := range s.rentals {
		if r.Owner == owner && r.Target == target && r.Active(now) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) FindActiveForPacks(_ context.Context, owner rental.Owner, packIDs []string, now time.Time) ([]rental.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []rental.Rental
	for _, id := range packIDs {
		out = append(out, s.activeLocked(owner, rental.PackTarget(id), now)...)
	}
	return out, nil
}

func (s *Store) ListByOwner(_ context.Context, owner rental.Owner) ([]rental.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []rental.Rental
	for _, r := range s.rentals {
		if r.Owner == owner {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PurchasedAt.After(out[j].PurchasedAt) })
	return out, nil
}

func (s *Store) InsertIfNoActive(_ context.Context, r rental.Rental) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.txIDs[r.TransactionID]; dup {
		return rental.ErrDuplicateTransaction
	}
	if len(s.activeLocked(r.Owner, r.Target, r.PurchasedAt)) > 0 {
		return rental.ErrActiveRentalExists
	}
	s.rentals = append(s.rentals, r)
	s.txIDs[r.TransactionID] = struct{}{}
	return nil
}

func (s *Store) UpdatePackPosition(_ context.Context, rentalID, shortID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rentals {
		if s.rentals[i].ID == rentalID {
			v := shortID
			s.rentals[i].CurrentShortID = &v
			return nil
		}
	}
	return rental.ErrNotFound
}

func (s *Store) MigrateAnonymous(_ context.Context, anonymousID, userID string) (rental.MigrationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	from, to := rental.AnonymousOwner(anonymousID), rental.UserOwner(userID)

	var res rental.MigrationResult
	for i := range s.rentals {
		if s.rentals[i].Owner == from {
			s.rentals[i].Owner = to
			res.Rentals++
		}
	}
	for k, p := range s.progress {
		if k.owner != from.Key() {
			continue
		}
		delete(s.progress, k)
		res.WatchProgress++
		nk := progressKey{owner: to.Key(), movieID: k.movieID}
		// keep the fresher row if the account already has one
		if existing, ok := s.progress[nk]; ok && existing.UpdatedAt.After(p.UpdatedAt) {
			continue
		}
		p.Owner = to
		s.progress[nk] = p
	}
	return res, nil
}

func (s *Store) DeleteStaleAnonymous(_ context.Context, cutoff time.Time) (rental.MigrationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res rental.MigrationResult
	kept := s.rentals[:0]
	for _, r := range s.rentals {
		if r.Owner.AnonymousID() != "" && r.ExpiresAt.Before(cutoff) {
			res.Rentals++
			continue
		}
		kept = append(kept, r)
	}
	s.rentals = kept
	for k, p := range s.progress {
		if p.Owner.AnonymousID() != "" && p.UpdatedAt.Before(cutoff) {
			delete(s.progress, k)
			res.WatchProgress++
		}
	}
	return res, nil
}

// ── pricing ───────────────────────────────────────────────────────────────────

func (s *Store) FindTier(_ context.Context, id string) (*pricing.Tier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tiers[id]
	if !ok {
		return nil, pricing.ErrNotFound
	}
	return &t, nil
}

func (s *Store) FindPromoByCode(_ context.Context, code string) (*pricing.PromoCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.promos[pricing.NormalizeCode(code)]
	if !ok {
		return nil, pricing.ErrNotFound
	}
	return &p, nil
}

func (s *Store) IncrementPromoUse(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, p := range s.promos {
		if p.ID != id {
			continue
		}
		if p.MaxUses != nil && p.UsesCount >= *p.MaxUses {
			return pricing.ErrUseCapReached
		}
		p.UsesCount++
		s.promos[code] = p
		return nil
	}
	return pricing.ErrNotFound
}

func (s *Store) ListPromos(_ context.Context) ([]pricing.PromoCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]pricing.PromoCode, 0, len(s.promos))
	for _, p := range s.promos {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) CreatePromo(_ context.Context, p pricing.PromoCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Code = pricing.NormalizeCode(p.Code)
	if _, ok := s.promos[p.Code]; ok {
		return pricing.ErrDuplicateCode
	}
	s.promos[p.Code] = p
	return nil
}

// ── progress ──────────────────────────────────────────────────────────────────

func (s *Store) GetProgress(_ context.Context, owner rental.Owner, movieID string) (*progress.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[progressKey{owner: owner.Key(), movieID: movieID}]
	if !ok {
		return nil, progress.ErrNotFound
	}
	return &p, nil
}

func (s *Store) SaveProgress(_ context.Context, p progress.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[progressKey{owner: p.Owner.Key(), movieID: p.MovieID}] = p
	return nil
}
