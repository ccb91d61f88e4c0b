// Package rental is the entitlement store: who rented which movie or pack,
// when, and until when.
package rental

import (
	"sort"
	"time"

	"github.com/foozao/lao-cinema-sub007/internal/identity"
)

type ownerKind int

const (
	ownerNone ownerKind = iota
	ownerUser
	ownerAnonymous
)

// Owner is the holder of a rental: a user id or an anonymous device id,
// exactly one.
type Owner struct {
	kind ownerKind
	id   string
}

// UserOwner returns an owner for a registered user.
func UserOwner(userID string) Owner {
	if userID == "" {
		return Owner{}
	}
	return Owner{kind: ownerUser, id: userID}
}

// AnonymousOwner returns an owner for an anonymous device.
func AnonymousOwner(anonymousID string) Owner {
	if anonymousID == "" {
		return Owner{}
	}
	return Owner{kind: ownerAnonymous, id: anonymousID}
}

// OwnerFor maps a resolved identity to a rental owner. The absent identity
// yields the zero Owner.
func OwnerFor(id identity.Identity) Owner {
	switch {
	case id.IsUser():
		return UserOwner(id.UserID())
	case id.IsAnonymous():
		return AnonymousOwner(id.AnonymousID())
	default:
		return Owner{}
	}
}

func (o Owner) IsZero() bool { return o.kind == ownerNone }
func (o Owner) IsUser() bool { return o.kind == ownerUser }

// UserID returns the user id or "".
func (o Owner) UserID() string {
	if o.kind != ownerUser {
		return ""
	}
	return o.id
}

// AnonymousID returns the anonymous id or "".
func (o Owner) AnonymousID() string {
	if o.kind != ownerAnonymous {
		return ""
	}
	return o.id
}

// Key is a stable string form, "user:<id>" or "anonymous:<id>".
func (o Owner) Key() string {
	switch o.kind {
	case ownerUser:
		return "user:" + o.id
	case ownerAnonymous:
		return "anonymous:" + o.id
	default:
		return ""
	}
}

type targetKind int

const (
	targetNone targetKind = iota
	targetMovie
	targetPack
)

// Target is what was rented: a single movie or a pack, exactly one.
type Target struct {
	kind targetKind
	id   string
}

// MovieTarget returns a single-movie target.
func MovieTarget(movieID string) Target {
	if movieID == "" {
		return Target{}
	}
	return Target{kind: targetMovie, id: movieID}
}

// PackTarget returns a pack target.
func PackTarget(packID string) Target {
	if packID == "" {
		return Target{}
	}
	return Target{kind: targetPack, id: packID}
}

func (t Target) IsZero() bool { return t.kind == targetNone }
func (t Target) IsMovie() bool { return t.kind == targetMovie }
func (t Target) IsPack() bool  { return t.kind == targetPack }

// MovieID returns the movie id or "".
func (t Target) MovieID() string {
	if t.kind != targetMovie {
		return ""
	}
	return t.id
}

// PackID returns the pack id or "".
func (t Target) PackID() string {
	if t.kind != targetPack {
		return ""
	}
	return t.id
}

// Kind returns "movie", "pack" or "".
func (t Target) Kind() string {
	switch t.kind {
	case targetMovie:
		return "movie"
	case targetPack:
		return "pack"
	default:
		return ""
	}
}

// Key is a stable string form, "movie:<id>" or "pack:<id>".
func (t Target) Key() string {
	if t.kind == targetNone {
		return ""
	}
	return t.Kind() + ":" + t.id
}

// Rental is one grant of access. ExpiresAt is always after PurchasedAt.
type Rental struct {
	ID            string
	Owner         Owner
	Target        Target
	PurchasedAt   time.Time
	ExpiresAt     time.Time
	TransactionID string
	Amount        int64
	Currency      string
	PaymentMethod string
	// CurrentShortID is the playback bookmark inside a pack rental.
	CurrentShortID *string
}

// Active reports whether the rental grants access at now.
func (r *Rental) Active(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

// MostRecent returns the most recently purchased rental, ties broken by the
// larger id so the choice is deterministic. Returns nil for an empty slice.
func MostRecent(rs []Rental) *Rental {
	if len(rs) == 0 {
		return nil
	}
	sorted := make([]Rental, len(rs))
	copy(sorted, rs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].PurchasedAt.Equal(sorted[j].PurchasedAt) {
			return sorted[i].PurchasedAt.After(sorted[j].PurchasedAt)
		}
		return sorted[i].ID > sorted[j].ID
	})
	return &sorted[0]
}
