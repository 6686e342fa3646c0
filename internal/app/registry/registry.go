// Package registry maps UIDs to local SubConnections and remote participants.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Tutor/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrPurposeTaken = errors.New("purpose already registered")
	ErrUIDTaken     = errors.New("uid already registered")
	ErrUnknownUID   = errors.New("uid not registered")
)

// Owner says whose UID partition a remote UID falls in.
type Owner int

const (
	OwnerUnknown Owner = iota
	OwnerPeer
	OwnerSelf
)

func (o Owner) String() string {
	switch o {
	case OwnerPeer:
		return "peer"
	case OwnerSelf:
		return "self"
	default:
		return "unknown"
	}
}

// Classification is the result of ClassifyRemoteUID.
type Classification struct {
	Owner   Owner
	Purpose domain.Purpose
}

type entry struct {
	conn *domain.SubConnection
	seq  uint64
}

type Registry struct {
	mu        sync.RWMutex
	byUID     map[domain.UID]*entry
	byPurpose map[domain.Purpose]domain.UID
	remotes   map[domain.UID]*domain.RemoteParticipant
	seq       uint64

	// fixed at construction
	local map[domain.UID]domain.Purpose
	peer  map[domain.UID]domain.Purpose
	now   func() time.Time
}

// New builds a registry over the static UID partition of rc.
func New(rc domain.RoleConfig) *Registry {
	r := &Registry{
		byUID:     make(map[domain.UID]*entry),
		byPurpose: make(map[domain.Purpose]domain.UID),
		remotes:   make(map[domain.UID]*domain.RemoteParticipant),
		local:     make(map[domain.UID]domain.Purpose, len(rc.Local)),
		peer:      make(map[domain.UID]domain.Purpose, len(rc.Peer)),
		now:       time.Now,
	}
	for p, uid := range rc.Local {
		r.local[uid] = p
	}
	for p, uid := range rc.Peer {
		r.peer[uid] = p
	}
	return r
}

// WithClock replaces the time source used for state timestamps.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Register creates an Idle SubConnection for purpose under uid.
func (r *Registry) Register(uid domain.UID, p domain.Purpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byPurpose[p]; ok {
		return fmt.Errorf("register %s: %w", p, ErrPurposeTaken)
	}
	if _, ok := r.byUID[uid]; ok {
		return fmt.Errorf("register uid %d: %w", uid, ErrUIDTaken)
	}
	sc := domain.NewSubConnection(uid, p)
	r.byUID[uid] = &entry{conn: sc}
	r.byPurpose[p] = uid
	log.Info().Str("module", "app.registry").Uint32("uid", uint32(uid)).Str("purpose", p.String()).Msg("registered subconnection")
	return nil
}

func (r *Registry) Unregister(uid domain.UID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byUID[uid]
	if !ok {
		return
	}
	delete(r.byPurpose, e.conn.Purpose)
	delete(r.byUID, uid)
	log.Info().Str("module", "app.registry").Uint32("uid", uint32(uid)).Str("purpose", e.conn.Purpose.String()).Msg("unregistered subconnection")
}

// Lookup returns a copy of the SubConnection registered under uid.
func (r *Registry) Lookup(uid domain.UID) (domain.SubConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byUID[uid]
	if !ok {
		return domain.SubConnection{}, false
	}
	return *e.conn, true
}

// ByPurpose returns a copy of the SubConnection serving p.
func (r *Registry) ByPurpose(p domain.Purpose) (domain.SubConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uid, ok := r.byPurpose[p]
	if !ok {
		return domain.SubConnection{}, false
	}
	return *r.byUID[uid].conn, true
}

// Transition drives the state machine of the SubConnection under uid.
func (r *Registry) Transition(uid domain.UID, to domain.ConnState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byUID[uid]
	if !ok {
		return fmt.Errorf("transition uid %d: %w", uid, ErrUnknownUID)
	}
	from := e.conn.State
	if err := e.conn.Transition(to, r.now()); err != nil {
		return err
	}
	if to == domain.StateJoining {
		r.seq++
		e.seq = r.seq
	}
	log.Info().Str("module", "app.registry").Uint32("uid", uint32(uid)).Str("purpose", e.conn.Purpose.String()).
		Str("from", from.String()).Str("to", to.String()).Msg("subconnection state")
	return nil
}

// JoinOrder returns Joining/Joined SubConnections in the order their joins started.
func (r *Registry) JoinOrder() []domain.SubConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	active := make([]*entry, 0, len(r.byUID))
	for _, e := range r.byUID {
		if e.conn.State.Active() {
			active = append(active, e)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].seq < active[j].seq })
	out := make([]domain.SubConnection, len(active))
	for i, e := range active {
		out[i] = *e.conn
	}
	return out
}

// ClassifyRemoteUID resolves a UID seen on the channel against the static table.
// UIDs outside the table belong to other tenants and classify as OwnerUnknown.
func (r *Registry) ClassifyRemoteUID(uid domain.UID) Classification {
	if p, ok := r.peer[uid]; ok {
		return Classification{Owner: OwnerPeer, Purpose: p}
	}
	if p, ok := r.local[uid]; ok {
		return Classification{Owner: OwnerSelf, Purpose: p}
	}
	return Classification{Owner: OwnerUnknown}
}

// AddRemote records a peer participant; a repeated join refreshes LastSeen.
func (r *Registry) AddRemote(uid domain.UID, channel domain.ChannelName, p domain.Purpose) (domain.RemoteParticipant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if rp, ok := r.remotes[uid]; ok {
		rp.LastSeen = now
		return *rp, false
	}
	rp := domain.NewRemoteParticipant(uid, channel, p, now)
	r.remotes[uid] = rp
	log.Info().Str("module", "app.registry").Uint32("uid", uint32(uid)).Str("purpose", p.String()).Msg("remote joined")
	return *rp, true
}

// Touch refreshes LastSeen of a known remote.
func (r *Registry) Touch(uid domain.UID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rp, ok := r.remotes[uid]; ok {
		rp.LastSeen = r.now()
	}
}

func (r *Registry) RemoveRemote(uid domain.UID) (domain.RemoteParticipant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rp, ok := r.remotes[uid]
	if !ok {
		return domain.RemoteParticipant{}, false
	}
	delete(r.remotes, uid)
	log.Info().Str("module", "app.registry").Uint32("uid", uint32(uid)).Msg("remote left")
	return *rp, true
}

// Remotes returns known peers ordered by UID.
func (r *Registry) Remotes() []domain.RemoteParticipant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.RemoteParticipant, 0, len(r.remotes))
	for _, rp := range r.remotes {
		out = append(out, *rp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

func (r *Registry) ClearRemotes() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remotes = make(map[domain.UID]*domain.RemoteParticipant)
	log.Info().Str("module", "app.registry").Msg("cleared remotes")
}

// Snapshot returns every registered SubConnection ordered by purpose.
func (r *Registry) Snapshot() []domain.SubConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.SubConnection, 0, len(r.byUID))
	for _, e := range r.byUID {
		out = append(out, *e.conn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Purpose < out[j].Purpose })
	return out
}
