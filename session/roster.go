package session

import (
	"sync"

	"github.com/samber/lo"

	"liveshare/domain"
)

// Publisher receives the RosterChanged notification for every mutation.
type Publisher interface {
	Publish(msg domain.Message) error
}

// Roster is the lock-guarded membership table of one session. Every mutation
// publishes a full RosterChanged snapshot taken under the same lock, so the
// notification reflects exactly that mutation. Publishing never blocks.
type Roster struct {
	mu      sync.Mutex
	members map[string]domain.Participant
	order   []string
	pub     Publisher
}

func NewRoster(pub Publisher) *Roster {
	return &Roster{
		members: make(map[string]domain.Participant),
		pub:     pub,
	}
}

// Add inserts or replaces p by id.
func (r *Roster) Add(p domain.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.members[p.ID]; !exists {
		r.order = append(r.order, p.ID)
	}
	r.members[p.ID] = p
	r.notifyLocked()
}

// Admit adds p only if its id is not taken yet and reports whether it did.
// before runs under the roster lock just ahead of the insert.
func (r *Roster) Admit(p domain.Participant, before func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.members[p.ID]; exists {
		return false
	}
	if before != nil {
		before()
	}
	r.order = append(r.order, p.ID)
	r.members[p.ID] = p
	r.notifyLocked()
	return true
}

// Remove deletes id if present. The notification is sent either way.
func (r *Roster) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.members[id]; exists {
		delete(r.members, id)
		r.order = lo.Without(r.order, id)
	}
	r.notifyLocked()
}

// Replace swaps the whole membership for participants and returns the previous
// snapshot. Used by clients mirroring the host's roster.
func (r *Roster) Replace(participants []domain.Participant) []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.snapshotLocked()
	r.members = make(map[string]domain.Participant, len(participants))
	r.order = r.order[:0]
	for _, p := range participants {
		if _, exists := r.members[p.ID]; !exists {
			r.order = append(r.order, p.ID)
		}
		r.members[p.ID] = p
	}
	r.notifyLocked()
	return prev
}

// Snapshot returns a copy of the members in insertion order.
func (r *Roster) Snapshot() []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Roster) Get(id string) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.members[id]
	return p, ok
}

func (r *Roster) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *Roster) snapshotLocked() []domain.Participant {
	return lo.Map(r.order, func(id string, _ int) domain.Participant {
		return r.members[id]
	})
}

func (r *Roster) notifyLocked() {
	if r.pub == nil {
		return
	}
	// A closed stream only means nobody is listening anymore.
	_ = r.pub.Publish(domain.RosterChanged{Participants: r.snapshotLocked()})
}

// Diff compares two snapshots by id.
func Diff(before, after []domain.Participant) (joined, left []domain.Participant) {
	beforeIDs := lo.SliceToMap(before, func(p domain.Participant) (string, struct{}) { return p.ID, struct{}{} })
	afterIDs := lo.SliceToMap(after, func(p domain.Participant) (string, struct{}) { return p.ID, struct{}{} })
	joined = lo.Filter(after, func(p domain.Participant, _ int) bool {
		_, ok := beforeIDs[p.ID]
		return !ok
	})
	left = lo.Filter(before, func(p domain.Participant, _ int) bool {
		_, ok := afterIDs[p.ID]
		return !ok
	})
	return joined, left
}
