// Package clientstore is the client-side normalized cache for task
// memberships. Records are keyed by identifier with a (task, user)
// index, mirroring the server table. Mutations arrive as actions: the
// user's own intent applies optimistically before any round trip, and
// authoritative server events reconcile or roll the optimistic state
// back.
//
// The store is driven by a single event loop. It does no locking and is
// not safe for concurrent dispatch.
package clientstore

import (
	"sort"

	"taskboard-api/domain"
)

// Status is the implicit lifecycle state of a cached record.
type Status int

const (
	// StatusPending marks an optimistic record awaiting server
	// confirmation. Pending records carry client-assigned negative ids.
	StatusPending Status = iota
	StatusConfirmed
)

// Record is one cached membership row.
type Record struct {
	domain.TaskMembership
	Status Status
}

type taskUserKey struct {
	taskID domain.ID
	userID domain.ID
}

// Store holds the normalized membership set plus the per-task member
// relation derived from it.
type Store struct {
	memberships map[domain.ID]*Record
	byTaskUser  map[taskUserKey]domain.ID

	// removed stashes optimistically deleted records so a failure
	// response can restore them.
	removed map[taskUserKey]*Record

	// taskMembers materializes the many-to-many relation the UI reads.
	taskMembers map[domain.ID]map[domain.ID]struct{}

	nextLocalID domain.ID
}

func New() *Store {
	return &Store{
		memberships: make(map[domain.ID]*Record),
		byTaskUser:  make(map[taskUserKey]domain.ID),
		removed:     make(map[taskUserKey]*Record),
		taskMembers: make(map[domain.ID]map[domain.ID]struct{}),
		nextLocalID: -1,
	}
}

// Get returns the record with the given id.
func (s *Store) Get(id domain.ID) (Record, bool) {
	r, ok := s.memberships[id]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// GetByTaskAndUser looks a record up by its natural key.
func (s *Store) GetByTaskAndUser(taskID, userID domain.ID) (Record, bool) {
	id, ok := s.byTaskUser[taskUserKey{taskID, userID}]
	if !ok {
		return Record{}, false
	}
	return *s.memberships[id], true
}

// MembershipsByTask returns the task's memberships ordered by id.
func (s *Store) MembershipsByTask(taskID domain.ID) []Record {
	var out []Record
	for _, r := range s.memberships {
		if r.TaskID == taskID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TaskMembers returns the user ids related to a task, ordered.
func (s *Store) TaskMembers(taskID domain.ID) []domain.ID {
	members := s.taskMembers[taskID]
	out := make([]domain.ID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len reports the number of cached memberships.
func (s *Store) Len() int { return len(s.memberships) }

func (s *Store) localID() domain.ID {
	id := s.nextLocalID
	s.nextLocalID--
	return id
}

// insert places a record, displacing any existing record for the same
// (task, user) pair. Authoritative data always wins over whatever is
// already cached.
func (s *Store) insert(m domain.TaskMembership, status Status) {
	key := taskUserKey{m.TaskID, m.UserID}
	if prev, ok := s.byTaskUser[key]; ok {
		delete(s.memberships, prev)
	}
	s.memberships[m.ID] = &Record{TaskMembership: m, Status: status}
	s.byTaskUser[key] = m.ID
	s.relate(m.TaskID, m.UserID)
}

// removeByKey drops the record for a (task, user) pair, reporting what
// was removed. Absence is a silent no-op.
func (s *Store) removeByKey(taskID, userID domain.ID) (*Record, bool) {
	key := taskUserKey{taskID, userID}
	id, ok := s.byTaskUser[key]
	if !ok {
		return nil, false
	}
	r := s.memberships[id]
	delete(s.memberships, id)
	delete(s.byTaskUser, key)
	s.unrelate(taskID, userID)
	return r, true
}

func (s *Store) relate(taskID, userID domain.ID) {
	if s.taskMembers[taskID] == nil {
		s.taskMembers[taskID] = make(map[domain.ID]struct{})
	}
	s.taskMembers[taskID][userID] = struct{}{}
}

func (s *Store) unrelate(taskID, userID domain.ID) {
	if members, ok := s.taskMembers[taskID]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(s.taskMembers, taskID)
		}
	}
}

// clear empties the whole collection, dropping optimistic state too.
// Used on reconnect before the authoritative snapshot replays.
func (s *Store) clear() {
	s.memberships = make(map[domain.ID]*Record)
	s.byTaskUser = make(map[taskUserKey]domain.ID)
	s.removed = make(map[taskUserKey]*Record)
	s.taskMembers = make(map[domain.ID]map[domain.ID]struct{})
}
