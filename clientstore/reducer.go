package clientstore

import "taskboard-api/domain"

// ActionType tags a store mutation. User* kinds come in pairs: the bare
// kind is the local intent, Success/Failure are the server's response to
// it, and Handle is an authoritative push caused by any actor.
type ActionType string

const (
	UserToTaskAdd        ActionType = "userToTaskAdd"
	UserToTaskAddSuccess ActionType = "userToTaskAddSuccess"
	UserToTaskAddFailure ActionType = "userToTaskAddFailure"
	UserToTaskAddHandle  ActionType = "userToTaskAddHandle"

	UserFromTaskRemove        ActionType = "userFromTaskRemove"
	UserFromTaskRemoveSuccess ActionType = "userFromTaskRemoveSuccess"
	UserFromTaskRemoveFailure ActionType = "userFromTaskRemoveFailure"
	UserFromTaskRemoveHandle  ActionType = "userFromTaskRemoveHandle"

	BoardFetchSuccess     ActionType = "boardFetchSuccess"
	SocketReconnectHandle ActionType = "socketReconnectHandle"
)

// Action is one tagged store event. Which fields matter depends on the
// kind: local intents carry the (task, user) pair, server responses and
// pushes carry the full membership record, snapshot kinds carry the
// membership list.
type Action struct {
	Type        ActionType
	TaskID      domain.ID
	UserID      domain.ID
	Membership  domain.TaskMembership
	Memberships []domain.TaskMembership
}

// handlers is the dispatch table: a deterministic mapping from event
// kind to store mutation, each applied idempotently. Unknown kinds are
// dropped by Dispatch.
var handlers = map[ActionType]func(*Store, Action){
	UserToTaskAdd:             (*Store).applyAdd,
	UserToTaskAddSuccess:      (*Store).applyAddConfirmed,
	UserToTaskAddFailure:      (*Store).applyAddFailure,
	UserToTaskAddHandle:       (*Store).applyAddConfirmed,
	UserFromTaskRemove:        (*Store).applyRemove,
	UserFromTaskRemoveSuccess: (*Store).applyRemoveConfirmed,
	UserFromTaskRemoveFailure: (*Store).applyRemoveFailure,
	UserFromTaskRemoveHandle:  (*Store).applyRemoveConfirmed,
	BoardFetchSuccess:         (*Store).applySnapshot,
	SocketReconnectHandle:     (*Store).applyResync,
}

// Dispatch applies one action. Unknown action kinds are no-ops.
func (s *Store) Dispatch(a Action) {
	if h, ok := handlers[a.Type]; ok {
		h(s, a)
	}
}

// applyAdd inserts an optimistic record with a client-assigned id so
// the UI reflects intent before the round trip completes. A duplicate
// add for a pair already present collapses into the existing record.
func (s *Store) applyAdd(a Action) {
	if _, ok := s.byTaskUser[taskUserKey{a.TaskID, a.UserID}]; ok {
		return
	}
	s.insert(domain.TaskMembership{
		ID:     s.localID(),
		TaskID: a.TaskID,
		UserID: a.UserID,
	}, StatusPending)
}

// applyAddConfirmed replaces whatever is cached for the pair, pending
// or confirmed, with the server's record. Serves both the success
// response to a local add and an authoritative push; for the push this
// is the idempotent upsert that also covers a record re-added after a
// local removal.
func (s *Store) applyAddConfirmed(a Action) {
	m := a.Membership
	delete(s.removed, taskUserKey{m.TaskID, m.UserID})
	s.insert(m, StatusConfirmed)
}

// applyAddFailure rolls the optimistic insert back. Only a pending
// record is removed: a confirmed record for the same pair means an
// authoritative event already won the race.
func (s *Store) applyAddFailure(a Action) {
	key := taskUserKey{a.TaskID, a.UserID}
	id, ok := s.byTaskUser[key]
	if !ok || s.memberships[id].Status != StatusPending {
		return
	}
	s.removeByKey(a.TaskID, a.UserID)
}

// applyRemove optimistically drops the record, stashing it so a failure
// response can restore it.
func (s *Store) applyRemove(a Action) {
	if r, ok := s.removeByKey(a.TaskID, a.UserID); ok {
		s.removed[taskUserKey{a.TaskID, a.UserID}] = r
	}
}

// applyRemoveConfirmed finalizes a removal from either the success
// response or an authoritative push. The record being gone already is
// expected and fine.
func (s *Store) applyRemoveConfirmed(a Action) {
	m := a.Membership
	key := taskUserKey{m.TaskID, m.UserID}
	delete(s.removed, key)
	if id, ok := s.byTaskUser[key]; ok && id == m.ID {
		s.removeByKey(m.TaskID, m.UserID)
	}
}

// applyRemoveFailure restores the stashed record: the server kept the
// row, so the cache must too.
func (s *Store) applyRemoveFailure(a Action) {
	key := taskUserKey{a.TaskID, a.UserID}
	r, ok := s.removed[key]
	if !ok {
		return
	}
	delete(s.removed, key)
	if _, exists := s.byTaskUser[key]; exists {
		return
	}
	s.insert(r.TaskMembership, r.Status)
}

// applySnapshot upserts a fetched membership collection without
// touching records the snapshot does not mention.
func (s *Store) applySnapshot(a Action) {
	for _, m := range a.Memberships {
		s.insert(m, StatusConfirmed)
	}
}

// applyResync rebuilds the collection from scratch. Push events may
// have been missed during a connectivity gap, so nothing cached before
// the reconnect can be trusted to still exist.
func (s *Store) applyResync(a Action) {
	s.clear()
	for _, m := range a.Memberships {
		s.insert(m, StatusConfirmed)
	}
}
