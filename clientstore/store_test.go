package clientstore

import (
	"testing"

	"taskboard-api/domain"
)

func confirmed(id, taskID, userID domain.ID) domain.TaskMembership {
	return domain.TaskMembership{ID: id, TaskID: taskID, UserID: userID}
}

func TestOptimisticAddThenSuccess(t *testing.T) {
	s := New()
	s.Dispatch(Action{Type: UserToTaskAdd, TaskID: 10, UserID: 20})

	r, ok := s.GetByTaskAndUser(10, 20)
	if !ok {
		t.Fatal("expected optimistic record before server response")
	}
	if r.Status != StatusPending {
		t.Fatalf("expected pending status, got %v", r.Status)
	}
	if r.ID >= 0 {
		t.Fatalf("expected client-assigned negative id, got %d", r.ID)
	}

	s.Dispatch(Action{Type: UserToTaskAddSuccess, Membership: confirmed(100, 10, 20)})

	if s.Len() != 1 {
		t.Fatalf("expected exactly one record after confirmation, got %d", s.Len())
	}
	r, ok = s.GetByTaskAndUser(10, 20)
	if !ok || r.ID != 100 {
		t.Fatalf("expected confirmed record 100, got %+v", r)
	}
	if r.Status != StatusConfirmed {
		t.Fatalf("expected confirmed status, got %v", r.Status)
	}
	if got := s.TaskMembers(10); len(got) != 1 || got[0] != 20 {
		t.Fatalf("unexpected task members: %v", got)
	}
}

func TestOptimisticAddThenFailure(t *testing.T) {
	s := New()
	s.Dispatch(Action{Type: UserToTaskAdd, TaskID: 10, UserID: 20})
	s.Dispatch(Action{Type: UserToTaskAddFailure, TaskID: 10, UserID: 20})

	if s.Len() != 0 {
		t.Fatalf("expected full rollback, got %d records", s.Len())
	}
	if got := s.TaskMembers(10); len(got) != 0 {
		t.Fatalf("expected no task members after rollback, got %v", got)
	}
}

func TestDuplicateAddCollapses(t *testing.T) {
	s := New()
	s.Dispatch(Action{Type: UserToTaskAdd, TaskID: 10, UserID: 20})
	s.Dispatch(Action{Type: UserToTaskAdd, TaskID: 10, UserID: 20})

	if s.Len() != 1 {
		t.Fatalf("expected duplicate add to collapse, got %d records", s.Len())
	}
}

func TestAddFailureDoesNotRemoveConfirmed(t *testing.T) {
	s := New()
	s.Dispatch(Action{Type: UserToTaskAdd, TaskID: 10, UserID: 20})
	// Authoritative push wins the race before the failure arrives.
	s.Dispatch(Action{Type: UserToTaskAddHandle, Membership: confirmed(100, 10, 20)})
	s.Dispatch(Action{Type: UserToTaskAddFailure, TaskID: 10, UserID: 20})

	if _, ok := s.Get(100); !ok {
		t.Fatal("confirmed record must survive a stale failure response")
	}
}

func TestHandleIsIdempotent(t *testing.T) {
	s := New()
	s.Dispatch(Action{Type: UserToTaskAddHandle, Membership: confirmed(100, 10, 20)})
	s.Dispatch(Action{Type: UserToTaskAddHandle, Membership: confirmed(100, 10, 20)})

	if s.Len() != 1 {
		t.Fatalf("expected one record after duplicate pushes, got %d", s.Len())
	}
}

func TestHandleAfterLocalRemoval(t *testing.T) {
	s := New()
	s.Dispatch(Action{Type: UserToTaskAddHandle, Membership: confirmed(100, 10, 20)})
	s.Dispatch(Action{Type: UserFromTaskRemove, TaskID: 10, UserID: 20})

	// Another actor re-added the pair; the push must re-insert even
	// though the record was locally removed.
	s.Dispatch(Action{Type: UserToTaskAddHandle, Membership: confirmed(101, 10, 20)})

	r, ok := s.GetByTaskAndUser(10, 20)
	if !ok || r.ID != 101 {
		t.Fatalf("expected re-added record 101, got %+v ok=%v", r, ok)
	}

	// The late failure for the local removal must not resurrect the
	// stale record over the authoritative one.
	s.Dispatch(Action{Type: UserFromTaskRemoveFailure, TaskID: 10, UserID: 20})
	r, _ = s.GetByTaskAndUser(10, 20)
	if r.ID != 101 {
		t.Fatalf("authoritative record lost to rollback, got %+v", r)
	}
}

func TestRemoveFailureRestores(t *testing.T) {
	s := New()
	s.Dispatch(Action{Type: UserToTaskAddHandle, Membership: confirmed(100, 10, 20)})
	s.Dispatch(Action{Type: UserFromTaskRemove, TaskID: 10, UserID: 20})

	if s.Len() != 0 {
		t.Fatalf("expected optimistic removal, got %d records", s.Len())
	}

	s.Dispatch(Action{Type: UserFromTaskRemoveFailure, TaskID: 10, UserID: 20})

	r, ok := s.GetByTaskAndUser(10, 20)
	if !ok || r.ID != 100 {
		t.Fatalf("expected record restored after failed removal, got %+v ok=%v", r, ok)
	}
}

func TestRemoveConfirmedTolerated(t *testing.T) {
	s := New()
	// Push delete for a record that was never cached: silent no-op.
	s.Dispatch(Action{Type: UserFromTaskRemoveHandle, Membership: confirmed(100, 10, 20)})
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d records", s.Len())
	}

	s.Dispatch(Action{Type: UserToTaskAddHandle, Membership: confirmed(100, 10, 20)})
	s.Dispatch(Action{Type: UserFromTaskRemoveHandle, Membership: confirmed(100, 10, 20)})
	s.Dispatch(Action{Type: UserFromTaskRemoveHandle, Membership: confirmed(100, 10, 20)})
	if s.Len() != 0 {
		t.Fatalf("expected record removed exactly once, got %d", s.Len())
	}
}

func TestSnapshotUpserts(t *testing.T) {
	s := New()
	s.Dispatch(Action{Type: UserToTaskAddHandle, Membership: confirmed(100, 10, 20)})
	s.Dispatch(Action{Type: BoardFetchSuccess, Memberships: []domain.TaskMembership{
		confirmed(100, 10, 20),
		confirmed(101, 10, 21),
	}})

	if s.Len() != 2 {
		t.Fatalf("expected two records after snapshot, got %d", s.Len())
	}
	if got := s.TaskMembers(10); len(got) != 2 {
		t.Fatalf("unexpected members: %v", got)
	}
}

func TestResyncDropsStaleRecords(t *testing.T) {
	s := New()
	s.Dispatch(Action{Type: UserToTaskAddHandle, Membership: confirmed(100, 10, 20)})
	s.Dispatch(Action{Type: UserToTaskAddHandle, Membership: confirmed(101, 10, 21)})
	s.Dispatch(Action{Type: UserToTaskAdd, TaskID: 11, UserID: 22})

	// The snapshot no longer contains record 100 or the optimistic
	// pair: both were mutated while the connection was down.
	s.Dispatch(Action{Type: SocketReconnectHandle, Memberships: []domain.TaskMembership{
		confirmed(101, 10, 21),
	}})

	if s.Len() != 1 {
		t.Fatalf("expected only snapshot records after resync, got %d", s.Len())
	}
	if _, ok := s.Get(100); ok {
		t.Fatal("stale record survived resync")
	}
	if _, ok := s.GetByTaskAndUser(11, 22); ok {
		t.Fatal("optimistic record survived resync")
	}
	if _, ok := s.Get(101); !ok {
		t.Fatal("snapshot record missing after resync")
	}
}

func TestUnknownActionIsNoOp(t *testing.T) {
	s := New()
	s.Dispatch(Action{Type: UserToTaskAddHandle, Membership: confirmed(100, 10, 20)})
	s.Dispatch(Action{Type: ActionType("somethingElse"), TaskID: 10, UserID: 20})

	if s.Len() != 1 {
		t.Fatalf("unknown action mutated the store: %d records", s.Len())
	}
}

func TestMembershipsByTaskOrdered(t *testing.T) {
	s := New()
	s.Dispatch(Action{Type: UserToTaskAddHandle, Membership: confirmed(102, 10, 22)})
	s.Dispatch(Action{Type: UserToTaskAddHandle, Membership: confirmed(100, 10, 20)})
	s.Dispatch(Action{Type: UserToTaskAddHandle, Membership: confirmed(101, 11, 20)})

	got := s.MembershipsByTask(10)
	if len(got) != 2 || got[0].ID != 100 || got[1].ID != 102 {
		t.Fatalf("unexpected order: %+v", got)
	}
}
