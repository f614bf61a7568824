package app

import (
	"context"
	"testing"

	"taskdeck/api/internal/store"
)

func TestNextPositionAppendsBehindTail(t *testing.T) {
	fs := &fakeStore{
		maxTaskPositionFn: func(_ context.Context, _, _ string) (int, error) {
			return 7000, nil
		},
	}
	svc := newTestService(fs)

	pos, err := svc.nextPosition(context.Background(), "wks_1", store.StatusTodo)
	if err != nil {
		t.Fatalf("nextPosition: %v", err)
	}
	if pos != 8000 {
		t.Fatalf("expected 8000, got %d", pos)
	}
}

func TestNextPositionInEmptyBucket(t *testing.T) {
	svc := newTestService(&fakeStore{})

	pos, err := svc.nextPosition(context.Background(), "wks_1", store.StatusTodo)
	if err != nil {
		t.Fatalf("nextPosition: %v", err)
	}
	if pos != 1000 {
		t.Fatalf("first task in a bucket lands at 1000, got %d", pos)
	}
}

func TestPositionBetween(t *testing.T) {
	cases := []struct {
		before, after int
		want          int
		ok            bool
	}{
		{1000, 2000, 1500, true},
		{1000, 1002, 1001, true},
		{1000, 1001, 0, false},
		{1000, 1000, 0, false},
		{0, 1000, 500, true},
	}
	for _, tc := range cases {
		got, ok := positionBetween(tc.before, tc.after)
		if ok != tc.ok || got != tc.want {
			t.Errorf("positionBetween(%d, %d) = (%d, %v), want (%d, %v)",
				tc.before, tc.after, got, ok, tc.want, tc.ok)
		}
	}
}

func TestBucketNeedsRebalance(t *testing.T) {
	if bucketNeedsRebalance([]int{1000, 2000, 3000}) {
		t.Fatal("sparse bucket must not trigger a rebalance")
	}
	if !bucketNeedsRebalance([]int{1000, 1000, 3000}) {
		t.Fatal("duplicate positions must trigger a rebalance")
	}
	if bucketNeedsRebalance([]int{1000, 1001}) {
		t.Fatal("a gap of exactly 1 still admits placement by renumber later, not now")
	}
	if bucketNeedsRebalance(nil) {
		t.Fatal("empty bucket never needs a rebalance")
	}
}

func TestRebalanceRenumbersPreservingOrder(t *testing.T) {
	var moves []struct {
		id  string
		pos int
	}
	fs := &fakeStore{
		listBucketFn: func(_ context.Context, _, _ string) ([]store.Task, error) {
			return []store.Task{
				{ID: "tsk_a", Position: 5},
				{ID: "tsk_b", Position: 6},
				{ID: "tsk_c", Position: 3000},
			}, nil
		},
		updateTaskPlacementFn: func(_ context.Context, id, _ string, pos int) error {
			moves = append(moves, struct {
				id  string
				pos int
			}{id, pos})
			return nil
		},
	}
	svc := newTestService(fs)

	if err := svc.rebalanceBucket(context.Background(), "wks_1", store.StatusTodo); err != nil {
		t.Fatalf("rebalanceBucket: %v", err)
	}
	want := []struct {
		id  string
		pos int
	}{
		{"tsk_a", 1000},
		{"tsk_b", 2000},
	}
	// tsk_c already sits at 3000 and must not be rewritten.
	if len(moves) != len(want) {
		t.Fatalf("expected %d moves, got %d: %+v", len(want), len(moves), moves)
	}
	for i, m := range moves {
		if m != want[i] {
			t.Fatalf("move %d: got %+v, want %+v", i, m, want[i])
		}
	}
}

func TestBulkUpdateRebalancesCrampedBucket(t *testing.T) {
	// tsk_a moves onto the position tsk_b already holds; the touched bucket
	// is renumbered afterwards.
	stored := map[string]*store.Task{
		"tsk_a": {ID: "tsk_a", WorkspaceID: "wks_1", ProjectID: "prj_1", Status: store.StatusTodo, Position: 3000},
		"tsk_b": {ID: "tsk_b", WorkspaceID: "wks_1", ProjectID: "prj_1", Status: store.StatusTodo, Position: 1000},
	}
	var rebalanced bool
	fs := &fakeStore{
		getMemberFn: memberOf("wks_1", "usr_1", store.RoleMember),
		getTaskFn: func(_ context.Context, id string) (store.Task, error) {
			return *stored[id], nil
		},
		updateTaskPlacementFn: func(_ context.Context, id, status string, pos int) error {
			stored[id].Status = status
			stored[id].Position = pos
			if pos == 2000 || pos == 1000 && id == "tsk_b" {
				rebalanced = true
			}
			return nil
		},
		listBucketFn: func(_ context.Context, _, _ string) ([]store.Task, error) {
			out := []store.Task{*stored["tsk_b"], *stored["tsk_a"]}
			if stored["tsk_a"].Position < stored["tsk_b"].Position ||
				(stored["tsk_a"].Position == stored["tsk_b"].Position) {
				out = []store.Task{*stored["tsk_a"], *stored["tsk_b"]}
			}
			return out, nil
		},
		getProjectFn: func(_ context.Context, id string) (store.Project, error) {
			return store.Project{ID: id, WorkspaceID: "wks_1", Name: "Launch"}, nil
		},
	}
	svc := newTestService(fs)

	items, err := svc.BulkUpdateTasks(context.Background(), "usr_1", []BulkTaskUpdate{
		{ID: "tsk_a", Status: store.StatusTodo, Position: 1000},
	})
	if err != nil {
		t.Fatalf("BulkUpdateTasks: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 task back, got %d", len(items))
	}
	if !rebalanced {
		t.Fatal("expected the cramped bucket to be renumbered")
	}
	if stored["tsk_a"].Position == stored["tsk_b"].Position {
		t.Fatalf("positions still collide: %d", stored["tsk_a"].Position)
	}
}
