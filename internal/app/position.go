package app

import "context"

// Positions are sparse: appends step by 1000 so drags can land between two
// neighbors without rewriting the bucket.
const positionStep = 1000

// nextPosition returns the append slot at the tail of a (workspace, status)
// bucket. Existing rows are never moved on append.
func (s *Service) nextPosition(ctx context.Context, workspaceID, status string) (int, error) {
	max, err := s.store.MaxTaskPosition(ctx, workspaceID, status)
	if err != nil {
		return 0, err
	}
	return max + positionStep, nil
}

// positionBetween returns the midpoint slot between two neighbors. ok is
// false when the gap has closed below 1, which means the bucket needs
// renumbering before the move can land.
func positionBetween(before, after int) (pos int, ok bool) {
	gap := after - before
	if gap < 2 {
		return 0, false
	}
	return before + gap/2, true
}

// rebalanceBucket renumbers a (workspace, status) bucket at 1000-step
// spacing, preserving the current order.
func (s *Service) rebalanceBucket(ctx context.Context, workspaceID, status string) error {
	tasks, err := s.store.ListBucket(ctx, workspaceID, status)
	if err != nil {
		return err
	}
	for i, task := range tasks {
		want := (i + 1) * positionStep
		if task.Position == want {
			continue
		}
		if err := s.store.UpdateTaskPlacement(ctx, task.ID, status, want); err != nil {
			return err
		}
	}
	return nil
}

// bucketNeedsRebalance reports whether any two neighbors in the bucket sit
// closer than the minimum insertable gap.
func bucketNeedsRebalance(positions []int) bool {
	for i := 1; i < len(positions); i++ {
		if positions[i]-positions[i-1] < 1 {
			return true
		}
	}
	return false
}
