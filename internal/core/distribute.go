package core

import "time"

// PoolSnapshot is an immutable, ordered view of the worker pool taken once
// per ingestion run. Workers removed after the snapshot is taken may still
// receive a list; that gap is accepted rather than locked against.
type PoolSnapshot struct {
	ids     []WorkerID
	takenAt time.Time
}

// NewPoolSnapshot copies workers into a snapshot, keeping their order.
func NewPoolSnapshot(workers []Worker, takenAt time.Time) PoolSnapshot {
	ids := make([]WorkerID, len(workers))
	for i, w := range workers {
		ids[i] = w.ID
	}
	return PoolSnapshot{ids: ids, takenAt: takenAt}
}

// Len returns the number of workers in the snapshot.
func (p PoolSnapshot) Len() int { return len(p.ids) }

// At returns the i-th worker in pool order.
func (p PoolSnapshot) At(i int) WorkerID { return p.ids[i] }

// TakenAt returns when the snapshot was read.
func (p PoolSnapshot) TakenAt() time.Time { return p.takenAt }

// Group is one worker's slice of a distribution.
type Group struct {
	Worker WorkerID
	Tasks  []Task
}

// DistributionPlan assigns every task of one upload to a worker.
type DistributionPlan struct {
	Groups []Group
}

// Workers returns the number of workers in the plan, including any that
// received no tasks.
func (p DistributionPlan) Workers() int { return len(p.Groups) }

// Sizes returns the number of tasks per group in plan order.
func (p DistributionPlan) Sizes() []int {
	sizes := make([]int, len(p.Groups))
	for i, g := range p.Groups {
		sizes[i] = len(g.Tasks)
	}
	return sizes
}

// ActiveWorkers returns the pool size used for a target: the target capped at
// the available workers, or every available worker when target <= 0.
func ActiveWorkers(available, target int) int {
	if target <= 0 || target > available {
		return available
	}
	return target
}

// PlanDistribution splits tasks across the first min(target, pool.Len())
// workers. The first N mod W workers receive one extra task; slices are
// contiguous and in input order.
func PlanDistribution(tasks []Task, pool PoolSnapshot, target int) (DistributionPlan, error) {
	w := ActiveWorkers(pool.Len(), target)
	if w == 0 {
		return DistributionPlan{}, NoWorkersAvailableError()
	}
	n := len(tasks)
	if n == 0 {
		return DistributionPlan{}, EmptyValidInputError(0)
	}

	base, rem := n/w, n%w
	groups := make([]Group, w)
	offset := 0
	for i := 0; i < w; i++ {
		size := base
		if i < rem {
			size++
		}
		groups[i] = Group{
			Worker: pool.At(i),
			Tasks:  tasks[offset : offset+size : offset+size],
		}
		offset += size
	}
	return DistributionPlan{Groups: groups}, nil
}
