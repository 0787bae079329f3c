package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTasks(n int) []Task {
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = Task{FirstName: fmt.Sprintf("t%d", i), Phone: "+15550000000"}
	}
	return tasks
}

func makePool(n int) PoolSnapshot {
	workers := make([]Worker, n)
	for i := range workers {
		workers[i] = Worker{ID: WorkerID(fmt.Sprintf("w%d", i))}
	}
	return NewPoolSnapshot(workers, time.Now())
}

func TestPlanDistribution_TwelveTasksFiveWorkers(t *testing.T) {
	tasks := makeTasks(12)
	plan, err := PlanDistribution(tasks, makePool(7), 5)
	require.NoError(t, err)

	assert.Equal(t, []int{3, 3, 2, 2, 2}, plan.Sizes())
	assert.Equal(t, tasks[0:3], plan.Groups[0].Tasks)
	assert.Equal(t, tasks[10:12], plan.Groups[4].Tasks)
	for i, g := range plan.Groups {
		assert.Equal(t, WorkerID(fmt.Sprintf("w%d", i)), g.Worker)
	}
}

func TestPlanDistribution_Properties(t *testing.T) {
	for n := 1; n <= 23; n++ {
		for poolSize := 1; poolSize <= 8; poolSize++ {
			for _, target := range []int{0, 1, 3, 5, 10} {
				name := fmt.Sprintf("n=%d/pool=%d/target=%d", n, poolSize, target)
				tasks := makeTasks(n)
				plan, err := PlanDistribution(tasks, makePool(poolSize), target)
				require.NoError(t, err, name)

				wantW := poolSize
				if target > 0 && target < poolSize {
					wantW = target
				}
				require.Equal(t, wantW, plan.Workers(), name)

				var joined []Task
				sum, lo, hi := 0, n, 0
				for _, size := range plan.Sizes() {
					sum += size
					lo = min(lo, size)
					hi = max(hi, size)
				}
				for _, g := range plan.Groups {
					joined = append(joined, g.Tasks...)
				}

				assert.Equal(t, n, sum, name)
				assert.LessOrEqual(t, hi-lo, 1, name)
				if diff := cmp.Diff(tasks, joined); diff != "" {
					t.Errorf("%s: union differs from input (-want +got):\n%s", name, diff)
				}
			}
		}
	}
}

func TestPlanDistribution_FewerTasksThanWorkers(t *testing.T) {
	plan, err := PlanDistribution(makeTasks(2), makePool(5), 5)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 0, 0, 0}, plan.Sizes())
}

func TestPlanDistribution_Errors(t *testing.T) {
	_, err := PlanDistribution(makeTasks(3), makePool(0), 5)
	assert.Equal(t, ErrNoWorkersAvailable, KindOf(err))

	_, err = PlanDistribution(nil, makePool(3), 5)
	assert.Equal(t, ErrEmptyValidInput, KindOf(err))
}

func TestPlanDistribution_GroupsDoNotAlias(t *testing.T) {
	tasks := makeTasks(4)
	plan, err := PlanDistribution(tasks, makePool(2), 2)
	require.NoError(t, err)

	plan.Groups[0].Tasks = append(plan.Groups[0].Tasks, Task{FirstName: "extra"})
	assert.Equal(t, "t2", plan.Groups[1].Tasks[0].FirstName)
}

func TestActiveWorkers(t *testing.T) {
	assert.Equal(t, 5, ActiveWorkers(7, 5))
	assert.Equal(t, 3, ActiveWorkers(3, 5))
	assert.Equal(t, 7, ActiveWorkers(7, 0))
	assert.Equal(t, 0, ActiveWorkers(0, 5))
}
