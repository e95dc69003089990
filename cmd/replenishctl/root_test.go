package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/replenishment/internal/app"
	"github.com/odyssey-erp/replenishment/internal/replenishment"
	"github.com/odyssey-erp/replenishment/jobs"
)

type fakeQueue struct {
	tasks  []*asynq.Task
	closed bool
}

func (q *fakeQueue) Enqueue(ctx context.Context, task *asynq.Task) (*asynq.TaskInfo, error) {
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "t-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (q *fakeQueue) InspectQueue(ctx context.Context) (QueueStats, error) {
	return QueueStats{Queue: jobs.QueueDefault, Pending: 2, Retry: 1}, nil
}

func (q *fakeQueue) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	return []*asynq.TaskInfo{{ID: "s-1", Type: jobs.TaskReplenishmentScan, NextProcessAt: time.Date(2024, 11, 5, 2, 0, 0, 0, time.UTC)}}, nil
}

func (q *fakeQueue) Close() error {
	q.closed = true
	return nil
}

type fakePlan struct {
	plan replenishment.Plan
	err  error
}

func (f fakePlan) Scan(ctx context.Context) (replenishment.Plan, error) {
	return f.plan, f.err
}

func testDeps(q *fakeQueue, source planSource) deps {
	return deps{
		loadConfig: func() (*app.Config, error) { return &app.Config{}, nil },
		openQueue:  func(*app.Config) jobQueue { return q },
		openPlanner: func(context.Context, *app.Config) (planSource, func(), error) {
			return source, func() {}, nil
		},
	}
}

func run(t *testing.T, d deps, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	root := newRootCmd(d)
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestJobsTrigger(t *testing.T) {
	q := &fakeQueue{}
	out, err := run(t, testDeps(q, nil), "jobs", "trigger", jobs.TaskReplenishmentScan, "--auto-order=false", "--force")
	require.NoError(t, err)
	require.Contains(t, out, "enqueued replenishment:scan id=t-1")
	require.True(t, q.closed)

	require.Len(t, q.tasks, 1)
	var payload jobs.ReplenishmentScanPayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &payload))
	require.NotNil(t, payload.AutoOrder)
	require.False(t, *payload.AutoOrder)
	require.True(t, payload.Force)

	_, err = run(t, testDeps(q, nil), "jobs", "trigger", jobs.TaskIdempotencyCleanup)
	require.NoError(t, err)
	require.Equal(t, jobs.TaskIdempotencyCleanup, q.tasks[1].Type())

	_, err = run(t, testDeps(q, nil), "jobs", "trigger", "mail:send")
	require.ErrorContains(t, err, "unsupported job")
}

func TestJobsStatsAndScheduled(t *testing.T) {
	q := &fakeQueue{}
	out, err := run(t, testDeps(q, nil), "jobs", "stats")
	require.NoError(t, err)
	require.Contains(t, out, "pending=2")
	require.Contains(t, out, "retry=1")

	out, err = run(t, testDeps(q, nil), "jobs", "scheduled")
	require.NoError(t, err)
	require.Contains(t, out, "s-1\treplenishment:scan\t2024-11-05T02:00:00Z")
}

func TestCandidates(t *testing.T) {
	plan := replenishment.Plan{Groups: []replenishment.SupplierGroup{{
		SupplierID: 7,
		Lines:      []replenishment.Candidate{{ItemID: 1, ItemName: "Flour 25kg", SupplierID: 7, OnHand: 4, Threshold: 10, AverageRequired: 50, NeededQuantity: 46}},
	}}}

	out, err := run(t, testDeps(&fakeQueue{}, fakePlan{plan: plan}), "candidates")
	require.NoError(t, err)
	require.Contains(t, out, "SUPPLIER")
	require.Contains(t, out, "Flour 25kg")
	require.Contains(t, out, "46")

	out, err = run(t, testDeps(&fakeQueue{}, fakePlan{plan: plan}), "candidates", "--json")
	require.NoError(t, err)
	var decoded replenishment.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.EqualValues(t, 46, decoded.Groups[0].Lines[0].NeededQuantity)

	_, err = run(t, testDeps(&fakeQueue{}, fakePlan{err: errors.New("db down")}), "candidates")
	require.ErrorContains(t, err, "db down")
}
