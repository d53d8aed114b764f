package download_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	_ "modernc.org/sqlite"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/download"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/download/mocks"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/events"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/migrations"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newQueue(d download.Downloader, bus download.Publisher, h download.History) *download.Queue {
	return download.NewQueue(d, bus, h, download.Options{
		PollInterval: 10 * time.Millisecond,
		OutputDir:    "/music",
	}, testLogger())
}

func waitDrained(t *testing.T, q *download.Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))
}

func drain(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func countType(evs []events.Event, eventType string) int {
	n := 0
	for _, e := range evs {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

var noop = download.DownloaderFunc(func(context.Context, download.Request) error { return nil })

func TestQueue_SubmitDedup(t *testing.T) {
	q := newQueue(noop, nil, nil)

	assert.False(t, q.Submit(download.Task{Title: "no id"}))
	assert.False(t, q.Submit(download.Task{BV: "   ", Title: "blank id"}))
	assert.True(t, q.Submit(download.Task{BV: "BV1", Title: "first"}))
	assert.False(t, q.Submit(download.Task{BV: "BV1", Title: "again"}), "pending bv")

	tasks := q.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "first", tasks[0].Title)
	assert.Equal(t, 1, tasks[0].Index)
	assert.Equal(t, "mp3", tasks[0].FileType)
	assert.Equal(t, "/music/first.mp3", tasks[0].OutputFile)
	assert.Equal(t, download.StatusPending, tasks[0].Status)

	require.True(t, q.Start(context.Background(), 1))
	waitDrained(t, q)

	assert.False(t, q.Submit(download.Task{BV: "BV1"}), "completed bv")
	assert.Equal(t, 1, q.ClearCompleted())
	assert.True(t, q.Submit(download.Task{BV: "BV1"}), "cleared bv")
}

func TestQueue_RunWithMockDownloader(t *testing.T) {
	ctrl := gomock.NewController(t)
	d := mocks.NewMockDownloader(ctrl)

	d.EXPECT().Download(gomock.Any(), download.Request{BV: "BV1", OutputPath: "/music/a.mp3", FileType: "mp3"}).Return(nil)
	d.EXPECT().Download(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req download.Request) error {
		if req.BV == "BV2" {
			return errors.New("403 forbidden")
		}
		return nil
	}).Times(2)

	bus := events.NewBus(nil, testLogger())
	defer bus.Close()
	ch := bus.SubscribeAll(100)

	q := newQueue(d, bus, nil)
	require.True(t, q.Submit(download.Task{BV: "BV1", Title: "a"}))
	require.True(t, q.Submit(download.Task{BV: "BV2", Title: "b"}))
	require.True(t, q.Submit(download.Task{BV: "BV3", Title: "c", FileType: "flac"}))

	require.True(t, q.Start(context.Background(), 2))
	waitDrained(t, q)

	s := q.Status()
	assert.False(t, s.Running)
	assert.Equal(t, 2, s.Completed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 0, s.Pending+s.Active)

	failed, ok := q.Task("BV2")
	require.True(t, ok)
	assert.Equal(t, download.StatusFailed, failed.Status)
	assert.Contains(t, failed.ErrorMsg, "403")
	assert.False(t, failed.FinishedAt.IsZero())

	evs := drain(ch)
	assert.Equal(t, 3, countType(evs, events.EventTaskAdded))
	assert.Equal(t, 3, countType(evs, events.EventTaskStarted))
	assert.Equal(t, 2, countType(evs, events.EventTaskCompleted))
	assert.Equal(t, 1, countType(evs, events.EventTaskFailed))
	require.Equal(t, 1, countType(evs, events.EventQueueCompleted))

	last := evs[len(evs)-1]
	require.Equal(t, events.EventQueueCompleted, last.EventType())
	qc := last.(*events.QueueCompleted)
	assert.Equal(t, 2, qc.Completed)
	assert.Equal(t, 1, qc.Failed)
	assert.Equal(t, s.RunID, qc.EntityID())
}

func TestQueue_QueueCompletedExactlyOnce(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))

	for round := range 25 {
		n := rng.IntN(30)
		workers := 1 + rng.IntN(8)
		failEvery := 2 + rng.IntN(4)

		t.Run(fmt.Sprintf("n=%d/w=%d", n, workers), func(t *testing.T) {
			var calls atomic.Int64
			d := download.DownloaderFunc(func(_ context.Context, req download.Request) error {
				c := calls.Add(1)
				time.Sleep(time.Duration(c%3) * time.Millisecond)
				if c%int64(failEvery) == 0 {
					return errors.New("flaky")
				}
				return nil
			})

			bus := events.NewBus(nil, testLogger())
			defer bus.Close()
			ch := bus.SubscribeAll(4*n + 10)

			q := newQueue(d, bus, nil)
			for i := range n {
				require.True(t, q.Submit(download.Task{BV: fmt.Sprintf("BV%d_%d", round, i)}))
			}

			require.True(t, q.Start(context.Background(), workers))
			waitDrained(t, q)

			s := q.Status()
			assert.Equal(t, n, s.Completed+s.Failed)
			assert.Equal(t, int64(n), calls.Load())

			evs := drain(ch)
			assert.Equal(t, 1, countType(evs, events.EventQueueCompleted))
			assert.Equal(t, n, countType(evs, events.EventTaskStarted))
		})
	}
}

func TestQueue_PanicBecomesFailure(t *testing.T) {
	d := download.DownloaderFunc(func(_ context.Context, req download.Request) error {
		if req.BV == "BVboom" {
			panic("nil pointer in transcoder")
		}
		return nil
	})
	q := newQueue(d, nil, nil)
	q.Submit(download.Task{BV: "BVboom"})
	q.Submit(download.Task{BV: "BVok"})

	q.Start(context.Background(), 1)
	waitDrained(t, q)

	boom, _ := q.Task("BVboom")
	assert.Equal(t, download.StatusFailed, boom.Status)
	assert.Contains(t, boom.ErrorMsg, "nil pointer in transcoder")

	ok, _ := q.Task("BVok")
	assert.Equal(t, download.StatusSuccess, ok.Status, "queue keeps running after a panic")
}

func TestQueue_StartTwice(t *testing.T) {
	release := make(chan struct{})
	d := download.DownloaderFunc(func(context.Context, download.Request) error {
		<-release
		return nil
	})
	q := newQueue(d, nil, nil)
	q.Submit(download.Task{BV: "BV1"})

	require.True(t, q.Start(context.Background(), 2))
	assert.False(t, q.Start(context.Background(), 2))
	assert.True(t, q.Status().Running)

	close(release)
	waitDrained(t, q)
	assert.False(t, q.Status().Running)
}

func TestQueue_StopLeavesPending(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	d := download.DownloaderFunc(func(context.Context, download.Request) error {
		started <- struct{}{}
		<-release
		return nil
	})

	bus := events.NewBus(nil, testLogger())
	defer bus.Close()
	done := bus.Subscribe(events.EventQueueCompleted, 1)

	q := newQueue(d, bus, nil)
	for i := range 3 {
		q.Submit(download.Task{BV: fmt.Sprintf("BV%d", i)})
	}
	q.Start(context.Background(), 1)
	<-started

	err := q.Stop(20 * time.Millisecond)
	assert.ErrorIs(t, err, download.ErrStopTimeout, "in-flight download is not cancelled")

	_, err = q.ClearAll()
	assert.ErrorIs(t, err, download.ErrRunning)

	close(release)
	waitDrained(t, q)
	require.NoError(t, q.Stop(time.Second))

	s := q.Status()
	assert.False(t, s.Running)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 2, s.Pending)
	assert.Empty(t, done, "stopped run is not a completed run")

	n, err := q.ClearAll()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Zero(t, q.Status().Total())
}

func TestQueue_RecordsHistory(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Apply(db))

	history := download.NewHistoryStore(db)
	d := download.DownloaderFunc(func(_ context.Context, req download.Request) error {
		if req.BV == "BV2" {
			return errors.New("gone")
		}
		return nil
	})
	q := newQueue(d, nil, history)
	q.Submit(download.Task{BV: "BV1", Title: "one", Source: "neuro"})
	q.Submit(download.Task{BV: "BV2", Title: "two"})

	q.Start(context.Background(), 2)
	waitDrained(t, q)

	ctx := context.Background()
	rows, err := history.List(ctx, download.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	two, err := history.Get(ctx, "BV2")
	require.NoError(t, err)
	assert.Equal(t, download.StatusFailed, two.Status)
	assert.Equal(t, "gone", two.ErrorMsg)

	assert.Equal(t, 2, q.ClearCompleted())
	rows, err = history.List(ctx, download.HistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestQueue_EmptyRunCompletes(t *testing.T) {
	bus := events.NewBus(nil, testLogger())
	defer bus.Close()
	ch := bus.Subscribe(events.EventQueueCompleted, 4)

	q := newQueue(noop, bus, nil)
	require.True(t, q.Start(context.Background(), 3))
	waitDrained(t, q)

	assert.Len(t, drain(ch), 1)
}

func TestQueue_WaitBeforeStart(t *testing.T) {
	q := newQueue(noop, nil, nil)
	assert.NoError(t, q.Wait(context.Background()))
	assert.NoError(t, q.Stop(time.Millisecond))
}

func TestQueue_Seed(t *testing.T) {
	q := newQueue(noop, nil, nil)
	require.True(t, q.Submit(download.Task{BV: "BV3", Title: "queued"}))

	n := q.Seed([]download.Task{
		{BV: "BV1", Title: "done", Status: download.StatusSuccess},
		{BV: "BV2", Title: "broken", Status: download.StatusFailed, ErrorMsg: "gone"},
		{BV: "BV3", Title: "already queued", Status: download.StatusSuccess},
		{BV: "BV4", Title: "never finished", Status: download.StatusDownloading},
		{BV: " ", Status: download.StatusSuccess},
	})
	assert.Equal(t, 2, n)

	s := q.Status()
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 1, s.Failed)

	assert.False(t, q.Submit(download.Task{BV: "BV1"}), "seeded success")
	assert.False(t, q.Submit(download.Task{BV: "BV2"}), "seeded failure")
	assert.True(t, q.Submit(download.Task{BV: "BV4"}), "non-terminal rows are ignored")

	three, ok := q.Task("BV3")
	require.True(t, ok)
	assert.Equal(t, download.StatusPending, three.Status)

	assert.Equal(t, 2, q.ClearCompleted())
	assert.True(t, q.Submit(download.Task{BV: "BV1"}))
}
