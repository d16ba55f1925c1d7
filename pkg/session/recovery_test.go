package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/deskwire/deskwire/pkg/model"
	"github.com/deskwire/deskwire/pkg/resume"
)

func TestRecoverySeedsWhenNothingRecorded(t *testing.T) {
	st := resume.NewMemoryStore()
	rec := func(ctx context.Context, lastID int64) ([]model.Message, error) {
		t.Fatal("recovery must not run before a resume point exists")
		return nil, nil
	}
	r := newRecoveryController(st, 7, 5*time.Millisecond, rec, func([]model.Message) {}, func() int64 { return 42 }, zerolog.Nop())
	defer r.close()

	r.trigger(context.Background())
	waitFor(t, func() bool {
		id, err := st.LastMessageID(context.Background(), 7)
		require.NoError(t, err)
		return id == 42
	}, "resume point seeded from the live list")
}

func TestRecoveryReplaysAfterResumePoint(t *testing.T) {
	st := resume.NewMemoryStore()
	require.NoError(t, st.SetLastMessageID(context.Background(), 7, 10))

	var mu sync.Mutex
	var got []model.Message
	rec := func(ctx context.Context, lastID int64) ([]model.Message, error) {
		require.Equal(t, int64(10), lastID)
		return []model.Message{msg(11, 7, "a"), msg(13, 7, "b")}, nil
	}
	apply := func(ms []model.Message) {
		mu.Lock()
		got = append(got, ms...)
		mu.Unlock()
	}
	r := newRecoveryController(st, 7, 5*time.Millisecond, rec, apply, nil, zerolog.Nop())
	defer r.close()

	r.trigger(context.Background())
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, "recovered messages applied")

	id, err := st.LastMessageID(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(13), id, "resume point advances to the newest recovered id")
}

func TestRecoveryRetriggerRestartsTheClock(t *testing.T) {
	st := resume.NewMemoryStore()
	require.NoError(t, st.SetLastMessageID(context.Background(), 7, 1))

	var mu sync.Mutex
	runs := 0
	rec := func(ctx context.Context, lastID int64) ([]model.Message, error) {
		mu.Lock()
		runs++
		mu.Unlock()
		return nil, nil
	}
	r := newRecoveryController(st, 7, 40*time.Millisecond, rec, func([]model.Message) {}, nil, zerolog.Nop())
	defer r.close()

	// A flapping connection triggers repeatedly; only one run happens once it
	// settles.
	r.trigger(context.Background())
	time.Sleep(15 * time.Millisecond)
	r.trigger(context.Background())
	time.Sleep(15 * time.Millisecond)
	r.trigger(context.Background())

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs == 1
	}, "one recovery run")
	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	require.Equal(t, 1, runs)
	mu.Unlock()
}

func TestRecoveryFailureIsNonFatal(t *testing.T) {
	st := resume.NewMemoryStore()
	require.NoError(t, st.SetLastMessageID(context.Background(), 7, 5))

	rec := func(ctx context.Context, lastID int64) ([]model.Message, error) {
		return nil, context.DeadlineExceeded
	}
	r := newRecoveryController(st, 7, 5*time.Millisecond, rec, func([]model.Message) {
		t.Fatal("apply must not run on failure")
	}, nil, zerolog.Nop())
	defer r.close()

	r.trigger(context.Background())
	time.Sleep(40 * time.Millisecond)

	id, err := st.LastMessageID(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(5), id, "failed recovery leaves the resume point alone")
}
