package producer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/taskqueue/internal/codec"
	"github.com/fairyhunter13/taskqueue/internal/domain"
	"github.com/fairyhunter13/taskqueue/internal/store/sqlite"
)

func newTestQueue(t *testing.T) (*TaskQueue, domain.Store) {
	t.Helper()
	st, err := sqlite.OpenFile(filepath.Join(t.TempDir(), "q.db"))
	require.NoError(t, err)
	q, err := New(Config{Store: st, Codec: codec.JSON{}})
	require.NoError(t, err)
	require.NoError(t, q.Connect(context.Background()))
	t.Cleanup(func() { _ = q.Close() })
	return q, st
}

func TestTaskQueue_Enqueue_RequiresHandler(t *testing.T) {
	q, _ := newTestQueue(t)
	_, err := q.Enqueue(context.Background(), EnqueueInput{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTaskQueue_Enqueue_AssignsUniqueIDs(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	id1, err := q.Enqueue(ctx, EnqueueInput{Handler: "noop"})
	require.NoError(t, err)
	id2, err := q.Enqueue(ctx, EnqueueInput{Handler: "noop"})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestTaskQueue_GetResult_TimeoutZeroReturnsImmediately(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	id, err := q.Enqueue(ctx, EnqueueInput{Handler: "noop"})
	require.NoError(t, err)

	start := time.Now()
	_, found, err := q.GetResult(ctx, id, 0)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestTaskQueue_GetResult_ReturnsOnceTerminal(t *testing.T) {
	q, st := newTestQueue(t)
	ctx := context.Background()
	id, err := q.Enqueue(ctx, EnqueueInput{Handler: "greet"})
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		_, _ = st.Reserve(ctx, 1, time.Now().UTC())
		val, _ := codec.JSON{}.EncodeValue("Greetings, World!")
		_, _ = st.MarkSuccess(ctx, id, val, time.Now().UTC())
	}()

	res, found, err := q.GetResult(ctx, id, 2*time.Second)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.StatusSuccess, res.Status)

	var out string
	require.NoError(t, q.DeserializeResult(res, &out))
	assert.Equal(t, "Greetings, World!", out)
}

func TestTaskQueue_GetResult_TimesOutWithoutTerminal(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	id, err := q.Enqueue(ctx, EnqueueInput{Handler: "noop"})
	require.NoError(t, err)

	start := time.Now()
	_, found, err := q.GetResult(ctx, id, 300*time.Millisecond)
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.False(t, found)
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestTaskQueue_GetResultDefault_UnsetPollsIndefinitely(t *testing.T) {
	q, st := newTestQueue(t)
	ctx := context.Background()
	id, err := q.Enqueue(ctx, EnqueueInput{Handler: "slow"})
	require.NoError(t, err)

	go func() {
		time.Sleep(400 * time.Millisecond)
		_, _ = st.Reserve(ctx, 1, time.Now().UTC())
		val, _ := codec.JSON{}.EncodeValue("late")
		_, _ = st.MarkSuccess(ctx, id, val, time.Now().UTC())
	}()

	res, found, err := q.GetResultDefault(ctx, id)
	require.NoError(t, err)
	require.True(t, found, "unset DefaultResultTimeout must poll past the point a single probe would give up")
	assert.Equal(t, domain.StatusSuccess, res.Status)
}

func TestTaskQueue_GetResultDefault_ExplicitZeroIsOneProbe(t *testing.T) {
	st, err := sqlite.OpenFile(filepath.Join(t.TempDir(), "q.db"))
	require.NoError(t, err)
	zero := time.Duration(0)
	q, err := New(Config{Store: st, Codec: codec.JSON{}, DefaultResultTimeout: &zero})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, q.Connect(ctx))
	t.Cleanup(func() { _ = q.Close() })

	id, err := q.Enqueue(ctx, EnqueueInput{Handler: "noop"})
	require.NoError(t, err)

	start := time.Now()
	_, found, err := q.GetResultDefault(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestTaskQueue_Eligibility_ETAHonored(t *testing.T) {
	q, st := newTestQueue(t)
	ctx := context.Background()
	eta := time.Now().Add(300 * time.Millisecond)
	id, err := q.Enqueue(ctx, EnqueueInput{Handler: "noop", ETA: eta})
	require.NoError(t, err)

	reserved, err := st.Reserve(ctx, 10, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, reserved, "task must not be reservable before its ETA")

	time.Sleep(350 * time.Millisecond)
	reserved, err = st.Reserve(ctx, 10, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, reserved, 1)
	assert.Equal(t, id, reserved[0].ID)
}
