package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/taskqueue/internal/domain"
)

func TestOpenMemory_SharesOneConnectionAcrossOperations(t *testing.T) {
	ctx := context.Background()
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Connect(ctx))

	now := time.Now().UTC()
	require.NoError(t, s.Enqueue(ctx, "m1", []byte("p"), now))

	reserved, err := s.Reserve(ctx, 1, now)
	require.NoError(t, err)
	require.Len(t, reserved, 1)

	applied, err := s.MarkSuccess(ctx, "m1", []byte(`"done"`), time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, applied)

	res, found, err := s.GetResult(ctx, "m1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.StatusSuccess, res.Status)
}
