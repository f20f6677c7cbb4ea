package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrValidation, ErrCodec, ErrStoreConnect, ErrStoreClosed,
		ErrStoreIO, ErrDuplicateTask, ErrNotFound,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, errors.Is(a, b), "sentinel %d (%v) must not match sentinel %d (%v)", i, a, j, b)
		}
	}
}

func TestSentinelErrors_SurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("op=store.enqueue: %w", ErrDuplicateTask)
	assert.ErrorIs(t, wrapped, ErrDuplicateTask)
	assert.NotErrorIs(t, wrapped, ErrNotFound)
}

func TestStatus_Constants(t *testing.T) {
	assert.Equal(t, Status("pending"), StatusPending)
	assert.Equal(t, Status("in_progress"), StatusInProgress)
	assert.Equal(t, Status("success"), StatusSuccess)
	assert.Equal(t, Status("failed"), StatusFailed)
}
