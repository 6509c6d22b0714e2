package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"yield-ledger/internal/core/ports"
	"yield-ledger/internal/core/ports/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestSweepScheduler_KeepsRunningAfterFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	sweep := mocks.NewMockSweepService(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gomock.InOrder(
		sweep.EXPECT().Run(gomock.Any()).Return(nil, errors.New("db down")),
		sweep.EXPECT().Run(gomock.Any()).DoAndReturn(func(context.Context) (*ports.SweepReport, error) {
			cancel()
			return &ports.SweepReport{Processed: 1}, nil
		}),
	)

	done := make(chan error, 1)
	go func() {
		done <- NewSweepScheduler(sweep, 5*time.Millisecond, zerolog.Nop()).Start(ctx)
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}

func TestSweepScheduler_CancelledBeforeFirstRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	sweep := mocks.NewMockSweepService(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewSweepScheduler(sweep, time.Hour, zerolog.Nop()).Start(ctx)
	assert.NoError(t, err)
}
