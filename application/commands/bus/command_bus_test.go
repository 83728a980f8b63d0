package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/anmolarora1/em/application/commands"
	"github.com/anmolarora1/em/domain/core/aggregates"
	"github.com/anmolarora1/em/domain/core/valueobjects"
)

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordCommand(name string, duration time.Duration, outcome string, deltaSize int) {
	m.Called(name, outcome, deltaSize)
}

func TestPipeline_OrderIsOutermostFirst(t *testing.T) {
	var calls []string
	tag := func(name string) Middleware {
		return func(next CommandHandler) CommandHandler {
			return CommandHandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
				calls = append(calls, name)
				return next.Handle(ctx, cmd)
			})
		}
	}
	handler := CommandHandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		calls = append(calls, "handler")
		return commands.Result{Delta: aggregates.NewDelta()}, nil
	})

	b := NewCommandBus(handler, tag("first"), tag("second"))
	_, err := b.Send(context.Background(), commands.Clear{})

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "handler"}, calls)
}

func TestValidationMiddleware_RejectsInvalidCommand(t *testing.T) {
	called := false
	handler := CommandHandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		called = true
		return commands.Result{Delta: aggregates.NewDelta()}, nil
	})
	b := NewCommandBus(handler, ValidationMiddleware(validator.New()))

	_, err := b.Send(context.Background(), commands.Delete{})

	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.False(t, called)

	_, err = b.Send(context.Background(), commands.Delete{Path: valueobjects.NewPath(valueobjects.PathSegment{Value: "a"})})
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestMetricsMiddleware_ReportsOutcome(t *testing.T) {
	tests := []struct {
		name     string
		result   commands.Result
		err      error
		expected string
	}{
		{name: "noop", result: commands.Result{Delta: aggregates.NewDelta()}, expected: OutcomeNoop},
		{name: "rejected", result: commands.Result{Delta: aggregates.NewDelta(), Alert: "no"}, expected: OutcomeRejected},
		{name: "error", result: commands.Result{Delta: aggregates.NewDelta()}, err: errors.New("boom"), expected: OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := new(mockRecorder)
			recorder.On("RecordCommand", "clear", tt.expected, 0).Return()
			handler := CommandHandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
				return tt.result, tt.err
			})

			b := NewCommandBus(handler,
				LoggingMiddleware(zap.NewNop()),
				TracingMiddleware(noop.NewTracerProvider().Tracer("test")),
				MetricsMiddleware(recorder),
			)
			_, _ = b.Send(context.Background(), commands.Clear{})

			recorder.AssertExpectations(t)
		})
	}
}

func TestCommandBus_NilCommand(t *testing.T) {
	b := NewCommandBus(CommandHandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		return commands.Result{}, nil
	}))

	_, err := b.Send(context.Background(), nil)

	assert.ErrorIs(t, err, ErrNilCommand)
}
