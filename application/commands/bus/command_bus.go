package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/anmolarora1/em/application/commands"
	"github.com/anmolarora1/em/pkg/common"
)

// CommandHandler handles a command
type CommandHandler interface {
	Handle(ctx context.Context, cmd commands.Command) (commands.Result, error)
}

// CommandHandlerFunc is an adapter to allow functions to be used as handlers
type CommandHandlerFunc func(ctx context.Context, cmd commands.Command) (commands.Result, error)

// Handle implements CommandHandler
func (f CommandHandlerFunc) Handle(ctx context.Context, cmd commands.Command) (commands.Result, error) {
	return f(ctx, cmd)
}

// Middleware defines command middleware
type Middleware func(next CommandHandler) CommandHandler

// CommandBus dispatches commands through the middleware pipeline to a single handler.
// There is exactly one handler because every command mutates the same graph.
type CommandBus struct {
	handler CommandHandler
}

// NewCommandBus creates a new command bus
func NewCommandBus(handler CommandHandler, middlewares ...Middleware) *CommandBus {
	return &CommandBus{
		handler: NewPipeline(middlewares...).Execute(handler),
	}
}

// Send dispatches a command to its handler
func (b *CommandBus) Send(ctx context.Context, cmd commands.Command) (commands.Result, error) {
	if cmd == nil {
		return commands.Result{}, ErrNilCommand
	}
	return b.handler.Handle(ctx, cmd)
}

// LoggingMiddleware logs command execution
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
			start := time.Now()
			result, err := next.Handle(ctx, cmd)

			fields := []zap.Field{
				zap.String("command", cmd.Name()),
				zap.Duration("duration", time.Since(start)),
			}
			if userID, ok := common.GetUserID(ctx); ok {
				fields = append(fields, zap.String("userID", userID))
			}
			switch {
			case err != nil:
				logger.Warn("Command failed", append(fields, zap.Error(err))...)
			case result.Alert != "":
				logger.Info("Command rejected", append(fields, zap.String("alert", result.Alert))...)
			default:
				logger.Debug("Command applied", append(fields,
					zap.Int("thoughtUpdates", len(result.Delta.ThoughtIndexUpdates)),
					zap.Int("contextUpdates", len(result.Delta.ContextIndexUpdates)),
				)...)
			}
			return result, err
		})
	}
}

// ValidationMiddleware checks the struct tags of a command before it reaches the reducer
func ValidationMiddleware(validate *validator.Validate) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
			if err := validate.Struct(cmd); err != nil {
				return commands.Result{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
			}
			return next.Handle(ctx, cmd)
		})
	}
}

// MetricsRecorder receives one observation per command
type MetricsRecorder interface {
	RecordCommand(name string, duration time.Duration, outcome string, deltaSize int)
}

// Command outcomes reported to the MetricsRecorder
const (
	OutcomeApplied  = "applied"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// MetricsMiddleware reports the outcome and latency of every command
func MetricsMiddleware(recorder MetricsRecorder) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
			start := time.Now()
			result, err := next.Handle(ctx, cmd)
			recorder.RecordCommand(cmd.Name(), time.Since(start), outcomeOf(result, err), result.Delta.Len())
			return result, err
		})
	}
}

// TracingMiddleware wraps each command in a span
func TracingMiddleware(tracer trace.Tracer) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
			ctx, span := tracer.Start(ctx, "command."+cmd.Name())
			defer span.End()

			result, err := next.Handle(ctx, cmd)
			span.SetAttributes(
				attribute.String("command.outcome", outcomeOf(result, err)),
				attribute.Int("delta.size", result.Delta.Len()),
			)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return result, err
		})
	}
}

func outcomeOf(result commands.Result, err error) string {
	switch {
	case err != nil:
		return OutcomeError
	case result.Alert != "":
		return OutcomeRejected
	case result.Changed():
		return OutcomeApplied
	default:
		return OutcomeNoop
	}
}

// Pipeline chains multiple middleware together
type Pipeline struct {
	middlewares []Middleware
}

// NewPipeline creates a new middleware pipeline
func NewPipeline(middlewares ...Middleware) *Pipeline {
	return &Pipeline{
		middlewares: middlewares,
	}
}

// Execute wraps handler so the first middleware runs outermost
func (p *Pipeline) Execute(handler CommandHandler) CommandHandler {
	for i := len(p.middlewares) - 1; i >= 0; i-- {
		handler = p.middlewares[i](handler)
	}
	return handler
}

// Errors
var (
	ErrNilCommand       = errors.New("command is nil")
	ErrValidationFailed = errors.New("command validation failed")
)
