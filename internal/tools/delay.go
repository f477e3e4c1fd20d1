package tools

import (
	"context"
	"fmt"
	"time"
)

// ToolNameDelay — имя встроенного инструмента задержки.
const ToolNameDelay = "delay"

// DelayTool — инструмент задержки.
//
// Аргументы (config.arguments):
//
//	{
//	    "durationMs": 500
//	    // или
//	    "durationSec": 2
//	}
//
// Output: {"durationMs": 500}
type DelayTool struct{}

// NewDelayTool создаёт DelayTool.
func NewDelayTool() *DelayTool {
	return &DelayTool{}
}

func (t *DelayTool) Name() string        { return ToolNameDelay }
func (t *DelayTool) Description() string { return "Pauses the run for the given duration." }

func (t *DelayTool) Capabilities() Capabilities {
	return Capabilities{
		ExecutionMode:   ExecutionModeAsync,
		Streaming:       StreamingNone,
		SideEffectLevel: SideEffectNone,
	}
}

// Execute выполняет задержку.
func (t *DelayTool) Execute(ctx context.Context, req *Request) (*Result, error) {
	duration, err := t.parseDuration(Arguments(req))
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrToolCancelled, ctx.Err())
	case <-timer.C:
		return &Result{
			Output: map[string]any{"durationMs": duration.Milliseconds()},
		}, nil
	}
}

func (t *DelayTool) parseDuration(args map[string]any) (time.Duration, error) {
	if sec := GetInt(args, "durationSec"); sec > 0 {
		return time.Duration(sec) * time.Second, nil
	}
	if ms := GetInt(args, "durationMs"); ms > 0 {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return 0, fmt.Errorf("%w: %s: durationSec or durationMs required", ErrInvalidArguments, ToolNameDelay)
}
