package orchestrator

import (
	"context"
	"fmt"
	"time"
)

// attemptResult — итог выполнения узла с учётом политики.
type attemptResult struct {
	outputs  map[string]any
	err      *ExecutionError
	retries  int
	timedOut bool
}

// executeWithPolicy выполняет узел с повторами и таймаутом.
//
// Попыток не больше MaxRetries+1. Повтор выполняется только для
// Recoverable ошибок; между попытками фиксированная задержка Backoff.
// NODE_TIMEOUT невосстанавливаем по определению.
func (e *Engine) executeWithPolicy(ctx context.Context, req NodeRequest) attemptResult {
	if e.executor == nil || !e.executor.CanExecute(req.Node) {
		return attemptResult{
			err: &ExecutionError{
				Code:    CodeExecutorNotFound,
				Message: fmt.Sprintf("No executor available for node %s.", req.Node.ID),
				NodeID:  req.Node.ID,
			},
		}
	}

	maxRetries := req.Policy.MaxRetries()
	backoff := req.Policy.Backoff()

	for attempt := 0; ; attempt++ {
		outcome, err := e.invoke(ctx, req)
		if err == nil {
			var outputs map[string]any
			if outcome != nil {
				outputs = outcome.Outputs
			}
			return attemptResult{outputs: outputs, retries: attempt}
		}

		execErr := NormalizeError(err, req.Node.ID)

		if execErr.Recoverable && attempt < maxRetries {
			e.logger.Debug("retrying node",
				"node_id", req.Node.ID,
				"attempt", attempt+1,
				"code", execErr.Code,
				"backoff", backoff,
			)
			if !sleep(ctx, backoff) {
				return attemptResult{err: execErr, retries: attempt}
			}
			continue
		}

		return attemptResult{
			err:      execErr,
			retries:  attempt,
			timedOut: execErr.Code == CodeNodeTimeout,
		}
	}
}

// invoke выполняет одну попытку, при необходимости в гонке с таймером.
//
// По таймауту движок перестаёт ждать, но не отменяет работу
// исполнителя: горутина с Execute продолжит выполняться, пока
// исполнитель сам не вернётся. Это известный риск утечки ресурсов;
// исполнителям с долгой работой следует ограничивать её самостоятельно.
func (e *Engine) invoke(ctx context.Context, req NodeRequest) (*NodeOutcome, error) {
	if req.Policy.Timeout <= 0 {
		return e.safeExecute(ctx, req)
	}

	type reply struct {
		outcome *NodeOutcome
		err     error
	}

	// Буфер 1: опоздавший исполнитель не заблокируется на отправке
	done := make(chan reply, 1)
	go func() {
		outcome, err := e.safeExecute(ctx, req)
		done <- reply{outcome, err}
	}()

	timer := time.NewTimer(req.Policy.Timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.outcome, r.err
	case <-timer.C:
		return nil, &ExecutionError{
			Code:    CodeNodeTimeout,
			Message: fmt.Sprintf("Node execution timed out (%dms).", req.Policy.Timeout.Milliseconds()),
			NodeID:  req.Node.ID,
		}
	}
}

// safeExecute вызывает исполнителя, превращая panic в ошибку.
func (e *Engine) safeExecute(ctx context.Context, req NodeRequest) (outcome *NodeOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = &ExecutionError{
				Code:    CodeNodeExecution,
				Message: fmt.Sprintf("executor panicked: %v", r),
				NodeID:  req.Node.ID,
			}
		}
	}()
	return e.executor.Execute(ctx, req)
}

// sleep ждёт d или завершения ctx.
// Возвращает false, если ctx завершился раньше.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
