package orchestrator

import (
	"errors"
	"fmt"
)

// Коды ошибок выполнения.
const (
	// CodeFlowValidation — flow не прошёл валидацию, узлы не запускались.
	CodeFlowValidation = "FLOW_VALIDATION_ERROR"

	// CodeExecutorNotFound — NodeExecutor не умеет выполнять узел.
	CodeExecutorNotFound = "NODE_EXECUTOR_NOT_FOUND"

	// CodeNodeTimeout — узел не уложился в timeoutMs.
	CodeNodeTimeout = "NODE_TIMEOUT"

	// CodeNodeExecution — код по умолчанию для неструктурированных ошибок.
	CodeNodeExecution = "NODE_EXECUTION_ERROR"

	// CodeFlowScheduling — часть узлов так и не стала готовой (цикл).
	CodeFlowScheduling = "FLOW_SCHEDULING_ERROR"
)

// ExecutionError — единое представление ошибки выполнения.
//
// Любая ошибка исполнителя приводится к нему в NormalizeError;
// дальше движка другие формы ошибок не уходят.
type ExecutionError struct {
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	NodeID      string         `json:"nodeId,omitempty"`
	Recoverable bool           `json:"recoverable"`
	Details     map[string]any `json:"details,omitempty"`

	// Err — исходная ошибка (не сериализуется).
	Err error `json:"-"`
}

// Error реализует интерфейс error.
func (e *ExecutionError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s: node %s: %s", e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap возвращает исходную ошибку.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// ErrorCode возвращает код ошибки.
func (e *ExecutionError) ErrorCode() string {
	return e.Code
}

// NewExecutionError создаёт ошибку с кодом.
func NewExecutionError(code, message string, recoverable bool) *ExecutionError {
	return &ExecutionError{Code: code, Message: message, Recoverable: recoverable}
}

// Интерфейсы, по которым NormalizeError распознаёт структурированные ошибки.
type (
	codedError interface {
		error
		ErrorCode() string
	}
	recoverableError interface {
		IsRecoverable() bool
	}
	detailedError interface {
		ErrorDetails() map[string]any
	}
	messageError interface {
		ErrorMessage() string
	}
)

// NormalizeError приводит любую ошибку к *ExecutionError.
//
// - *ExecutionError копируется, пустой NodeID заполняется
// - ошибка с методом ErrorCode() сохраняет код; Recoverable берётся
//   из IsRecoverable(), иначе false
// - остальные ошибки получают NODE_EXECUTION_ERROR и не восстанавливаемы
func NormalizeError(err error, nodeID string) *ExecutionError {
	if err == nil {
		return nil
	}

	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		normalized := *execErr
		if normalized.NodeID == "" {
			normalized.NodeID = nodeID
		}
		if normalized.Code == "" {
			normalized.Code = CodeNodeExecution
		}
		if normalized.Err == nil {
			normalized.Err = err
		}
		return &normalized
	}

	var coded codedError
	if errors.As(err, &coded) && coded.ErrorCode() != "" {
		normalized := &ExecutionError{
			Code:    coded.ErrorCode(),
			Message: coded.Error(),
			NodeID:  nodeID,
			Err:     err,
		}
		if r, ok := coded.(recoverableError); ok {
			normalized.Recoverable = r.IsRecoverable()
		}
		if d, ok := coded.(detailedError); ok {
			normalized.Details = d.ErrorDetails()
		}
		if m, ok := coded.(messageError); ok {
			normalized.Message = m.ErrorMessage()
		}
		return normalized
	}

	return &ExecutionError{
		Code:    CodeNodeExecution,
		Message: err.Error(),
		NodeID:  nodeID,
		Err:     err,
	}
}

// Ошибки движка, не связанные с конкретным узлом.
var (
	// ErrNilFlow — Run вызван без flow.
	ErrNilFlow = errors.New("flow is nil")
)
