package engine

import (
	"errors"
	"strings"
)

// ValidationCode — код структурной ошибки flow.
type ValidationCode string

const (
	CodeEdgeWithUnknownSource      ValidationCode = "EDGE_WITH_UNKNOWN_SOURCE"
	CodeEdgeWithUnknownTarget      ValidationCode = "EDGE_WITH_UNKNOWN_TARGET"
	CodeInvalidNodeConnection      ValidationCode = "INVALID_NODE_CONNECTION"
	CodeInvalidOutgoingEdgeCount   ValidationCode = "INVALID_OUTGOING_EDGE_COUNT"
	CodeIncompleteDecisionBranches ValidationCode = "INCOMPLETE_DECISION_BRANCHES"
	CodeCycleDetected              ValidationCode = "CYCLE_DETECTED"
	CodeDuplicateNodeID            ValidationCode = "DUPLICATE_NODE_ID"
)

// Ошибки схемы документа flow.
var (
	// ErrInvalidDocument — документ не разбирается как JSON/YAML объект.
	ErrInvalidDocument = errors.New("flow document is not a valid object")

	// ErrEmptyFlowID — не задан id.
	ErrEmptyFlowID = errors.New("flow id is required")

	// ErrEmptyFlowName — не задан name.
	ErrEmptyFlowName = errors.New("flow name is required")

	// ErrEmptySchemaVersion — не задан schemaVersion.
	ErrEmptySchemaVersion = errors.New("flow schemaVersion is required")

	// ErrUnsupportedSchemaVersion — версия не текущая даже после миграций.
	ErrUnsupportedSchemaVersion = errors.New("unsupported flow schemaVersion")

	// ErrInvalidNode — узел без id/label/типа или с неизвестным типом.
	ErrInvalidNode = errors.New("invalid flow node")

	// ErrDuplicateNodeID — несколько узлов с одинаковым ID.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrInvalidEdge — ребро без id/sourceNodeId/targetNodeId или с плохой меткой.
	ErrInvalidEdge = errors.New("invalid flow edge")

	// ErrFlowInvalid — flow не прошёл структурную валидацию.
	ErrFlowInvalid = errors.New("flow failed validation")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// ValidationError — структурная ошибка flow.
type ValidationError struct {
	Code      ValidationCode `json:"code"`
	Message   string         `json:"message"`
	SubjectID string         `json:"subjectId,omitempty"` // ID ребра или узла; пуст для CYCLE_DETECTED
}

// Error реализует интерфейс error.
func (e ValidationError) Error() string {
	return e.Message
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrFlowInvalid).
func (e ValidationError) Unwrap() error {
	return ErrFlowInvalid
}

// JoinMessages склеивает сообщения ошибок через "; ".
func JoinMessages(errs []ValidationError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// ValidationErrors — набор ошибок валидации как одна ошибка.
type ValidationErrors []ValidationError

// Error реализует интерфейс error.
func (es ValidationErrors) Error() string {
	return JoinMessages(es)
}

// Unwrap возвращает ErrFlowInvalid.
func (es ValidationErrors) Unwrap() error {
	return ErrFlowInvalid
}
