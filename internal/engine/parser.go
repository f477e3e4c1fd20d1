package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/flowgen/internal/domain"
)

// Format — формат документа flow.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseResult — результат разбора документа.
type ParseResult struct {
	Flow      *domain.Flow
	Migration MigrationReport
}

// ParseFlow разбирает документ flow (JSON или YAML).
//
// Шаги:
//  1. Декодирование в сырой документ
//  2. Миграция до текущей версии схемы (DefaultPipeline)
//  3. Проверка схемы (CheckSchema)
//  4. Преобразование в domain.Flow
//
// Структурная валидация (ValidateFlow) здесь не выполняется.
func ParseFlow(data []byte, lookup DefinitionLookup) (*ParseResult, error) {
	return ParseFlowWith(data, lookup, DefaultPipeline())
}

// ParseFlowWith — ParseFlow с заданным пайплайном миграций.
func ParseFlowWith(data []byte, lookup DefinitionLookup, pipeline *Pipeline) (*ParseResult, error) {
	raw, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}

	migrated, report := pipeline.Migrate(raw)

	if err := CheckSchema(migrated, lookup); err != nil {
		return nil, err
	}

	flow, err := toFlow(migrated)
	if err != nil {
		return nil, err
	}

	return &ParseResult{Flow: flow, Migration: report}, nil
}

// ReparseFlow прогоняет уже сохранённый flow через ParseFlow.
// Хранилища не мигрируют flow при чтении, поэтому flow перед запуском
// проходит тот же путь, что и импортируемый документ.
func ReparseFlow(flow *domain.Flow, lookup DefinitionLookup) (*ParseResult, error) {
	data, err := json.Marshal(flow)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return ParseFlow(data, lookup)
}

// MigrateDocument декодирует документ и прогоняет его через пайплайн,
// не проверяя схему.
func MigrateDocument(data []byte, pipeline *Pipeline) (any, MigrationReport, error) {
	raw, err := decodeDocument(data)
	if err != nil {
		return nil, MigrationReport{}, err
	}
	migrated, report := pipeline.Migrate(raw)
	return migrated, report, nil
}

// CheckSchema проверяет форму сырого документа после миграции.
//
// Проверяет:
// - Непустые id, name, schemaVersion
// - Массивы nodes и edges
// - У каждого узла: id, label, известный nodeType, position {x,y}
// - У каждого ребра: id, sourceNodeId, targetNodeId
// - schemaVersion == FlowSchemaVersion
//
// lookup может быть nil: тогда тип узла не сверяется с реестром.
func CheckSchema(raw any, lookup DefinitionLookup) error {
	doc, ok := raw.(map[string]any)
	if !ok {
		return ErrInvalidDocument
	}

	if !nonBlank(doc["id"]) {
		return ErrEmptyFlowID
	}
	if !nonBlank(doc["name"]) {
		return ErrEmptyFlowName
	}
	if !nonBlank(doc["schemaVersion"]) {
		return ErrEmptySchemaVersion
	}

	nodes, nodesOK := doc["nodes"].([]any)
	edges, edgesOK := doc["edges"].([]any)
	if !nodesOK || !edgesOK {
		return fmt.Errorf("%w: flow must contain \"nodes\" and \"edges\" arrays", ErrInvalidDocument)
	}

	seen := make(map[string]bool, len(nodes))
	for i, rn := range nodes {
		id, err := checkNode(rn, lookup)
		if err != nil {
			return fmt.Errorf("nodes[%d]: %w", i, err)
		}
		if seen[id] {
			return fmt.Errorf("%w: %s", ErrDuplicateNodeID, id)
		}
		seen[id] = true
	}

	for i, re := range edges {
		if err := checkEdge(re); err != nil {
			return fmt.Errorf("edges[%d]: %w", i, err)
		}
	}

	if v := doc["schemaVersion"].(string); v != domain.FlowSchemaVersion {
		return fmt.Errorf("%w: %q, expected %q", ErrUnsupportedSchemaVersion, v, domain.FlowSchemaVersion)
	}

	return nil
}

func checkNode(raw any, lookup DefinitionLookup) (string, error) {
	node, ok := raw.(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: not an object", ErrInvalidNode)
	}

	id, ok := node["id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("%w: id is required", ErrInvalidNode)
	}
	if _, ok := node["label"].(string); !ok {
		return "", fmt.Errorf("%w: %s: label is required", ErrInvalidNode, id)
	}

	nodeType, ok := node["nodeType"].(string)
	if !ok || nodeType == "" {
		return "", fmt.Errorf("%w: %s: nodeType is required", ErrInvalidNode, id)
	}
	if lookup != nil {
		if _, known := lookup.Definition(nodeType); !known {
			return "", fmt.Errorf("%w: %s: unknown nodeType %q", ErrInvalidNode, id, nodeType)
		}
	}

	pos, ok := node["position"].(map[string]any)
	if !ok || !isNumber(pos["x"]) || !isNumber(pos["y"]) {
		return "", fmt.Errorf("%w: %s: position {x,y} is required", ErrInvalidNode, id)
	}

	if v, present := node["version"]; present && !nonBlank(v) {
		return "", fmt.Errorf("%w: %s: version must be a non-empty string", ErrInvalidNode, id)
	}
	if v, present := node["config"]; present && v != nil {
		if _, ok := v.(map[string]any); !ok {
			return "", fmt.Errorf("%w: %s: config must be an object", ErrInvalidNode, id)
		}
	}
	if v, present := node["condition"]; present && v != nil {
		if _, ok := v.(string); !ok {
			return "", fmt.Errorf("%w: %s: condition must be a string", ErrInvalidNode, id)
		}
	}
	if v, present := node["metadata"]; present && v != nil {
		meta, ok := v.(map[string]any)
		if !ok {
			return "", fmt.Errorf("%w: %s: metadata must be an object", ErrInvalidNode, id)
		}
		for key, val := range meta {
			if _, ok := val.(string); !ok {
				return "", fmt.Errorf("%w: %s: metadata.%s must be a string", ErrInvalidNode, id, key)
			}
		}
	}

	return id, nil
}

func checkEdge(raw any) error {
	edge, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: not an object", ErrInvalidEdge)
	}
	for _, key := range []string{"id", "sourceNodeId", "targetNodeId"} {
		if _, ok := edge[key].(string); !ok {
			return fmt.Errorf("%w: %s is required", ErrInvalidEdge, key)
		}
	}
	if v, present := edge["branch"]; present && v != nil {
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%w: branch must be a string", ErrInvalidEdge)
		}
	}
	return nil
}

// decodeDocument декодирует JSON или YAML (JSON — подмножество YAML).
func decodeDocument(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrInvalidDocument
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	return normalizeMetadata(raw), nil
}

// normalizeMetadata приводит скалярные значения metadata к строкам.
// В YAML "timeoutMs: 500" декодируется в число, а политика ждёт строку.
func normalizeMetadata(raw any) any {
	doc, ok := raw.(map[string]any)
	if !ok {
		return raw
	}
	nodes, ok := doc["nodes"].([]any)
	if !ok {
		return raw
	}
	for _, rn := range nodes {
		node, ok := rn.(map[string]any)
		if !ok {
			continue
		}
		meta, ok := node["metadata"].(map[string]any)
		if !ok {
			continue
		}
		for k, v := range meta {
			switch val := v.(type) {
			case int:
				meta[k] = strconv.Itoa(val)
			case float64:
				meta[k] = strconv.FormatFloat(val, 'f', -1, 64)
			case bool:
				meta[k] = strconv.FormatBool(val)
			}
		}
	}
	return doc
}

func toFlow(raw any) (*domain.Flow, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	var flow domain.Flow
	if err := json.Unmarshal(data, &flow); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if flow.Edges == nil {
		flow.Edges = []domain.FlowEdge{}
	}
	return &flow, nil
}

// MarshalFlow сериализует flow в JSON (с отступом в 2 пробела) или YAML.
func MarshalFlow(flow *domain.Flow, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(flow)
	case FormatJSON, "":
		return json.MarshalIndent(flow, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// ParseFormat разбирает строку формата.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

func nonBlank(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int64, float64, json.Number:
		return true
	default:
		return false
	}
}
