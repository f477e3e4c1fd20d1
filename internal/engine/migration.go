package engine

import (
	"strings"

	"github.com/shaiso/flowgen/internal/domain"
)

// Migration — преобразование сырого документа flow между версиями схемы.
//
// Migrate должна быть чистой функцией: не изменять входной документ.
type Migration interface {
	From() string
	To() string
	Migrate(raw map[string]any) map[string]any
}

// MigrationReport — что сделал пайплайн.
type MigrationReport struct {
	// From — версия на входе ("" если не удалось прочитать).
	From string

	// To — версия на выходе.
	To string

	// Applied — применённые миграции в формате "0.9.0->1.0.0".
	Applied []string

	// Current — true, если результат имеет текущую версию схемы.
	// false означает, что документ вернулся как есть и должен быть
	// отвергнут или перепроверен ниже по цепочке.
	Current bool
}

// Pipeline — упорядоченный набор миграций до текущей версии.
type Pipeline struct {
	target     string
	migrations []Migration
}

// NewPipeline создаёт пайплайн до версии target.
func NewPipeline(target string, migrations ...Migration) *Pipeline {
	return &Pipeline{target: target, migrations: migrations}
}

// DefaultPipeline — пайплайн со всеми известными миграциями до FlowSchemaVersion.
func DefaultPipeline() *Pipeline {
	return NewPipeline(domain.FlowSchemaVersion, legacyTypeMigration{})
}

// Target возвращает целевую версию.
func (p *Pipeline) Target() string {
	return p.target
}

// Migrate доводит документ до целевой версии.
//
// Политика мягкого пропуска: если вход не объект или для его версии
// нет миграции, документ возвращается без изменений, а не с ошибкой.
// Решение принимает вызывающий по report.Current; ParseFlow такие
// документы отвергает проверкой схемы.
func (p *Pipeline) Migrate(raw any) (any, MigrationReport) {
	doc, ok := raw.(map[string]any)
	if !ok {
		return raw, MigrationReport{}
	}

	report := MigrationReport{From: schemaVersionOf(doc)}
	seen := make(map[string]bool)

	for {
		version := schemaVersionOf(doc)
		report.To = version

		if version == p.target {
			report.Current = true
			return doc, report
		}

		// Защита от миграции, которая не меняет версию
		if seen[version] {
			return doc, report
		}
		seen[version] = true

		m := p.find(version)
		if m == nil {
			return doc, report
		}

		doc = m.Migrate(doc)
		report.Applied = append(report.Applied, m.From()+"->"+m.To())
	}
}

func (p *Pipeline) find(from string) Migration {
	for _, m := range p.migrations {
		if m.From() == from {
			return m
		}
	}
	return nil
}

func schemaVersionOf(doc map[string]any) string {
	v, _ := doc["schemaVersion"].(string)
	return v
}

// legacyTypeMigration — 0.9.0 → 1.0.0.
//
// В 0.9.0 тип узла лежал в поле "type", версии и config могло не быть.
type legacyTypeMigration struct{}

func (legacyTypeMigration) From() string { return "0.9.0" }
func (legacyTypeMigration) To() string   { return "1.0.0" }

func (m legacyTypeMigration) Migrate(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	out["schemaVersion"] = m.To()

	rawNodes, ok := raw["nodes"].([]any)
	if !ok {
		out["nodes"] = []any{}
		return out
	}

	nodes := make([]any, 0, len(rawNodes))
	for _, rn := range rawNodes {
		node, ok := rn.(map[string]any)
		if !ok {
			nodes = append(nodes, rn)
			continue
		}
		nodes = append(nodes, migrateLegacyNode(node))
	}
	out["nodes"] = nodes

	return out
}

func migrateLegacyNode(node map[string]any) map[string]any {
	out := make(map[string]any, len(node))
	for k, v := range node {
		if k == "type" {
			continue
		}
		out[k] = v
	}

	nodeType := "action"
	if s, ok := node["nodeType"].(string); ok {
		nodeType = s
	} else if s, ok := node["type"].(string); ok {
		nodeType = s
	}
	out["nodeType"] = nodeType

	if s, ok := node["version"].(string); !ok || strings.TrimSpace(s) == "" {
		out["version"] = domain.DefaultNodeVersion
	}
	if _, ok := node["config"].(map[string]any); !ok {
		out["config"] = map[string]any{}
	}

	return out
}
