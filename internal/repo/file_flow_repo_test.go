package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/flowgen/internal/domain"
)

func TestFileFlowRepo_MissingFile(t *testing.T) {
	r := NewFileFlowRepo(filepath.Join(t.TempDir(), "flow.json"))

	flow, err := r.Load()

	require.NoError(t, err)
	assert.Nil(t, flow)
}

func TestFileFlowRepo_SaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "flow.json")
	r := NewFileFlowRepo(path)

	flow := &domain.Flow{
		ID: "f", Name: "F", SchemaVersion: domain.FlowSchemaVersion,
		Nodes: []domain.FlowNode{{ID: "a", Label: "A", NodeType: "action", Metadata: map[string]string{"retryMax": "2"}}},
	}
	require.NoError(t, r.Save(flow))

	loaded, err := r.Load()
	require.NoError(t, err)
	assert.Equal(t, flow.ID, loaded.ID)
	assert.Equal(t, "2", loaded.Nodes[0].Metadata["retryMax"])

	require.NoError(t, r.Clear())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, r.Clear(), "clearing twice is not an error")
}

func TestFileFlowRepo_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileFlowRepo(path).Load()
	assert.Error(t, err)
}
