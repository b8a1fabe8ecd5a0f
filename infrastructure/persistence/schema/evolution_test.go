package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectVersion(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    int
		wantErr bool
	}{
		{name: "current", doc: `{"schema": 1, "nodes": []}`, want: 1},
		{name: "store snapshot", doc: `{"schema": {"schemaVersion": 2}, "store": {}}`, want: 0},
		{name: "unversioned nodes", doc: `{"nodes": []}`, want: CurrentVersion},
		{name: "garbage", doc: `{"hello": "world"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc map[string]any
			require.NoError(t, json.Unmarshal([]byte(tt.doc), &doc))

			got, err := DetectVersion(doc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpgradeBytes_CurrentIsUntouched(t *testing.T) {
	data := []byte(`{"schema":1,"nodes":[]}`)
	out, from, err := NewEvolution().UpgradeBytes(data)
	require.NoError(t, err)
	assert.Equal(t, 1, from)
	assert.Equal(t, data, out)
}

func TestUpgradeBytes_RejectsNewerSchema(t *testing.T) {
	_, _, err := NewEvolution().UpgradeBytes([]byte(`{"schema":7,"nodes":[]}`))
	assert.Error(t, err)
}

func TestUpgrade_StoreSnapshotOrdersBindingsByIndex(t *testing.T) {
	raw := `{"store": {
		"shape:n": {"typeName": "shape", "type": "message", "x": 1, "y": 2, "props": {"title": "T"}},
		"binding:z": {"typeName": "binding", "fromId": "shape:c1", "toId": "shape:n", "index": "a1", "props": {"terminal": "end", "portId": "input"}},
		"binding:a": {"typeName": "binding", "fromId": "shape:c2", "toId": "shape:n", "index": "a2", "props": {"terminal": "end", "portId": "input"}}
	}}`
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	out, from, err := NewEvolution().Upgrade(doc)
	require.NoError(t, err)
	assert.Equal(t, 0, from)
	assert.Equal(t, 1, out["schema"])

	nodes := out["nodes"].([]any)
	require.Len(t, nodes, 1)
	node := nodes[0].(map[string]any)["node"].(map[string]any)
	assert.Equal(t, "message", node["type"])
	assert.Equal(t, "T", node["title"])

	bindings := out["bindings"].([]any)
	require.Len(t, bindings, 2)
	assert.Equal(t, "binding:z", bindings[0].(map[string]any)["id"])
	assert.Equal(t, "binding:a", bindings[1].(map[string]any)["id"])
}

func TestRegisterMigration_RejectsDuplicates(t *testing.T) {
	e := NewEvolution()
	err := e.RegisterMigration(Migration{FromVersion: 0, ToVersion: 1, Up: importStoreSnapshot})
	assert.Error(t, err)

	err = e.RegisterMigration(Migration{FromVersion: 2, ToVersion: 1, Up: importStoreSnapshot})
	assert.Error(t, err)
}
