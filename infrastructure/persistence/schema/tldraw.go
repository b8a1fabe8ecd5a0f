package schema

import (
	"fmt"
	"sort"
)

// importStoreSnapshot converts a tldraw store snapshot into a schema 1
// document. Shapes of type "connection" become connections; every other
// shape becomes a node whose props carry the node fields. Record ids are
// kept so existing links into the canvas stay valid
func importStoreSnapshot(doc map[string]any) (map[string]any, error) {
	store, ok := doc["store"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("store snapshot has no record map")
	}

	ids := make([]string, 0, len(store))
	for id := range store {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nodes := []any{}
	connections := []any{}
	var bindings []map[string]any

	for _, id := range ids {
		rec, ok := store[id].(map[string]any)
		if !ok {
			continue
		}
		props, _ := rec["props"].(map[string]any)
		switch rec["typeName"] {
		case "shape":
			kind, _ := rec["type"].(string)
			if kind == "connection" {
				connections = append(connections, map[string]any{"id": id})
				continue
			}
			node := map[string]any{}
			for k, v := range props {
				node[k] = v
			}
			node["type"] = kind
			nodes = append(nodes, map[string]any{
				"id":   id,
				"x":    rec["x"],
				"y":    rec["y"],
				"node": node,
			})
		case "binding":
			terminal, _ := props["terminal"].(string)
			port, _ := props["portId"].(string)
			b := map[string]any{
				"id":           id,
				"connectionId": rec["fromId"],
				"nodeId":       rec["toId"],
				"terminal":     terminal,
				"portId":       port,
			}
			if idx, ok := rec["index"].(string); ok {
				b["index"] = idx
			}
			bindings = append(bindings, b)
		}
	}

	// tldraw orders bindings by their fractional index; ties keep id order
	sort.SliceStable(bindings, func(i, j int) bool {
		a, _ := bindings[i]["index"].(string)
		b, _ := bindings[j]["index"].(string)
		return a < b
	})
	out := make([]any, len(bindings))
	for i, b := range bindings {
		delete(b, "index")
		out[i] = b
	}

	return map[string]any{
		"nodes":       nodes,
		"connections": connections,
		"bindings":    out,
	}, nil
}
