package shmdag

import "github.com/vmihailenco/msgpack/v5"

// Encode serializes a value to its wire bytes. MessagePack is self-describing
// and length-known, satisfying the byte serialization discipline of §4.4;
// it is also what original_source's rmp_serde codec produces, so Go and
// Rust workers sharing a prefix would observe compatible framing.
func Encode[T any](value T) ([]byte, error) {
	return msgpack.Marshal(value)
}

// Decode deserializes wire bytes produced by Encode.
func Decode[T any](data []byte) (T, error) {
	var value T
	err := msgpack.Unmarshal(data, &value)
	return value, err
}

// wireGraph is the msgpack-serializable shadow of a Graph: Graph itself
// keeps unexported adjacency fields for fast neighbor lookups, which
// msgpack cannot reach, so Mapping[Graph] marshals through this instead.
type wireGraph struct {
	Nodes []Node
	Edges []Edge
}

func (g Graph) toWire() wireGraph {
	return wireGraph{Nodes: g.Nodes(), Edges: g.Edges()}
}

func (w wireGraph) toGraph() (Graph, error) {
	payloads := make([]string, len(w.Nodes))
	for i, n := range w.Nodes {
		payloads[i] = n.Payload
	}
	g, err := New(payloads, w.Edges)
	if err != nil {
		return Graph{}, err
	}
	for i, n := range w.Nodes {
		g.nodes[i].Status = n.Status
	}
	return g, nil
}

// EncodeGraph serializes a Graph for storage in a Mapping[Graph].
func EncodeGraph(g Graph) ([]byte, error) {
	return Encode(g.toWire())
}

// DecodeGraph deserializes bytes produced by EncodeGraph.
func DecodeGraph(data []byte) (Graph, error) {
	w, err := Decode[wireGraph](data)
	if err != nil {
		return Graph{}, err
	}
	return w.toGraph()
}
