package protocol

import (
	"encoding/json"
	"fmt"
)

// Encode is the inverse of Decode. Peers and tests use it to build messages.
func Encode(entries []Entry) ([]byte, error) {
	out := make([]any, 0, len(entries))
	for i, e := range entries {
		switch v := e.(type) {
		case CorrelationBatch:
			ids := v.IDs
			if ids == nil {
				ids = []uint64{}
			}
			out = append(out, ids)
		case MakeNode:
			out = append(out, wireOut{UpdateType: UpdateMakeNode, Node: v.Node, NodeType: v.NodeType})
		case Destroy:
			out = append(out, wireOut{UpdateType: UpdateDestroy, Node: v.Node})
		case Add:
			idx := v.Index
			out = append(out, wireOut{UpdateType: UpdateAdd, Node: v.Node, Attr: v.Attr, Index: &idx, Value: v.Value})
		case Remove:
			out = append(out, wireOut{UpdateType: UpdateRemove, Node: v.Node, Attr: v.Attr, Value: v.Value})
		case SetAttr:
			out = append(out, wireOut{UpdateType: UpdateSetAttr, Node: v.Node, Attr: v.Attr, Value: v.Value})
		default:
			return nil, fmt.Errorf("%w: entry %d: unsupported type %T", ErrMalformedMessage, i, e)
		}
	}
	return json.Marshal(out)
}

type wireOut struct {
	UpdateType UpdateType      `json:"update-type"`
	Node       NodeID          `json:"node"`
	NodeType   string          `json:"type,omitempty"`
	Attr       string          `json:"attr,omitempty"`
	Index      *int            `json:"index,omitempty"`
	Value      json.RawMessage `json:"value,omitempty"`
}

// Value marshals v for use as an operation value. It panics on values that
// cannot be encoded, which is limited to programmer error.
func Value(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("protocol: encode value: %v", err))
	}
	return b
}
