package protocol

import "encoding/json"

// UpdateType is the operation discriminator carried in "update-type".
type UpdateType string

const (
	UpdateMakeNode UpdateType = "make-node"
	UpdateDestroy  UpdateType = "destroy"
	UpdateAdd      UpdateType = "add"
	UpdateRemove   UpdateType = "remove"
	UpdateSetAttr  UpdateType = "set-attr"
)

// AttrChildren is the only list attribute Add and Remove act on.
const AttrChildren = "children"

// Entry is one decoded unit of a message: a CorrelationBatch or an Operation.
type Entry interface {
	entry()
}

// Operation is a typed tree mutation.
type Operation interface {
	Entry
	Type() UpdateType
	Target() NodeID
}

// CorrelationBatch carries trace ids for latency bookkeeping only.
type CorrelationBatch struct {
	IDs []uint64
}

type MakeNode struct {
	Node     NodeID
	NodeType string
}

type Destroy struct {
	Node NodeID
}

type Add struct {
	Node  NodeID
	Attr  string
	Index int
	Value json.RawMessage
}

type Remove struct {
	Node  NodeID
	Attr  string
	Value json.RawMessage
}

type SetAttr struct {
	Node  NodeID
	Attr  string
	Value json.RawMessage
}

func (CorrelationBatch) entry() {}
func (MakeNode) entry()         {}
func (Destroy) entry()          {}
func (Add) entry()              {}
func (Remove) entry()           {}
func (SetAttr) entry()          {}

func (MakeNode) Type() UpdateType { return UpdateMakeNode }
func (Destroy) Type() UpdateType  { return UpdateDestroy }
func (Add) Type() UpdateType      { return UpdateAdd }
func (Remove) Type() UpdateType   { return UpdateRemove }
func (SetAttr) Type() UpdateType  { return UpdateSetAttr }

func (o MakeNode) Target() NodeID { return o.Node }
func (o Destroy) Target() NodeID  { return o.Node }
func (o Add) Target() NodeID      { return o.Node }
func (o Remove) Target() NodeID   { return o.Node }
func (o SetAttr) Target() NodeID  { return o.Node }
