package portability

import (
	"time"

	"github.com/google/uuid"
)

// Kind names the entity type of an export node.
type Kind string

// Exportable entity kinds
const (
	KindScreen         Kind = "screen"
	KindScreenCategory Kind = "screen_category"
	KindScript         Kind = "script"
	KindScriptCategory Kind = "script_category"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindScreen, KindScreenCategory, KindScript, KindScriptCategory:
		return true
	}
	return false
}

// Attribute keys that hold references to other nodes.
const (
	attrScreenCategories = "screen_categories"
	attrScriptCategory   = "script_category"
	attrWatchers         = "watchers"
	attrConfig           = "config"
)

// PayloadType and PayloadVersion identify the envelope written by Payload.
const (
	PayloadType    = "screen_package"
	PayloadVersion = 1
)

// ExportNode is one exported entity and the nodes it depends on.
//
// Attributes hold exported field values; reference fields carry the stable
// ids of their targets. A node shared by several parents is the same pointer
// under each of them.
type ExportNode struct {
	StableID   uuid.UUID
	Kind       Kind
	Name       string
	Attributes map[string]any
	Dependents []*ExportNode
}

// Ref points at a node by stable id.
type Ref struct {
	UUID uuid.UUID `json:"uuid"`
	Type Kind      `json:"type"`
}

// PayloadNode is the flattened form of an ExportNode.
type PayloadNode struct {
	UUID       uuid.UUID      `json:"uuid"`
	Type       Kind           `json:"type"`
	Name       string         `json:"name,omitempty"`
	Attributes map[string]any `json:"attributes"`
	Dependents []Ref          `json:"dependents,omitempty"`
}

// Payload is a self-contained export: every node any root depends on is listed
// in Nodes exactly once, in discovery order.
type Payload struct {
	Type       string        `json:"type"`
	Version    int           `json:"version"`
	ExportedAt time.Time     `json:"exported_at"`
	Root       []uuid.UUID   `json:"root"`
	Nodes      []PayloadNode `json:"nodes"`
}

// TreeNode is the JSON view of an export tree. A node already open on the
// path from its root is rendered once more with Cycle set and no dependents.
type TreeNode struct {
	UUID       uuid.UUID  `json:"uuid"`
	Type       Kind       `json:"type"`
	Name       string     `json:"name,omitempty"`
	Cycle      bool       `json:"cycle,omitempty"`
	Dependents []TreeNode `json:"dependents,omitempty"`
}

// View renders roots as TreeNode values.
func View(roots []*ExportNode) []TreeNode {
	open := make(map[uuid.UUID]bool)
	out := make([]TreeNode, 0, len(roots))
	for _, root := range roots {
		out = append(out, view(root, open))
	}
	return out
}

func view(n *ExportNode, open map[uuid.UUID]bool) TreeNode {
	tn := TreeNode{UUID: n.StableID, Type: n.Kind, Name: n.Name}
	if open[n.StableID] {
		tn.Cycle = true
		return tn
	}
	open[n.StableID] = true
	for _, d := range n.Dependents {
		tn.Dependents = append(tn.Dependents, view(d, open))
	}
	delete(open, n.StableID)
	return tn
}
