package schema

import (
	"fmt"
	"strings"

	"github.com/roach88/relgraph/internal/ir"
)

// NodeID indexes a node in the model arena.
type NodeID int

// ValueField is the single field of a sub-entity synthesized for a scalar or
// registered-type property. Records of such nodes are wrapped and unwrapped
// transparently.
const ValueField = "value"

// IDColumn is the primary key column of every table.
const IDColumn = "id"

// FieldKind tags what a field resolves to.
type FieldKind int

const (
	KindID FieldKind = iota
	KindColumn
	KindComposite
	KindLink
)

func (k FieldKind) String() string {
	switch k {
	case KindID:
		return "id"
	case KindColumn:
		return "column"
	case KindComposite:
		return "composite"
	case KindLink:
		return "link"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// Field is one node of a map node's field tree.
type Field struct {
	Name string
	// Path is the field path from the node root.
	Path []string
	Kind FieldKind
	// Type is the scalar type of a column, or the registered type name of a
	// composite.
	Type string
	// FieldType is set for composites of a registered type.
	FieldType CompositeFieldType
	// Column is the physical column of KindID and KindColumn fields.
	Column string
	// Link is set for KindLink fields.
	Link *Link
	// Lazy marks links synthesized from lazy properties.
	Lazy         bool
	Dependencies []string

	Children []*Field
	index    map[string]*Field
}

// Child returns the direct child with the given name.
func (f *Field) Child(name string) (*Field, bool) {
	c, ok := f.index[name]
	return c, ok
}

// PathString returns the dot-joined field path.
func (f *Field) PathString() string {
	return strings.Join(f.Path, ".")
}

// IsLink reports whether the field hops to another node.
func (f *Field) IsLink() bool {
	return f.Kind == KindLink
}

func (f *Field) add(c *Field) {
	if f.index == nil {
		f.index = make(map[string]*Field)
	}
	f.index[c.Name] = c
	f.Children = append(f.Children, c)
}

// Leaves returns every column field below f, depth-first. Links are skipped.
func (f *Field) Leaves() []*Field {
	var out []*Field
	for _, c := range f.Children {
		switch c.Kind {
		case KindColumn:
			out = append(out, c)
		case KindComposite:
			out = append(out, c.Leaves()...)
		}
	}
	return out
}

// Links returns every link field below f, depth-first.
func (f *Field) Links() []*Field {
	var out []*Field
	for _, c := range f.Children {
		switch c.Kind {
		case KindLink:
			out = append(out, c)
		case KindComposite:
			out = append(out, c.Links()...)
		}
	}
	return out
}

// Link describes a hop from a field to the node on the other side of a
// relation.
type Link struct {
	Relation NodeID
	// From is the role the field's owner plays in the relation. It is empty
	// for the source and target fields of the relation node itself.
	From ir.Role
	// To is the role of the linked records.
	To    ir.Role
	Other NodeID
	// ToMany is true when the hop can reach several records.
	ToMany bool
	// Symmetric links match rows where the owner is either endpoint.
	Symmetric bool
	// Wrapped links lead to a synthesized sub-entity whose records are
	// exposed as their ValueField.
	Wrapped bool
}

// Endpoint reports whether the link leaves a relation row for one of its
// endpoints.
func (l *Link) Endpoint() bool {
	return l.From == ""
}

// NodeKind distinguishes entity nodes from relation nodes.
type NodeKind int

const (
	NodeEntity NodeKind = iota
	NodeRelation
)

// Node is the compiled form of an entity or relation.
type Node struct {
	ID   NodeID
	Name string
	Kind NodeKind
	// Synthesized nodes come from promoted properties.
	Synthesized bool
	// Wrapped nodes store a single ValueField.
	Wrapped bool
	Table   string
	Root    *Field
	// Order lists top-level field names with dependencies first.
	Order []string
	// Rel is set for relation nodes.
	Rel *Relation
	// Ends lists every relation this node is an endpoint of.
	Ends []End
}

// End names one relation endpoint occupied by a node.
type End struct {
	Relation NodeID
	Role     ir.Role
}

// IsRelation reports whether the node is a relation node.
func (n *Node) IsRelation() bool {
	return n.Kind == NodeRelation
}

// Field resolves a field path against the node.
func (n *Node) Field(path ...string) (*Field, error) {
	if len(path) == 0 {
		return nil, unknownField(n.Name, "")
	}
	cur := n.Root
	for i, seg := range path {
		next, ok := cur.Child(seg)
		if !ok {
			return nil, unknownField(n.Name, strings.Join(path[:i+1], "."))
		}
		if i < len(path)-1 && next.Kind != KindComposite {
			return nil, unknownField(n.Name, strings.Join(path, "."))
		}
		cur = next
	}
	return cur, nil
}

// Leaves returns every column field of the node, excluding id.
func (n *Node) Leaves() []*Field {
	return n.Root.Leaves()
}

// Links returns every link field of the node.
func (n *Node) Links() []*Field {
	return n.Root.Links()
}

// Relation is the relation-specific part of a relation node.
type Relation struct {
	Name      string
	Type      ir.Cardinality
	Source    NodeID
	Target    NodeID
	Reliance  bool
	Symmetric bool
	// Synthesized relations link an owner to a promoted sub-entity.
	Synthesized bool
	// SourcePath and TargetPath locate the endpoint fields. TargetPath is nil
	// when the target side has no field.
	SourcePath []string
	TargetPath []string
	// Host is the role whose table stores the relation row. Empty when the
	// relation has its own table.
	Host ir.Role

	columns map[ir.Role]string
}

// Merged reports whether the relation row lives in an endpoint's table.
func (r *Relation) Merged() bool {
	return r.Host != ""
}

// Endpoint returns the node at the given role.
func (r *Relation) Endpoint(role ir.Role) NodeID {
	if role == ir.RoleSource {
		return r.Source
	}
	return r.Target
}

// JoinColumn returns the column of the relation's table that holds the id of
// the endpoint at role. For a merged relation the host role's column is the
// host's own id column.
func (r *Relation) JoinColumn(role ir.Role) string {
	return r.columns[role]
}

// ForeignKey returns the column holding the stored endpoint's id for a merged
// relation, or "" for a relation with its own table.
func (r *Relation) ForeignKey() string {
	if !r.Merged() {
		return ""
	}
	return r.columns[r.Host.Opposite()]
}

// ManyFrom reports whether traversal from role can reach several records.
func (r *Relation) ManyFrom(role ir.Role) bool {
	return r.Type.ManyFrom(role)
}

// Table is a physical column list. Several nodes may share a table.
type Table struct {
	Name    string
	Columns []*Column
	index   map[string]*Column
}

// Column is one physical column.
type Column struct {
	Name string
	// Type is the logical type: a scalar type name or ir.TypeID.
	Type string
	// Owner names the node and field that claimed the column.
	Owner string
	// Key marks the primary key; Index marks foreign keys.
	Key   bool
	Index bool
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.index[name]
	return c, ok
}

func (t *Table) add(c *Column) error {
	if prev, dup := t.index[c.Name]; dup {
		return &SchemaError{
			Code:    ErrColumnCollision,
			Node:    t.Name,
			Field:   c.Name,
			Message: fmt.Sprintf("column claimed by both %s and %s", prev.Owner, c.Owner),
		}
	}
	if t.index == nil {
		t.index = make(map[string]*Column)
	}
	t.index[c.Name] = c
	t.Columns = append(t.Columns, c)
	return nil
}

// Model is the compiled schema: an arena of nodes plus the tables they map to.
type Model struct {
	nodes  []*Node
	byName map[string]NodeID
	tables []*Table
	byTbl  map[string]*Table
	types  FieldTypes
}

// Node returns the node with the given id.
func (m *Model) Node(id NodeID) *Node {
	return m.nodes[id]
}

// Lookup returns the entity or relation node with the given name.
func (m *Model) Lookup(name string) (*Node, error) {
	id, ok := m.byName[name]
	if !ok {
		return nil, &SchemaError{Code: ErrUnknownEntity, Node: name, Message: "unknown entity or relation"}
	}
	return m.nodes[id], nil
}

// Nodes returns every node in arena order.
func (m *Model) Nodes() []*Node {
	return m.nodes
}

// Tables returns every table in creation order.
func (m *Model) Tables() []*Table {
	return m.tables
}

// Table returns the named table.
func (m *Model) Table(name string) (*Table, bool) {
	t, ok := m.byTbl[name]
	return t, ok
}

// FieldTypes returns the composite field type registry the model was built
// with.
func (m *Model) FieldTypes() FieldTypes {
	return m.types
}

// RelationOf returns the relation node a link goes through.
func (m *Model) RelationOf(l *Link) *Node {
	return m.nodes[l.Relation]
}

// Reliants returns the relations whose targets rely on records of node id.
func (m *Model) Reliants(id NodeID) []*Node {
	var out []*Node
	for _, end := range m.nodes[id].Ends {
		rel := m.nodes[end.Relation]
		if rel.Rel.Reliance && end.Role == ir.RoleSource {
			out = append(out, rel)
		}
	}
	return out
}
