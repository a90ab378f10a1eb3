package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/relgraph/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Entity and property errors (E101-E109)
	ErrEmptyName         = "E101" // entity, relation or property name missing
	ErrDuplicateName     = "E102" // duplicate entity, relation or property name
	ErrInvalidName       = "E103" // name uses a reserved character or word
	ErrInvalidFieldType  = "E104" // unknown property type
	ErrUnknownDependency = "E105" // dependency names no sibling property
	ErrDependencyCycle   = "E106" // dependencies form a cycle

	// Relation errors (E110-E119)
	ErrUnknownEntity       = "E110" // relation endpoint names no entity
	ErrInvalidCardinality  = "E111" // relation type is not 1:1, 1:n, n:1 or n:n
	ErrInvalidMergeHint    = "E112" // merge hint unknown or meaningless for the type
	ErrSymmetricType       = "E113" // symmetric relation is not n:n
	ErrPropertyConflict    = "E114" // endpoint property already declared
	ErrMissingEndpoint     = "E115" // source property missing
	ErrReservedRelationKey = "E116" // relation property named id, source or target
)

// ValidationError represents a declaration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks declarations against the structural rules the schema
// compiler relies on. Returns all errors found (does not fail-fast).
// fieldTypes names registered composite field types that are valid property
// types besides the scalars.
func Validate(s *ir.Schema, fieldTypes ...string) []ValidationError {
	v := &validator{
		types:    make(map[string]bool, len(fieldTypes)),
		entities: make(map[string]*ir.Entity, len(s.Entities)),
		claimed:  make(map[string]string),
	}
	for _, t := range fieldTypes {
		v.types[t] = true
	}

	for i := range s.Entities {
		e := &s.Entities[i]
		field := fmt.Sprintf("entities[%d]", i)
		if strings.TrimSpace(e.Name) == "" {
			v.add(field+".name", "entity name is required", ErrEmptyName)
			continue
		}
		if _, dup := v.entities[e.Name]; dup {
			v.add(field+".name", fmt.Sprintf("duplicate entity name: %q", e.Name), ErrDuplicateName)
			continue
		}
		v.checkName(field+".name", e.Name)
		v.entities[e.Name] = e
		v.properties(e.Name, e.Properties, field+".properties", entityReserved)
	}

	relNames := make(map[string]bool, len(s.Relations))
	for i := range s.Relations {
		v.relation(&s.Relations[i], fmt.Sprintf("relations[%d]", i), relNames)
	}

	return v.errs
}

type validator struct {
	errs     []ValidationError
	types    map[string]bool
	entities map[string]*ir.Entity
	// claimed maps "Entity.path" to the declaration that owns it.
	claimed map[string]string
}

func (v *validator) add(field, msg, code string) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: msg, Code: code})
}

func (v *validator) checkName(field, name string) {
	if strings.ContainsAny(name, ".&*") {
		v.add(field, fmt.Sprintf("name %q must not contain '.', '&' or '*'", name), ErrInvalidName)
	}
}

// reserved names the top-level property names a declaration may not use.
type reserved struct {
	names map[string]bool
	code  string
}

var (
	entityReserved   = reserved{names: map[string]bool{"id": true}, code: ErrInvalidName}
	relationReserved = reserved{names: map[string]bool{"id": true, "source": true, "target": true}, code: ErrReservedRelationKey}
)

// properties validates one level of a property list and recurses into
// composite fields. owner is the dotted path of the enclosing entity field.
func (v *validator) properties(owner string, props []ir.Property, field string, res reserved) {
	names := make(map[string]bool, len(props))
	for i, p := range props {
		pf := fmt.Sprintf("%s[%d]", field, i)
		if strings.TrimSpace(p.Name) == "" {
			v.add(pf+".name", "property name is required", ErrEmptyName)
			continue
		}
		if names[p.Name] {
			v.add(pf+".name", fmt.Sprintf("duplicate property name: %q", p.Name), ErrDuplicateName)
			continue
		}
		names[p.Name] = true
		v.checkName(pf+".name", p.Name)
		if res.names[p.Name] {
			v.add(pf+".name", fmt.Sprintf("property name %q is reserved", p.Name), res.code)
		}
		if len(p.Fields) > 0 {
			v.claimed[owner+"."+p.Name] = "composite property"
		} else {
			v.claimed[owner+"."+p.Name] = "property"
		}

		switch {
		case len(p.Fields) > 0:
			v.properties(owner+"."+p.Name, p.Fields, pf+".fields", reserved{})
		case ir.ScalarTypes[p.Type] || v.types[p.Type]:
		default:
			v.add(pf+".type", fmt.Sprintf("invalid type %q for property %q", p.Type, p.Name), ErrInvalidFieldType)
		}
	}

	for i, p := range props {
		for _, dep := range p.Dependencies {
			if dep == p.Name || !names[dep] {
				v.add(fmt.Sprintf("%s[%d].dependencies", field, i),
					fmt.Sprintf("property %q depends on unknown sibling %q", p.Name, dep), ErrUnknownDependency)
			}
		}
	}

	for _, cycle := range DependencyCycles(props) {
		v.add(field, fmt.Sprintf("dependency cycle: %s", strings.Join(cycle, " -> ")), ErrDependencyCycle)
	}
}

func (v *validator) relation(r *ir.Relation, field string, seen map[string]bool) {
	name := r.RelationName()
	if seen[name] {
		v.add(field+".name", fmt.Sprintf("duplicate relation name: %q", name), ErrDuplicateName)
		return
	}
	seen[name] = true
	if r.Name != "" {
		v.checkName(field+".name", r.Name)
	}
	if _, clash := v.entities[name]; clash {
		v.add(field+".name", fmt.Sprintf("relation name %q collides with an entity", name), ErrDuplicateName)
	}

	if !ir.ValidCardinalities[r.Type] {
		v.add(field+".type", fmt.Sprintf("invalid relation type %q, must be one of 1:1, 1:n, n:1, n:n", r.Type), ErrInvalidCardinality)
	}
	if !ir.ValidMergeHints[r.Merge] {
		v.add(field+".merge", fmt.Sprintf("invalid merge hint %q, must be \"source\", \"target\" or \"none\"", r.Merge), ErrInvalidMergeHint)
	} else if r.Type == ir.ManyToMany && (r.Merge == ir.MergeSource || r.Merge == ir.MergeTarget) {
		v.add(field+".merge", "n:n relations always use their own table", ErrInvalidMergeHint)
	}
	if r.Symmetric() && r.Type != ir.ManyToMany {
		v.add(field+".type", fmt.Sprintf("symmetric relation %q must be n:n, got %s", name, r.Type), ErrSymmetricType)
	}
	if strings.TrimSpace(r.SourceProperty) == "" {
		v.add(field+".source_property", "source property is required", ErrMissingEndpoint)
	}

	for _, role := range []ir.Role{ir.RoleSource, ir.RoleTarget} {
		entity, prop := r.Endpoint(role)
		if _, ok := v.entities[entity]; !ok {
			v.add(fmt.Sprintf("%s.%s", field, role), fmt.Sprintf("unknown entity %q", entity), ErrUnknownEntity)
			continue
		}
		if prop == "" || (role == ir.RoleTarget && r.Symmetric()) {
			continue
		}
		key := entity + "." + prop
		if owner, taken := v.claimed[key]; taken {
			v.add(fmt.Sprintf("%s.%s_property", field, role),
				fmt.Sprintf("%s is already declared by %s", key, owner), ErrPropertyConflict)
			continue
		}
		if i := strings.LastIndex(prop, "."); i >= 0 {
			if v.claimed[entity+"."+prop[:i]] != "composite property" {
				v.add(fmt.Sprintf("%s.%s_property", field, role),
					fmt.Sprintf("%s does not name a composite property of %s", prop[:i], entity), ErrPropertyConflict)
				continue
			}
		}
		v.claimed[key] = "relation " + name
	}

	v.properties("relation:"+name, r.Properties, field+".properties", relationReserved)
}
