// Package document models an FDML specification in memory. Documents are
// loaded from and written back to YAML `.fdml` files; the migration engine
// owns one Document per run and edits its collections in place.
package document

// Document is the root of an FDML specification.
type Document struct {
	Metadata        *Metadata        `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	System          *System          `json:"system,omitempty" yaml:"system,omitempty"`
	Entities        []Entity         `json:"entities,omitempty" yaml:"entities,omitempty"`
	Actions         []Action         `json:"actions,omitempty" yaml:"actions,omitempty"`
	Features        []Feature        `json:"features,omitempty" yaml:"features,omitempty"`
	Flows           []Flow           `json:"flows,omitempty" yaml:"flows,omitempty"`
	Constraints     []Constraint     `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Traceability    []Traceability   `json:"traceability,omitempty" yaml:"traceability,omitempty"`
	GenerationRules []GenerationRule `json:"generation_rules,omitempty" yaml:"generation_rules,omitempty"`
}

// Metadata carries document-level version information.
type Metadata struct {
	Version     string `json:"version" yaml:"version"`
	Author      string `json:"author,omitempty" yaml:"author,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Created     string `json:"created,omitempty" yaml:"created,omitempty"`
	Updated     string `json:"updated,omitempty" yaml:"updated,omitempty"`
}

// System describes the top-level system and its component relationships.
type System struct {
	ID            string         `json:"id" yaml:"id"`
	Name          string         `json:"name" yaml:"name"`
	Description   string         `json:"description,omitempty" yaml:"description,omitempty"`
	Components    []string       `json:"components,omitempty" yaml:"components,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty" yaml:"relationships,omitempty"`
}

// Relationship links two system components.
type Relationship struct {
	From        string `json:"from" yaml:"from"`
	To          string `json:"to" yaml:"to"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Entity is a data model declared by the specification.
type Entity struct {
	ID            string               `json:"id" yaml:"id"`
	Name          string               `json:"name,omitempty" yaml:"name,omitempty"`
	Description   string               `json:"description,omitempty" yaml:"description,omitempty"`
	Fields        []Field              `json:"fields,omitempty" yaml:"fields,omitempty"`
	Relationships []EntityRelationship `json:"relationships,omitempty" yaml:"relationships,omitempty"`
	Validation    []string             `json:"validation,omitempty" yaml:"validation,omitempty"`
}

// Field is one attribute of an entity.
type Field struct {
	Name        string            `json:"name" yaml:"name"`
	Type        string            `json:"type" yaml:"type"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Required    *bool             `json:"required,omitempty" yaml:"required,omitempty"`
	Default     any               `json:"default,omitempty" yaml:"default,omitempty"`
	Constraints []FieldConstraint `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Validation  []string          `json:"validation,omitempty" yaml:"validation,omitempty"`
}

// IsRequired reports whether the field was declared required.
func (f Field) IsRequired() bool {
	return f.Required != nil && *f.Required
}

// FieldConstraint restricts the values a field accepts.
type FieldConstraint struct {
	Type    string `json:"type" yaml:"type"`
	Value   any    `json:"value,omitempty" yaml:"value,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// EntityRelationship links an entity to another entity.
type EntityRelationship struct {
	Entity      string `json:"entity" yaml:"entity"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Action is an operation the specified system performs.
type Action struct {
	ID             string      `json:"id" yaml:"id"`
	Name           string      `json:"name,omitempty" yaml:"name,omitempty"`
	Description    string      `json:"description,omitempty" yaml:"description,omitempty"`
	Input          *ActionData `json:"input,omitempty" yaml:"input,omitempty"`
	Output         *ActionData `json:"output,omitempty" yaml:"output,omitempty"`
	SideEffects    []string    `json:"side_effects,omitempty" yaml:"side_effects,omitempty"`
	Preconditions  []string    `json:"preconditions,omitempty" yaml:"preconditions,omitempty"`
	Postconditions []string    `json:"postconditions,omitempty" yaml:"postconditions,omitempty"`
	Validation     []string    `json:"validation,omitempty" yaml:"validation,omitempty"`
}

// ActionData describes the payload an action consumes or produces.
type ActionData struct {
	Entity      string   `json:"entity,omitempty" yaml:"entity,omitempty"`
	Fields      []string `json:"fields,omitempty" yaml:"fields,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Feature groups behaviour scenarios under one user-facing capability.
type Feature struct {
	ID                 string     `json:"id" yaml:"id"`
	Title              string     `json:"title" yaml:"title"`
	Description        string     `json:"description,omitempty" yaml:"description,omitempty"`
	Scenarios          []Scenario `json:"scenarios,omitempty" yaml:"scenarios,omitempty"`
	AcceptanceCriteria []string   `json:"acceptance_criteria,omitempty" yaml:"acceptance_criteria,omitempty"`
	Dependencies       []string   `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Scenario is a given/when/then example for a feature.
type Scenario struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Given       []string `json:"given" yaml:"given"`
	When        []string `json:"when" yaml:"when"`
	Then        []string `json:"then" yaml:"then"`
}

// Flow is an ordered sequence of actions.
type Flow struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []FlowStep `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// FlowStep is one action invocation inside a flow.
type FlowStep struct {
	ID          string   `json:"id" yaml:"id"`
	Action      string   `json:"action" yaml:"action"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Conditions  []string `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// Constraint is a business rule evaluated against entities or actions.
type Constraint struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Type        string   `json:"type,omitempty" yaml:"type,omitempty"`
	Condition   string   `json:"condition" yaml:"condition"`
	AppliesTo   string   `json:"applies_to" yaml:"applies_to"`
	Message     string   `json:"message,omitempty" yaml:"message,omitempty"`
	Entities    []string `json:"entities,omitempty" yaml:"entities,omitempty"`
	Actions     []string `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// Traceability links a requirement to the element that satisfies it.
type Traceability struct {
	From        string `json:"from" yaml:"from"`
	To          string `json:"to" yaml:"to"`
	Relation    string `json:"relation" yaml:"relation"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// GenerationRule drives code generation from specification changes.
type GenerationRule struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Triggers    []string `json:"triggers,omitempty" yaml:"triggers,omitempty"`
	Generates   []string `json:"generates,omitempty" yaml:"generates,omitempty"`
	Template    string   `json:"template,omitempty" yaml:"template,omitempty"`
}

// Entity returns a pointer into the entity collection so callers can edit
// the entry in place.
func (d *Document) Entity(id string) (*Entity, bool) {
	for i := range d.Entities {
		if d.Entities[i].ID == id {
			return &d.Entities[i], true
		}
	}
	return nil, false
}

// Action returns a pointer to the action with the given id.
func (d *Document) Action(id string) (*Action, bool) {
	for i := range d.Actions {
		if d.Actions[i].ID == id {
			return &d.Actions[i], true
		}
	}
	return nil, false
}

// Feature returns a pointer to the feature with the given id.
func (d *Document) Feature(id string) (*Feature, bool) {
	for i := range d.Features {
		if d.Features[i].ID == id {
			return &d.Features[i], true
		}
	}
	return nil, false
}

// Constraint returns a pointer to the constraint with the given id.
func (d *Document) Constraint(id string) (*Constraint, bool) {
	for i := range d.Constraints {
		if d.Constraints[i].ID == id {
			return &d.Constraints[i], true
		}
	}
	return nil, false
}

// Field returns a pointer to the named field.
func (e *Entity) Field(name string) (*Field, bool) {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i], true
		}
	}
	return nil, false
}

// RemoveFeature drops every feature with the given id and reports how many
// were removed.
func (d *Document) RemoveFeature(id string) int {
	before := len(d.Features)
	d.Features = filter(d.Features, func(f Feature) bool { return f.ID != id })
	return before - len(d.Features)
}

// RemoveEntity drops every entity with the given id.
func (d *Document) RemoveEntity(id string) int {
	before := len(d.Entities)
	d.Entities = filter(d.Entities, func(e Entity) bool { return e.ID != id })
	return before - len(d.Entities)
}

// RemoveAction drops every action with the given id.
func (d *Document) RemoveAction(id string) int {
	before := len(d.Actions)
	d.Actions = filter(d.Actions, func(a Action) bool { return a.ID != id })
	return before - len(d.Actions)
}

// RemoveConstraint drops every constraint with the given id.
func (d *Document) RemoveConstraint(id string) int {
	before := len(d.Constraints)
	d.Constraints = filter(d.Constraints, func(c Constraint) bool { return c.ID != id })
	return before - len(d.Constraints)
}

// RemoveField drops the named field from the entity.
func (e *Entity) RemoveField(name string) int {
	before := len(e.Fields)
	e.Fields = filter(e.Fields, func(f Field) bool { return f.Name != name })
	return before - len(e.Fields)
}

func filter[T any](items []T, keep func(T) bool) []T {
	if len(items) == 0 {
		return items
	}
	out := items[:0]
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
