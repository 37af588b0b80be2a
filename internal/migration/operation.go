package migration

import "fmt"

// Kind discriminates operation variants on the wire (the `type` key).
type Kind string

const (
	KindAddFeature       Kind = "add_feature"
	KindRemoveFeature    Kind = "remove_feature"
	KindAddEntity        Kind = "add_entity"
	KindRemoveEntity     Kind = "remove_entity"
	KindAddAction        Kind = "add_action"
	KindRemoveAction     Kind = "remove_action"
	KindAddConstraint    Kind = "add_constraint"
	KindRemoveConstraint Kind = "remove_constraint"
	KindAddField         Kind = "add_field"
	KindRemoveField      Kind = "remove_field"
	KindModifyEntity     Kind = "modify_entity"
	KindUpdateAction     Kind = "update_action"
	KindChangeValidation Kind = "change_validation"
)

// Target types accepted by ChangeValidation.
const (
	TargetEntity = "entity"
	TargetAction = "action"
	TargetField  = "field"
)

// Operation is one atomic edit to a document. The set of implementations is
// closed; the mutator switches over the concrete types.
type Operation interface {
	Kind() Kind
	// Target names the element the operation edits, for logs and errors.
	Target() string
	operation()
}

// AddFeature appends a feature. Scenario titles become placeholder scenarios.
type AddFeature struct {
	ID          string   `yaml:"id" validate:"required,nonblank"`
	Title       string   `yaml:"title" validate:"required,nonblank"`
	Description string   `yaml:"description,omitempty"`
	Scenarios   []string `yaml:"scenarios,omitempty"`
}

// RemoveFeature deletes the feature with the matching id.
type RemoveFeature struct {
	ID string `yaml:"id" validate:"required,nonblank"`
}

// AddEntity appends an entity without fields.
type AddEntity struct {
	ID          string `yaml:"id" validate:"required,nonblank"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// RemoveEntity deletes the entity with the matching id.
type RemoveEntity struct {
	ID string `yaml:"id" validate:"required,nonblank"`
}

// AddAction appends an action. Input and Output optionally name the entity
// the action consumes and produces.
type AddAction struct {
	ID          string `yaml:"id" validate:"required,nonblank"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
	Input       string `yaml:"input,omitempty"`
	Output      string `yaml:"output,omitempty"`
}

// RemoveAction deletes the action with the matching id.
type RemoveAction struct {
	ID string `yaml:"id" validate:"required,nonblank"`
}

// AddConstraint appends a business constraint.
type AddConstraint struct {
	ID          string `yaml:"id" validate:"required,nonblank"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
	Type        string `yaml:"constraint_type,omitempty"`
	Condition   string `yaml:"condition" validate:"required,nonblank"`
	AppliesTo   string `yaml:"applies_to" validate:"required,nonblank"`
	Message     string `yaml:"message,omitempty"`
}

// RemoveConstraint deletes the constraint with the matching id.
type RemoveConstraint struct {
	ID string `yaml:"id" validate:"required,nonblank"`
}

// AddField appends a field to an existing entity.
type AddField struct {
	EntityID    string `yaml:"entity_id" validate:"required,nonblank"`
	FieldName   string `yaml:"field_name" validate:"required,nonblank"`
	FieldType   string `yaml:"field_type" validate:"required,nonblank"`
	Required    *bool  `yaml:"required,omitempty"`
	Default     any    `yaml:"default,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// RemoveField deletes a field from an existing entity.
type RemoveField struct {
	EntityID  string `yaml:"entity_id" validate:"required,nonblank"`
	FieldName string `yaml:"field_name" validate:"required,nonblank"`
}

// ModifyEntity partially updates an entity; nil attributes are left alone.
type ModifyEntity struct {
	ID      string        `yaml:"id" validate:"required,nonblank"`
	Changes EntityChanges `yaml:"changes"`
}

// EntityChanges lists the entity attributes to overwrite. AddFields entries
// are "name" or "name:type" (type defaults to string).
type EntityChanges struct {
	Name         *string  `yaml:"name,omitempty"`
	Description  *string  `yaml:"description,omitempty"`
	AddFields    []string `yaml:"add_fields,omitempty"`
	RemoveFields []string `yaml:"remove_fields,omitempty"`
}

// UpdateAction partially updates an action.
type UpdateAction struct {
	ID      string        `yaml:"id" validate:"required,nonblank"`
	Changes ActionChanges `yaml:"changes"`
}

// ActionChanges lists the action attributes to overwrite. Input/output
// changes map ActionData keys (entity, description, fields) to new values;
// fields is a comma separated list.
type ActionChanges struct {
	Name          *string           `yaml:"name,omitempty"`
	Description   *string           `yaml:"description,omitempty"`
	InputChanges  map[string]string `yaml:"input_changes,omitempty"`
	OutputChanges map[string]string `yaml:"output_changes,omitempty"`
}

// ChangeValidation replaces the validation rules attached to an entity,
// action, or field. Field targets are addressed as "entity.field".
type ChangeValidation struct {
	TargetID   string   `yaml:"target_id" validate:"required,nonblank"`
	TargetType string   `yaml:"target_type" validate:"required,nonblank"`
	Rules      []string `yaml:"validation_rules,omitempty"`
}

func (AddFeature) Kind() Kind       { return KindAddFeature }
func (RemoveFeature) Kind() Kind    { return KindRemoveFeature }
func (AddEntity) Kind() Kind        { return KindAddEntity }
func (RemoveEntity) Kind() Kind     { return KindRemoveEntity }
func (AddAction) Kind() Kind        { return KindAddAction }
func (RemoveAction) Kind() Kind     { return KindRemoveAction }
func (AddConstraint) Kind() Kind    { return KindAddConstraint }
func (RemoveConstraint) Kind() Kind { return KindRemoveConstraint }
func (AddField) Kind() Kind         { return KindAddField }
func (RemoveField) Kind() Kind      { return KindRemoveField }
func (ModifyEntity) Kind() Kind     { return KindModifyEntity }
func (UpdateAction) Kind() Kind     { return KindUpdateAction }
func (ChangeValidation) Kind() Kind { return KindChangeValidation }

func (op AddFeature) Target() string       { return op.ID }
func (op RemoveFeature) Target() string    { return op.ID }
func (op AddEntity) Target() string        { return op.ID }
func (op RemoveEntity) Target() string     { return op.ID }
func (op AddAction) Target() string        { return op.ID }
func (op RemoveAction) Target() string     { return op.ID }
func (op AddConstraint) Target() string    { return op.ID }
func (op RemoveConstraint) Target() string { return op.ID }
func (op AddField) Target() string         { return op.EntityID + "." + op.FieldName }
func (op RemoveField) Target() string      { return op.EntityID + "." + op.FieldName }
func (op ModifyEntity) Target() string     { return op.ID }
func (op UpdateAction) Target() string     { return op.ID }
func (op ChangeValidation) Target() string { return op.TargetType + ":" + op.TargetID }

func (AddFeature) operation()       {}
func (RemoveFeature) operation()    {}
func (AddEntity) operation()        {}
func (RemoveEntity) operation()     {}
func (AddAction) operation()        {}
func (RemoveAction) operation()     {}
func (AddConstraint) operation()    {}
func (RemoveConstraint) operation() {}
func (AddField) operation()         {}
func (RemoveField) operation()      {}
func (ModifyEntity) operation()     {}
func (UpdateAction) operation()     {}
func (ChangeValidation) operation() {}

// Describe renders a one-line human readable summary of op.
func Describe(op Operation) string {
	switch o := op.(type) {
	case AddField:
		return fmt.Sprintf("%s %s (%s) on %s", o.Kind(), o.FieldName, o.FieldType, o.EntityID)
	case RemoveField:
		return fmt.Sprintf("%s %s from %s", o.Kind(), o.FieldName, o.EntityID)
	case ChangeValidation:
		return fmt.Sprintf("%s %s %s (%d rules)", o.Kind(), o.TargetType, o.TargetID, len(o.Rules))
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%s %s", op.Kind(), op.Target())
	}
}

// Inverse returns the operation that undoes an additive operation. Only the
// Add* variants have a structural inverse; everything else reports false and
// must be reversed by an authored down list.
func Inverse(op Operation) (Operation, bool) {
	switch o := op.(type) {
	case AddFeature:
		return RemoveFeature{ID: o.ID}, true
	case AddEntity:
		return RemoveEntity{ID: o.ID}, true
	case AddAction:
		return RemoveAction{ID: o.ID}, true
	case AddConstraint:
		return RemoveConstraint{ID: o.ID}, true
	case AddField:
		return RemoveField{EntityID: o.EntityID, FieldName: o.FieldName}, true
	default:
		return nil, false
	}
}
