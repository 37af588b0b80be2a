// Package mutator applies migration operations to an in-memory document.
// Reversal is not structural: callers undo a migration by applying its
// authored down list with ApplyDown.
package mutator

import (
	"fmt"
	"strings"

	"github.com/kingrea/fdml/internal/document"
	"github.com/kingrea/fdml/internal/migration"
)

const defaultFieldType = "string"

// Apply performs op against doc. Removals of absent ids are no-ops; edits of
// absent targets fail with *migration.NotFoundError.
func Apply(doc *document.Document, op migration.Operation) error {
	if doc == nil {
		return fmt.Errorf("mutator: nil document")
	}
	switch o := op.(type) {
	case migration.AddFeature:
		return addFeature(doc, o)
	case migration.RemoveFeature:
		doc.RemoveFeature(o.ID)
	case migration.AddEntity:
		if _, ok := doc.Entity(o.ID); ok {
			return &migration.ConflictError{Element: "entity", ID: o.ID}
		}
		doc.Entities = append(doc.Entities, document.Entity{ID: o.ID, Name: o.Name, Description: o.Description})
	case migration.RemoveEntity:
		doc.RemoveEntity(o.ID)
	case migration.AddAction:
		return addAction(doc, o)
	case migration.RemoveAction:
		doc.RemoveAction(o.ID)
	case migration.AddConstraint:
		if _, ok := doc.Constraint(o.ID); ok {
			return &migration.ConflictError{Element: "constraint", ID: o.ID}
		}
		doc.Constraints = append(doc.Constraints, document.Constraint{
			ID:          o.ID,
			Name:        o.Name,
			Description: o.Description,
			Type:        o.Type,
			Condition:   o.Condition,
			AppliesTo:   o.AppliesTo,
			Message:     o.Message,
		})
	case migration.RemoveConstraint:
		doc.RemoveConstraint(o.ID)
	case migration.AddField:
		return addField(doc, o)
	case migration.RemoveField:
		entity, ok := doc.Entity(o.EntityID)
		if !ok {
			return &migration.NotFoundError{Element: "entity", ID: o.EntityID}
		}
		if entity.RemoveField(o.FieldName) == 0 {
			return &migration.NotFoundError{Element: "field", ID: o.EntityID + "." + o.FieldName}
		}
	case migration.ModifyEntity:
		return modifyEntity(doc, o)
	case migration.UpdateAction:
		return updateAction(doc, o)
	case migration.ChangeValidation:
		return changeValidation(doc, o)
	case nil:
		return fmt.Errorf("mutator: nil operation")
	default:
		return fmt.Errorf("mutator: unsupported operation %T", op)
	}
	return nil
}

// ApplyUp applies ops in order and stops at the first failure.
func ApplyUp(doc *document.Document, ops migration.Operations) error {
	for i, op := range ops {
		if err := Apply(doc, op); err != nil {
			return fmt.Errorf("up[%d] %s: %w", i, migration.Describe(op), err)
		}
	}
	return nil
}

// ApplyDown applies ops last to first and stops at the first failure.
func ApplyDown(doc *document.Document, ops migration.Operations) error {
	for i := len(ops) - 1; i >= 0; i-- {
		if err := Apply(doc, ops[i]); err != nil {
			return fmt.Errorf("down[%d] %s: %w", i, migration.Describe(ops[i]), err)
		}
	}
	return nil
}

func addFeature(doc *document.Document, op migration.AddFeature) error {
	if _, ok := doc.Feature(op.ID); ok {
		return &migration.ConflictError{Element: "feature", ID: op.ID}
	}
	feature := document.Feature{ID: op.ID, Title: op.Title, Description: op.Description}
	for i, title := range op.Scenarios {
		feature.Scenarios = append(feature.Scenarios, placeholderScenario(op.ID, i+1, title))
	}
	doc.Features = append(doc.Features, feature)
	return nil
}

func placeholderScenario(featureID string, n int, title string) document.Scenario {
	return document.Scenario{
		ID:    fmt.Sprintf("%s_scenario_%d", featureID, n),
		Title: title,
		Given: []string{"the system is in its initial state"},
		When:  []string{"the user performs " + strings.ToLower(title)},
		Then:  []string{"the expected outcome occurs"},
	}
}

func addAction(doc *document.Document, op migration.AddAction) error {
	if _, ok := doc.Action(op.ID); ok {
		return &migration.ConflictError{Element: "action", ID: op.ID}
	}
	action := document.Action{ID: op.ID, Name: op.Name, Description: op.Description}
	if op.Input != "" {
		action.Input = &document.ActionData{Entity: op.Input}
	}
	if op.Output != "" {
		action.Output = &document.ActionData{Entity: op.Output}
	}
	doc.Actions = append(doc.Actions, action)
	return nil
}

func addField(doc *document.Document, op migration.AddField) error {
	entity, ok := doc.Entity(op.EntityID)
	if !ok {
		return &migration.NotFoundError{Element: "entity", ID: op.EntityID}
	}
	if _, exists := entity.Field(op.FieldName); exists {
		return &migration.ConflictError{Element: "field", ID: op.EntityID + "." + op.FieldName}
	}
	field := document.Field{
		Name:        op.FieldName,
		Type:        op.FieldType,
		Description: op.Description,
		Default:     op.Default,
	}
	if op.Required != nil {
		required := *op.Required
		field.Required = &required
	}
	entity.Fields = append(entity.Fields, field)
	return nil
}

func modifyEntity(doc *document.Document, op migration.ModifyEntity) error {
	entity, ok := doc.Entity(op.ID)
	if !ok {
		return &migration.NotFoundError{Element: "entity", ID: op.ID}
	}
	changes := op.Changes
	if changes.Name != nil {
		entity.Name = *changes.Name
	}
	if changes.Description != nil {
		entity.Description = *changes.Description
	}
	for _, spec := range changes.AddFields {
		name, typ := splitFieldSpec(spec)
		if name == "" {
			return &migration.ValidationError{Op: op.Kind(), Field: "changes.add_fields", Rule: "nonblank"}
		}
		if _, exists := entity.Field(name); exists {
			continue
		}
		entity.Fields = append(entity.Fields, document.Field{Name: name, Type: typ})
	}
	for _, spec := range changes.RemoveFields {
		name, _ := splitFieldSpec(spec)
		entity.RemoveField(name)
	}
	return nil
}

// splitFieldSpec parses "name" or "name:type".
func splitFieldSpec(spec string) (string, string) {
	name, typ, found := strings.Cut(spec, ":")
	name = strings.TrimSpace(name)
	typ = strings.TrimSpace(typ)
	if !found || typ == "" {
		typ = defaultFieldType
	}
	return name, typ
}

func updateAction(doc *document.Document, op migration.UpdateAction) error {
	action, ok := doc.Action(op.ID)
	if !ok {
		return &migration.NotFoundError{Element: "action", ID: op.ID}
	}
	changes := op.Changes
	if changes.Name != nil {
		action.Name = *changes.Name
	}
	if changes.Description != nil {
		action.Description = *changes.Description
	}
	if len(changes.InputChanges) > 0 {
		if action.Input == nil {
			action.Input = &document.ActionData{}
		}
		if err := patchActionData(action.Input, changes.InputChanges, "changes.input_changes"); err != nil {
			return err
		}
	}
	if len(changes.OutputChanges) > 0 {
		if action.Output == nil {
			action.Output = &document.ActionData{}
		}
		if err := patchActionData(action.Output, changes.OutputChanges, "changes.output_changes"); err != nil {
			return err
		}
	}
	return nil
}

func patchActionData(data *document.ActionData, patch map[string]string, path string) error {
	for key, value := range patch {
		switch key {
		case "entity":
			data.Entity = value
		case "description":
			data.Description = value
		case "fields":
			data.Fields = splitList(value)
		default:
			return &migration.ValidationError{Op: migration.KindUpdateAction, Field: path + "." + key, Rule: "oneof=entity description fields"}
		}
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func changeValidation(doc *document.Document, op migration.ChangeValidation) error {
	rules := append([]string(nil), op.Rules...)
	switch op.TargetType {
	case migration.TargetEntity:
		entity, ok := doc.Entity(op.TargetID)
		if !ok {
			return &migration.NotFoundError{Element: "entity", ID: op.TargetID}
		}
		entity.Validation = rules
	case migration.TargetAction:
		action, ok := doc.Action(op.TargetID)
		if !ok {
			return &migration.NotFoundError{Element: "action", ID: op.TargetID}
		}
		action.Validation = rules
	case migration.TargetField:
		entityID, fieldName, found := strings.Cut(op.TargetID, ".")
		if !found || fieldName == "" {
			return &migration.ValidationError{Op: op.Kind(), Field: "target_id", Rule: "entity.field"}
		}
		entity, ok := doc.Entity(entityID)
		if !ok {
			return &migration.NotFoundError{Element: "entity", ID: entityID}
		}
		field, ok := entity.Field(fieldName)
		if !ok {
			return &migration.NotFoundError{Element: "field", ID: op.TargetID}
		}
		field.Validation = rules
	default:
		return &migration.ValidationError{Op: op.Kind(), Field: "target_type", Rule: "oneof=entity action field"}
	}
	return nil
}
