package migration

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateAcceptsCompleteOperations(t *testing.T) {
	ops := Operations{
		AddFeature{ID: "auth", Title: "Auth"},
		RemoveFeature{ID: "auth"},
		AddEntity{ID: "user"},
		AddField{EntityID: "user", FieldName: "age", FieldType: "integer"},
		RemoveField{EntityID: "user", FieldName: "age"},
		AddConstraint{ID: "c1", Condition: "unique(email)", AppliesTo: "user.email"},
		ModifyEntity{ID: "user"},
		UpdateAction{ID: "login"},
		ChangeValidation{TargetID: "user", TargetType: TargetEntity},
	}
	if err := ValidateAll("001", ops); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateReportsFirstMissingField(t *testing.T) {
	err := Validate(AddField{EntityID: "user", FieldType: "string"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Op != KindAddField || vErr.Field != "field_name" {
		t.Fatalf("unexpected validation error: %+v", vErr)
	}
	if err.Error() != "migration: add_field: field_name is required" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestValidateRejectsBlankIdentifiers(t *testing.T) {
	err := Validate(AddFeature{ID: "   ", Title: "Auth"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "id" || vErr.Rule != "nonblank" {
		t.Fatalf("expected nonblank failure on id, got %v", err)
	}
}

func TestValidateConstraintNeedsConditionAndTarget(t *testing.T) {
	err := Validate(AddConstraint{ID: "c1", Condition: "x > 0"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "applies_to" {
		t.Fatalf("expected applies_to failure, got %v", err)
	}
}

func TestValidateAllPrefixesMigrationAndIndex(t *testing.T) {
	err := ValidateAll("004_bad", Operations{AddEntity{ID: "ok"}, RemoveEntity{}})
	if err == nil || !strings.Contains(err.Error(), "migration 004_bad operation[1]") {
		t.Fatalf("expected prefixed error, got %v", err)
	}
	if ErrorKind(err) != ErrKindValidation {
		t.Fatalf("unexpected kind %q", ErrorKind(err))
	}
}

func TestValidateNilOperation(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Fatalf("expected nil operation to fail validation")
	}
}
