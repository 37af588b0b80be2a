package document

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleSpec = `
metadata:
  version: "1.3"
  author: "Test"

entities:
  - id: user
    name: "User"
    fields:
      - name: id
        type: string
        required: true
      - name: email
        type: string
        required: true

features:
  - id: user_auth
    title: "User Authentication"
    scenarios:
      - id: login
        title: "User can login"
        given: ["User exists"]
        when: ["User provides credentials"]
        then: ["User is authenticated"]
`

func TestParseReadsCollections(t *testing.T) {
	doc, err := Parse([]byte(sampleSpec))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Metadata == nil || doc.Metadata.Version != "1.3" {
		t.Fatalf("unexpected metadata: %+v", doc.Metadata)
	}
	user, ok := doc.Entity("user")
	if !ok {
		t.Fatalf("expected user entity")
	}
	if len(user.Fields) != 2 || !user.Fields[0].IsRequired() {
		t.Fatalf("unexpected fields: %+v", user.Fields)
	}
	if len(doc.Features) != 1 || len(doc.Features[0].Scenarios) != 1 {
		t.Fatalf("unexpected features: %+v", doc.Features)
	}
}

func TestParseEmptyPayloadYieldsEmptyDocument(t *testing.T) {
	doc, err := Parse([]byte("  \n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(doc.Entities) != 0 || doc.Metadata != nil {
		t.Fatalf("expected empty document, got %+v", doc)
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("entities: [unterminated"))
	if err == nil || !strings.Contains(err.Error(), "document: decode") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestSaveRoundTripsThroughLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "specs", "app.fdml")
	doc, err := Parse([]byte(sampleSpec))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	doc.Actions = append(doc.Actions, Action{ID: "login", Name: "Login"})
	if err := Save(path, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := loaded.Action("login"); !ok {
		t.Fatalf("expected saved action to survive reload")
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.fdml")
	if _, err := Load(path); !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	doc, err := LoadOrEmpty(path)
	if err != nil {
		t.Fatalf("load or empty: %v", err)
	}
	if doc == nil || len(doc.Features) != 0 {
		t.Fatalf("expected empty document")
	}
}

func TestRemoveHelpersReportCounts(t *testing.T) {
	doc, err := Parse([]byte(sampleSpec))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if n := doc.RemoveFeature("missing"); n != 0 {
		t.Fatalf("expected no removal, got %d", n)
	}
	if n := doc.RemoveFeature("user_auth"); n != 1 {
		t.Fatalf("expected one removal, got %d", n)
	}
	user, _ := doc.Entity("user")
	if n := user.RemoveField("email"); n != 1 {
		t.Fatalf("expected email removed, got %d", n)
	}
	if len(doc.Entities[0].Fields) != 1 {
		t.Fatalf("expected in-place edit, got %+v", doc.Entities[0].Fields)
	}
}
