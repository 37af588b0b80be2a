package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/fdml/internal/document"
	"github.com/kingrea/fdml/internal/logbook"
	"github.com/kingrea/fdml/internal/migration/engine"
)

type invocation struct {
	code   int
	stdout string
	stderr string
}

func execute(t *testing.T, project string, args ...string) invocation {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(append([]string{"--project", project}, args...), &out, &errOut)
	return invocation{code: code, stdout: out.String(), stderr: errOut.String()}
}

func initProject(t *testing.T) string {
	t.Helper()
	project := t.TempDir()
	res := execute(t, project, "init", "shop")
	require.Equal(t, 0, res.code, res.stderr)
	return project
}

func loadDoc(t *testing.T, project string) *document.Document {
	t.Helper()
	doc, err := document.Load(filepath.Join(project, "spec.fdml"))
	require.NoError(t, err)
	return doc
}

func writeMigration(t *testing.T, project, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(project, "migrations", name), []byte(body), 0o644))
}

func TestInitCreatesProjectLayout(t *testing.T) {
	project := initProject(t)
	for _, rel := range []string{"fdml.yaml", "migrations", "spec.fdml", filepath.Join(".fdml", "logs")} {
		_, err := os.Stat(filepath.Join(project, rel))
		assert.NoError(t, err, rel)
	}
	doc := loadDoc(t, project)
	require.NotNil(t, doc.System)
	assert.Equal(t, "shop", doc.System.ID)

	require.NoError(t, os.WriteFile(filepath.Join(project, "spec.fdml"), []byte("entities: []\n"), 0o644))
	res := execute(t, project, "init", "shop")
	require.Equal(t, 0, res.code, res.stderr)
	data, err := os.ReadFile(filepath.Join(project, "spec.fdml"))
	require.NoError(t, err)
	assert.Equal(t, "entities: []\n", string(data), "init must not overwrite an existing document")
}

func TestAddEntityAndFieldThenList(t *testing.T) {
	project := initProject(t)

	res := execute(t, project, "add", "entity", "user", "--name", "User")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Added entity user")

	res = execute(t, project, "add", "field", "user", "age", "--field-type", "integer", "--default", "18", "--required")
	require.Equal(t, 0, res.code, res.stderr)

	user, ok := loadDoc(t, project).Entity("user")
	require.True(t, ok)
	require.Len(t, user.Fields, 1)
	assert.Equal(t, "integer", user.Fields[0].Type)
	assert.Equal(t, 18, user.Fields[0].Default)
	assert.True(t, user.Fields[0].IsRequired())

	res = execute(t, project, "list", "entities", "--output", "json")
	require.Equal(t, 0, res.code, res.stderr)
	var entities []document.Entity
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &entities))
	require.Len(t, entities, 1)
	assert.Equal(t, "age", entities[0].Fields[0].Name)

	res = execute(t, project, "list", "entities")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "user - User")
	assert.Contains(t, res.stdout, "- age: integer (required)")

	journal, err := logbook.ForDir(filepath.Join(project, "migrations"))
	require.NoError(t, err)
	lines, total := journal.Tail(10)
	assert.Equal(t, 2, total)
	assert.Contains(t, lines[1], "_add_field")

	entries, err := os.ReadDir(filepath.Join(project, "migrations", engine.BackupDirName))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "each add snapshots the document first")
}

func TestAddReportsErrorKind(t *testing.T) {
	project := initProject(t)

	res := execute(t, project, "add", "field", "ghost", "age")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "NotFoundError")

	require.Equal(t, 0, execute(t, project, "add", "feature", "checkout", "--title", "Checkout").code)
	res = execute(t, project, "add", "feature", "checkout", "--title", "Checkout again")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "ConflictError")

	res = execute(t, project, "add", "constraint", "positive_total", "--condition", " ", "--applies-to", "order.total")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "ValidationError")
}

func TestAddDryRunLeavesDocumentAlone(t *testing.T) {
	project := initProject(t)
	before, err := os.ReadFile(filepath.Join(project, "spec.fdml"))
	require.NoError(t, err)

	res := execute(t, project, "add", "entity", "order", "--dry-run")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Dry run")

	after, err := os.ReadFile(filepath.Join(project, "spec.fdml"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAddRecordWritesMigration(t *testing.T) {
	project := initProject(t)
	res := execute(t, project, "add", "action", "checkout", "--name", "Checkout", "--record")
	require.Equal(t, 0, res.code, res.stderr)

	matches, err := filepath.Glob(filepath.Join(project, "migrations", "*_add_action.yaml"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	res = execute(t, project, "migrate", "status")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "1 total, 1 applied, 0 pending")

	res = execute(t, project, "migrate", "rollback")
	require.Equal(t, 0, res.code, res.stderr)
	_, ok := loadDoc(t, project).Action("checkout")
	assert.False(t, ok, "recorded add must be reversible")
}

func TestAddRecordFailureLeavesNoMigrationBehind(t *testing.T) {
	project := initProject(t)

	res := execute(t, project, "add", "field", "ghost", "age", "--record")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "NotFoundError")
	matches, err := filepath.Glob(filepath.Join(project, "migrations", "*.yaml"))
	require.NoError(t, err)
	assert.Empty(t, matches, "a failed recorded add must not stay in the migration dir")

	require.Equal(t, 0, execute(t, project, "add", "entity", "user").code)
	res = execute(t, project, "migrate", "apply")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Nothing to apply")
}

func TestReadOnlyCommandsCreateNothing(t *testing.T) {
	project := t.TempDir()

	res := execute(t, project, "migrate", "status")
	require.Equal(t, 0, res.code, res.stderr)
	res = execute(t, project, "migrate", "apply", "--dry-run", "--path", "typo_dir")
	require.Equal(t, 0, res.code, res.stderr)
	res = execute(t, project, "migrate", "rollback", "--dry-run")
	require.Equal(t, 0, res.code, res.stderr)
	res = execute(t, project, "migrate", "history")
	require.Equal(t, 0, res.code, res.stderr)

	for _, name := range []string{"migrations", "typo_dir", ".fdml"} {
		_, err := os.Stat(filepath.Join(project, name))
		assert.True(t, os.IsNotExist(err), "%s should not exist: %v", name, err)
	}
	entries, err := os.ReadDir(project)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMigrateApplyStatusRollbackHistory(t *testing.T) {
	project := initProject(t)
	writeMigration(t, project, "001_add_order.yaml", `id: 001_add_order
title: Add order
up:
  - type: add_entity
    id: order
    name: Order
down:
  - type: remove_entity
    id: order
`)
	writeMigration(t, project, "002_add_total.yaml", `id: 002_add_total
title: Add total
dependencies: [001_add_order]
up:
  - type: add_field
    entity_id: order
    field_name: total
    field_type: float
down:
  - type: remove_field
    entity_id: order
    field_name: total
`)

	res := execute(t, project, "migrate", "apply", "--dry-run")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "would apply 2 migration(s)")
	_, err := os.Stat(filepath.Join(project, "migrations", engine.StateFileName))
	assert.True(t, os.IsNotExist(err), "dry run must not write state")

	res = execute(t, project, "migrate", "apply")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Applied 2 migration(s)")
	order, ok := loadDoc(t, project).Entity("order")
	require.True(t, ok)
	assert.Len(t, order.Fields, 1)

	res = execute(t, project, "migrate", "apply")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Nothing to apply")

	res = execute(t, project, "migrate", "status")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "2 total, 2 applied, 0 pending")
	assert.Contains(t, res.stdout, "Last applied: 002_add_total")

	res = execute(t, project, "migrate", "rollback", "--count", "2")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Rolled back 2 migration(s)")
	_, ok = loadDoc(t, project).Entity("order")
	assert.False(t, ok)

	res = execute(t, project, "migrate", "history")
	require.Equal(t, 0, res.code, res.stderr)
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "apply ids=001_add_order,002_add_total")
	assert.Contains(t, lines[1], "rollback ids=002_add_total,001_add_order")
}

func TestMigrateRollbackForwardOnlyFails(t *testing.T) {
	project := initProject(t)
	writeMigration(t, project, "001_forward.yaml", `id: 001_forward
up:
  - type: add_entity
    id: audit
`)
	require.Equal(t, 0, execute(t, project, "migrate", "apply").code)
	res := execute(t, project, "migrate", "rollback")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "NoReverseError")
}

func TestMigrateCreateWritesSkeleton(t *testing.T) {
	project := initProject(t)
	res := execute(t, project, "migrate", "create", "Add Orders", "--depends-on", "000_base")
	require.Equal(t, 0, res.code, res.stderr)

	matches, err := filepath.Glob(filepath.Join(project, "migrations", "*_001_add_orders.yaml"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "title: Add Orders")
	assert.Contains(t, string(data), "000_base")
}

func TestMigrateCycleReportsKind(t *testing.T) {
	project := initProject(t)
	writeMigration(t, project, "001_a.yaml", "id: 001_a\ndependencies: [002_b]\nup: []\n")
	writeMigration(t, project, "002_b.yaml", "id: 002_b\ndependencies: [001_a]\nup: []\n")
	res := execute(t, project, "migrate", "apply")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "CycleError")
}

func TestListRejectsUnknownFormat(t *testing.T) {
	project := initProject(t)
	res := execute(t, project, "list", "features", "--output", "xml")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "unknown output format")
}

func TestListEmptyJSONIsArray(t *testing.T) {
	project := initProject(t)
	res := execute(t, project, "list", "constraints", "-o", "json")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "[]", strings.TrimSpace(res.stdout))
}

func TestParseScalar(t *testing.T) {
	cases := map[string]any{
		"18":    18,
		"true":  true,
		"1.5":   1.5,
		"hello": "hello",
		"":      "",
	}
	for raw, want := range cases {
		got, err := parseScalar(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	_, err := parseScalar("{a: 1}")
	assert.Error(t, err)
}
