package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Extension is the conventional suffix for specification files.
const Extension = ".fdml"

// ErrNotExist is returned by Load when the target file is absent.
var ErrNotExist = errors.New("document: file does not exist")

// Parse decodes a document from YAML bytes. An empty payload yields an empty
// document so that a freshly created target can be migrated from scratch.
func Parse(data []byte) (*Document, error) {
	doc := &Document{}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("document: decode: %w", err)
	}
	return doc, nil
}

// Decode reads and parses a document from r.
func Decode(r io.Reader) (*Document, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("document: read: %w", err)
	}
	return Parse(content)
}

// Marshal renders the document as YAML with two-space indentation.
func Marshal(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("document: nil document")
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("document: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("document: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Load reads the document stored at path. ErrNotExist is returned (wrapped)
// when the file is missing.
func Load(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return nil, fmt.Errorf("document: read %s: %w", path, err)
	}
	doc, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("document: %s: %w", path, err)
	}
	return doc, nil
}

// LoadOrEmpty behaves like Load but returns an empty document for a missing file.
func LoadOrEmpty(path string) (*Document, error) {
	doc, err := Load(path)
	if errors.Is(err, ErrNotExist) {
		return &Document{}, nil
	}
	return doc, err
}

// Save writes the document to path. The content is written to a temporary
// sibling first and renamed over the target so readers never observe a
// partially written file.
func Save(path string, doc *Document) error {
	content, err := Marshal(doc)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, content, 0o644)
}

// WriteFileAtomic writes data to a temp file in the same directory and
// renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	tmpName = ""
	return nil
}
