package answers

import (
	"strings"

	"github.com/google/uuid"

	types "github.com/yungbote/techform-backend/internal/domain"
)

// BindingMetadata describes one dictionary-bound template field. It is
// derived from the template and question on every load and never stored.
type BindingMetadata struct {
	FieldCode         string    `json:"fieldCode"`
	FieldType         string    `json:"fieldType"`
	QuestionID        uuid.UUID `json:"questionId"`
	DictionaryKey     string    `json:"dictionaryKey"`
	CurrentRevisionID string    `json:"currentRevisionId,omitempty"`
	CurrentVersion    int       `json:"currentVersion"`
	BindingPath       string    `json:"bindingPath"`
	Root              string    `json:"root"`
	Field             string    `json:"field"`
	DataSource        string    `json:"dataSource"`
}

// Repeatable reports whether the bound field holds repeated-group rows.
func (b BindingMetadata) Repeatable() bool {
	return b.FieldType == types.FieldRepeatableGroup
}

// Extended reports whether the value lives in the bag instead of a column.
func (b BindingMetadata) Extended() bool {
	return b.DataSource == types.DataSourceExtended
}

// CollectBindingMetadata maps field codes to binding metadata. Fields without
// a loaded dictionary question are form-local and get no entry.
func CollectBindingMetadata(tmpl *types.FormTemplate) map[string]BindingMetadata {
	out := map[string]BindingMetadata{}
	if tmpl == nil {
		return out
	}
	for _, sec := range tmpl.Sections {
		for _, fq := range sec.Questions {
			q := fq.Dictionary
			if fq.DictionaryKey == nil || q == nil || q.ID == uuid.Nil {
				continue
			}
			root, field, _ := SplitBindingPath(q.BindingPath)
			source := strings.TrimSpace(q.DataSource)
			if source == "" {
				source = types.DataSourceStructured
			}
			out[fq.FieldCode] = BindingMetadata{
				FieldCode:         fq.FieldCode,
				FieldType:         fq.Type,
				QuestionID:        q.ID,
				DictionaryKey:     q.Key,
				CurrentRevisionID: q.CurrentRevisionKey(),
				CurrentVersion:    q.CurrentVersion,
				BindingPath:       q.BindingPath,
				Root:              root,
				Field:             field,
				DataSource:        source,
			}
		}
	}
	return out
}

// SplitBindingPath splits "root.field". Anything but exactly two non-empty
// segments is rejected.
func SplitBindingPath(path string) (root, field string, ok bool) {
	parts := strings.Split(strings.TrimSpace(path), ".")
	if len(parts) != 2 {
		return "", "", false
	}
	root, field = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if root == "" || field == "" {
		return "", "", false
	}
	return root, field, true
}

// IsRoot reports whether root names a subject record.
func IsRoot(root string) bool {
	for _, r := range types.Roots {
		if r == root {
			return true
		}
	}
	return false
}

// ResolveValue reads a structured value by binding path. Unknown roots,
// missing sub-records, unknown fields and wrong depth are misses, not errors.
func ResolveValue(path string, tech *types.Technology) (any, bool) {
	root, field, ok := SplitBindingPath(path)
	if !ok {
		return nil, false
	}
	return SubjectValues{Tech: tech}.Value(root, field)
}

// ValueFor is the tier rule: a structured binding reads only the value store,
// an extended binding reads only its bag entry.
func ValueFor(b BindingMetadata, values ValueStore, meta MetadataStore) (any, bool) {
	if b.Extended() {
		if meta == nil {
			return nil, false
		}
		entry := meta.Entry(b.Root, b.DictionaryKey)
		if entry == nil {
			return nil, false
		}
		return entry.Value, true
	}
	if values == nil {
		return nil, false
	}
	return values.Value(b.Root, b.Field)
}

// ValueStore reads structured values from subject records.
type ValueStore interface {
	Value(root, field string) (any, bool)
}

// MetadataStore reads versioned answer entries from subject bags.
type MetadataStore interface {
	Entry(root, key string) *VersionedAnswer
}
