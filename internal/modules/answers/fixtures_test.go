package answers

import (
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/techform-backend/internal/domain"
)

type fieldSpec struct {
	code     string
	typ      string
	key      string
	path     string
	source   string
	revision uuid.UUID
}

func dictQuestion(key, path, source string, rev uuid.UUID) *types.Question {
	q := &types.Question{
		ID:             uuid.New(),
		Key:            key,
		Label:          key,
		BindingPath:    path,
		DataSource:     source,
		CurrentVersion: 1,
	}
	if rev != uuid.Nil {
		r := rev
		q.CurrentRevisionID = &r
	}
	return q
}

func testTemplate(fields ...fieldSpec) *types.FormTemplate {
	sec := types.FormSection{ID: uuid.New(), Code: "main", Title: "Main"}
	for i, f := range fields {
		fq := types.FormQuestion{
			ID:        uuid.New(),
			SectionID: sec.ID,
			FieldCode: f.code,
			Label:     f.code,
			Type:      f.typ,
			SortOrder: i,
		}
		if f.key != "" {
			key := f.key
			fq.DictionaryKey = &key
			fq.Dictionary = dictQuestion(f.key, f.path, f.source, f.revision)
		}
		sec.Questions = append(sec.Questions, fq)
	}
	return &types.FormTemplate{
		ID:       uuid.New(),
		Name:     "Technology Triage",
		Version:  "1.0",
		IsActive: true,
		Sections: []types.FormSection{sec},
	}
}

func bagJSON(entries map[string]VersionedAnswer) types.JSON {
	raw, err := Encode(nil, entries)
	if err != nil {
		panic(err)
	}
	return types.JSON(raw)
}

var fixedTime = time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
