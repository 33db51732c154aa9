package db

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	types "github.com/yungbote/techform-backend/internal/domain"
	domainagg "github.com/yungbote/techform-backend/internal/domain/aggregates"
	"github.com/yungbote/techform-backend/internal/platform/dbctx"
	"github.com/yungbote/techform-backend/internal/platform/logger"
)

//go:embed seed/*.yaml
var seedFS embed.FS

// DefaultSeedName is the embedded seed used when FORM_TEMPLATE_SEED is "default".
const DefaultSeedName = "default"

type Seed struct {
	Questions []SeedQuestion `yaml:"questions"`
	Templates []SeedTemplate `yaml:"templates"`
}

type SeedQuestion struct {
	Key         string `yaml:"key"`
	BindingPath string `yaml:"bindingPath"`
	DataSource  string `yaml:"dataSource"`
	Label       string `yaml:"label"`
	HelpText    string `yaml:"helpText"`
	Options     any    `yaml:"options"`
	Validation  any    `yaml:"validation"`
}

type SeedTemplate struct {
	Name        string        `yaml:"name"`
	Version     string        `yaml:"version"`
	Description string        `yaml:"description"`
	Active      bool          `yaml:"active"`
	Sections    []SeedSection `yaml:"sections"`
}

type SeedSection struct {
	Code      string      `yaml:"code"`
	Title     string      `yaml:"title"`
	Questions []SeedField `yaml:"questions"`
}

type SeedField struct {
	FieldCode     string `yaml:"fieldCode"`
	Label         string `yaml:"label"`
	Type          string `yaml:"type"`
	Required      bool   `yaml:"required"`
	DictionaryKey string `yaml:"dictionaryKey"`
	Options       any    `yaml:"options"`
}

// LoadSeed reads a seed from a YAML file, or the embedded default when
// source is "default".
func LoadSeed(source string) (*Seed, error) {
	source = strings.TrimSpace(source)
	var (
		raw []byte
		err error
	)
	switch source {
	case "":
		return nil, nil
	case DefaultSeedName:
		raw, err = seedFS.ReadFile("seed/default.yaml")
	default:
		raw, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("read seed %q: %w", source, err)
	}
	return ParseSeed(raw)
}

func ParseSeed(raw []byte) (*Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &s, nil
}

// QuestionCreator creates dictionary questions with their first revision.
type QuestionCreator interface {
	CreateQuestion(ctx context.Context, in domainagg.CreateQuestionInput) (domainagg.CreateQuestionResult, error)
}

// TemplateStore is the slice of the template repo seeding needs.
type TemplateStore interface {
	Create(dbc dbctx.Context, tmpl *types.FormTemplate) error
	GetByNameVersion(dbc dbctx.Context, name, version string) (*types.FormTemplate, error)
	Activate(dbc dbctx.Context, id uuid.UUID) error
}

// QuestionLookup reports existing dictionary keys.
type QuestionLookup interface {
	GetByKey(dbc dbctx.Context, key string) (*types.Question, error)
}

// ApplySeed creates missing questions and templates. Existing keys and
// name/version pairs are left alone, so it is safe to run on every start.
func ApplySeed(ctx context.Context, log *logger.Logger, seed *Seed, questions QuestionLookup, creator QuestionCreator, templates TemplateStore) error {
	if seed == nil {
		return nil
	}
	dbc := dbctx.Context{Ctx: ctx}
	now := time.Now().UTC()

	for _, q := range seed.Questions {
		key := strings.TrimSpace(q.Key)
		if key == "" {
			return fmt.Errorf("seed question missing key")
		}
		existing, err := questions.GetByKey(dbc, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		options, err := toJSON(q.Options)
		if err != nil {
			return fmt.Errorf("seed question %s options: %w", key, err)
		}
		validation, err := toJSON(q.Validation)
		if err != nil {
			return fmt.Errorf("seed question %s validation: %w", key, err)
		}
		if _, err := creator.CreateQuestion(ctx, domainagg.CreateQuestionInput{
			Key:         key,
			BindingPath: q.BindingPath,
			DataSource:  q.DataSource,
			Content: domainagg.RevisionContent{
				Label:      q.Label,
				HelpText:   q.HelpText,
				Options:    json.RawMessage(options),
				Validation: json.RawMessage(validation),
			},
			CreatedBy: "seed",
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("seed question %s: %w", key, err)
		}
		log.Info("seeded question", "key", key)
	}

	for _, st := range seed.Templates {
		existing, err := templates.GetByNameVersion(dbc, st.Name, st.Version)
		if err != nil {
			return err
		}
		tmplID := uuid.Nil
		if existing == nil {
			tmpl, err := st.build()
			if err != nil {
				return err
			}
			if err := templates.Create(dbc, tmpl); err != nil {
				return fmt.Errorf("seed template %s: %w", st.Name, err)
			}
			tmplID = tmpl.ID
			log.Info("seeded template", "name", st.Name, "version", st.Version)
		} else {
			tmplID = existing.ID
		}
		if st.Active && (existing == nil || !existing.IsActive) {
			if err := templates.Activate(dbc, tmplID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (st SeedTemplate) build() (*types.FormTemplate, error) {
	tmpl := &types.FormTemplate{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(st.Name),
		Version:     strings.TrimSpace(st.Version),
		Description: st.Description,
	}
	for si, sec := range st.Sections {
		section := types.FormSection{
			ID:         uuid.New(),
			TemplateID: tmpl.ID,
			Code:       sec.Code,
			Title:      sec.Title,
			SortOrder:  si,
		}
		for fi, f := range sec.Questions {
			options, err := toJSON(f.Options)
			if err != nil {
				return nil, fmt.Errorf("seed field %s options: %w", f.FieldCode, err)
			}
			field := types.FormQuestion{
				ID:        uuid.New(),
				SectionID: section.ID,
				FieldCode: f.FieldCode,
				Label:     f.Label,
				Type:      f.Type,
				Required:  f.Required,
				SortOrder: fi,
				Options:   options,
			}
			if k := strings.TrimSpace(f.DictionaryKey); k != "" {
				field.DictionaryKey = &k
			}
			section.Questions = append(section.Questions, field)
		}
		tmpl.Sections = append(tmpl.Sections, section)
	}
	return tmpl, nil
}

func toJSON(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
