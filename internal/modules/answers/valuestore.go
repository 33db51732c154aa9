package answers

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"

	types "github.com/yungbote/techform-backend/internal/domain"
	"github.com/yungbote/techform-backend/internal/pkg/errors"
)

// ErrUnknownField marks a binding whose field is not an answerable column.
var ErrUnknownField = errors.New("unknown binding field")

const dateLayout = "2006-01-02"

type column struct {
	name   string
	dbName string
	index  []int
	typ    reflect.Type
}

var (
	gormSchemas sync.Map
	columnsMu   sync.RWMutex
	columnsByT  = map[reflect.Type]map[string]column{}
)

// columnsFor maps json field names to answerable columns. System columns are
// tagged answer:"-".
func columnsFor(model any) (map[string]column, error) {
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	columnsMu.RLock()
	cols, ok := columnsByT[t]
	columnsMu.RUnlock()
	if ok {
		return cols, nil
	}

	s, err := schema.Parse(model, &gormSchemas, schema.NamingStrategy{})
	if err != nil {
		return nil, errors.Wrapf(err, "parse schema %s", t.Name())
	}
	cols = map[string]column{}
	for _, f := range s.Fields {
		if f.DBName == "" || f.Tag.Get("answer") == "-" {
			continue
		}
		jsonName := strings.Split(f.Tag.Get("json"), ",")[0]
		if jsonName == "" || jsonName == "-" {
			continue
		}
		cols[jsonName] = column{
			name:   f.Name,
			dbName: f.DBName,
			index:  f.StructField.Index,
			typ:    f.FieldType,
		}
	}
	columnsMu.Lock()
	columnsByT[t] = cols
	columnsMu.Unlock()
	return cols, nil
}

// ModelForRoot returns a zero model for root, used for schema lookups.
func ModelForRoot(root string) any {
	switch root {
	case types.RootTechnology:
		return &types.Technology{}
	case types.RootTriageStage:
		return &types.TriageStage{}
	case types.RootViabilityStage:
		return &types.ViabilityStage{}
	default:
		return nil
	}
}

// IsBindableField reports whether root.field names an answerable column.
func IsBindableField(root, field string) bool {
	model := ModelForRoot(root)
	if model == nil {
		return false
	}
	cols, err := columnsFor(model)
	if err != nil {
		return false
	}
	_, ok := cols[field]
	return ok
}

// SubjectValues is the ValueStore over a loaded technology and its stages.
type SubjectValues struct {
	Tech *types.Technology
}

// Record returns the record behind root, nil when it does not exist.
func (s SubjectValues) Record(root string) any {
	if s.Tech == nil {
		return nil
	}
	switch root {
	case types.RootTechnology:
		return s.Tech
	case types.RootTriageStage:
		if s.Tech.TriageStage == nil {
			return nil
		}
		return s.Tech.TriageStage
	case types.RootViabilityStage:
		if s.Tech.ViabilityStage == nil {
			return nil
		}
		return s.Tech.ViabilityStage
	default:
		return nil
	}
}

func (s SubjectValues) Value(root, field string) (any, bool) {
	rec := s.Record(root)
	if rec == nil {
		return nil, false
	}
	return ReadField(rec, field)
}

// ReadField reads an answerable field off a record pointer. JSON columns are
// decoded and nil pointers read as nil.
func ReadField(record any, field string) (any, bool) {
	cols, err := columnsFor(record)
	if err != nil {
		return nil, false
	}
	col, ok := cols[field]
	if !ok {
		return nil, false
	}
	v := reflect.ValueOf(record)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return nil, false
	}
	fv := v.Elem().FieldByIndex(col.index)
	return exportValue(fv), true
}

func exportValue(fv reflect.Value) any {
	switch x := fv.Interface().(type) {
	case datatypes.JSON:
		return decodeJSON(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	}
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return nil
		}
		return fv.Elem().Interface()
	}
	return fv.Interface()
}

func decodeJSON(raw []byte) any {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// Assignment is the outcome of writing one value onto a record.
type Assignment struct {
	Column  string
	Value   any
	Changed bool
}

// Assign coerces raw into the field's column type, sets it on record and
// reports the column update and whether the stored value changed.
func Assign(record any, field string, raw any) (Assignment, error) {
	cols, err := columnsFor(record)
	if err != nil {
		return Assignment{}, err
	}
	col, ok := cols[field]
	if !ok {
		return Assignment{}, errors.Mark(errors.Newf("%s is not an answerable field", field), ErrUnknownField)
	}
	v := reflect.ValueOf(record)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return Assignment{}, errors.Newf("assign %s: record must be a non-nil pointer", field)
	}
	fv := v.Elem().FieldByIndex(col.index)
	next, err := coerce(raw, col.typ)
	if err != nil {
		return Assignment{}, errors.Mark(errors.Wrapf(err, "field %s", field), errors.ErrInvalidArgument)
	}
	changed := !sameValue(fv, next)
	fv.Set(next)
	return Assignment{Column: col.dbName, Value: next.Interface(), Changed: changed}, nil
}

var (
	jsonType    = reflect.TypeOf(datatypes.JSON(nil))
	timePtrType = reflect.TypeOf((*time.Time)(nil))
	timeType    = reflect.TypeOf(time.Time{})
)

func coerce(raw any, t reflect.Type) (reflect.Value, error) {
	switch t {
	case jsonType:
		if raw == nil {
			return reflect.ValueOf(datatypes.JSON(nil)), nil
		}
		if b, ok := raw.(datatypes.JSON); ok {
			return reflect.ValueOf(b), nil
		}
		b, err := json.Marshal(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(datatypes.JSON(b)), nil
	case timePtrType:
		ts, ok, err := toTime(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		if !ok {
			return reflect.Zero(t), nil
		}
		return reflect.ValueOf(&ts), nil
	case timeType:
		ts, _, err := toTime(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(ts), nil
	}

	// Nullable columns: a blank answer clears the column instead of storing a zero.
	if t.Kind() == reflect.Pointer {
		if isBlank(raw) {
			return reflect.Zero(t), nil
		}
		inner, err := coerce(raw, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(inner)
		return ptr, nil
	}

	switch t.Kind() {
	case reflect.String:
		s, err := toString(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(s).Convert(t), nil
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := toInt(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Float32, reflect.Float64:
		f, err := toFloat(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(f).Convert(t), nil
	case reflect.Bool:
		b, err := toBool(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b).Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("unsupported column type %s", t)
}

func toString(raw any) (string, error) {
	switch x := raw.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case []any, map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return fmt.Sprint(x), nil
	}
}

func isBlank(raw any) bool {
	switch x := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	default:
		return false
	}
}

func toInt(raw any) (int, error) {
	switch x := raw.(type) {
	case nil:
		return 0, nil
	case int:
		return x, nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%v is not a whole number", x)
		}
		return int(x), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, nil
		}
		return strconv.Atoi(s)
	default:
		return 0, fmt.Errorf("cannot use %T as a whole number", raw)
	}
}

func toFloat(raw any) (float64, error) {
	switch x := raw.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	default:
		return 0, fmt.Errorf("cannot use %T as a number", raw)
	}
}

func toBool(raw any) (bool, error) {
	switch x := raw.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case string:
		if strings.TrimSpace(x) == "" {
			return false, nil
		}
		return strconv.ParseBool(strings.TrimSpace(x))
	default:
		return false, fmt.Errorf("cannot use %T as a boolean", raw)
	}
}

func toTime(raw any) (time.Time, bool, error) {
	switch x := raw.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return x.UTC(), true, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false, nil
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts.UTC(), true, nil
		}
		ts, err := time.Parse(dateLayout, s)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("%q is not a date", s)
		}
		return ts, true, nil
	default:
		return time.Time{}, false, fmt.Errorf("cannot use %T as a date", raw)
	}
}

func sameValue(cur, next reflect.Value) bool {
	switch c := cur.Interface().(type) {
	case datatypes.JSON:
		return JSONEqual(c, next.Interface().(datatypes.JSON))
	case *time.Time:
		n := next.Interface().(*time.Time)
		if c == nil || n == nil {
			return c == nil && n == nil
		}
		return c.Equal(*n)
	case time.Time:
		return c.Equal(next.Interface().(time.Time))
	}
	if cur.Kind() == reflect.Pointer {
		if cur.IsNil() || next.IsNil() {
			return cur.IsNil() && next.IsNil()
		}
		return reflect.DeepEqual(cur.Elem().Interface(), next.Elem().Interface())
	}
	return reflect.DeepEqual(cur.Interface(), next.Interface())
}

// JSONEqual compares two JSON documents semantically. Empty and null are equal.
func JSONEqual(a, b []byte) bool {
	return reflect.DeepEqual(decodeJSON(a), decodeJSON(b))
}

// ValuesEqual compares two decoded answer values by their JSON form.
func ValuesEqual(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return JSONEqual(ab, bb)
}
