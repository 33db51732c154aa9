package answers

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/yungbote/techform-backend/internal/pkg/errors"
	"github.com/yungbote/techform-backend/internal/platform/logger"
)

// ErrMalformedMetadata marks an extended_data document that is not a JSON
// object. Callers log it and degrade the scope; it never fails a request.
var ErrMalformedMetadata = errors.New("malformed answer metadata")

// VersionedAnswer is one entry of an extended_data bag, keyed by dictionary key.
type VersionedAnswer struct {
	Value              any       `json:"value"`
	QuestionRevisionID string    `json:"questionRevisionId"`
	AnsweredAt         time.Time `json:"answeredAt"`
	Source             string    `json:"source,omitempty"`
}

// ExtendedData is a parsed bag.
type ExtendedData map[string]VersionedAnswer

// Clone returns a shallow copy.
func (d ExtendedData) Clone() ExtendedData {
	out := make(ExtendedData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Lookup returns the entry for key, nil when absent.
func (d ExtendedData) Lookup(key string) *VersionedAnswer {
	if d == nil {
		return nil
	}
	e, ok := d[key]
	if !ok {
		return nil
	}
	return &e
}

// ParseExtendedData decodes a bag. Entries that are not objects, carry a bad
// timestamp, or have no questionRevisionId are skipped; the last kind is plain
// data someone else keeps in the bag, not version metadata.
func ParseExtendedData(raw []byte, scope string, log *logger.Logger) (ExtendedData, error) {
	out := ExtendedData{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return out, errors.Mark(errors.Wrapf(err, "extended_data for %s", scope), ErrMalformedMetadata)
	}
	for key, entryRaw := range doc {
		var entry VersionedAnswer
		if err := json.Unmarshal(entryRaw, &entry); err != nil {
			log.Warn("skipping malformed answer metadata entry", "scope", scope, "key", key, "error", err)
			continue
		}
		if strings.TrimSpace(entry.QuestionRevisionID) == "" {
			log.Debug("skipping extended_data entry without revision", "scope", scope, "key", key)
			continue
		}
		out[key] = entry
	}
	return out, nil
}

// Encode merges updates over existing and serializes the result. Keys not in
// updates are always kept.
func Encode(existing, updates ExtendedData) ([]byte, error) {
	merged := existing.Clone()
	for k, v := range updates {
		merged[k] = v
	}
	return json.Marshal(map[string]VersionedAnswer(merged))
}

// MergeRaw writes updates into a raw bag without decoding the entries it does
// not touch, so foreign keys and entries the parser skipped survive. When raw
// is not a JSON object the result holds only updates and ErrMalformedMetadata
// is returned alongside it.
func MergeRaw(raw []byte, updates ExtendedData) ([]byte, error) {
	doc := map[string]json.RawMessage{}
	var malformed error
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			doc = map[string]json.RawMessage{}
			malformed = errors.Mark(errors.Wrap(err, "merge extended_data"), ErrMalformedMetadata)
		}
	}
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b, err := json.Marshal(updates[k])
		if err != nil {
			return nil, errors.Wrapf(err, "encode answer metadata %s", k)
		}
		doc[k] = b
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return out, malformed
}

// ScopedMetadata is the MetadataStore over one subject: binding root -> parsed bag.
type ScopedMetadata map[string]ExtendedData

func (m ScopedMetadata) Entry(root, key string) *VersionedAnswer {
	if m == nil {
		return nil
	}
	return m[root].Lookup(key)
}
