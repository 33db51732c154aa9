package answers

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/techform-backend/internal/domain"
)

type Status string

const (
	StatusFresh   Status = "FRESH"
	StatusStale   Status = "STALE"
	StatusUnknown Status = "UNKNOWN"
)

// EvaluateStatus is FRESH when the entry was answered against current, STALE
// when against any other revision and UNKNOWN when there is no entry. Whether a
// value exists plays no part.
func EvaluateStatus(entry *VersionedAnswer, currentRevisionID string) Status {
	if entry == nil {
		return StatusUnknown
	}
	if entry.QuestionRevisionID == currentRevisionID {
		return StatusFresh
	}
	return StatusStale
}

type StalenessPolicy string

const (
	// PolicyAny treats every revision mismatch as stale.
	PolicyAny StalenessPolicy = "any"
	// PolicySignificant only treats a mismatch as stale when a revision after
	// the answered one is marked significant.
	PolicySignificant StalenessPolicy = "significant"
)

// ParseStalenessPolicy defaults to PolicyAny.
func ParseStalenessPolicy(raw string) StalenessPolicy {
	if strings.EqualFold(strings.TrimSpace(raw), string(PolicySignificant)) {
		return PolicySignificant
	}
	return PolicyAny
}

// RevisionHistory answers whether anything significant happened between two
// revisions of the same question. known is false when either id is unknown.
type RevisionHistory interface {
	SignificantBetween(savedRevisionID, currentRevisionID string) (significant, known bool)
}

// StatusEvaluator is the single place answer status is decided.
type StatusEvaluator struct {
	Policy  StalenessPolicy
	History RevisionHistory
}

func (e StatusEvaluator) Evaluate(entry *VersionedAnswer, currentRevisionID string) Status {
	status := EvaluateStatus(entry, currentRevisionID)
	if status != StatusStale || e.Policy != PolicySignificant || e.History == nil {
		return status
	}
	significant, known := e.History.SignificantBetween(entry.QuestionRevisionID, currentRevisionID)
	if known && !significant {
		return StatusFresh
	}
	return StatusStale
}

// AnswerMetadata is the computed status of one field.
type AnswerMetadata struct {
	Status            Status     `json:"status"`
	DictionaryKey     string     `json:"dictionaryKey"`
	SavedRevisionID   string     `json:"savedRevisionId,omitempty"`
	CurrentRevisionID string     `json:"currentRevisionId,omitempty"`
	AnsweredAt        *time.Time `json:"answeredAt,omitempty"`
	Source            string     `json:"source,omitempty"`
}

// Metadata evaluates entry for binding b.
func (e StatusEvaluator) Metadata(b BindingMetadata, entry *VersionedAnswer) AnswerMetadata {
	md := AnswerMetadata{
		Status:            e.Evaluate(entry, b.CurrentRevisionID),
		DictionaryKey:     b.DictionaryKey,
		CurrentRevisionID: b.CurrentRevisionID,
	}
	if entry != nil {
		md.SavedRevisionID = entry.QuestionRevisionID
		md.Source = entry.Source
		if !entry.AnsweredAt.IsZero() {
			at := entry.AnsweredAt
			md.AnsweredAt = &at
		}
	}
	return md
}

// CountStatuses tallies metadata by status.
func CountStatuses(md map[string]AnswerMetadata) map[string]int {
	out := map[string]int{}
	for _, m := range md {
		out[string(m.Status)]++
	}
	return out
}

type revisionPoint struct {
	questionID  uuid.UUID
	version     int
	significant bool
}

// RevisionTimeline is a RevisionHistory over loaded revision rows.
type RevisionTimeline struct {
	byID       map[string]revisionPoint
	byQuestion map[uuid.UUID][]revisionPoint
}

func NewRevisionTimeline(revs []*types.QuestionRevision) *RevisionTimeline {
	t := &RevisionTimeline{
		byID:       map[string]revisionPoint{},
		byQuestion: map[uuid.UUID][]revisionPoint{},
	}
	for _, r := range revs {
		if r == nil || r.ID == uuid.Nil {
			continue
		}
		p := revisionPoint{questionID: r.QuestionID, version: r.VersionNumber, significant: r.Significant}
		t.byID[r.ID.String()] = p
		t.byQuestion[r.QuestionID] = append(t.byQuestion[r.QuestionID], p)
	}
	for qid := range t.byQuestion {
		pts := t.byQuestion[qid]
		sort.Slice(pts, func(i, j int) bool { return pts[i].version < pts[j].version })
	}
	return t
}

// SignificantBetween reports whether any revision after saved, up to and
// including current, is significant. A saved revision newer than current
// counts as significant.
func (t *RevisionTimeline) SignificantBetween(savedRevisionID, currentRevisionID string) (bool, bool) {
	if t == nil {
		return false, false
	}
	saved, okSaved := t.byID[savedRevisionID]
	cur, okCur := t.byID[currentRevisionID]
	if !okSaved || !okCur || saved.questionID != cur.questionID {
		return false, false
	}
	if saved.version >= cur.version {
		return saved.version != cur.version, true
	}
	for _, p := range t.byQuestion[cur.questionID] {
		if p.version > saved.version && p.version <= cur.version && p.significant {
			return true, true
		}
	}
	return false, true
}
