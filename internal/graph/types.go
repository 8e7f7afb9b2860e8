// Package graph holds the in-memory knowledge graph: branches of thoughts,
// their insights, explicit links and branch-level cross-references.
package graph

import "time"

// CrossRefKind classifies a computed thought-to-thought cross-reference.
type CrossRefKind string

const (
	KindDirectRelated     CrossRefKind = "direct-related"
	KindDirectVerySimilar CrossRefKind = "direct-very-similar"
	KindMultiHop          CrossRefKind = "multi-hop"
)

// Direct reports whether the reference came from the direct similarity pass.
func (k CrossRefKind) Direct() bool {
	return k == KindDirectRelated || k == KindDirectVerySimilar
}

// ThoughtRef is one entry of a thought's computed cross-reference list.
type ThoughtRef struct {
	ToThoughtID string       `json:"toThoughtId"`
	Score       float64      `json:"score"`
	Kind        CrossRefKind `json:"kind"`
}

// LinkType is the relation asserted by an explicit thought link.
type LinkType string

const (
	LinkSupports    LinkType = "supports"
	LinkContradicts LinkType = "contradicts"
	LinkRelated     LinkType = "related"
	LinkExpands     LinkType = "expands"
	LinkRefines     LinkType = "refines"
)

// ValidLinkType reports whether t is a known link type.
func ValidLinkType(t LinkType) bool {
	switch t {
	case LinkSupports, LinkContradicts, LinkRelated, LinkExpands, LinkRefines:
		return true
	}
	return false
}

// ThoughtLink is a user-asserted, directed link between two thoughts.
type ThoughtLink struct {
	ToThoughtID string   `json:"toThoughtId"`
	Type        LinkType `json:"type"`
	Reason      string   `json:"reason,omitempty"`
}

// Metadata carries the caller-supplied annotations of a thought.
type Metadata struct {
	Type       string   `json:"type"`
	Confidence float64  `json:"confidence"`
	KeyPoints  []string `json:"keyPoints,omitempty"`
}

// Thought is a single unit of reasoning. CrossRefs and Score are owned by
// the scoring engine and rewritten on every full pass.
type Thought struct {
	ID             string        `json:"id"`
	Content        string        `json:"content"`
	BranchID       string        `json:"branchId"`
	Timestamp      time.Time     `json:"timestamp"`
	Metadata       Metadata      `json:"metadata"`
	Score          float64       `json:"score"`
	CrossRefs      []ThoughtRef  `json:"crossRefs,omitempty"`
	LinkedThoughts []ThoughtLink `json:"linkedThoughts,omitempty"`
}

// BranchState is informational; the store never transitions it on its own.
type BranchState string

const (
	StateActive    BranchState = "active"
	StateSuspended BranchState = "suspended"
	StateCompleted BranchState = "completed"
	StateDeadEnd   BranchState = "dead_end"
)

// InsightType classifies a derived observation.
type InsightType string

const (
	InsightBehavioralPattern  InsightType = "behavioral_pattern"
	InsightFeatureIntegration InsightType = "feature_integration"
	InsightObservation        InsightType = "observation"
	InsightConnection         InsightType = "connection"
)

// Insight is an append-only derived observation attached to a branch.
type Insight struct {
	ID                 string      `json:"id"`
	Type               InsightType `json:"type"`
	Content            string      `json:"content"`
	Context            []string    `json:"context,omitempty"`
	ParentInsights     []string    `json:"parentInsights,omitempty"`
	ApplicabilityScore float64     `json:"applicabilityScore"`
	CreatedAt          time.Time   `json:"createdAt"`
}

// CrossRefType is the relation of a branch-level cross-reference.
type CrossRefType string

const (
	CrossRefComplementary CrossRefType = "complementary"
	CrossRefContradictory CrossRefType = "contradictory"
	CrossRefBuildsUpon    CrossRefType = "builds_upon"
	CrossRefAlternative   CrossRefType = "alternative"
)

// Touchpoint names the specific thoughts where two branches meet.
type Touchpoint struct {
	FromThought string `json:"fromThought"`
	ToThought   string `json:"toThought"`
	Reason      string `json:"reason,omitempty"`
}

// CrossReference links two branches.
type CrossReference struct {
	ID            string       `json:"id"`
	FromBranch    string       `json:"fromBranch"`
	ToBranch      string       `json:"toBranch"`
	Type          CrossRefType `json:"type"`
	Reason        string       `json:"reason"`
	Strength      float64      `json:"strength"`
	Touchpoints   []Touchpoint `json:"touchpoints,omitempty"`
	AutoGenerated bool         `json:"autoGenerated,omitempty"`
}

// Branch is a container of thoughts sharing one reasoning thread.
type Branch struct {
	ID             string            `json:"id"`
	ParentBranchID string            `json:"parentBranchId,omitempty"`
	State          BranchState       `json:"state"`
	Priority       float64           `json:"priority"`
	Confidence     float64           `json:"confidence"`
	Score          float64           `json:"score"`
	Thoughts       []*Thought        `json:"thoughts"`
	Insights       []*Insight        `json:"insights"`
	CrossRefs      []*CrossReference `json:"crossRefs"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// ThoughtInput describes a thought to add.
type ThoughtInput struct {
	Content        string          `json:"content" validate:"required"`
	BranchID       string          `json:"branchId,omitempty"`
	ParentBranchID string          `json:"parentBranchId,omitempty"`
	Type           string          `json:"type,omitempty"`
	Confidence     *float64        `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	KeyPoints      []string        `json:"keyPoints,omitempty"`
	CrossRefs      []CrossRefInput `json:"crossRefs,omitempty" validate:"dive"`
}

// CrossRefInput is a caller-supplied branch-level reference registered
// alongside a new thought.
type CrossRefInput struct {
	ToBranch    string       `json:"toBranch" validate:"required"`
	Type        CrossRefType `json:"type" validate:"required,oneof=complementary contradictory builds_upon alternative"`
	Reason      string       `json:"reason,omitempty"`
	Strength    float64      `json:"strength" validate:"gte=0,lte=1"`
	Touchpoints []Touchpoint `json:"touchpoints,omitempty"`
}

// Defaults applied to thought inputs that omit them.
const (
	DefaultThoughtType = "analysis"
	DefaultConfidence  = 0.5
)

// ---- Copies ----
// Accessors hand out deep copies so callers can read them after the store
// lock is released.

func (t *Thought) clone() *Thought {
	c := *t
	c.Metadata.KeyPoints = append([]string(nil), t.Metadata.KeyPoints...)
	c.CrossRefs = append([]ThoughtRef(nil), t.CrossRefs...)
	c.LinkedThoughts = append([]ThoughtLink(nil), t.LinkedThoughts...)
	return &c
}

func (i *Insight) clone() *Insight {
	c := *i
	c.Context = append([]string(nil), i.Context...)
	c.ParentInsights = append([]string(nil), i.ParentInsights...)
	return &c
}

func (x *CrossReference) clone() *CrossReference {
	c := *x
	c.Touchpoints = append([]Touchpoint(nil), x.Touchpoints...)
	return &c
}

func (b *Branch) clone() *Branch {
	c := *b
	c.Thoughts = make([]*Thought, len(b.Thoughts))
	for i, t := range b.Thoughts {
		c.Thoughts[i] = t.clone()
	}
	c.Insights = make([]*Insight, len(b.Insights))
	for i, in := range b.Insights {
		c.Insights[i] = in.clone()
	}
	c.CrossRefs = make([]*CrossReference, len(b.CrossRefs))
	for i, x := range b.CrossRefs {
		c.CrossRefs[i] = x.clone()
	}
	return &c
}
