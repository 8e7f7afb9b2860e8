package graph

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memvra/branchmind/internal/errs"
)

// Listener is notified after a mutation commits. Calls happen outside the
// store lock.
type Listener interface {
	// BranchesChanged fires when a branch's thought set or content changed
	// (or the branch was removed).
	BranchesChanged(branchIDs ...string)
	// AnnotationsChanged fires when computed cross-refs and scores were rewritten.
	AnnotationsChanged()
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithListener registers the mutation listener.
func WithListener(l Listener) Option {
	return func(s *Store) { s.listener = l }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) { s.log = log }
}

// Store owns every branch and thought of a session. All mutation goes
// through it.
type Store struct {
	mu       sync.RWMutex
	branches map[string]*Branch
	order    []string
	thoughts map[string]*Thought
	activeID string
	seq      uint64

	now      func() time.Time
	listener Listener
	validate *validator.Validate
	log      *zap.Logger
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		branches: make(map[string]*Branch),
		thoughts: make(map[string]*Thought),
		now:      time.Now,
		validate: validator.New(),
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ---- Branches ----

// CreateBranch inserts an empty branch if id is not already known and
// returns the (possibly pre-existing) branch. An empty id is generated.
// The first branch ever created becomes the active branch.
func (s *Store) CreateBranch(id, parentID string) (*Branch, error) {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	b, created := s.ensureBranchLocked(id, strings.TrimSpace(parentID))
	out := b.clone()
	s.mu.Unlock()

	if created {
		s.log.Debug("branch created", zap.String("branch", out.ID))
		s.notifyBranches(out.ID)
	}
	return out, nil
}

// SetActiveBranch makes id the active branch.
func (s *Store) SetActiveBranch(id string) error {
	s.mu.Lock()
	if _, ok := s.branches[id]; !ok {
		s.mu.Unlock()
		return errs.NotFound("setActiveBranch", "branch", id)
	}
	prev := s.activeID
	s.activeID = id
	s.mu.Unlock()

	// Rendered views mark the active branch, so both ends of a switch change.
	if prev != id {
		s.notifyBranches(prev, id)
	}
	return nil
}

// ActiveBranchID returns the active branch id, or "" before any branch exists.
func (s *Store) ActiveBranchID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// ActiveBranch returns a copy of the active branch.
func (s *Store) ActiveBranch() (*Branch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.branches[s.activeID]
	if !ok {
		return nil, false
	}
	return b.clone(), true
}

// Branch returns a copy of the branch with the given id.
func (s *Store) Branch(id string) (*Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.branches[id]
	if !ok {
		return nil, errs.NotFound("getBranch", "branch", id)
	}
	return b.clone(), nil
}

// Branches returns copies of all branches in creation order.
func (s *Store) Branches() []*Branch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Branch, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.branches[id].clone())
	}
	return out
}

// BranchCrossRefs returns the branch-level cross-references of a branch.
func (s *Store) BranchCrossRefs(id string) ([]*CrossReference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.branches[id]
	if !ok {
		return nil, errs.NotFound("getCrossReferences", "branch", id)
	}
	out := make([]*CrossReference, len(b.CrossRefs))
	for i, x := range b.CrossRefs {
		out[i] = x.clone()
	}
	return out, nil
}

// Insights returns the latest n insights of a branch, oldest first.
// n <= 0 returns all of them.
func (s *Store) Insights(branchID string, n int) ([]*Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.branches[branchID]
	if !ok {
		return nil, errs.NotFound("getInsights", "branch", branchID)
	}
	src := b.Insights
	if n > 0 && len(src) > n {
		src = src[len(src)-n:]
	}
	out := make([]*Insight, len(src))
	for i, in := range src {
		out[i] = in.clone()
	}
	return out, nil
}

// ---- Thoughts ----

// Thought returns a copy of the thought with the given id.
func (s *Store) Thought(id string) (*Thought, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.thoughts[id]
	if !ok {
		return nil, errs.NotFound("getThought", "thought", id)
	}
	return t.clone(), nil
}

// Thoughts returns copies of every thought, branches in creation order and
// thoughts in insertion order. This is the enumeration order the scoring
// engine breaks ties by.
func (s *Store) Thoughts() []*Thought {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Thought, 0, len(s.thoughts))
	for _, id := range s.order {
		for _, t := range s.branches[id].Thoughts {
			out = append(out, t.clone())
		}
	}
	return out
}

// AddThought adds a single thought.
func (s *Store) AddThought(in ThoughtInput) (*Thought, error) {
	return s.AddThoughts([]ThoughtInput{in})
}

// AddThoughts adds a batch of thoughts and returns the last one added.
// Every item is validated before any is applied, so the first invalid item
// aborts the whole batch.
func (s *Store) AddThoughts(inputs []ThoughtInput) (*Thought, error) {
	if len(inputs) == 0 {
		return nil, errs.Validation("addThought", "no thoughts given")
	}

	s.mu.Lock()
	normalized := make([]ThoughtInput, len(inputs))
	known := make(map[string]bool)
	for i, in := range inputs {
		n, err := s.checkInputLocked(in, known)
		if err != nil {
			s.mu.Unlock()
			if len(inputs) > 1 {
				err.Msg = fmt.Sprintf("item %d: %s", i, err.Msg)
			}
			return nil, err
		}
		normalized[i] = n
		if n.BranchID != "" {
			known[n.BranchID] = true
		}
	}

	touched := make(map[string]bool)
	var last *Thought
	for _, in := range normalized {
		t, ids := s.addLocked(in)
		last = t
		for _, id := range ids {
			touched[id] = true
		}
	}
	out := last.clone()
	s.mu.Unlock()

	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	s.log.Debug("thoughts added", zap.Int("count", len(inputs)), zap.Strings("branches", ids))
	s.notifyBranches(ids...)
	return out, nil
}

// LinkThoughts records a directed link. It returns false without error when
// either thought is unknown; an identical (target, type) link is not duplicated.
func (s *Store) LinkThoughts(fromID, toID string, typ LinkType, reason string) (bool, error) {
	if !ValidLinkType(typ) {
		return false, errs.Validation("linkThoughts", "invalid link type %q (valid: supports, contradicts, related, expands, refines)", typ)
	}

	s.mu.Lock()
	from, okFrom := s.thoughts[fromID]
	_, okTo := s.thoughts[toID]
	if !okFrom || !okTo {
		s.mu.Unlock()
		return false, nil
	}
	for _, l := range from.LinkedThoughts {
		if l.ToThoughtID == toID && l.Type == typ {
			s.mu.Unlock()
			return true, nil
		}
	}
	from.LinkedThoughts = append(from.LinkedThoughts, ThoughtLink{
		ToThoughtID: toID,
		Type:        typ,
		Reason:      strings.TrimSpace(reason),
	})
	branchID := from.BranchID
	s.mu.Unlock()

	s.notifyBranches(branchID)
	return true, nil
}

// MergeBranches moves every thought, insight and cross-reference of source
// into target and deletes source.
func (s *Store) MergeBranches(sourceID, targetID string) (*Branch, error) {
	if sourceID == targetID {
		return nil, errs.Validation("mergeBranches", "cannot merge branch %q into itself", sourceID)
	}

	s.mu.Lock()
	src, ok := s.branches[sourceID]
	if !ok {
		s.mu.Unlock()
		return nil, errs.NotFound("mergeBranches", "branch", sourceID)
	}
	dst, ok := s.branches[targetID]
	if !ok {
		s.mu.Unlock()
		return nil, errs.NotFound("mergeBranches", "branch", targetID)
	}

	for _, t := range src.Thoughts {
		t.BranchID = dst.ID
	}
	dst.Thoughts = append(dst.Thoughts, src.Thoughts...)
	sort.SliceStable(dst.Thoughts, func(i, j int) bool {
		return dst.Thoughts[i].Timestamp.Before(dst.Thoughts[j].Timestamp)
	})
	dst.Insights = append(dst.Insights, src.Insights...)

	for _, x := range src.CrossRefs {
		x.FromBranch = dst.ID
		dst.CrossRefs = append(dst.CrossRefs, x)
	}

	touched := []string{src.ID, dst.ID}
	for _, id := range s.order {
		b := s.branches[id]
		if b == src {
			continue
		}
		if b.ParentBranchID == src.ID {
			b.ParentBranchID = dst.ID
		}
		kept := b.CrossRefs[:0]
		changed := false
		for _, x := range b.CrossRefs {
			if x.ToBranch == src.ID {
				x.ToBranch = dst.ID
				changed = true
			}
			if x.FromBranch == x.ToBranch {
				changed = true
				continue
			}
			kept = append(kept, x)
		}
		b.CrossRefs = kept
		if changed && b != dst {
			s.recomputeMetricsLocked(b)
			touched = append(touched, b.ID)
		}
	}

	delete(s.branches, src.ID)
	for i, id := range s.order {
		if id == src.ID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.activeID == src.ID {
		s.activeID = dst.ID
	}
	dst.UpdatedAt = s.now()
	s.recomputeMetricsLocked(dst)
	out := dst.clone()
	s.mu.Unlock()

	s.log.Info("branches merged", zap.String("source", sourceID), zap.String("target", targetID))
	s.notifyBranches(touched...)
	return out, nil
}

// ScoreUpdate is the complete result of one scoring pass.
type ScoreUpdate struct {
	CrossRefs    map[string][]ThoughtRef
	Scores       map[string]float64
	BranchScores map[string]float64
}

// ApplyScores commits a scoring pass in one step. Thoughts or branches that
// disappeared since the pass started are ignored.
func (s *Store) ApplyScores(u ScoreUpdate) {
	s.mu.Lock()
	for id, refs := range u.CrossRefs {
		if t, ok := s.thoughts[id]; ok {
			t.CrossRefs = append([]ThoughtRef(nil), refs...)
		}
	}
	for id, score := range u.Scores {
		if t, ok := s.thoughts[id]; ok {
			t.Score = score
		}
	}
	for id, score := range u.BranchScores {
		if b, ok := s.branches[id]; ok {
			b.Score = score
		}
	}
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.AnnotationsChanged()
	}
}

// ---- internals ----

func (s *Store) notifyBranches(ids ...string) {
	if s.listener != nil && len(ids) > 0 {
		s.listener.BranchesChanged(ids...)
	}
}

func (s *Store) ensureBranchLocked(id, parentID string) (*Branch, bool) {
	if id == "" {
		id = newID("branch")
	}
	if b, ok := s.branches[id]; ok {
		return b, false
	}
	now := s.now()
	b := &Branch{
		ID:             id,
		ParentBranchID: parentID,
		State:          StateActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.branches[id] = b
	s.order = append(s.order, id)
	if s.activeID == "" {
		s.activeID = id
	}
	return b, true
}

// checkInputLocked normalizes and validates one input. known holds branch
// ids that earlier items of the same batch will create.
func (s *Store) checkInputLocked(in ThoughtInput, known map[string]bool) (ThoughtInput, *errs.Error) {
	in.Content = strings.TrimSpace(in.Content)
	in.BranchID = strings.TrimSpace(in.BranchID)
	in.ParentBranchID = strings.TrimSpace(in.ParentBranchID)
	in.Type = strings.TrimSpace(in.Type)

	if in.Content == "" {
		return in, errs.Validation("addThought", "thought content must not be empty")
	}
	if err := s.validate.Struct(in); err != nil {
		return in, errs.Validation("addThought", "%s", describeValidation(err))
	}

	if in.Type == "" {
		in.Type = DefaultThoughtType
	}
	if in.Confidence == nil {
		c := DefaultConfidence
		in.Confidence = &c
	}
	keyPoints := make([]string, 0, len(in.KeyPoints))
	for _, kp := range in.KeyPoints {
		if kp = strings.TrimSpace(kp); kp != "" {
			keyPoints = append(keyPoints, kp)
		}
	}
	in.KeyPoints = keyPoints

	for _, x := range in.CrossRefs {
		if _, ok := s.branches[x.ToBranch]; !ok && !known[x.ToBranch] && x.ToBranch != in.BranchID {
			return in, errs.Validation("addThought", "cross-reference targets unknown branch %q", x.ToBranch)
		}
	}
	return in, nil
}

// addLocked applies a validated input and returns the new thought plus the
// ids of every branch it touched.
func (s *Store) addLocked(in ThoughtInput) (*Thought, []string) {
	branchID := in.BranchID
	if branchID == "" {
		branchID = s.activeID
	}
	b, _ := s.ensureBranchLocked(branchID, in.ParentBranchID)

	now := s.now()
	s.seq++
	t := &Thought{
		ID:        fmt.Sprintf("thought-%d", s.seq),
		Content:   in.Content,
		BranchID:  b.ID,
		Timestamp: now,
		Metadata: Metadata{
			Type:       in.Type,
			Confidence: *in.Confidence,
			KeyPoints:  in.KeyPoints,
		},
	}
	b.Thoughts = append(b.Thoughts, t)
	s.thoughts[t.ID] = t
	touched := []string{b.ID}

	var parent string
	if obs := observationInsight(t, now); obs != nil {
		b.Insights = append(b.Insights, obs)
		parent = obs.ID
	}

	for _, x := range in.CrossRefs {
		target, _ := s.ensureBranchLocked(x.ToBranch, "")
		ref := &CrossReference{
			ID:          newID("xref"),
			FromBranch:  b.ID,
			ToBranch:    target.ID,
			Type:        x.Type,
			Reason:      strings.TrimSpace(x.Reason),
			Strength:    x.Strength,
			Touchpoints: append([]Touchpoint(nil), x.Touchpoints...),
		}
		b.CrossRefs = append(b.CrossRefs, ref)
		if target != b {
			target.CrossRefs = append(target.CrossRefs, reverseOf(ref))
			target.UpdatedAt = now
			s.recomputeMetricsLocked(target)
			touched = append(touched, target.ID)
		}
	}

	b.Insights = append(b.Insights, advancedInsights(b, t, parent, now)...)
	b.UpdatedAt = now
	s.recomputeMetricsLocked(b)
	return t, touched
}

func reverseOf(x *CrossReference) *CrossReference {
	tps := make([]Touchpoint, len(x.Touchpoints))
	for i, tp := range x.Touchpoints {
		tps[i] = Touchpoint{FromThought: tp.ToThought, ToThought: tp.FromThought, Reason: tp.Reason}
	}
	return &CrossReference{
		ID:            newID("xref"),
		FromBranch:    x.ToBranch,
		ToBranch:      x.FromBranch,
		Type:          x.Type,
		Reason:        fmt.Sprintf("auto-generated reverse of %s: %s", x.ID, x.Reason),
		Strength:      ReverseStrengthFactor * x.Strength,
		Touchpoints:   tps,
		AutoGenerated: true,
	}
}

func (s *Store) recomputeMetricsLocked(b *Branch) {
	b.Priority, b.Confidence = BranchMetrics(b, s.now())
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Namespace()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", fe.Namespace(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		}
	}
	return strings.Join(parts, "; ")
}
