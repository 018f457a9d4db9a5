// Package sequencer lays a team's curriculum out on calendar slots,
// producing skeleton sessions that keep prerequisites ahead of their
// dependants and avoid long runs of a single subject category.
package sequencer

import (
	"cmp"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/Freeeeeet/training_scheduler/internal/calendar"
	"github.com/Freeeeeet/training_scheduler/internal/catalog"
	"github.com/Freeeeeet/training_scheduler/internal/model"
)

// DefaultCategoryRunLimit is used when no policy is configured.
const DefaultCategoryRunLimit = 2

// Policy tunes the category grouping heuristic.
type Policy struct {
	// CategoryRunLimit is the longest run of consecutive sessions of one
	// category before a subject of another category is preferred. Zero
	// disables the heuristic.
	CategoryRunLimit int
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{CategoryRunLimit: DefaultCategoryRunLimit}
}

// Request describes the sequencing of one team.
type Request struct {
	TeamID int64
	// Curriculum overrides the catalog curriculum of the team when non-nil.
	Curriculum []int64
	Slots      []calendar.Slot
	// Existing sessions already committed for the team. They keep their
	// slots and count against the curriculum.
	Existing []model.Session
}

// Result holds the skeleton sessions created for one team.
type Result struct {
	TeamID   int64
	Sessions []model.Session
	// Reused is the number of curriculum entries covered by existing sessions.
	Reused int
	// Deferred counts placements where the first pending subject had to
	// wait for a later one.
	Deferred int
}

// Outcome is the result of one team within SequenceTeams.
type Outcome struct {
	TeamID int64
	Result *Result
	Err    error
}

type Sequencer struct {
	catalog *catalog.Catalog
	policy  Policy
	logger  *zap.Logger
}

func New(cat *catalog.Catalog, policy Policy, logger *zap.Logger) *Sequencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.CategoryRunLimit < 0 {
		policy.CategoryRunLimit = 0
	}
	return &Sequencer{catalog: cat, policy: policy, logger: logger}
}

// entry is one curriculum occurrence still waiting for a slot.
type entry struct {
	subject model.Subject
}

// Sequence places the pending curriculum of one team on free slots.
//
// Slots are walked in order. Each free slot gets the first pending subject
// whose prerequisite already sits in an earlier slot. When the current run
// of one category has reached the policy limit, the first eligible subject
// of another category is taken instead, if there is one. A slot with no
// eligible subject stays empty.
func (s *Sequencer) Sequence(req Request) (*Result, error) {
	log := s.logger.With(zap.Int64("team_id", req.TeamID))

	curriculum := req.Curriculum
	if curriculum == nil {
		ids, err := s.catalog.CurriculumFor(req.TeamID)
		if err != nil {
			return nil, err
		}
		curriculum = ids
	}

	pending := make([]entry, 0, len(curriculum))
	for i, id := range curriculum {
		subj, ok := s.catalog.Subject(id)
		if !ok {
			return nil, &model.ScheduleError{
				Kind:      model.KindInputInvalid,
				TeamID:    req.TeamID,
				SubjectID: id,
				Detail:    fmt.Sprintf("curriculum position %d references unknown subject", i+1),
			}
		}
		pending = append(pending, entry{subject: subj})
	}

	existing, err := s.existing(req)
	if err != nil {
		return nil, err
	}

	res := &Result{TeamID: req.TeamID}
	placed := make(map[int64]calendar.Slot)
	occupied := make(map[model.SlotKey]model.Session, len(existing))
	for _, sess := range existing {
		occupied[sess.Slot()] = sess
		if _, ok := placed[sess.SubjectID]; !ok {
			placed[sess.SubjectID] = calendar.Slot{Week: sess.Week, Date: sess.Date, Period: sess.Period}
		}
		if i := indexOf(pending, sess.SubjectID); i >= 0 {
			pending = slices.Delete(pending, i, i+1)
			res.Reused++
		}
	}

	if len(pending) == 0 {
		log.Debug("curriculum already covered", zap.Int("reused", res.Reused))
		return res, nil
	}
	if err := s.checkPrerequisites(req.TeamID, pending, placed); err != nil {
		return nil, err
	}
	if len(req.Slots) == 0 {
		return nil, model.Unsatisfiable(req.TeamID, pending[0].subject.ID,
			"no teaching slots in range for %d pending sessions", len(pending))
	}

	var (
		runCategory model.Category
		runLength   int
	)
	extend := func(c model.Category) {
		if c == runCategory {
			runLength++
			return
		}
		runCategory, runLength = c, 1
	}

	for _, slot := range req.Slots {
		if len(pending) == 0 {
			break
		}
		if sess, ok := occupied[slot.Key()]; ok {
			if subj, ok := s.catalog.Subject(sess.SubjectID); ok {
				extend(subj.Category)
			}
			continue
		}

		idx := s.pick(pending, placed, slot, runCategory, runLength)
		if idx < 0 {
			log.Debug("slot left empty, nothing eligible", zap.Stringer("slot", slot))
			continue
		}
		if idx > 0 {
			res.Deferred++
			log.Debug("subject deferred",
				zap.Int64("subject_id", pending[0].subject.ID),
				zap.Int64("taken_subject_id", pending[idx].subject.ID),
				zap.Stringer("slot", slot),
			)
		}

		e := pending[idx]
		pending = slices.Delete(pending, idx, idx+1)
		if _, ok := placed[e.subject.ID]; !ok {
			placed[e.subject.ID] = slot
		}
		extend(e.subject.Category)

		res.Sessions = append(res.Sessions, model.Session{
			Week:      slot.Week,
			TeamID:    req.TeamID,
			SubjectID: e.subject.ID,
			Date:      slot.Date,
			DayOfWeek: model.WeekdayLabel(slot.Date),
			Period:    slot.Period,
		})
		log.Debug("subject placed",
			zap.Int64("subject_id", e.subject.ID),
			zap.Int("week", slot.Week),
			zap.Stringer("slot", slot),
		)
	}

	if len(pending) > 0 {
		e := pending[0]
		if p := e.subject.PrerequisiteID; p != nil && !eligible(e.subject, placed, req.Slots[len(req.Slots)-1]) {
			return nil, model.Unsatisfiable(req.TeamID, e.subject.ID,
				"prerequisite %d could not be placed before it", *p)
		}
		return nil, model.Unsatisfiable(req.TeamID, e.subject.ID,
			"no free slot left: %d of %d curriculum sessions unplaced in %d slots",
			len(pending), len(curriculum), len(req.Slots))
	}

	log.Info("team sequenced",
		zap.Int("sessions", len(res.Sessions)),
		zap.Int("reused", res.Reused),
		zap.Int("deferred", res.Deferred),
	)
	return res, nil
}

// SequenceTeams runs Sequence for every request in ascending team order. A
// failing team does not stop the others.
func (s *Sequencer) SequenceTeams(reqs []Request) []Outcome {
	sorted := slices.Clone(reqs)
	slices.SortStableFunc(sorted, func(a, b Request) int {
		return cmp.Compare(a.TeamID, b.TeamID)
	})

	out := make([]Outcome, 0, len(sorted))
	for _, req := range sorted {
		res, err := s.Sequence(req)
		if err != nil {
			s.logger.Warn("team sequencing failed", zap.Int64("team_id", req.TeamID), zap.Error(err))
		}
		out = append(out, Outcome{TeamID: req.TeamID, Result: res, Err: err})
	}
	return out
}

// pick returns the index of the pending entry for slot, or -1.
func (s *Sequencer) pick(pending []entry, placed map[int64]calendar.Slot, slot calendar.Slot, runCategory model.Category, runLength int) int {
	first := -1
	for i, e := range pending {
		if !eligible(e.subject, placed, slot) {
			continue
		}
		if first < 0 {
			first = i
			limited := s.policy.CategoryRunLimit > 0 && runLength >= s.policy.CategoryRunLimit
			if !limited || e.subject.Category != runCategory {
				return i
			}
			continue
		}
		if e.subject.Category != runCategory {
			return i
		}
	}
	return first
}

func eligible(subj model.Subject, placed map[int64]calendar.Slot, slot calendar.Slot) bool {
	if subj.PrerequisiteID == nil {
		return true
	}
	p, ok := placed[*subj.PrerequisiteID]
	if !ok {
		return false
	}
	return model.SlotBefore(p.Date, p.Period, slot.Date, slot.Period)
}

// existing validates the committed sessions of the team and returns them in
// slot order.
func (s *Sequencer) existing(req Request) ([]model.Session, error) {
	out := slices.Clone(req.Existing)
	seen := make(map[model.SlotKey]struct{}, len(out))
	for i := range out {
		sess := &out[i]
		if sess.TeamID != req.TeamID {
			return nil, model.Invalid(sess.Key().String(), "existing session belongs to team %d, not %d", sess.TeamID, req.TeamID)
		}
		if err := s.catalog.ValidateSession(sess); err != nil {
			return nil, err
		}
		if _, dup := seen[sess.Slot()]; dup {
			return nil, model.Invalid(sess.Key().String(), "two existing sessions share one slot")
		}
		seen[sess.Slot()] = struct{}{}
	}
	slices.SortStableFunc(out, model.CompareSessions)
	return out, nil
}

// checkPrerequisites rejects pending subjects whose prerequisite chain is
// cyclic or leaves the curriculum.
func (s *Sequencer) checkPrerequisites(teamID int64, pending []entry, placed map[int64]calendar.Slot) error {
	inPlan := make(map[int64]struct{}, len(pending)+len(placed))
	for _, e := range pending {
		inPlan[e.subject.ID] = struct{}{}
	}
	for id := range placed {
		inPlan[id] = struct{}{}
	}

	for _, e := range pending {
		seen := map[int64]struct{}{e.subject.ID: {}}
		cur := e.subject
		for cur.PrerequisiteID != nil {
			next := *cur.PrerequisiteID
			if _, ok := inPlan[next]; !ok {
				return model.Unsatisfiable(teamID, cur.ID,
					"prerequisite %d is not part of the curriculum", next)
			}
			if _, loop := seen[next]; loop {
				return model.Unsatisfiable(teamID, e.subject.ID,
					"prerequisite chain is cyclic through subject %d", next)
			}
			if _, done := placed[next]; done {
				break
			}
			seen[next] = struct{}{}
			cur, _ = s.catalog.Subject(next)
		}
	}
	return nil
}

func indexOf(pending []entry, subjectID int64) int {
	for i, e := range pending {
		if e.subject.ID == subjectID {
			return i
		}
	}
	return -1
}
