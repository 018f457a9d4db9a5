package service

import (
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/Freeeeeet/training_scheduler/internal/assigner"
	"github.com/Freeeeeet/training_scheduler/internal/calendar"
	"github.com/Freeeeeet/training_scheduler/internal/catalog"
	"github.com/Freeeeeet/training_scheduler/internal/model"
	"github.com/Freeeeeet/training_scheduler/internal/sequencer"
)

// Planner runs the scheduling core on an already loaded catalog. It has no
// storage of its own and is shared by the database and file workflows.
type Planner struct {
	policy sequencer.Policy
	logger *zap.Logger
}

func NewPlanner(policy sequencer.Policy, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{policy: policy, logger: logger}
}

// Plan is the outcome of laying out skeletons for the teams of a course.
type Plan struct {
	Slots int
	// Sessions are the new skeletons, in slot order.
	Sessions []model.Session
	// Reused counts curriculum entries already covered by stored sessions.
	Reused int
	Failed []sequencer.Outcome
}

// Err joins the errors of every team that could not be sequenced.
func (p *Plan) Err() error {
	errs := make([]error, 0, len(p.Failed))
	for _, o := range p.Failed {
		errs = append(errs, o.Err)
	}
	return errors.Join(errs...)
}

// Skeletons sequences every team of teamIDs over the teaching slots of the
// course. existing holds sessions already stored for those teams.
func (p *Planner) Skeletons(cat *catalog.Catalog, course model.Course, teamIDs []int64, existing []model.Session) *Plan {
	slots := calendar.Generate(course.StartDate, course.EndDate, cat)

	byTeam := make(map[int64][]model.Session, len(teamIDs))
	for _, s := range existing {
		byTeam[s.TeamID] = append(byTeam[s.TeamID], s)
	}

	reqs := make([]sequencer.Request, 0, len(teamIDs))
	for _, id := range teamIDs {
		reqs = append(reqs, sequencer.Request{TeamID: id, Slots: slots, Existing: byTeam[id]})
	}

	plan := &Plan{Slots: len(slots)}
	seq := sequencer.New(cat, p.policy, p.logger)
	for _, o := range seq.SequenceTeams(reqs) {
		if o.Err != nil {
			plan.Failed = append(plan.Failed, o)
			continue
		}
		plan.Sessions = append(plan.Sessions, o.Result.Sessions...)
		plan.Reused += o.Result.Reused
	}
	slices.SortStableFunc(plan.Sessions, model.CompareSessions)

	p.logger.Info("Skeletons planned",
		zap.Int64("course_id", course.ID),
		zap.Int("teams", len(teamIDs)),
		zap.Int("slots", plan.Slots),
		zap.Int("sessions", len(plan.Sessions)),
		zap.Int("reused", plan.Reused),
		zap.Int("failed", len(plan.Failed)))
	return plan
}

// Resource assigns lecturers and locations to batch in place.
func (p *Planner) Resource(cat *catalog.Catalog, batch, committed []model.Session) (*assigner.Report, error) {
	return assigner.New(cat, p.logger).Assign(batch, committed)
}

// CourseTeams returns the ids of the catalog teams that belong to a course.
func CourseTeams(cat *catalog.Catalog, courseID int64) []int64 {
	var ids []int64
	for _, id := range cat.TeamIDs() {
		if t, _ := cat.Team(id); t.CourseID == courseID {
			ids = append(ids, id)
		}
	}
	return ids
}
