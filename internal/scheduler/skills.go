package scheduler

import (
	"context"
	"fmt"
	"sort"

	"planwise/internal/domain"
)

// SkillAssessment pairs one requirement with the person's level.
type SkillAssessment struct {
	SkillID   string `json:"skill_id"`
	SkillName string `json:"skill_name"`
	Required  int    `json:"required"`
	Preferred int    `json:"preferred,omitempty"`
	Level     int    `json:"level"`
	Mandatory bool   `json:"mandatory"`
}

// MatchReport scores one person against one task's requirements.
type MatchReport struct {
	TaskID         string            `json:"task_id"`
	PersonID       string            `json:"person_id"`
	PersonName     string            `json:"person_name"`
	Score          float64           `json:"score"`
	Availability   float64           `json:"availability"`
	Recommendation string            `json:"recommendation"`
	Matching       []SkillAssessment `json:"matching,omitempty"`
	Missing        []SkillAssessment `json:"missing,omitempty"`
	BelowRequired  []SkillAssessment `json:"below_required,omitempty"`
	Development    []SkillAssessment `json:"development,omitempty"`
}

// SkillGap is an organization-wide shortage for one skill.
type SkillGap struct {
	SkillID         string   `json:"skill_id"`
	SkillName       string   `json:"skill_name"`
	RequiredLevel   int      `json:"required_level"`
	TaskCount       int      `json:"task_count"`
	QualifiedPeople int      `json:"qualified_people"`
	Severity        string   `json:"severity"`
	AffectedTaskIDs []string `json:"affected_task_ids,omitempty"`
	Suggestion      string   `json:"suggestion,omitempty"`
}

// MatchPersonToTask scores how well a person covers a task's skill
// requirements. Mandatory requirements weigh double; a present skill
// below the bar earns half credit proportional to the shortfall. A
// task with no requirements matches everyone fully.
func (e Engine) MatchPersonToTask(ctx context.Context, taskID, personID string) (MatchReport, error) {
	if _, err := e.Repo.Task(ctx, taskID); err != nil {
		return MatchReport{}, err
	}
	person, err := e.Repo.Person(ctx, personID)
	if err != nil {
		return MatchReport{}, err
	}
	reqs, err := e.Repo.TaskRequirements(ctx, taskID)
	if err != nil {
		return MatchReport{}, err
	}
	skills, err := e.Repo.PersonSkills(ctx, personID)
	if err != nil {
		return MatchReport{}, err
	}
	availability, err := e.availability(ctx, personID)
	if err != nil {
		return MatchReport{}, err
	}

	report := e.assess(taskID, person, reqs, skills)
	report.Availability = availability
	return report, nil
}

func (e Engine) assess(taskID string, person domain.Person, reqs []domain.SkillRequirement, skills map[string]domain.PersonSkill) MatchReport {
	cfg := e.Config.Skills
	report := MatchReport{TaskID: taskID, PersonID: person.ID, PersonName: person.Name}

	if len(reqs) == 0 {
		report.Score = 100
		report.Recommendation = e.recommendation(100)
		return report
	}

	var earned, total float64
	for _, req := range reqs {
		weight := cfg.OptionalWeight
		if req.IsMandatory {
			weight = cfg.MandatoryWeight
		}
		total += weight

		a := SkillAssessment{
			SkillID:   req.SkillID,
			SkillName: req.SkillName,
			Required:  req.MinimumProficiency,
			Preferred: req.PreferredProficiency,
			Mandatory: req.IsMandatory,
		}
		ps, ok := skills[req.SkillID]
		if !ok {
			if req.IsMandatory {
				report.Missing = append(report.Missing, a)
			} else {
				report.Development = append(report.Development, a)
			}
			continue
		}
		a.Level = ps.ProficiencyLevel
		if ps.ProficiencyLevel >= req.MinimumProficiency {
			earned += weight
			report.Matching = append(report.Matching, a)
			if req.PreferredProficiency > 0 && ps.ProficiencyLevel < req.PreferredProficiency {
				report.Development = append(report.Development, a)
			}
			continue
		}
		earned += weight * cfg.PartialCredit * float64(ps.ProficiencyLevel) / float64(req.MinimumProficiency)
		report.BelowRequired = append(report.BelowRequired, a)
	}

	report.Score = round1(earned / total * 100)
	report.Recommendation = e.recommendation(report.Score)
	return report
}

func (e Engine) recommendation(score float64) string {
	cfg := e.Config.Skills
	switch {
	case score >= cfg.ExcellentThreshold:
		return "excellent"
	case score >= cfg.GoodThreshold:
		return "good"
	case score >= cfg.AcceptableThreshold:
		return "acceptable"
	default:
		return "poor"
	}
}

// availability is the free capacity left after active assignments.
func (e Engine) availability(ctx context.Context, personID string) (float64, error) {
	assignments, err := e.Repo.PersonAssignments(ctx, personID, "active")
	if err != nil {
		return 0, err
	}
	var allocated float64
	for _, a := range assignments {
		allocated += a.AllocationPercent
	}
	return clamp(100-allocated, 0, 100), nil
}

// BestMatches ranks active people against a task. When the task has no
// requirements the ranking degrades to availability with a neutral
// score.
func (e Engine) BestMatches(ctx context.Context, taskID string, limit int, minScore float64) ([]MatchReport, error) {
	if limit <= 0 {
		limit = 5
	}
	if _, err := e.Repo.Task(ctx, taskID); err != nil {
		return nil, err
	}
	reqs, err := e.Repo.TaskRequirements(ctx, taskID)
	if err != nil {
		return nil, err
	}
	people, err := e.Repo.People(ctx, "active")
	if err != nil {
		return nil, err
	}

	var reports []MatchReport
	for _, person := range people {
		var report MatchReport
		if len(reqs) == 0 {
			report = MatchReport{TaskID: taskID, PersonID: person.ID, PersonName: person.Name, Score: 50, Recommendation: e.recommendation(50)}
		} else {
			skills, err := e.Repo.PersonSkills(ctx, person.ID)
			if err != nil {
				return nil, err
			}
			report = e.assess(taskID, person, reqs, skills)
		}
		if report.Availability, err = e.availability(ctx, person.ID); err != nil {
			return nil, err
		}
		if report.Score < minScore {
			continue
		}
		reports = append(reports, report)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].Score != reports[j].Score {
			return reports[i].Score > reports[j].Score
		}
		return reports[i].Availability > reports[j].Availability
	})
	if len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

// SkillGaps aggregates requirements across unfinished tasks and counts
// who could actually serve them.
func (e Engine) SkillGaps(ctx context.Context) ([]SkillGap, error) {
	tasks, err := e.Repo.Tasks(ctx, "")
	if err != nil {
		return nil, err
	}
	people, err := e.Repo.People(ctx, "active")
	if err != nil {
		return nil, err
	}
	skillsByPerson := make(map[string]map[string]domain.PersonSkill, len(people))
	for _, p := range people {
		skills, err := e.Repo.PersonSkills(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		skillsByPerson[p.ID] = skills
	}

	gaps := map[string]*SkillGap{}
	for _, t := range tasks {
		if domain.Done(t.Status) {
			continue
		}
		reqs, err := e.Repo.TaskRequirements(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		for _, req := range reqs {
			g, ok := gaps[req.SkillID]
			if !ok {
				g = &SkillGap{SkillID: req.SkillID, SkillName: req.SkillName}
				gaps[req.SkillID] = g
			}
			if req.MinimumProficiency > g.RequiredLevel {
				g.RequiredLevel = req.MinimumProficiency
			}
			g.TaskCount++
			g.AffectedTaskIDs = append(g.AffectedTaskIDs, t.ID)
		}
	}

	var res []SkillGap
	for _, g := range gaps {
		for _, skills := range skillsByPerson {
			if ps, ok := skills[g.SkillID]; ok && ps.ProficiencyLevel >= g.RequiredLevel {
				g.QualifiedPeople++
			}
		}
		switch {
		case g.QualifiedPeople == 0 && g.TaskCount > 5:
			g.Severity = "critical"
		case g.QualifiedPeople == 0:
			g.Severity = "high"
		case float64(g.QualifiedPeople) < float64(g.TaskCount)/3:
			g.Severity = "medium"
		default:
			g.Severity = "low"
		}
		g.Suggestion = trainingSuggestion(g)
		res = append(res, *g)
	}
	sort.SliceStable(res, func(i, j int) bool {
		ri, rj := severityRank[res[i].Severity], severityRank[res[j].Severity]
		if ri != rj {
			return ri > rj
		}
		return res[i].TaskCount > res[j].TaskCount
	})
	return res, nil
}

func trainingSuggestion(g *SkillGap) string {
	if g.QualifiedPeople == 0 {
		return fmt.Sprintf("no one meets level %d in %s; hire or run focused training", g.RequiredLevel, g.SkillName)
	}
	return fmt.Sprintf("upskill additional people to level %d in %s to cover %d tasks", g.RequiredLevel, g.SkillName, g.TaskCount)
}
