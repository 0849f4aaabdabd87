package scheduler

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"planwise/internal/domain"
	"planwise/internal/store"
)

// Nudge type categories, used for ranking weight.
const (
	NudgeRisk        = "risk"
	NudgeConflict    = "conflict"
	NudgeSuggestion  = "suggestion"
	NudgeOpportunity = "opportunity"
)

type suggestedAction struct {
	Type  string
	Label string
}

type nudgeCandidate struct {
	nudge      domain.Nudge
	actions    []suggestedAction
	importance float64
}

// NudgeSummary reports one generation run.
type NudgeSummary struct {
	CandidatesFound    int            `json:"candidates_found"`
	AfterRanking       int            `json:"after_ranking"`
	AfterDeduplication int            `json:"after_deduplication"`
	Created            int            `json:"created"`
	SkippedDuplicates  int            `json:"skipped_duplicates"`
	ByType             map[string]int `json:"by_type"`
	BySeverity         map[string]int `json:"by_severity"`
}

type GenerateOptions struct {
	MaxNudges   int
	MinSeverity string
}

// GenerateNudges runs every detector, ranks and deduplicates the
// findings, and persists what survives. A second run over unchanged
// data creates nothing thanks to the persistence-level window.
func (e Engine) GenerateNudges(ctx context.Context, opts GenerateOptions) (NudgeSummary, error) {
	cfg := e.Config.Nudges
	if opts.MaxNudges <= 0 {
		opts.MaxNudges = cfg.MaxNudges
	}
	if opts.MinSeverity == "" {
		opts.MinSeverity = cfg.MinSeverity
	}

	detectors := []func(context.Context) ([]nudgeCandidate, error){
		e.detectDelayRisk,
		e.detectResourceConflictNudges,
		e.detectSkillGapNudges,
		e.detectBurnout,
		e.detectOpportunities,
		e.detectBottlenecks,
	}
	var candidates []nudgeCandidate
	for _, detect := range detectors {
		found, err := detect(ctx)
		if err != nil {
			return NudgeSummary{}, err
		}
		candidates = append(candidates, found...)
	}

	summary := NudgeSummary{
		CandidatesFound: len(candidates),
		ByType:          map[string]int{},
		BySeverity:      map[string]int{},
	}

	minRank := severityRank[opts.MinSeverity]
	var ranked []nudgeCandidate
	for _, c := range candidates {
		if severityRank[c.nudge.Severity] < minRank {
			continue
		}
		c.importance = e.importance(c.nudge)
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].importance > ranked[j].importance })
	summary.AfterRanking = len(ranked)

	seen := map[string]bool{}
	var deduped []nudgeCandidate
	for _, c := range ranked {
		key := dedupKey(c.nudge)
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, c)
	}
	if len(deduped) > opts.MaxNudges {
		deduped = deduped[:opts.MaxNudges]
	}
	summary.AfterDeduplication = len(deduped)

	recent, err := e.Repo.RecentNudges(ctx, e.now().Add(-cfg.DedupWindow))
	if err != nil {
		return NudgeSummary{}, err
	}
	for _, c := range deduped {
		if isRecentDuplicate(c.nudge, recent) {
			summary.SkippedDuplicates++
			continue
		}
		created, err := e.Repo.CreateNudge(ctx, c.nudge)
		if err != nil {
			return NudgeSummary{}, fmt.Errorf("persist nudge: %w", err)
		}
		for _, action := range c.actions {
			_, err := e.Repo.CreateNudgeAction(ctx, domain.NudgeAction{
				NudgeID:       created.ID,
				ActionType:    action.Type,
				Label:         action.Label,
				IsAutomatable: action.Type == "reassign_task" || action.Type == "extend_deadline",
			})
			if err != nil {
				return NudgeSummary{}, fmt.Errorf("persist nudge action: %w", err)
			}
		}
		summary.Created++
		summary.ByType[c.nudge.Type]++
		summary.BySeverity[c.nudge.Severity]++
	}
	return summary, nil
}

// importance weighs confidence by severity and category, boosted when
// the related task is itself critical.
func (e Engine) importance(n domain.Nudge) float64 {
	score := n.AIConfidence * 50
	switch n.Severity {
	case "critical":
		score *= 2.0
	case "warning":
		score *= 1.5
	}
	switch n.Type {
	case NudgeRisk:
		score *= 1.3
	case NudgeConflict:
		score *= 1.2
	case NudgeOpportunity:
		score *= 0.9
	}
	if n.Context != nil {
		if prio, ok := n.Context["task_priority"].(string); ok && prio == "critical" {
			score *= 1.5
		}
	}
	return score
}

func dedupKey(n domain.Nudge) string {
	related := n.RelatedTaskID
	if related == "" {
		related = n.RelatedPersonID
	}
	title := n.Title
	if len(title) > 30 {
		title = title[:30]
	}
	return strings.Join([]string{n.RecipientID, n.Type, related, title}, "|")
}

func isRecentDuplicate(n domain.Nudge, recent []domain.Nudge) bool {
	for _, r := range recent {
		if r.RecipientID == n.RecipientID && r.Type == n.Type && r.RelatedTaskID == n.RelatedTaskID {
			return true
		}
	}
	return false
}

// pmByProject maps projects to their manager for recipient routing.
func (e Engine) pmByProject(ctx context.Context) (map[string]string, error) {
	projects, err := e.Repo.Projects(ctx, "")
	if err != nil {
		return nil, err
	}
	res := make(map[string]string, len(projects))
	for _, p := range projects {
		res[p.ID] = p.PMID
	}
	return res, nil
}

func (e Engine) detectDelayRisk(ctx context.Context) ([]nudgeCandidate, error) {
	tasks, err := e.Repo.Tasks(ctx, "")
	if err != nil {
		return nil, err
	}
	pm, err := e.pmByProject(ctx)
	if err != nil {
		return nil, err
	}
	threshold := e.Config.Nudges.DelayThreshold

	var res []nudgeCandidate
	for _, t := range tasks {
		if !domain.InFlight(t.Status) || t.PredictedDelayProbability < threshold {
			continue
		}
		recipient := pm[t.ProjectID]
		if recipient == "" && len(t.AssigneeIDs) > 0 {
			recipient = t.AssigneeIDs[0]
		}
		if recipient == "" {
			continue
		}
		severity := "info"
		switch {
		case t.PredictedDelayProbability >= 0.9:
			severity = "critical"
		case t.PredictedDelayProbability >= 0.8:
			severity = "warning"
		}
		res = append(res, nudgeCandidate{
			nudge: domain.Nudge{
				RecipientID:      recipient,
				Type:             NudgeRisk,
				Severity:         severity,
				Title:            fmt.Sprintf("task %q is likely to slip", t.Title),
				Message:          fmt.Sprintf("delay probability is %.0f%%, review the schedule or add capacity", t.PredictedDelayProbability*100),
				RelatedTaskID:    t.ID,
				RelatedProjectID: t.ProjectID,
				AIConfidence:     t.PredictedDelayProbability,
				Context: map[string]any{
					"detector":          "delay_risk",
					"delay_probability": t.PredictedDelayProbability,
					"task_priority":     t.Priority,
				},
			},
			actions: []suggestedAction{
				{Type: "extend_deadline", Label: "extend the task deadline"},
				{Type: "reassign_task", Label: "move the task to someone with slack"},
			},
		})
	}
	return res, nil
}

func (e Engine) detectResourceConflictNudges(ctx context.Context) ([]nudgeCandidate, error) {
	people, err := e.Repo.People(ctx, "active")
	if err != nil {
		return nil, err
	}

	var res []nudgeCandidate
	for _, person := range people {
		assignments, err := e.Repo.PersonAssignments(ctx, person.ID, "active")
		if err != nil {
			return nil, err
		}
		if len(assignments) == 0 {
			continue
		}
		var peak float64
		for _, total := range e.dailyLoad(assignments) {
			if total > peak {
				peak = total
			}
		}
		if peak <= 100 {
			continue
		}
		excess := peak - 100
		severity := "info"
		switch {
		case excess > 50:
			severity = "critical"
		case excess > 20:
			severity = "warning"
		}
		recipient := person.ManagerID
		if recipient == "" {
			recipient = person.ID
		}
		res = append(res, nudgeCandidate{
			nudge: domain.Nudge{
				RecipientID:     recipient,
				Type:            NudgeConflict,
				Severity:        severity,
				Title:           fmt.Sprintf("%s is overallocated", person.Name),
				Message:         fmt.Sprintf("peak allocation reaches %.0f%%, rebalance their assignments", peak),
				RelatedPersonID: person.ID,
				AIConfidence:    math.Min(peak/150, 1),
				Context:         map[string]any{"detector": "resource_conflict", "peak_allocation": peak},
			},
			actions: []suggestedAction{{Type: "rebalance_allocation", Label: "reduce overlapping allocations"}},
		})
	}
	return res, nil
}

func (e Engine) detectSkillGapNudges(ctx context.Context) ([]nudgeCandidate, error) {
	tasks, err := e.Repo.Tasks(ctx, "")
	if err != nil {
		return nil, err
	}
	people, err := e.Repo.People(ctx, "active")
	if err != nil {
		return nil, err
	}
	pm, err := e.pmByProject(ctx)
	if err != nil {
		return nil, err
	}
	skillsByPerson := map[string]map[string]domain.PersonSkill{}
	for _, p := range people {
		skills, err := e.Repo.PersonSkills(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		skillsByPerson[p.ID] = skills
	}

	var res []nudgeCandidate
	for _, t := range tasks {
		if !domain.Schedulable(t.Status) || len(t.AssigneeIDs) > 0 {
			continue
		}
		recipient := pm[t.ProjectID]
		if recipient == "" {
			continue
		}
		reqs, err := e.Repo.TaskRequirements(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		if len(reqs) == 0 {
			continue
		}
		qualified := 0
		for _, skills := range skillsByPerson {
			meetsAll := true
			for _, req := range reqs {
				ps, ok := skills[req.SkillID]
				if !ok || ps.ProficiencyLevel < req.MinimumProficiency {
					meetsAll = false
					break
				}
			}
			if meetsAll {
				qualified++
			}
		}
		if qualified > 0 {
			continue
		}
		res = append(res, nudgeCandidate{
			nudge: domain.Nudge{
				RecipientID:      recipient,
				Type:             NudgeSuggestion,
				Severity:         "warning",
				Title:            fmt.Sprintf("no one qualifies for %q", t.Title),
				Message:          "no active person meets every skill requirement, plan training or hiring",
				RelatedTaskID:    t.ID,
				RelatedProjectID: t.ProjectID,
				AIConfidence:     0.9,
				Context:          map[string]any{"detector": "skill_gap", "requirements": len(reqs)},
			},
			actions: []suggestedAction{{Type: "plan_training", Label: "schedule training for the missing skills"}},
		})
	}
	return res, nil
}

func (e Engine) detectBurnout(ctx context.Context) ([]nudgeCandidate, error) {
	people, err := e.Repo.People(ctx, "active")
	if err != nil {
		return nil, err
	}
	threshold := e.Config.Nudges.BurnoutThreshold
	windowStart := dateOnly(e.now())
	windowEnd := windowStart.AddDate(0, 0, 27)

	var res []nudgeCandidate
	for _, person := range people {
		assignments, err := e.Repo.PersonAssignments(ctx, person.ID, "active")
		if err != nil {
			return nil, err
		}
		if len(assignments) == 0 {
			continue
		}
		load := e.dailyLoad(assignments)
		var sum float64
		days := 0
		for day := windowStart; !day.After(windowEnd); day = day.AddDate(0, 0, 1) {
			sum += load[day]
			days++
		}
		avg := sum / float64(days)
		if avg < threshold {
			continue
		}
		severity := "info"
		switch {
		case avg >= 100:
			severity = "critical"
		case avg >= 95:
			severity = "warning"
		}
		recipient := person.ManagerID
		if recipient == "" {
			recipient = person.ID
		}
		res = append(res, nudgeCandidate{
			nudge: domain.Nudge{
				RecipientID:     recipient,
				Type:            NudgeRisk,
				Severity:        severity,
				Title:           fmt.Sprintf("%s is running at a sustained %.0f%%", person.Name, avg),
				Message:         "sustained load this high risks burnout, plan recovery time",
				RelatedPersonID: person.ID,
				AIConfidence:    math.Min(avg/100, 1),
				Context:         map[string]any{"detector": "burnout", "avg_allocation": round1(avg)},
			},
			actions: []suggestedAction{{Type: "reduce_allocation", Label: "lower allocation over the coming weeks"}},
		})
	}
	return res, nil
}

func (e Engine) detectOpportunities(ctx context.Context) ([]nudgeCandidate, error) {
	people, err := e.Repo.People(ctx, "active")
	if err != nil {
		return nil, err
	}
	tasks, err := e.Repo.Tasks(ctx, "")
	if err != nil {
		return nil, err
	}
	projects, err := e.Repo.Projects(ctx, "")
	if err != nil {
		return nil, err
	}
	cfg := e.Config.Nudges

	priorityByProject := map[string]float64{}
	for _, p := range projects {
		if p.PriorityScore != nil {
			priorityByProject[p.ID] = *p.PriorityScore
		}
	}
	var openTaskIDs []string
	for _, t := range tasks {
		if t.Status == "todo" && len(t.AssigneeIDs) == 0 && priorityByProject[t.ProjectID] >= cfg.HighPriorityScore {
			openTaskIDs = append(openTaskIDs, t.ID)
		}
	}
	if len(openTaskIDs) == 0 {
		return nil, nil
	}
	suggested := openTaskIDs
	if len(suggested) > 5 {
		suggested = suggested[:5]
	}

	var res []nudgeCandidate
	for _, person := range people {
		availability, err := e.availability(ctx, person.ID)
		if err != nil {
			return nil, err
		}
		if 100-availability >= cfg.OpportunityAllocation {
			continue
		}
		res = append(res, nudgeCandidate{
			nudge: domain.Nudge{
				RecipientID:     person.ID,
				Type:            NudgeOpportunity,
				Severity:        "info",
				Title:           fmt.Sprintf("%s has capacity for high-priority work", person.Name),
				Message:         fmt.Sprintf("%d unassigned high-priority tasks are waiting", len(openTaskIDs)),
				RelatedPersonID: person.ID,
				AIConfidence:    0.7,
				Context:         map[string]any{"detector": "opportunity", "suggested_task_ids": suggested},
			},
			actions: []suggestedAction{{Type: "assign_task", Label: "pick up one of the waiting tasks"}},
		})
	}
	return res, nil
}

// detectBottlenecks relies on the graph; when it is unavailable the
// detector is skipped with a warning rather than failing the run.
func (e Engine) detectBottlenecks(ctx context.Context) ([]nudgeCandidate, error) {
	cfg := e.Config.Nudges
	rows, err := e.Repo.Store.GraphQuery(ctx, store.GraphQuery{
		Pattern:       store.PatternBlockingTasks,
		MinDependents: cfg.BottleneckMin,
	})
	if err != nil {
		e.Log.Warn("graph unavailable, skipping bottleneck detection", "err", err)
		return nil, nil
	}
	pm, err := e.pmByProject(ctx)
	if err != nil {
		return nil, err
	}

	var res []nudgeCandidate
	for _, row := range rows {
		t, err := e.Repo.Task(ctx, row.EntityID)
		if err != nil {
			return nil, err
		}
		recipient := pm[t.ProjectID]
		if recipient == "" && len(t.AssigneeIDs) > 0 {
			recipient = t.AssigneeIDs[0]
		}
		if recipient == "" {
			continue
		}
		severity := "warning"
		if row.Count >= 5 {
			severity = "critical"
		}
		res = append(res, nudgeCandidate{
			nudge: domain.Nudge{
				RecipientID:      recipient,
				Type:             NudgeConflict,
				Severity:         severity,
				Title:            fmt.Sprintf("task %q is blocking %d others", t.Title, row.Count),
				Message:          "finishing this task unblocks the most downstream work",
				RelatedTaskID:    t.ID,
				RelatedProjectID: t.ProjectID,
				AIConfidence:     math.Min(float64(row.Count)/10, 1),
				Context:          map[string]any{"detector": "bottleneck", "blocked_count": row.Count, "task_priority": t.Priority},
			},
			actions: []suggestedAction{{Type: "prioritize_task", Label: "pull the blocking task forward"}},
		})
	}
	return res, nil
}
