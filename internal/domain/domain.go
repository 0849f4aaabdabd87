package domain

import "time"

// Entity kinds stored in the workspace.
const (
	KindProject             = "project"
	KindCustomer            = "customer"
	KindPerson              = "person"
	KindSkill               = "skill"
	KindTask                = "task"
	KindAssignment          = "assignment"
	KindSprint              = "sprint"
	KindSprintTask          = "sprint_task"
	KindProductivityProfile = "productivity_profile"
	KindNudge               = "nudge"
	KindNudgeAction         = "nudge_action"
)

// Link types between entities.
const (
	LinkRequiresSkill   = "task_requires_skill"
	LinkHasSkill        = "person_has_skill"
	LinkHasParticipant  = "sprint_has_participant"
	LinkIncludesProject = "sprint_includes_project"
	LinkHasTask         = "project_has_task"
	LinkBlocks          = "task_blocks"
	LinkDependsOn       = "project_depends_on"
	LinkHasAction       = "nudge_has_action"
)

type Project struct {
	ID                   string             `json:"-"`
	Status               string             `json:"-"`
	Version              int64              `json:"-"`
	Name                 string             `json:"name"`
	ProjectType          string             `json:"project_type,omitempty"`
	CustomerID           string             `json:"customer_id,omitempty"`
	PMID                 string             `json:"pm_id,omitempty"`
	Deadline             time.Time          `json:"deadline,omitempty"`
	StartDate            time.Time          `json:"start_date,omitempty"`
	EndDate              time.Time          `json:"end_date,omitempty"`
	BusinessValue        *float64           `json:"business_value,omitempty"`
	StrategicAlignment   *float64           `json:"strategic_alignment,omitempty"`
	RiskScore            float64            `json:"risk_score,omitempty"`
	ContractValue        float64            `json:"contract_value,omitempty"`
	BudgetAmount         float64            `json:"budget_amount,omitempty"`
	HourlyRate           float64            `json:"hourly_rate,omitempty"`
	PriorityScore        *float64           `json:"priority_score,omitempty"`
	PriorityComponents   map[string]float64 `json:"priority_components,omitempty"`
	PriorityCalculatedAt time.Time          `json:"priority_calculated_at,omitempty"`
}

type Customer struct {
	ID      string `json:"-"`
	Status  string `json:"-"`
	Version int64  `json:"-"`
	Name    string `json:"name"`
	Tier    string `json:"tier,omitempty"`
}

type Person struct {
	ID          string  `json:"-"`
	Status      string  `json:"-"`
	Version     int64   `json:"-"`
	Name        string  `json:"name"`
	Role        string  `json:"role,omitempty"`
	ManagerID   string  `json:"manager_id,omitempty"`
	WeeklyHours float64 `json:"weekly_hours,omitempty"`
}

type Skill struct {
	ID       string `json:"-"`
	Status   string `json:"-"`
	Version  int64  `json:"-"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

type Task struct {
	ID                        string    `json:"-"`
	Status                    string    `json:"-"`
	Version                   int64     `json:"-"`
	Title                     string    `json:"title"`
	ProjectID                 string    `json:"project_id,omitempty"`
	AssigneeIDs               []string  `json:"assignee_ids,omitempty"`
	EstimatedHours            float64   `json:"estimated_hours,omitempty"`
	ActualHours               float64   `json:"actual_hours,omitempty"`
	DueDate                   time.Time `json:"due_date,omitempty"`
	EarliestStart             time.Time `json:"earliest_start,omitempty"`
	StartedAt                 time.Time `json:"started_at,omitempty"`
	CompletedAt               time.Time `json:"completed_at,omitempty"`
	PredictedDelayProbability float64   `json:"predicted_delay_probability,omitempty"`
	Priority                  string    `json:"priority,omitempty"`
}

type Assignment struct {
	ID                string    `json:"-"`
	Status            string    `json:"-"`
	Version           int64     `json:"-"`
	PersonID          string    `json:"person_id"`
	ProjectID         string    `json:"project_id,omitempty"`
	TaskID            string    `json:"task_id,omitempty"`
	AllocationPercent float64   `json:"allocation_percent"`
	PlannedHours      float64   `json:"planned_hours,omitempty"`
	StartDate         time.Time `json:"start_date,omitempty"`
	EndDate           time.Time `json:"end_date,omitempty"`
}

type Sprint struct {
	ID        string    `json:"-"`
	Status    string    `json:"-"`
	Version   int64     `json:"-"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date,omitempty"`
	EndDate   time.Time `json:"end_date,omitempty"`
}

type SprintTask struct {
	ID           string  `json:"-"`
	Status       string  `json:"-"`
	Version      int64   `json:"-"`
	SprintID     string  `json:"sprint_id"`
	TaskID       string  `json:"task_id"`
	AssigneeID   string  `json:"assignee_id,omitempty"`
	PlannedHours float64 `json:"planned_hours,omitempty"`
}

// ProductivityProfile records per-person, per-project-type velocity.
// Factors are exponentially smoothed across updates.
type ProductivityProfile struct {
	ID                   string    `json:"-"`
	Status               string    `json:"-"`
	Version              int64     `json:"-"`
	PersonID             string    `json:"person_id"`
	ProjectType          string    `json:"project_type"`
	VelocityFactor       float64   `json:"velocity_factor"`
	EstimationAccuracy   float64   `json:"estimation_accuracy"`
	TasksCompletedCount  int       `json:"tasks_completed_count"`
	AvgTaskCompletionHrs float64   `json:"avg_task_completion_hours,omitempty"`
	LastUpdated          time.Time `json:"last_updated,omitempty"`
}

type Nudge struct {
	ID               string         `json:"-"`
	Status           string         `json:"-"`
	Version          int64          `json:"-"`
	RecipientID      string         `json:"recipient_id"`
	Type             string         `json:"type"`
	Severity         string         `json:"severity"`
	Title            string         `json:"title"`
	Message          string         `json:"message,omitempty"`
	RelatedTaskID    string         `json:"related_task_id,omitempty"`
	RelatedPersonID  string         `json:"related_person_id,omitempty"`
	RelatedProjectID string         `json:"related_project_id,omitempty"`
	Context          map[string]any `json:"context,omitempty"`
	AIConfidence     float64        `json:"ai_confidence,omitempty"`
	CreatedAt        time.Time      `json:"-"`
}

type NudgeAction struct {
	ID            string `json:"-"`
	Status        string `json:"-"`
	Version       int64  `json:"-"`
	NudgeID       string `json:"nudge_id"`
	ActionType    string `json:"action_type"`
	Label         string `json:"label"`
	IsAutomatable bool   `json:"is_automatable,omitempty"`
}

// SkillRequirement is the payload of a task_requires_skill link,
// resolved with the skill it points at.
type SkillRequirement struct {
	SkillID              string `json:"-"`
	SkillName            string `json:"-"`
	MinimumProficiency   int    `json:"minimum_proficiency"`
	PreferredProficiency int    `json:"preferred_proficiency,omitempty"`
	IsMandatory          bool   `json:"is_mandatory"`
}

// PersonSkill is the payload of a person_has_skill link.
type PersonSkill struct {
	SkillID          string  `json:"-"`
	SkillName        string  `json:"-"`
	ProficiencyLevel int     `json:"proficiency_level"`
	YearsExperience  float64 `json:"years_experience,omitempty"`
}

// Participant is the payload of a sprint_has_participant link.
type Participant struct {
	PersonID             string  `json:"-"`
	Name                 string  `json:"-"`
	PlannedCapacityHours float64 `json:"planned_capacity_hours,omitempty"`
}

// Blocker is the payload of a task_blocks link resolved against
// the blocking task.
type Blocker struct {
	TaskID         string `json:"-"`
	TaskStatus     string `json:"-"`
	DependencyType string `json:"dependency_type,omitempty"`
}

// Done reports terminal completion for tasks and sprint tasks.
func Done(status string) bool {
	return status == "done" || status == "completed"
}

// Schedulable reports statuses a planner may still pick up.
func Schedulable(status string) bool {
	return status == "backlog" || status == "todo"
}

// InFlight reports statuses that occupy people right now.
func InFlight(status string) bool {
	return status == "todo" || status == "in_progress"
}
