package job

import "github.com/wanderplan/wanderplan-api/internal/domain"

// Stage is one ordered step of a generation pipeline, identified by index
// rather than by label so status classification never depends on exact
// string matching.
type Stage struct {
	Index      int
	Label      string
	Checkpoint int // progress after the stage completes
}

// scheduleStages is the fixed stage list for full schedule generation.
var scheduleStages = []Stage{
	{Index: 0, Label: "Collecting location data", Checkpoint: 20},
	{Index: 1, Label: "Collecting weather data", Checkpoint: 40},
	{Index: 2, Label: "Invoking generation backend", Checkpoint: 60},
	{Index: 3, Label: "Persisting generated schedule", Checkpoint: 80},
	{Index: 4, Label: "Finalizing", Checkpoint: 100},
}

// regenerationStages is the shorter stage list for single-day regeneration.
var regenerationStages = []Stage{
	{Index: 0, Label: "Analyzing existing day", Checkpoint: 30},
	{Index: 1, Label: "Invoking generation backend", Checkpoint: 60},
	{Index: 2, Label: "Persisting regenerated day", Checkpoint: 90},
}

// StagesFor returns the stage list for a job type.
func StagesFor(jobType domain.JobType) []Stage {
	if jobType == domain.JobTypeDayScheduleRegeneration {
		return regenerationStages
	}
	return scheduleStages
}

// StageStatus describes one stage's completion state in a status response.
type StageStatus struct {
	Index     int    `json:"index"`
	Label     string `json:"label"`
	Completed bool   `json:"completed"`
}

// ClassifyStages marks each stage completed when the job's progress has
// reached its checkpoint.
func ClassifyStages(jobType domain.JobType, progress int) []StageStatus {
	stages := StagesFor(jobType)
	statuses := make([]StageStatus, len(stages))
	for i, stage := range stages {
		statuses[i] = StageStatus{
			Index:     stage.Index,
			Label:     stage.Label,
			Completed: progress >= stage.Checkpoint,
		}
	}
	return statuses
}
