// ABOUTME: Boundary types for plans produced by the workout generator.
// ABOUTME: Converts a finished plan into a WorkoutRecord for storage.
package models

// Exercise is one movement in a generated plan. Only the name is stored.
type Exercise struct {
	Name string `json:"name"`
}

// WorkoutPlan is the generator's output. It is opaque to storage except for
// the mode, rounds, and the ordered exercise names.
type WorkoutPlan struct {
	Mode      WorkoutMode `json:"mode"`
	Duration  int         `json:"duration"`
	Rounds    int         `json:"rounds"`
	Exercises []Exercise  `json:"exercises"`
}

// FromPlan builds the record for a completed plan.
// Exercise order is preserved because it is the execution order.
func FromPlan(plan WorkoutPlan, date string, duration int) *WorkoutRecord {
	names := make([]string, 0, len(plan.Exercises))
	for _, ex := range plan.Exercises {
		names = append(names, ex.Name)
	}
	r := NewWorkoutRecord(date, plan.Mode, duration, names)
	if plan.Rounds > 0 {
		r.WithRounds(plan.Rounds)
	}
	return r
}
