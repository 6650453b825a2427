package api

import (
	"time"

	"github.com/phrazzld/gapfill-api/internal/service"
)

// DefaultExerciseCount is used when a request does not name a count.
const DefaultExerciseCount = 10

// ExercisesRequest is the body of POST /api/exercises. GET /api/exercises
// takes the same fields as query parameters.
type ExercisesRequest struct {
	Levels    []string `json:"levels"     validate:"required,min=1,max=6"`
	Topics    []string `json:"topics"     validate:"max=15"`
	Count     int      `json:"count"      validate:"gte=0"`
	SessionID string   `json:"session_id" validate:"max=128"`
	// Interactive defaults to true; batch clients set it to false to skip
	// synchronous generation.
	Interactive *bool `json:"interactive"`
}

// HintResponse is the rendered form of a hint.
type HintResponse struct {
	Kind       string `json:"kind"`
	Text       string `json:"text"`
	Infinitive string `json:"infinitive,omitempty"`
	Person     string `json:"person,omitempty"`
	Form       string `json:"form,omitempty"`
	Rule       string `json:"rule,omitempty"`
}

// ExerciseResponse is one exercise as served to a learner.
type ExerciseResponse struct {
	ID            string            `json:"id"`
	Sentence      string            `json:"sentence"`
	Options       []string          `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
	Level         string            `json:"level"`
	Topic         string            `json:"topic"`
	Explanations  map[string]string `json:"explanations"`
	Hint          *HintResponse     `json:"hint,omitempty"`
	Source        string            `json:"source"`
	Difficulty    float64           `json:"difficulty"`
}

// ExercisesResponse is the response of the exercise endpoints.
type ExercisesResponse struct {
	Exercises   []ExerciseResponse `json:"exercises"`
	Tiers       service.TierCounts `json:"tiers"`
	QueueItemID string             `json:"queue_item_id,omitempty"`
}

// UsageRequest reports one attempt.
type UsageRequest struct {
	ExerciseID string `json:"exercise_id" validate:"required,uuid"`
	SessionID  string `json:"session_id"  validate:"max=128"`
	WasCorrect bool   `json:"was_correct"`
	LatencyMs  int    `json:"latency_ms"  validate:"gte=0"`
}

// StatusResponse acknowledges accepted background work.
type StatusResponse struct {
	Status string `json:"status"`
}

// EnqueueRequest asks for background generation.
type EnqueueRequest struct {
	Levels    []string `json:"levels"     validate:"required,min=1,max=6"`
	Topics    []string `json:"topics"     validate:"max=15"`
	SessionID string   `json:"session_id" validate:"max=128"`
	Priority  string   `json:"priority"   validate:"omitempty,oneof=immediate background"`
}

// EnqueueResponse returns the created or reused queue item.
type EnqueueResponse struct {
	QueueItemID string `json:"queue_item_id"`
}

// QueueItemResponse describes a queue item.
type QueueItemResponse struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	Levels        []string  `json:"levels"`
	Topics        []string  `json:"topics"`
	Priority      string    `json:"priority"`
	InsertedCount int       `json:"inserted_count"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CoverageBucketResponse counts stored exercises for one bucket.
type CoverageBucketResponse struct {
	Level  string `json:"level"`
	Topic  string `json:"topic"`
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// CoverageResponse is the response of GET /api/admin/coverage.
type CoverageResponse struct {
	Total   int                      `json:"total"`
	Levels  map[string]int           `json:"levels"`
	Buckets []CoverageBucketResponse `json:"buckets"`
}
