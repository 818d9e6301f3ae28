package storage

import "time"

// ModelInfo describes a stored model.
type ModelInfo struct {
	// Name identifies the model; it is the primary key.
	Name string `json:"name"`

	// Description is free text supplied at training time.
	Description string `json:"description,omitempty"`

	// Source is the path of the training data, if known.
	Source string `json:"source,omitempty"`

	NumOutcomes        int     `json:"num_outcomes"`
	NumPredicates      int     `json:"num_predicates"`
	NumParameters      int     `json:"num_parameters"`
	NumPatterns        int     `json:"num_patterns"`
	CorrectionConstant int     `json:"correction_constant"`
	CorrectionParam    float64 `json:"correction_param"`

	// Training settings and result.
	Iterations    int     `json:"iterations"`
	Cutoff        int     `json:"cutoff"`
	Smoothing     bool    `json:"smoothing"`
	LogLikelihood float64 `json:"log_likelihood"`

	CreatedAt time.Time `json:"created_at"`
}

// RunStatus is the state of a training run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunConverged RunStatus = "converged"
	RunDiverged  RunStatus = "diverged"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// TrainingRun records one invocation of the trainer.
type TrainingRun struct {
	ID        int64  `json:"id"`
	ModelName string `json:"model_name"`
	Source    string `json:"source,omitempty"`

	Events     int `json:"events"`
	Rows       int `json:"rows"`
	Predicates int `json:"predicates"`
	Outcomes   int `json:"outcomes"`

	Iterations    int       `json:"iterations"`
	LogLikelihood float64   `json:"log_likelihood"`
	Status        RunStatus `json:"status"`
	Error         string    `json:"error,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// IterationRecord is the progress of one GIS iteration.
type IterationRecord struct {
	Iteration     int           `json:"iteration"`
	LogLikelihood float64       `json:"log_likelihood"`
	Accuracy      float64       `json:"accuracy"`
	Elapsed       time.Duration `json:"elapsed"`
}
