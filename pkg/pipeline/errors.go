package pipeline

import "fmt"

// Stage names the pipeline step an error came from.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StagePersist  Stage = "persist"
	StageLoad     Stage = "load"
	StageIndex    Stage = "index"
	StageEvaluate Stage = "evaluate"
)

// FetchError means the document could not be retrieved from its URL.
type FetchError struct {
	Stage Stage
	URL   string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch document %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IndexError means the fetched document could not be persisted, parsed or
// indexed.
type IndexError struct {
	Stage Stage
	Err   error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("failed to index document (%s): %v", e.Stage, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// EvaluationError is the failure of a single question. It never fails the
// request; its message becomes that question's answer.
type EvaluationError struct {
	Stage    Stage
	Question string
	Err      error
}

func (e *EvaluationError) Error() string {
	return e.Err.Error()
}

func (e *EvaluationError) Unwrap() error { return e.Err }
