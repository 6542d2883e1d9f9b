package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nbai/nbai/internal/observability"
)

var ErrEmptyQuestion = errors.New("question is required")

const (
	MessageNoResults       = "No results found."
	MessageRetrievalError  = "Sorry, I couldn't figure out which stats tables answer that question."
	MessageSchemaError     = "Sorry, I encountered an error while accessing the schema."
	MessageSynthesisError  = "Sorry, I couldn't turn that question into a query."
	MessageDatabaseError   = "Sorry, I encountered an error while accessing the database."
	MessageInvalidQuestion = "Please ask a question about NBA stats."
)

type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string { return "table retrieval failed: " + e.Err.Error() }
func (e *RetrievalError) Unwrap() error { return e.Err }

type EnrichmentError struct {
	Tables []string
	Err    error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("schema enrichment failed for [%s]: %v", strings.Join(e.Tables, ", "), e.Err)
}
func (e *EnrichmentError) Unwrap() error { return e.Err }

type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string { return "sql synthesis failed: " + e.Err.Error() }
func (e *SynthesisError) Unwrap() error { return e.Err }

type ExecutionError struct {
	Statement string
	Err       error
}

func (e *ExecutionError) Error() string { return "query execution failed: " + e.Err.Error() }
func (e *ExecutionError) Unwrap() error { return e.Err }

// Failure is the caller-safe description of a pipeline error.
type Failure struct {
	Stage   string
	Outcome string
	Code    string
	Message string
}

func Classify(err error) Failure {
	var (
		retrieval  *RetrievalError
		enrichment *EnrichmentError
		synthesis  *SynthesisError
		execution  *ExecutionError
	)
	switch {
	case errors.Is(err, ErrEmptyQuestion):
		return Failure{Stage: "input", Outcome: "invalid", Code: "INVALID_QUESTION", Message: MessageInvalidQuestion}
	case errors.As(err, &retrieval):
		return Failure{Stage: StageRetrieval, Outcome: observability.OutcomeRetrievalError, Code: "RETRIEVAL_FAILED", Message: MessageRetrievalError}
	case errors.As(err, &enrichment):
		return Failure{Stage: StageEnrichment, Outcome: observability.OutcomeEnrichmentError, Code: "SCHEMA_UNAVAILABLE", Message: MessageSchemaError}
	case errors.As(err, &synthesis):
		return Failure{Stage: StageSynthesis, Outcome: observability.OutcomeSynthesisError, Code: "SYNTHESIS_FAILED", Message: MessageSynthesisError}
	case errors.As(err, &execution):
		return Failure{Stage: StageExecution, Outcome: observability.OutcomeExecutionError, Code: "QUERY_EXECUTION_FAILED", Message: MessageDatabaseError}
	default:
		return Failure{Stage: "unknown", Outcome: "internal_error", Code: "INTERNAL_ERROR", Message: MessageDatabaseError}
	}
}
