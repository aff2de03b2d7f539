// Package tutor talks to the text-generation service that writes case
// studies, grades diagrams, drafts SQL DDL and gives hints.
//
// The diagram core never depends on this package. Callers pass a snapshot of
// the model in, get text or an [Evaluation] back, and decide what to do with
// it; a failed call never touches diagram state.
//
// [Client] implements [Service] against the Gemini generateContent REST API.
// [Cached] wraps any Service with a [cache.Cache].
package tutor

import (
	"context"
	"strings"

	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/errors"
)

// Service is the text-generation collaborator.
type Service interface {
	GenerateScenario(ctx context.Context, d Difficulty) (string, error)
	EvaluateModel(ctx context.Context, m diagram.Model) (Evaluation, error)
	GenerateSQL(ctx context.Context, m diagram.Model, d Dialect) (string, error)
	GuidedHint(ctx context.Context, m diagram.Model) (string, error)
}

// Operation names reported to hooks and used in cache keys.
const (
	OpScenario = "scenario"
	OpEvaluate = "evaluate"
	OpSQL      = "sql"
	OpHint     = "hint"
)

// Difficulty selects how large a generated case study is.
type Difficulty string

const (
	Basic        Difficulty = "basic"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
)

// Difficulties lists the difficulty levels from easiest to hardest.
func Difficulties() []Difficulty { return []Difficulty{Basic, Intermediate, Advanced} }

// ParseDifficulty parses a difficulty name, case-insensitively.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Difficulties() {
		if d == known {
			return d, nil
		}
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "unknown difficulty %q (want basic, intermediate or advanced)", s)
}

// Dialect is the SQL flavour of generated DDL.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
)

// Dialects lists the supported SQL dialects.
func Dialects() []Dialect { return []Dialect{MySQL, Postgres} }

// ParseDialect parses a dialect name. "postgresql" and "pg" are accepted
// as aliases for [Postgres].
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql", "":
		return MySQL, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "unknown SQL dialect %q (want mysql or postgres)", s)
}

// DisplayName returns the product name of the dialect.
func (d Dialect) DisplayName() string {
	if d == Postgres {
		return "PostgreSQL"
	}
	return "MySQL"
}

// Evaluation is the graded result of [Service.EvaluateModel].
type Evaluation struct {
	Score    int     `json:"score"`
	Feedback string  `json:"feedback"`
	Details  Details `json:"details"`
}

// Details breaks evaluation feedback down by diagram element.
type Details struct {
	Entities      string `json:"entities"`
	Attributes    string `json:"attributes"`
	Relationships string `json:"relationships"`
}

// requireEntities rejects models that have nothing to grade or translate.
func requireEntities(m diagram.Model) error {
	if len(m.Entities) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "create at least one entity first")
	}
	return nil
}

// UserMessage turns a tutor error into text for the person at the canvas.
// Quota and credential failures ask for a new API key; validation failures
// keep their own message; everything else asks to retry.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errors.ErrCodeQuotaExceeded):
		return "The text service quota is exhausted (HTTP 429). Configure your own Gemini API key and try again."
	case errors.Is(err, errors.ErrCodeUnauthorized):
		return "The text service rejected the API key. Configure a valid Gemini API key and try again."
	case errors.IsValidation(err):
		return errors.UserMessage(err)
	default:
		return "The text service request failed. Please try again."
	}
}
