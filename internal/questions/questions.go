// Package questions generates interview question sets from a resume or a job
// description.
//
// Three [Generator] implementations exist: [Webhook] posts to an external
// automation workflow, [LLM] prompts a language model directly, and
// [Fallback] chains several generators behind circuit breakers.
package questions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/karanmishra2003/HoloHire/internal/interview"
)

// ErrNoSource is returned when a request has neither a resume URL nor a job
// description.
var ErrNoSource = errors.New("questions: resume url or job description is required")

// ErrNoQuestions is returned when a reply contains no usable question list.
var ErrNoQuestions = errors.New("questions: reply contains no questions")

// Source identifies what the questions are generated from.
type Source string

const (
	SourceResume Source = "resume"
	SourceJob    Source = "job"
)

// Request describes one generation job. A resume URL takes precedence over a
// job description.
type Request struct {
	ResumeURL      string
	JobDescription string
}

// Source reports which input will be used.
func (r Request) Source() (Source, error) {
	switch {
	case strings.TrimSpace(r.ResumeURL) != "":
		return SourceResume, nil
	case strings.TrimSpace(r.JobDescription) != "":
		return SourceJob, nil
	default:
		return "", ErrNoSource
	}
}

// Generator produces an ordered question set.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]interview.Question, error)
}

// ExtractQuestions finds the outermost JSON array in text (models often wrap
// it in prose or code fences) and parses it as a question list.
func ExtractQuestions(text string) ([]interview.Question, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, ErrNoQuestions
	}
	qs, err := interview.ParseQuestions(text[start : end+1])
	if err != nil {
		return nil, fmt.Errorf("questions: %w", err)
	}
	if len(qs) == 0 {
		return nil, ErrNoQuestions
	}
	return qs, nil
}

// limit truncates qs to at most n questions when n is positive.
func limit(qs []interview.Question, n int) []interview.Question {
	if n > 0 && len(qs) > n {
		return qs[:n]
	}
	return qs
}
