package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/karanmishra2003/HoloHire/internal/interview"
	"github.com/karanmishra2003/HoloHire/internal/observe"
	"github.com/karanmishra2003/HoloHire/pkg/provider/llm"
)

const scorerSystemPrompt = `You are an expert, strict interview evaluator.
Score each question and answer pair from 1 to 10 based on relevance, depth and clarity.
Give constructive feedback of two or three sentences for each answer.
Respond with JSON only, in the form {"feedback":[{"questionIndex":0,"score":7,"feedback":"..."}]}.`

// Feedback texts for automatically scored answers.
const (
	feedbackSkipped  = "The question was skipped, so there was nothing to evaluate. Prepare an answer to this topic before your next interview."
	feedbackNoAnswer = "No answer was recorded for this question."
	feedbackMissing  = "The evaluator returned no score for this answer."
)

// Refusals. Prefix phrases may be followed by a short tail ("I don't know,
// sorry"); exact phrases must be the whole answer.
var (
	dontKnowPrefixes = []string{
		"i don't know", "i dont know", "i do not know",
		"i can't answer", "i cant answer", "i cannot answer",
		"i have no idea", "i'm not sure", "im not sure",
	}
	dontKnowExact = []string{"no idea", "not sure", "pass", "i pass", "skip", "no"}
)

// Scorer produces feedback for a finished interview.
type Scorer struct {
	provider llm.Provider
	name     string
	now      func() time.Time
	metrics  *observe.Metrics
}

// NewScorer returns a [Scorer] using p. name labels metrics.
func NewScorer(p llm.Provider, name string) *Scorer {
	return &Scorer{provider: p, name: name, now: time.Now, metrics: observe.DefaultMetrics()}
}

// Score evaluates every question. Answers are matched to questions by index;
// a question without a record counts as unanswered. The model is called at
// most once, and not at all when every answer is scored by rule.
func (s *Scorer) Score(ctx context.Context, questions []interview.Question, answers []interview.AnswerRecord) (Report, error) {
	byIndex := make(map[int]interview.AnswerRecord, len(answers))
	for _, a := range answers {
		byIndex[a.QuestionIndex] = a
	}

	items := make([]Item, len(questions))
	var pending []int
	for i, q := range questions {
		ans := strings.TrimSpace(byIndex[i].AnswerText)
		items[i] = Item{QuestionIndex: i, Question: q.Prompt, Answer: ans}
		if score, text, ok := preScore(ans); ok {
			items[i].Score, items[i].Feedback, items[i].Automatic = score, text, true
			continue
		}
		pending = append(pending, i)
	}

	if len(pending) > 0 {
		scored, err := s.scoreWithModel(ctx, items, pending)
		if err != nil {
			return Report{}, err
		}
		for _, i := range pending {
			r, ok := scored[i]
			if !ok {
				slog.Warn("feedback: model skipped an answer", "question_index", i)
				items[i].Score, items[i].Feedback = 0, feedbackMissing
				continue
			}
			items[i].Score, items[i].Feedback = clamp(r.score, 1, MaxScore), r.feedback
		}
	}
	return Summarize(items, s.now().UTC()), nil
}

// preScore applies the fixed scoring rules: no content scores 0, a skip or
// refusal scores 1.
func preScore(answer string) (int, string, bool) {
	switch answer {
	case "", interview.SentinelNoAnswer, interview.SentinelTimeExpired, interview.SentinelEndedEarly:
		return 0, feedbackNoAnswer, true
	case interview.SentinelSkipped:
		return 1, feedbackSkipped, true
	}
	if isDontKnow(answer) {
		return 1, "The candidate did not attempt an answer. Even a partial answer that explains your reasoning scores better than declining.", true
	}
	return 0, "", false
}

// isDontKnow matches short answers that consist of a refusal phrase.
func isDontKnow(answer string) bool {
	norm := strings.ToLower(strings.Trim(answer, " .!?,"))
	norm = strings.ReplaceAll(norm, "’", "'")
	if len(strings.Fields(norm)) > 8 {
		return false
	}
	if slices.Contains(dontKnowExact, norm) {
		return true
	}
	for _, p := range dontKnowPrefixes {
		if norm == p || strings.HasPrefix(norm, p+" ") || strings.HasPrefix(norm, p+",") {
			return true
		}
	}
	return false
}

type modelScore struct {
	score    int
	feedback string
}

type scoringPair struct {
	QuestionIndex int    `json:"questionIndex"`
	Question      string `json:"question"`
	Answer        string `json:"answer"`
}

func (s *Scorer) scoreWithModel(ctx context.Context, items []Item, pending []int) (map[int]modelScore, error) {
	pairs := make([]scoringPair, 0, len(pending))
	for _, i := range pending {
		pairs = append(pairs, scoringPair{QuestionIndex: i, Question: items[i].Question, Answer: items[i].Answer})
	}
	input, err := json.MarshalIndent(pairs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("feedback: marshal pairs: %w", err)
	}

	ctx, span := observe.StartSpan(ctx, "feedback.score")
	defer span.End()

	start := time.Now()
	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: scorerSystemPrompt,
		Messages:     []llm.Message{llm.UserMessage("Evaluate these answers:\n" + string(input))},
		Temperature:  0.2,
		JSONMode:     true,
	})
	s.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordProviderError(ctx, s.name, "feedback")
		s.metrics.RecordProviderRequest(ctx, s.name, "feedback", "error")
		span.RecordError(err)
		return nil, fmt.Errorf("feedback: score: %w", err)
	}
	s.metrics.RecordProviderRequest(ctx, s.name, "feedback", "ok")

	return parseScores(resp.Content)
}

// parseScores accepts a bare array, an object wrapping the array under a
// common key, or either of those embedded in surrounding text.
func parseScores(text string) (map[int]modelScore, error) {
	arr, ok := findScoreArray(text)
	if !ok {
		return nil, fmt.Errorf("feedback: model reply contains no score list: %q", truncate(text, 120))
	}
	out := make(map[int]modelScore)
	arr.ForEach(func(_, v gjson.Result) bool {
		idx := v.Get("questionIndex")
		if !idx.Exists() {
			return true
		}
		out[int(idx.Int())] = modelScore{
			score:    int(v.Get("score").Int()),
			feedback: strings.TrimSpace(v.Get("feedback").String()),
		}
		return true
	})
	return out, nil
}

func findScoreArray(text string) (gjson.Result, bool) {
	text = strings.TrimSpace(text)
	if gjson.Valid(text) {
		root := gjson.Parse(text)
		if root.IsArray() {
			return root, true
		}
		for _, key := range []string{"feedback", "scores", "results", "items"} {
			if r := root.Get(key); r.IsArray() {
				return r, true
			}
		}
	}
	start, end := strings.Index(text, "["), strings.LastIndex(text, "]")
	if start >= 0 && end > start && gjson.Valid(text[start:end+1]) {
		return gjson.Parse(text[start : end+1]), true
	}
	return gjson.Result{}, false
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
