package interview

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/karanmishra2003/HoloHire/internal/voicecmd"
)

// Defaults for [MachineConfig].
const (
	DefaultQuestionSeconds = 60
	DefaultDetectionPrefix = 25
)

// Phase is the coarse state of a live session.
type Phase int

const (
	PhaseConnecting Phase = iota
	PhaseAwaitingQuestion
	PhaseListening
	PhaseEnding
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseAwaitingQuestion:
		return "awaiting_question"
	case PhaseListening:
		return "listening"
	case PhaseEnding:
		return "ending"
	default:
		return "unknown"
	}
}

// DirectiveKind identifies a side effect requested by the [Machine].
type DirectiveKind int

const (
	// DirectiveInstruct sends Text to the voice session as a system message.
	DirectiveInstruct DirectiveKind = iota
	// DirectiveAdvanced reports that the current question changed to Index.
	// It carries no I/O and exists for observers.
	DirectiveAdvanced
	// DirectiveStopVoice tears down the voice session.
	DirectiveStopVoice
	// DirectivePersist writes Answers through the persistence gateway.
	DirectivePersist
	// DirectiveComplete signals that the session is over.
	DirectiveComplete
)

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveInstruct:
		return "instruct"
	case DirectiveAdvanced:
		return "advanced"
	case DirectiveStopVoice:
		return "stop_voice"
	case DirectivePersist:
		return "persist"
	case DirectiveComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Advance triggers and instruction reasons reported in directives.
const (
	TriggerDetected = "detected"
	TriggerSkip     = "skip"
	TriggerTimer    = "timer"

	ReasonRepeat  = "repeat"
	ReasonBlocked = "blocked"
	ReasonSkip    = "skip"
	ReasonTimeUp  = "time_up"
	ReasonWrapUp  = "wrap_up"
)

// Directive is one side effect the caller must carry out, in order.
type Directive struct {
	Kind DirectiveKind

	// Text is the instruction for DirectiveInstruct.
	Text string

	// Reason labels a DirectiveInstruct, Trigger labels a DirectiveAdvanced.
	Reason  string
	Trigger string

	// Index is the new question index for DirectiveAdvanced.
	Index int

	// Answers is the final record set for DirectivePersist.
	Answers []AnswerRecord
}

// Snapshot is a read-only view of the session state for presentation.
type Snapshot struct {
	Phase            Phase  `json:"-"`
	PhaseName        string `json:"phase"`
	QuestionIndex    int    `json:"questionIndex"`
	QuestionCount    int    `json:"questionCount"`
	CurrentQuestion  string `json:"currentQuestion"`
	SecondsRemaining int    `json:"secondsRemaining"`
	Clock            string `json:"clock"`
	TimerRunning     bool   `json:"timerRunning"`
	AISpeaking       bool   `json:"aiSpeaking"`
	UserSpeaking     bool   `json:"userSpeaking"`
	LiveText         string `json:"liveText"`
	Buffer           string `json:"buffer"`
	AnswersRecorded  int    `json:"answersRecorded"`
	Ended            bool   `json:"ended"`
}

// MachineConfig configures a [Machine].
type MachineConfig struct {
	Questions []Question

	// QuestionSeconds is the per-question budget. Defaults to 60.
	QuestionSeconds int

	// DetectionPrefix is how many leading characters of a question prompt must
	// appear in an assistant utterance to count as that question being asked.
	// Defaults to 25.
	DetectionPrefix int

	// Commands classifies final candidate lines. Defaults to voicecmd.Default().
	Commands *voicecmd.Interpreter

	// Now stamps answer records. Defaults to time.Now.
	Now func() time.Time
}

// Machine is the live interview state machine. Every method is a pure
// transition over in-memory state returning the directives to execute; it
// performs no I/O and is not safe for concurrent use. The controller calls it
// from a single goroutine.
type Machine struct {
	questions []Question
	prefixes  []string
	budget    int
	commands  *voicecmd.Interpreter
	now       func() time.Time

	phase        Phase
	cur          int
	timer        *AnswerTimer
	aiSpeaking   bool
	userSpeaking bool
	finals       []string
	partial      string
	liveText     string
	answers      *AnswerSet
	ended        bool
}

// NewMachine returns a machine in PhaseConnecting positioned on question 0.
func NewMachine(cfg MachineConfig) *Machine {
	if cfg.QuestionSeconds <= 0 {
		cfg.QuestionSeconds = DefaultQuestionSeconds
	}
	if cfg.DetectionPrefix <= 0 {
		cfg.DetectionPrefix = DefaultDetectionPrefix
	}
	if cfg.Commands == nil {
		cfg.Commands = voicecmd.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	qs := make([]Question, len(cfg.Questions))
	copy(qs, cfg.Questions)
	prefixes := make([]string, len(qs))
	for i := range qs {
		qs[i].Index = i
		prefixes[i] = truncateRunes(normalizeText(qs[i].Prompt), cfg.DetectionPrefix)
	}

	return &Machine{
		questions: qs,
		prefixes:  prefixes,
		budget:    cfg.QuestionSeconds,
		commands:  cfg.Commands,
		now:       cfg.Now,
		phase:     PhaseConnecting,
		timer:     NewAnswerTimer(cfg.QuestionSeconds),
		answers:   NewAnswerSet(),
	}
}

// Begin must be called once before any event. An empty question set is a
// valid degenerate session and finalizes immediately.
func (m *Machine) Begin() []Directive {
	if len(m.questions) == 0 {
		return m.FinalizeSession()
	}
	return nil
}

// OnConnected handles the voice session becoming live.
func (m *Machine) OnConnected() []Directive {
	if m.ended {
		return nil
	}
	if m.phase == PhaseConnecting {
		m.phase = PhaseAwaitingQuestion
	}
	return nil
}

// OnAssistantSpeechStart marks the interviewer as speaking and pauses the timer.
func (m *Machine) OnAssistantSpeechStart() []Directive {
	if m.ended {
		return nil
	}
	m.aiSpeaking = true
	m.userSpeaking = false
	m.timer.Pause()
	m.phase = PhaseAwaitingQuestion
	return nil
}

// OnAssistantSpeechEnd marks the interviewer as silent. Once connected, the
// timer resumes, or starts if this question's countdown has not begun yet.
func (m *Machine) OnAssistantSpeechEnd() []Directive {
	if m.ended {
		return nil
	}
	m.aiSpeaking = false
	if m.phase == PhaseConnecting {
		return nil
	}
	if m.timer.Started() {
		m.timer.Resume()
	} else {
		m.timer.Start(m.budget)
	}
	m.phase = PhaseListening
	return nil
}

// OnAssistantTranscript records text for display and advances when it
// contains the opening of a later question. Only questions strictly after
// the current one are considered and the earliest match wins, so repeated or
// overlapping utterances cannot move the index twice or backwards.
func (m *Machine) OnAssistantTranscript(text string) []Directive {
	if m.ended {
		return nil
	}
	m.liveText = text
	said := normalizeText(text)
	if said == "" {
		return nil
	}
	for i := m.cur + 1; i < len(m.questions); i++ {
		if p := m.prefixes[i]; p != "" && strings.Contains(said, p) {
			return m.advanceTo(i, TriggerDetected)
		}
	}
	return nil
}

// OnUserTranscript handles recognised candidate speech. Partials carry the
// cumulative text of the current utterance. Speech heard while the
// interviewer is talking is buffered but neither marks the candidate as
// speaking nor starts the timer.
func (m *Machine) OnUserTranscript(text string, final bool) []Directive {
	if m.ended {
		return nil
	}
	if !final {
		m.partial = strings.TrimSpace(text)
		if m.aiSpeaking {
			return nil
		}
		m.userSpeaking = true
		if !m.timer.Started() && m.phase != PhaseConnecting {
			m.timer.Start(m.budget)
			m.phase = PhaseListening
		}
		return nil
	}

	m.userSpeaking = false
	m.partial = ""
	line := strings.TrimSpace(text)
	if line == "" {
		return nil
	}

	switch m.commands.Classify(line) {
	case voicecmd.BlockedNavigation:
		return []Directive{m.instruct(ReasonBlocked, blockedMessage(m.cur, m.current()))}

	case voicecmd.Repeat:
		return []Directive{m.instruct(ReasonRepeat, repeatMessage(m.cur, m.current()))}

	case voicecmd.Skip:
		m.record(SentinelSkipped, OutcomeSkipped)
		next := m.cur + 1
		if next >= len(m.questions) {
			out := []Directive{m.instruct(ReasonSkip, skipLastMessage)}
			return append(out, m.FinalizeSession()...)
		}
		out := []Directive{m.instruct(ReasonSkip, skipMessage(next, m.questions[next]))}
		return append(out, m.advanceTo(next, TriggerSkip)...)

	default:
		m.finals = append(m.finals, line)
		return nil
	}
}

// Tick advances the answer timer by one second. Timer expiry is the only
// time-based advancement trigger.
func (m *Machine) Tick() []Directive {
	if m.ended {
		return nil
	}
	if m.timer.Tick() {
		return m.onTimerExpired()
	}
	return nil
}

func (m *Machine) onTimerExpired() []Directive {
	if text := m.buffer(); text != "" {
		m.record(text, OutcomeTimeExpired)
	} else {
		m.record(SentinelTimeExpired, OutcomeTimeExpired)
	}
	next := m.cur + 1
	if next >= len(m.questions) {
		out := []Directive{m.instruct(ReasonWrapUp, wrapUpMessage)}
		return append(out, m.FinalizeSession()...)
	}
	out := []Directive{m.instruct(ReasonTimeUp, timeUpMessage(next, m.questions[next]))}
	return append(out, m.advanceTo(next, TriggerTimer)...)
}

// OnCallEnded handles the voice session ending on its own.
func (m *Machine) OnCallEnded() []Directive {
	return m.FinalizeSession()
}

// OnUserRequestedEnd handles the candidate pressing End.
func (m *Machine) OnUserRequestedEnd() []Directive {
	return m.FinalizeSession()
}

// FinalizeSession latches the session as ended and returns the teardown
// directives. If the current question has no record yet, the pending buffer
// (or the ended-early sentinel) is committed for it first. Only the first
// call returns anything.
func (m *Machine) FinalizeSession() []Directive {
	if m.ended {
		return nil
	}
	if m.cur < len(m.questions) && !m.answers.Has(m.cur) {
		if text := m.buffer(); text != "" {
			m.record(text, OutcomeEndedEarly)
		} else {
			m.record(SentinelEndedEarly, OutcomeEndedEarly)
		}
	}
	m.ended = true
	m.phase = PhaseEnding
	m.timer.Pause()
	m.userSpeaking = false
	return []Directive{
		{Kind: DirectiveStopVoice},
		{Kind: DirectivePersist, Answers: m.answers.Records()},
		{Kind: DirectiveComplete},
	}
}

// advanceTo moves to next, committing whatever the candidate said for the
// current question if it has no record yet. Questions jumped over are given
// no-answer records so the record set stays contiguous.
func (m *Machine) advanceTo(next int, trigger string) []Directive {
	if m.ended || next <= m.cur || next >= len(m.questions) {
		return nil
	}
	if text := m.buffer(); text != "" {
		m.record(text, OutcomeAnswered)
	} else {
		m.record(SentinelNoAnswer, OutcomeNoAnswer)
	}
	for i := m.cur + 1; i < next; i++ {
		m.answers.Add(m.newRecord(i, SentinelNoAnswer, OutcomeNoAnswer))
	}

	m.cur = next
	m.timer.Reset(m.budget)
	m.finals = nil
	m.partial = ""
	m.liveText = ""
	m.userSpeaking = false
	if !m.aiSpeaking {
		m.phase = PhaseAwaitingQuestion
	}
	return []Directive{{Kind: DirectiveAdvanced, Index: next, Trigger: trigger}}
}

// record commits text for the current question unless it already has one.
func (m *Machine) record(text string, outcome Outcome) bool {
	return m.answers.Add(m.newRecord(m.cur, text, outcome))
}

func (m *Machine) newRecord(index int, text string, outcome Outcome) AnswerRecord {
	return AnswerRecord{
		QuestionIndex:         index,
		QuestionText:          m.questions[index].Prompt,
		AnswerText:            text,
		RecordedAtEpochMillis: m.now().UnixMilli(),
		Outcome:               outcome,
	}
}

func (m *Machine) instruct(reason, text string) Directive {
	return Directive{Kind: DirectiveInstruct, Reason: reason, Text: text}
}

func (m *Machine) current() Question {
	if m.cur < len(m.questions) {
		return m.questions[m.cur]
	}
	return Question{}
}

// buffer is the pending transcript: final lines so far plus the live partial.
func (m *Machine) buffer() string {
	parts := m.finals
	if m.partial != "" {
		parts = append(parts[:len(parts):len(parts)], m.partial)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Snapshot returns the current state.
// plannedDuration is the answer time budgeted for the whole question set.
func (m *Machine) plannedDuration() time.Duration {
	return time.Duration(len(m.questions)*m.budget) * time.Second
}

func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		Phase:            m.phase,
		PhaseName:        m.phase.String(),
		QuestionIndex:    m.cur,
		QuestionCount:    len(m.questions),
		CurrentQuestion:  m.current().Prompt,
		SecondsRemaining: m.timer.Remaining(),
		Clock:            FormatClock(m.timer.Remaining()),
		TimerRunning:     m.timer.Running(),
		AISpeaking:       m.aiSpeaking,
		UserSpeaking:     m.userSpeaking,
		LiveText:         m.liveText,
		Buffer:           m.buffer(),
		AnswersRecorded:  m.answers.Len(),
		Ended:            m.ended,
	}
}

// Answers returns the records committed so far, ordered by index.
func (m *Machine) Answers() []AnswerRecord { return m.answers.Records() }

// Ended reports whether the session has been finalized.
func (m *Machine) Ended() bool { return m.ended }

// normalizeText lowercases s and collapses runs of whitespace.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return strings.TrimSpace(s[:pos])
		}
		i++
	}
	return s
}
