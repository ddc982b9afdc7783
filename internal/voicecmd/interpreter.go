// Package voicecmd classifies finalized candidate transcript lines into
// interview navigation commands.
//
// Matching is case-insensitive substring search against three phrase sets.
// Backward navigation is never allowed during an interview, so the blocked set
// is checked first: a line such as "skip back to the last question" is
// reported as [BlockedNavigation], not [Skip].
package voicecmd

import "strings"

// Command is the result of classifying a transcript line.
type Command int

const (
	// None means the line is ordinary answer speech.
	None Command = iota
	// Skip asks to move on to the next question.
	Skip
	// Repeat asks the interviewer to say the current question again.
	Repeat
	// BlockedNavigation is a request to go back to an earlier question.
	BlockedNavigation
)

// String returns a short lowercase label for the command.
func (c Command) String() string {
	switch c {
	case Skip:
		return "skip"
	case Repeat:
		return "repeat"
	case BlockedNavigation:
		return "blocked_navigation"
	default:
		return "none"
	}
}

// Default phrase sets.
var (
	DefaultSkipPhrases    = []string{"skip", "next question", "move on", "i'll pass"}
	DefaultRepeatPhrases  = []string{"repeat", "say that again", "come again", "pardon"}
	DefaultBlockedPhrases = []string{"go back", "previous question", "back to question", "last question"}
)

// Interpreter holds the phrase sets. The zero value matches nothing; use
// [New] or [Default].
type Interpreter struct {
	skip    []string
	repeat  []string
	blocked []string
}

// New returns an Interpreter for the given phrase sets. Nil or empty sets fall
// back to the defaults. Phrases are lowercased and blank entries dropped.
func New(skip, repeat, blocked []string) *Interpreter {
	return &Interpreter{
		skip:    normalize(skip, DefaultSkipPhrases),
		repeat:  normalize(repeat, DefaultRepeatPhrases),
		blocked: normalize(blocked, DefaultBlockedPhrases),
	}
}

// Default returns an Interpreter using the built-in phrase sets.
func Default() *Interpreter {
	return New(nil, nil, nil)
}

// Classify returns the command expressed by line. It is pure and safe for
// concurrent use.
func (in *Interpreter) Classify(line string) Command {
	text := strings.ToLower(strings.TrimSpace(line))
	if text == "" {
		return None
	}
	switch {
	case containsAny(text, in.blocked):
		return BlockedNavigation
	case containsAny(text, in.repeat):
		return Repeat
	case containsAny(text, in.skip):
		return Skip
	default:
		return None
	}
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func normalize(phrases, fallback []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
