package voicecmd

import "testing"

func TestClassify(t *testing.T) {
	t.Parallel()

	in := Default()
	tests := []struct {
		line string
		want Command
	}{
		{"", None},
		{"   ", None},
		{"I have five years of Go experience.", None},
		{"Skip", Skip},
		{"can we move on please", Skip},
		{"Next question.", Skip},
		{"I'll pass on this one", Skip},
		{"Could you repeat that?", Repeat},
		{"Sorry, come again?", Repeat},
		{"PARDON", Repeat},
		{"go back to question 1", BlockedNavigation},
		{"What was the previous question?", BlockedNavigation},
		// blocked wins over skip and repeat
		{"skip back to the last question", BlockedNavigation},
		{"repeat the previous question", BlockedNavigation},
		// repeat wins over skip
		{"repeat it or skip it", Repeat},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			t.Parallel()
			if got := in.Classify(tt.line); got != tt.want {
				t.Errorf("Classify(%q) = %s; want %s", tt.line, got, tt.want)
			}
		})
	}
}

func TestNew_CustomPhrases(t *testing.T) {
	t.Parallel()

	in := New([]string{" Weiter "}, []string{"", "  "}, nil)
	if got := in.Classify("weiter bitte"); got != Skip {
		t.Errorf("custom skip phrase: got %s; want skip", got)
	}
	if got := in.Classify("skip"); got != None {
		t.Errorf("default skip phrases must be replaced by custom set, got %s", got)
	}
	// blank-only repeat set falls back to defaults
	if got := in.Classify("say that again"); got != Repeat {
		t.Errorf("repeat fallback: got %s; want repeat", got)
	}
	if got := in.Classify("go back"); got != BlockedNavigation {
		t.Errorf("blocked fallback: got %s; want blocked_navigation", got)
	}
}

func TestZeroValueMatchesNothing(t *testing.T) {
	t.Parallel()
	var in Interpreter
	if got := in.Classify("skip"); got != None {
		t.Errorf("zero Interpreter classified %q as %s", "skip", got)
	}
}

func TestCommandString(t *testing.T) {
	t.Parallel()
	for c, want := range map[Command]string{None: "none", Skip: "skip", Repeat: "repeat", BlockedNavigation: "blocked_navigation"} {
		if c.String() != want {
			t.Errorf("%d.String() = %q; want %q", c, c.String(), want)
		}
	}
}
