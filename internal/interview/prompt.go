package interview

import (
	"fmt"
	"strings"
)

// DefaultGreeting is the interviewer's first utterance.
const DefaultGreeting = "Hello! Welcome to your HoloHire interview. I'm your AI interviewer today. Let's get started. Are you ready?"

// Control messages injected into the voice session.
const (
	wrapUpMessage   = "The timer for the final question has ended. Please wrap up and thank the candidate."
	skipLastMessage = "The candidate chose to skip the final question. Please wrap up and thank the candidate."
)

// SystemPrompt builds the interviewer script for qs.
func SystemPrompt(qs []Question) string {
	var b strings.Builder
	b.WriteString("You are a professional AI interviewer for HoloHire. You are conducting a technical/behavioral interview.\n\n")
	b.WriteString("Here are the interview questions you must ask, one at a time, in order:\n")
	for i, q := range qs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q.Prompt)
	}
	b.WriteString("\nInstructions:\n")
	b.WriteString("- Greet the candidate warmly first.\n")
	b.WriteString("- Ask question 1, then wait for their answer.\n")
	b.WriteString("- Read each question exactly as written.\n")
	b.WriteString("- After they answer (or if they seem stuck), briefly acknowledge and move to the next question.\n")
	b.WriteString("- Never go back to a previous question, even if asked.\n")
	b.WriteString("- Keep your responses concise and professional.\n")
	b.WriteString("- Do NOT reveal the answers or give hints.\n")
	b.WriteString("- Follow any system message about timing or skipping immediately.\n")
	b.WriteString("- After all questions, thank the candidate and say the interview is concluded.")
	return b.String()
}

func timeUpMessage(next int, q Question) string {
	return fmt.Sprintf("Time is up. Please move on to question %d: %q", next+1, q.Prompt)
}

func skipMessage(next int, q Question) string {
	return fmt.Sprintf("The candidate asked to skip this question. Please move on to question %d: %q", next+1, q.Prompt)
}

func repeatMessage(cur int, q Question) string {
	return fmt.Sprintf("The candidate asked you to repeat the question. Please repeat question %d: %q", cur+1, q.Prompt)
}

func blockedMessage(cur int, q Question) string {
	return fmt.Sprintf("The candidate asked to return to an earlier question. Politely explain that earlier questions cannot be revisited, then continue with question %d: %q", cur+1, q.Prompt)
}
