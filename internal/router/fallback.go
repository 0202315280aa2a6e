package router

import "strings"

// Canned replies for the moment every backend is down. Keyed off the
// message so a greeting, a distressed message, and everything else each
// get an appropriate tone.
const (
	fallbackGreeting = "Hi there! I'm experiencing some technical adjustments but I'm here to support you. What's on your mind today?"
	fallbackDistress = "I can sense you're going through something challenging right now. Even with some technical hiccups on my end, I want you to know that your feelings are completely valid and I'm here with you. What would be most helpful to talk about?"
	fallbackGeneric  = "I'm here with you, even though I'm working through some technical challenges at the moment. Your thoughts and feelings are important to me. What's weighing on your mind that we can explore together?"
)

// StaticFallback returns a supportive canned reply matched to the
// message. Total: it never fails and never returns empty.
func StaticFallback(message string) string {
	text := strings.ToLower(message)

	if strings.Contains(text, "hello") || strings.Contains(text, "hi") {
		return fallbackGreeting
	}
	if strings.Contains(text, "sad") || strings.Contains(text, "upset") || strings.Contains(text, "anxious") {
		return fallbackDistress
	}
	return fallbackGeneric
}
