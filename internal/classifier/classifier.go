// Package classifier implements the rule-based activity classifier: a pure
// function mapping a snippet of agent output to an activity label,
// confidence, emotional state, and a needs_help flag. It holds no state and
// performs no I/O, so a downstream LLM-backed classifier can be swapped in
// behind the same Classify signature without touching any caller.
package classifier

import (
	"strings"
	"time"
)

// Activity is the detected kind of work an agent is doing.
type Activity string

const (
	ActivityScaffolding  Activity = "scaffolding"
	ActivityImplementing Activity = "implementing"
	ActivityDebugging    Activity = "debugging"
	ActivityTesting      Activity = "testing"
	ActivityResearching  Activity = "researching"
	ActivityWaiting      Activity = "waiting"
	ActivityStuck        Activity = "stuck"
	ActivityIdle         Activity = "idle"
)

// Emotion is the detected emotional coloring of the output.
type Emotion string

const (
	EmotionConfident  Emotion = "confident"
	EmotionFocused    Emotion = "focused"
	EmotionCautious   Emotion = "cautious"
	EmotionFrustrated Emotion = "frustrated"
	EmotionDesperate  Emotion = "desperate"
)

// Result is the classifier's output for one snippet of agent output.
type Result struct {
	Activity            Activity
	Confidence          float64
	NeedsHelp           bool
	Emotion             Emotion
	EstimatedCompletion time.Duration
}

// Context is optional information the classifier may use to refine its
// output. The default implementation below ignores it entirely — it exists
// so the Classify signature stays stable for a richer, context-aware
// implementation to be substituted later.
type Context struct {
	RecentActivity []Activity // bounded ring, most recent last, capacity 10
	TimeWorking    time.Duration
	CurrentTask    string
	ErrorCount     int
	Role           string
}

// PushActivity appends an activity to the bounded ring, dropping the oldest
// entry once it holds 10.
func (c *Context) PushActivity(a Activity) {
	c.RecentActivity = append(c.RecentActivity, a)
	if len(c.RecentActivity) > 10 {
		c.RecentActivity = c.RecentActivity[len(c.RecentActivity)-10:]
	}
}

const defaultEstimatedCompletion = 5 * time.Minute

// Classify determines activity, confidence, emotion, and needs_help from a
// snippet of agent output. context may be nil. The keyword hierarchy order
// below is load-bearing: earlier rules win on overlap.
func Classify(text string, context *Context) Result {
	lowered := strings.ToLower(text)

	activity := classifyActivity(lowered)
	confidence, emotion := classifyTone(lowered)
	needsHelp := activity == ActivityStuck || (confidence < 0.3 && emotion == EmotionDesperate)

	return Result{
		Activity:            activity,
		Confidence:          confidence,
		NeedsHelp:           needsHelp,
		Emotion:             emotion,
		EstimatedCompletion: defaultEstimatedCompletion,
	}
}

func classifyActivity(text string) Activity {
	switch {
	case containsAny(text, "error", "failed", "exception"):
		if containsAny(text, "fixing", "debug") {
			return ActivityDebugging
		}
		return ActivityStuck
	case containsAny(text, "test", "spec", "assert"):
		return ActivityTesting
	case containsAny(text, "mkdir", "cargo init", "setup"):
		return ActivityScaffolding
	case containsAny(text, "implementing", "writing", "adding"):
		return ActivityImplementing
	case containsAny(text, "reading", "docs", "researching"):
		return ActivityResearching
	case containsAny(text, "waiting", "pending"):
		return ActivityWaiting
	case containsAny(text, "stuck", "confused", "help"):
		return ActivityStuck
	default:
		return ActivityImplementing
	}
}

func classifyTone(text string) (float64, Emotion) {
	switch {
	case strings.Contains(text, "stuck") && containsAny(text, "confused", "help"):
		return 0.1, EmotionDesperate
	case containsAny(text, "error", "failed") && strings.Contains(text, "stuck"):
		return 0.2, EmotionFrustrated
	case containsAny(text, "error", "failed"):
		return 0.4, EmotionFrustrated
	case containsAny(text, "trying", "attempting"):
		return 0.6, EmotionCautious
	case containsAny(text, "completed", "success", "done"):
		return 0.9, EmotionConfident
	default:
		return 0.7, EmotionFocused
	}
}

func containsAny(text string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
