package classifier

import "testing"

func TestClassifyActivityHierarchy(t *testing.T) {
	cases := []struct {
		text string
		want Activity
	}{
		{"got an error, fixing the bug now", ActivityDebugging},
		{"exception thrown, no idea what to do", ActivityStuck},
		{"running the test suite, assert on output", ActivityTesting},
		{"cargo init for the new crate", ActivityScaffolding},
		{"implementing the new handler, adding docs", ActivityImplementing},
		{"reading the docs before researching alternatives", ActivityResearching},
		{"waiting on the upstream service", ActivityWaiting},
		{"stuck and confused, not sure what's wrong", ActivityStuck},
		{"just getting started", ActivityImplementing},
	}

	for _, c := range cases {
		got := Classify(c.text, nil)
		if got.Activity != c.want {
			t.Errorf("Classify(%q).Activity = %s, want %s", c.text, got.Activity, c.want)
		}
	}
}

func TestClassifyToneTable(t *testing.T) {
	cases := []struct {
		text           string
		wantConfidence float64
		wantEmotion    Emotion
	}{
		{"stuck and confused, need help", 0.1, EmotionDesperate},
		{"error and now I'm stuck", 0.2, EmotionFrustrated},
		{"it failed again", 0.4, EmotionFrustrated},
		{"trying a different approach", 0.6, EmotionCautious},
		{"completed successfully, done", 0.9, EmotionConfident},
		{"writing the next module", 0.7, EmotionFocused},
	}

	for _, c := range cases {
		got := Classify(c.text, nil)
		if got.Confidence != c.wantConfidence {
			t.Errorf("Classify(%q).Confidence = %v, want %v", c.text, got.Confidence, c.wantConfidence)
		}
		if got.Emotion != c.wantEmotion {
			t.Errorf("Classify(%q).Emotion = %s, want %s", c.text, got.Emotion, c.wantEmotion)
		}
	}
}

func TestNeedsHelp(t *testing.T) {
	if !Classify("I'm stuck and confused, need help", nil).NeedsHelp {
		t.Error("expected needs_help for stuck+confused text")
	}
	if Classify("implementing the new feature", nil).NeedsHelp {
		t.Error("did not expect needs_help for routine implementing text")
	}
}

func TestEstimatedCompletionDefault(t *testing.T) {
	got := Classify("writing code", nil).EstimatedCompletion
	if got != defaultEstimatedCompletion {
		t.Errorf("EstimatedCompletion = %v, want %v", got, defaultEstimatedCompletion)
	}
}

func TestClassifyIsPure(t *testing.T) {
	a := Classify("implementing feature X", nil)
	b := Classify("implementing feature X", nil)
	if a != b {
		t.Errorf("Classify is not pure: %+v != %+v", a, b)
	}
}

func TestContextRingBound(t *testing.T) {
	c := &Context{}
	for i := 0; i < 15; i++ {
		c.PushActivity(ActivityImplementing)
	}
	if len(c.RecentActivity) != 10 {
		t.Errorf("RecentActivity length = %d, want 10", len(c.RecentActivity))
	}
}
