package nats

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestSupervisionResponseSubjectFormat(t *testing.T) {
	subject := fmt.Sprintf(SubjectSupervisionResponse, "agent-7")
	if subject != "supervision.response.agent-7" {
		t.Errorf("subject = %q, want supervision.response.agent-7", subject)
	}
}

func TestTaskEventMessageRoundTrip(t *testing.T) {
	msg := TaskEventMessage{TaskID: "t1", AgentID: "a1", Status: "completed"}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got TaskEventMessage
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != msg {
		t.Errorf("round trip = %+v, want %+v", got, msg)
	}
}
