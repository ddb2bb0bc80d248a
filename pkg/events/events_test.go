package events

import (
	"context"
	"testing"
)

func TestSubject(t *testing.T) {
	tests := []struct {
		prefix, event, want string
	}{
		{"labtrace", LotCreated, "labtrace.lot.created"},
		{"", SpecimenCreated, "specimen.created"},
	}
	for _, tt := range tests {
		if got := Subject(tt.prefix, tt.event); got != tt.want {
			t.Errorf("Subject(%q, %q) = %q, want %q", tt.prefix, tt.event, got, tt.want)
		}
	}

	p := NewNATSPublisher(nil, "labtrace.")
	if got := p.Subject(LotCreated); got != "labtrace.lot.created" {
		t.Errorf("publisher subject = %q", got)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	_ = r.Publish(context.Background(), LotCreated, LotCreatedEvent{ItemNo: "J-001"})
	got := r.Events()
	if len(got) != 1 || got[0].Event != LotCreated {
		t.Fatalf("events = %+v", got)
	}
}
