package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gigmarket/backend/internal/broker"
	"github.com/gigmarket/backend/internal/event"
)

type fakeMailer struct {
	sent []event.Email
	err  error
}

func (f *fakeMailer) Send(ev event.Email) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, ev)
	return nil
}

func TestDispatcherDeliversBothEmailFamilies(t *testing.T) {
	mailer := &fakeMailer{}
	d := Dispatcher(mailer)

	for _, typ := range []string{event.TypeAuthEmail, event.TypeOrderEmail} {
		body, _ := json.Marshal(event.Email{Type: typ, Receiver: "u@example.com", Template: "verifyEmail"})
		outcome, err := d.Dispatch(context.Background(), body)
		if outcome != broker.Acked {
			t.Fatalf("type %s rejected: %v", typ, err)
		}
	}
	if len(mailer.sent) != 2 {
		t.Fatalf("sent %d emails, want 2", len(mailer.sent))
	}
	if mailer.sent[0].Type != event.TypeAuthEmail || mailer.sent[1].Type != event.TypeOrderEmail {
		t.Errorf("sent types = %s, %s", mailer.sent[0].Type, mailer.sent[1].Type)
	}
}

func TestMailerFailureRejectsMessage(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	d := Dispatcher(mailer)

	body, _ := json.Marshal(event.Email{Type: event.TypeOrderEmail, Receiver: "u@example.com"})
	outcome, err := d.Dispatch(context.Background(), body)
	if outcome != broker.Rejected || err == nil {
		t.Fatalf("outcome = %v, err = %v, want rejection", outcome, err)
	}
	if len(mailer.sent) != 0 {
		t.Error("no email should be recorded on failure")
	}
}

func TestUnknownTypeIsRejected(t *testing.T) {
	d := Dispatcher(&fakeMailer{})
	body, _ := json.Marshal(event.Email{Type: "push-notification"})
	if outcome, _ := d.Dispatch(context.Background(), body); outcome != broker.Rejected {
		t.Error("unknown type must be rejected")
	}
}
