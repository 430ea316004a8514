package mail

import (
	"strings"
	"testing"

	"github.com/gigmarket/backend/internal/event"
)

// mockSender records sent emails for assertions.
type mockSender struct {
	calls []sentEmail
	err   error
}

type sentEmail struct {
	from, to, subject, body string
}

func (m *mockSender) send(from, to, subject, body string) error {
	m.calls = append(m.calls, sentEmail{from, to, subject, body})
	return m.err
}

func testMailer(mock *mockSender) *Mailer {
	return &Mailer{
		config: Config{FromAddress: "noreply@gigmarket.dev", FromName: "GigMarket"},
		sender: mock,
	}
}

func TestSendRendersOrderPlaced(t *testing.T) {
	mock := &mockSender{}
	m := testMailer(mock)

	err := m.Send(event.Email{
		Receiver:   "seller@example.com",
		Template:   "orderPlaced",
		SellerName: "sam",
		BuyerName:  "lee",
		Title:      "Logo design",
		Amount:     50,
		OrderID:    "o1",
		OrderURL:   "https://gigmarket.dev/orders/o1",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(mock.calls) != 1 {
		t.Fatalf("expected 1 send, got %d", len(mock.calls))
	}
	sent := mock.calls[0]
	if sent.to != "seller@example.com" {
		t.Errorf("to = %s", sent.to)
	}
	if sent.from != "GigMarket <noreply@gigmarket.dev>" {
		t.Errorf("from = %s", sent.from)
	}
	if !strings.Contains(sent.subject, "new order") {
		t.Errorf("subject = %q", sent.subject)
	}
	if !strings.Contains(sent.body, "lee placed an order") {
		t.Errorf("body missing buyer line: %q", sent.body)
	}
	if !strings.Contains(sent.body, "$50.00") {
		t.Errorf("body missing amount: %q", sent.body)
	}
}

func TestSendEscapesHTMLInFields(t *testing.T) {
	mock := &mockSender{}
	m := testMailer(mock)

	err := m.Send(event.Email{
		Receiver: "user@example.com",
		Template: "verifyEmail",
		Username: "<script>alert(1)</script>",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if strings.Contains(mock.calls[0].body, "<script>") {
		t.Error("username was not HTML-escaped")
	}
}

func TestSendRejectsUnknownTemplate(t *testing.T) {
	m := testMailer(&mockSender{})
	err := m.Send(event.Email{Receiver: "user@example.com", Template: "nope"})
	if err == nil || !strings.Contains(err.Error(), "unknown email template") {
		t.Fatalf("err = %v, want unknown template error", err)
	}
}

func TestSendRejectsMissingReceiver(t *testing.T) {
	m := testMailer(&mockSender{})
	if err := m.Send(event.Email{Template: "verifyEmail"}); err == nil {
		t.Fatal("expected error for missing receiver")
	}
}

func TestEveryTemplateRenders(t *testing.T) {
	mock := &mockSender{}
	m := testMailer(mock)

	for name := range templates {
		if err := m.Send(event.Email{Receiver: "u@example.com", Template: name, Username: "u"}); err != nil {
			t.Errorf("template %s failed to render: %v", name, err)
		}
	}
	if len(mock.calls) != len(templates) {
		t.Errorf("sent %d, want %d", len(mock.calls), len(templates))
	}
}

func TestNewRequiresHostAndPort(t *testing.T) {
	if _, err := New(Config{Port: "587"}); err == nil {
		t.Error("expected error without host")
	}
	if _, err := New(Config{Host: "smtp.example.com"}); err == nil {
		t.Error("expected error without port")
	}
	if _, err := New(Config{Host: "smtp.example.com", Port: "587"}); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}
