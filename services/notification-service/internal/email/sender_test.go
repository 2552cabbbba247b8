package email

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestBuildMessage(t *testing.T) {
	s := NewSMTPSender("mailpit", "1025", "")
	s.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }

	msg := s.buildMessage("ada@example.com", "Welcome to Timely!", "Hi Ada\nsee you")
	for _, want := range []string{
		"From: no-reply@timely.local\r\n",
		"To: ada@example.com\r\n",
		"Subject: Welcome to Timely!\r\n",
		"Date: Mon, 02 Mar 2026 09:00:00 +0000\r\n",
		"@timely.local>\r\n",
		"Content-Type: text/plain; charset=utf-8\r\n\r\nHi Ada\r\nsee you\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestBuildMessageEncodesNonASCIISubject(t *testing.T) {
	msg := NewSMTPSender("mailpit", "1025", "").buildMessage("bo@example.com", "Zoë invited you to a meeting", "x")
	if !strings.Contains(msg, "Subject: =?utf-8?q?") {
		t.Fatalf("expected encoded subject:\n%s", msg)
	}
}

func TestNewSMTPSenderDefaults(t *testing.T) {
	s := NewSMTPSender(" mailpit ", "1025", "")
	if s.addr != "mailpit:1025" || s.from != "no-reply@timely.local" {
		t.Fatalf("unexpected sender: %+v", s)
	}
}

func TestSendHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewSMTPSender("127.0.0.1", "1", "").Send(ctx, "a@example.com", "s", "b"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
