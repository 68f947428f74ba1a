package notification

import (
	"SpectraGuard/internal/config"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestEmailNotifier_Send(t *testing.T) {
	cfg := config.SMTPConfig{Host: "mail.example.org", Port: 587, From: "guard@example.org", To: "soc@example.org, ops@example.org"}
	n := NewEmailNotifier(cfg)

	var gotAddr string
	var gotTo []string
	var gotMsg string
	n.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	if err := n.Send("2 alerts", "<h1>hi</h1>"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if gotAddr != "mail.example.org:587" {
		t.Errorf("Unexpected address %s", gotAddr)
	}
	if len(gotTo) != 2 || gotTo[1] != "ops@example.org" {
		t.Errorf("Unexpected recipients %v", gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: 2 alerts\r\n") || !strings.HasSuffix(gotMsg, "\r\n\r\n<h1>hi</h1>") {
		t.Errorf("Unexpected message %q", gotMsg)
	}
}

func TestEmailNotifier_SendError(t *testing.T) {
	n := NewEmailNotifier(config.SMTPConfig{Host: "x", Port: 25, To: "a@b"})
	n.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
	if err := n.Send("s", "b"); err == nil {
		t.Error("Expected the transport error to surface")
	}
}

func TestNew(t *testing.T) {
	if _, ok := New(config.SMTPConfig{}, zap.NewNop()).(*LogNotifier); !ok {
		t.Error("Expected a log notifier without an SMTP host")
	}
	if _, ok := New(config.SMTPConfig{Host: "mail"}, zap.NewNop()).(*EmailNotifier); !ok {
		t.Error("Expected an email notifier with an SMTP host")
	}
}
