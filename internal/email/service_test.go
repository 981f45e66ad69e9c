package email

import (
	"strings"
	"testing"
)

func TestIsConfigured(t *testing.T) {
	unconfigured := NewService(Config{})
	if unconfigured.IsConfigured() {
		t.Error("expected unconfigured service")
	}

	configured := NewService(Config{
		Host: "smtp.example.com",
		Port: "587",
		From: "noreply@example.com",
	})
	if !configured.IsConfigured() {
		t.Error("expected configured service")
	}
}

func TestSendFailsWhenUnconfigured(t *testing.T) {
	svc := NewService(Config{})
	if err := svc.SendEmail([]string{"to@example.com"}, "subject", "body"); err == nil {
		t.Error("expected error when unconfigured")
	}
	if err := svc.SendHTMLEmail([]string{"to@example.com"}, "subject", "<p>body</p>"); err == nil {
		t.Error("expected error when unconfigured")
	}
}

func TestRenderVerificationTemplate(t *testing.T) {
	html, err := renderTemplate(verificationEmailTemplate, VerificationData{
		AppName:         "Visaprep",
		UserName:        "Amara",
		VerificationURL: "https://visaprep.example.com/verify?token=abc",
	})
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	if !strings.Contains(html, "Amara") {
		t.Error("expected user name in the email")
	}
	if !strings.Contains(html, "https://visaprep.example.com/verify?token=abc") {
		t.Error("expected verification URL in the email")
	}
}

func TestRenderPasswordResetTemplate(t *testing.T) {
	html, err := renderTemplate(passwordResetEmailTemplate, PasswordResetData{
		AppName:  "Visaprep",
		UserName: "Amara",
		ResetURL: "https://visaprep.example.com/reset?token=abc",
	})
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}
	if !strings.Contains(html, "Reset Password") {
		t.Error("expected reset button in the email")
	}
	if !strings.Contains(html, "https://visaprep.example.com/reset?token=abc") {
		t.Error("expected reset URL in the email")
	}
}
