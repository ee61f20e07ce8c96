package smtp

import (
	"context"
	"strings"
	"testing"

	"github.com/go-auth-nosql/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestBuildMessage_HeadersAndCRLF(t *testing.T) {
	msg := string(buildMessage("noreply@example.com", "ada@x.com", "Verify your email", "line one\nline two"))

	assert.True(t, strings.HasPrefix(msg, "From: noreply@example.com\r\nTo: ada@x.com\r\n"))
	assert.Contains(t, msg, "Subject: Verify your email\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	assert.True(t, strings.HasSuffix(msg, "line one\r\nline two"))
}

func TestBuildMessage_EncodesNonASCIISubject(t *testing.T) {
	msg := string(buildMessage("a@x.com", "b@x.com", "Bienvenue à bord", "hi"))
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
}

func TestSendEmail_RejectsHeaderInjection(t *testing.T) {
	m := NewMailer(&config.Config{SMTPHost: "127.0.0.1", SMTPPort: "1"})
	err := m.SendEmail(context.Background(), "ada@x.com\r\nBcc: evil@x.com", "s", "b")
	assert.ErrorContains(t, err, "invalid recipient")
}
