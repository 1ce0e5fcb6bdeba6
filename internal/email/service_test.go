package email

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/internal/config"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
)

func TestBuildMessage(t *testing.T) {
	m := buildMessage("clinic@example.com", Message{
		To:      "alice@example.com",
		Subject: "Appointment cancelled",
		Body:    "Your appointment was cancelled.",
	})

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "From: clinic@example.com")
	assert.Contains(t, raw, "To: alice@example.com")
	assert.Contains(t, raw, "Subject: Appointment cancelled")
	assert.Contains(t, raw, "Your appointment was cancelled.")
}

func TestNewService_Disabled(t *testing.T) {
	svc := NewService(config.SMTPConfig{Enabled: false}, logger.Nop())

	_, ok := svc.(*disabledService)
	require.True(t, ok)
	assert.NoError(t, svc.Send(context.Background(), Message{To: "bob@example.com"}))
}

func TestSMTPService_CancelledContext(t *testing.T) {
	svc := NewService(config.SMTPConfig{Enabled: true, Host: "localhost", Port: 2525, From: "clinic@example.com"}, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.Send(ctx, Message{To: "bob@example.com"}), context.Canceled)
}
