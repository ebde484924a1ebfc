package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderResetEscapesHTML(t *testing.T) {
	msg, err := RenderReset("a@example.com", ResetEmailData{
		Name:     "<b>Alice</b>",
		Username: "alicea",
		Link:     "https://til.example/resetPassword?token=abc",
		TTL:      time.Hour,
	})
	require.NoError(t, err)

	assert.Equal(t, "a@example.com", msg.ToAddress)
	assert.Equal(t, "Reset Your Password", msg.Subject)
	assert.Contains(t, msg.HTML, "&lt;b&gt;Alice&lt;/b&gt;")
	assert.Contains(t, msg.HTML, `href="https://til.example/resetPassword?token=abc"`)
	assert.True(t, strings.Contains(msg.Text, "token=abc"))
}

func TestMemorySender(t *testing.T) {
	s := &MemorySender{}
	_, ok := s.Last()
	assert.False(t, ok)

	require.NoError(t, s.Send(context.Background(), Message{ToAddress: "x@y", Subject: "1"}))
	require.NoError(t, s.Send(context.Background(), Message{ToAddress: "x@y", Subject: "2"}))
	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, "2", last.Subject)
	assert.Len(t, s.Sent(), 2)

	s.Err = errors.New("smtp down")
	assert.Error(t, s.Send(context.Background(), Message{}))
}

func TestSMTPSenderHonoursCancelledContext(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "no-reply@til.example"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, Message{ToAddress: "a@b"}), context.Canceled)
}
