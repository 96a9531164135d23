package channel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"gopkg.in/gomail.v2"

	"github.com/pawline/notify-api/pkg/logger"
)

func testEmailSender() *EmailSender {
	return NewEmailSender(EmailConfig{
		Host: "smtp.example.com",
		Port: 587,
		From: "notify@pawline.example",
	}, logger.NewFromZerolog(zerolog.Nop()))
}

func TestEmailSendSuccess(t *testing.T) {
	s := testEmailSender()
	var got *gomail.Message
	s.send = func(m *gomail.Message) error {
		got = m
		return nil
	}

	result := s.Send(context.Background(), "oncall@hospital.example", "Emergency case", "details")

	assert.True(t, result.Success)
	assert.Equal(t, []string{"oncall@hospital.example"}, got.GetHeader("To"))
	assert.Equal(t, []string{"Emergency case"}, got.GetHeader("Subject"))
}

func TestEmailSendFailureIsTransient(t *testing.T) {
	s := testEmailSender()
	s.send = func(*gomail.Message) error {
		return errors.New("connection refused")
	}

	result := s.Send(context.Background(), "oncall@hospital.example", "s", "b")

	assert.False(t, result.Success)
	assert.False(t, result.Permanent)
	assert.Contains(t, result.ErrorReason, "connection refused")
}

func TestEmailMissingConfigIsPermanent(t *testing.T) {
	s := NewEmailSender(EmailConfig{}, logger.NewFromZerolog(zerolog.Nop()))

	result := s.Send(context.Background(), "oncall@hospital.example", "s", "b")
	assert.True(t, result.Permanent)
}

func TestEmailEmptyRecipientIsPermanent(t *testing.T) {
	result := testEmailSender().Send(context.Background(), "", "s", "b")
	assert.True(t, result.Permanent)
}

func TestEmailSendTimeout(t *testing.T) {
	s := NewEmailSender(EmailConfig{
		Host:    "smtp.example.com",
		From:    "notify@pawline.example",
		Timeout: 50 * time.Millisecond,
	}, logger.NewFromZerolog(zerolog.Nop()))
	release := make(chan struct{})
	defer close(release)
	s.send = func(*gomail.Message) error {
		<-release
		return nil
	}

	result := s.Send(context.Background(), "oncall@hospital.example", "s", "b")

	assert.False(t, result.Success)
	assert.False(t, result.Permanent)
	assert.Contains(t, result.ErrorReason, "timed out")
}
