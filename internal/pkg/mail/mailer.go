package mail

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseFox/internal/pkg/env"
)

// Message is a provider-neutral transactional email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a message and returns the provider's message id when it has one.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

var ErrNoRecipient = errors.New("mail: recipient is required")

// ErrNotConfigured is returned by the fallback sender when no provider is set
// up, so attempts are recorded as failures and retried once it is.
var ErrNotConfigured = errors.New("mail: provider not configured")

var (
	defaultSender Sender
	senderMu      sync.RWMutex
)

// Default returns the process-wide sender selected by MAIL_PROVIDER. It is
// built on first use.
func Default() Sender {
	senderMu.RLock()
	s := defaultSender
	senderMu.RUnlock()
	if s != nil {
		return s
	}

	senderMu.Lock()
	defer senderMu.Unlock()
	if defaultSender == nil {
		defaultSender = newSenderFromEnv()
	}
	return defaultSender
}

// SetDefault replaces the process-wide sender, mainly for tests. nil resets
// it to the MAIL_PROVIDER selection.
func SetDefault(s Sender) {
	senderMu.Lock()
	defer senderMu.Unlock()
	defaultSender = s
}

func newSenderFromEnv() Sender {
	provider := strings.ToLower(strings.TrimSpace(env.GetEnv("MAIL_PROVIDER", "resend")))
	switch provider {
	case "smtp":
		return NewSMTPSenderFromEnv()
	case "log":
		return LogSender{}
	case "resend":
		s, err := NewResendSenderFromEnv()
		if err != nil {
			log.Errorf("[Mail] resend provider selected but %v; confirmations will fail until it is set", err)
			return unconfiguredSender{}
		}
		return s
	default:
		log.Errorf("[Mail] unknown MAIL_PROVIDER %q; confirmations will fail until it is fixed", provider)
		return unconfiguredSender{}
	}
}

type unconfiguredSender struct{}

func (unconfiguredSender) Send(ctx context.Context, msg Message) (string, error) {
	return "", ErrNotConfigured
}

// DefaultFrom is the configured sender address.
func DefaultFrom() string {
	from := strings.TrimSpace(env.GetEnv("MAIL_FROM", ""))
	if from == "" {
		from = "no-reply@localhost"
	}
	return from
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) (string, error) {
	if strings.TrimSpace(msg.To) == "" {
		return "", ErrNoRecipient
	}
	log.Infow("[Mail] log sender", "to", msg.To, "subject", msg.Subject)
	return "", nil
}
