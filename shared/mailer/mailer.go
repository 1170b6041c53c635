// Package mailer sends transactional email over SMTP or Amazon SES
package mailer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/config"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/utils"
)

// Email is one outgoing message
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers an email
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// New builds the mailer selected by cfg.Provider, guarded by a circuit breaker
func New(cfg config.EmailConfig) (Mailer, error) {
	var m Mailer
	switch cfg.Provider {
	case "smtp":
		if cfg.Host == "" {
			return nil, fmt.Errorf("EMAIL_HOST is required for the smtp provider")
		}
		m = NewSMTPMailer(cfg)
	case "ses":
		sess, err := session.NewSession(&aws.Config{
			Region: aws.String(cfg.AWSRegion),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %w", err)
		}
		m = NewSESMailer(ses.New(sess), cfg.From)
	case "log", "":
		return LogMailer{}, nil
	default:
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q", cfg.Provider)
	}
	return NewBreakerMailer(m, utils.NewCircuitBreaker("email-"+cfg.Provider, 5, time.Minute)), nil
}

// SMTPMailer dials the configured SMTP server for every message
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	d.SSL = cfg.Secure
	return &SMTPMailer{dialer: d, from: cfg.From}
}

func (s *SMTPMailer) Send(_ context.Context, email Email) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", email.Subject)
	if email.Text != "" {
		m.SetBody("text/plain", email.Text)
		m.AddAlternative("text/html", email.HTML)
	} else {
		m.SetBody("text/html", email.HTML)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s failed: %w", email.To, err)
	}
	return nil
}

// SESMailer sends through the SES SendEmail API
type SESMailer struct {
	client sesiface.SESAPI
	from   string
}

func NewSESMailer(client sesiface.SESAPI, from string) *SESMailer {
	return &SESMailer{client: client, from: from}
}

func (s *SESMailer) Send(ctx context.Context, email Email) error {
	body := &ses.Body{
		Html: &ses.Content{Charset: aws.String("UTF-8"), Data: aws.String(email.HTML)},
	}
	if email.Text != "" {
		body.Text = &ses.Content{Charset: aws.String("UTF-8"), Data: aws.String(email.Text)}
	}

	_, err := s.client.SendEmailWithContext(ctx, &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &ses.Destination{
			ToAddresses: []*string{aws.String(email.To)},
		},
		Message: &ses.Message{
			Subject: &ses.Content{Charset: aws.String("UTF-8"), Data: aws.String(email.Subject)},
			Body:    body,
		},
	})
	if err != nil {
		return fmt.Errorf("ses send to %s failed: %w", email.To, err)
	}
	return nil
}

// LogMailer writes emails to the log instead of sending them. Used in development.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, email Email) error {
	logrus.WithFields(logrus.Fields{
		"to":      email.To,
		"subject": email.Subject,
	}).Info("Email (not sent, log provider)")
	logrus.Debug(email.Text)
	return nil
}

// BreakerMailer stops hammering a failing transport
type BreakerMailer struct {
	next    Mailer
	breaker *utils.CircuitBreaker
}

func NewBreakerMailer(next Mailer, breaker *utils.CircuitBreaker) *BreakerMailer {
	return &BreakerMailer{next: next, breaker: breaker}
}

func (b *BreakerMailer) Send(ctx context.Context, email Email) error {
	return b.breaker.Call(func() error {
		return b.next.Send(ctx, email)
	})
}

// Dispatcher sends email in the background. Failures are logged and never
// reach the caller.
type Dispatcher struct {
	mailer  Mailer
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(m Mailer) *Dispatcher {
	return &Dispatcher{mailer: m, timeout: 30 * time.Second}
}

// Send queues email for delivery and returns immediately
func (d *Dispatcher) Send(email Email) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.mailer.Send(ctx, email); err != nil {
			logrus.WithFields(logrus.Fields{
				"to":      email.To,
				"subject": email.Subject,
			}).WithError(err).Warn("Failed to send email")
		}
	}()
}

// Wait blocks until every queued email has been attempted
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
