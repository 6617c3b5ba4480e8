// Package mail delivers contact-form messages to the organization inbox.
// Submissions are published on an event bus and delivered asynchronously so
// a slow SMTP server never blocks the request path.
package mail

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/asaskevich/EventBus"

	"github.com/NjengaIWJ/tetea-jamii/internal/platform/config"
	"github.com/NjengaIWJ/tetea-jamii/internal/platform/logging"
)

// TopicContactMessage is the bus topic contact submissions are published on.
const TopicContactMessage = "mail:contact"

var ErrMissingFields = errors.New("missing fields")

// Message is a contact-form submission.
type Message struct {
	Name    string
	Email   string
	Subject string
	Body    string
}

// Sender delivers a message to the configured inbox.
type Sender interface {
	Send(msg Message) error
}

// SMTPSender delivers mail over plain SMTP with AUTH.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	to       string
}

// NewSMTPSender builds a sender from mail configuration.
func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.To == "" {
		return nil, errors.New("mail sender requires host and destination address")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &SMTPSender{
		host:     cfg.Host,
		port:     port,
		username: cfg.Username,
		password: cfg.Password,
		to:       cfg.To,
	}, nil
}

// Send formats and delivers the message. The visitor's address goes into
// Reply-To so staff can answer directly.
func (s *SMTPSender) Send(msg Message) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.username)
	fmt.Fprintf(&b, "To: %s\r\n", s.to)
	fmt.Fprintf(&b, "Reply-To: %s\r\n", msg.Email)
	fmt.Fprintf(&b, "Subject: [contact] %s\r\n", msg.Subject)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "From: %s <%s>\r\n\r\n%s\r\n", msg.Name, msg.Email, msg.Body)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	if err := smtp.SendMail(addr, auth, s.username, []string{s.to}, []byte(b.String())); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// Dispatcher validates submissions and publishes them for async delivery.
type Dispatcher struct {
	bus    EventBus.Bus
	logger *logging.Logger
}

// NewDispatcher subscribes the sender to the contact topic and returns the
// publish side.
func NewDispatcher(bus EventBus.Bus, sender Sender, logger *logging.Logger) (*Dispatcher, error) {
	if bus == nil {
		bus = EventBus.New()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if sender != nil {
		if err := bus.SubscribeAsync(TopicContactMessage, func(msg Message) {
			if err := sender.Send(msg); err != nil {
				logger.ErrorTag("mail", "failed to deliver contact message from %s: %v", msg.Email, err)
				return
			}
			logger.InfoTag("mail", "delivered contact message from %s", msg.Email)
		}, false); err != nil {
			return nil, err
		}
	}
	return &Dispatcher{bus: bus, logger: logger}, nil
}

// Submit validates the submission and publishes it. Delivery happens off the
// request path; Submit returning nil means the message was accepted.
func (d *Dispatcher) Submit(msg Message) error {
	if strings.TrimSpace(msg.Name) == "" ||
		strings.TrimSpace(msg.Email) == "" ||
		strings.TrimSpace(msg.Subject) == "" ||
		strings.TrimSpace(msg.Body) == "" {
		return ErrMissingFields
	}
	d.bus.Publish(TopicContactMessage, msg)
	return nil
}

// Wait blocks until all queued deliveries finish. Used on shutdown and in
// tests.
func (d *Dispatcher) Wait() {
	d.bus.WaitAsync()
}
