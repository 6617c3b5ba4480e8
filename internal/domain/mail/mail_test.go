package mail

import (
	"sync"
	"testing"

	"github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NjengaIWJ/tetea-jamii/internal/platform/config"
)

func configMail(host, to string) config.MailConfig {
	return config.MailConfig{Host: host, Username: "bot@x.com", Password: "pw", To: to}
}

type captureSender struct {
	mu   sync.Mutex
	sent []Message
}

func (c *captureSender) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *captureSender) messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.sent...)
}

func TestSubmitDeliversAsync(t *testing.T) {
	sender := &captureSender{}
	d, err := NewDispatcher(EventBus.New(), sender, nil)
	require.NoError(t, err)

	msg := Message{Name: "Jane", Email: "jane@x.com", Subject: "Hello", Body: "Hi there"}
	require.NoError(t, d.Submit(msg))
	d.Wait()

	got := sender.messages()
	require.Len(t, got, 1)
	assert.Equal(t, msg, got[0])
}

func TestSubmitRejectsIncompleteMessages(t *testing.T) {
	sender := &captureSender{}
	d, err := NewDispatcher(EventBus.New(), sender, nil)
	require.NoError(t, err)

	incomplete := []Message{
		{Email: "a@x.com", Subject: "s", Body: "b"},
		{Name: "n", Subject: "s", Body: "b"},
		{Name: "n", Email: "a@x.com", Body: "b"},
		{Name: "n", Email: "a@x.com", Subject: "s", Body: "  "},
	}
	for _, msg := range incomplete {
		assert.ErrorIs(t, d.Submit(msg), ErrMissingFields)
	}
	d.Wait()
	assert.Empty(t, sender.messages())
}

func TestNewSMTPSenderRequiresHostAndDestination(t *testing.T) {
	_, err := NewSMTPSender(configMail("", "inbox@x.com"))
	assert.Error(t, err)

	_, err = NewSMTPSender(configMail("smtp.x.com", ""))
	assert.Error(t, err)

	s, err := NewSMTPSender(configMail("smtp.x.com", "inbox@x.com"))
	require.NoError(t, err)
	assert.Equal(t, 587, s.port)
}
