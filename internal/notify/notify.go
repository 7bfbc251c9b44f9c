// Package notify sends claim and verification emails through Mailjet.
package notify

import (
	"context"
	"strings"
	"sync"

	mailjet "github.com/mailjet/mailjet-apiv3-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultSender = "noreply@campusevents.example.com"

// Message is one outgoing email. From is optional and defaults to the
// notifier's sender.
type Message struct {
	Subject string
	Body    string
	From    string
	To      string
}

type Notifier struct {
	mutex      sync.Mutex // Lock access.
	sender     string     // Sender email address.
	publicKey  string     // Public key for accessing MailJet API.
	privateKey string     // Private key for accessing MailJet API.
	logger     *zap.Logger

	send func(*mailjet.MessagesV31) error
}

// New returns a notifier. Without secrets it only logs what it would send.
func New(options ...Option) (*Notifier, error) {
	n := &Notifier{sender: defaultSender, logger: zap.NewNop()}
	for i, opt := range options {
		if err := opt(n); err != nil {
			return nil, errors.Wrapf(err, "could not apply option # %d", i)
		}
	}
	if n.send == nil && n.publicKey != "" && n.privateKey != "" {
		clt := mailjet.NewMailjetClient(n.publicKey, n.privateKey)
		n.send = func(msgs *mailjet.MessagesV31) error {
			_, err := clt.SendMailV31(msgs)
			return err
		}
	}
	return n, nil
}

// Send delivers m. A delivery failure is returned so the caller can undo
// whatever the email was confirming.
func (n *Notifier) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(m.To) == "" {
		return errors.New("message has no recipient")
	}
	from := m.From
	if from == "" {
		from = n.sender
	}

	n.mutex.Lock()
	defer n.mutex.Unlock()

	if n.send == nil {
		n.logger.Info("mail disabled, not sending", zap.String("to", m.To), zap.String("subject", m.Subject))
		return nil
	}

	info := []mailjet.InfoMessagesV31{{
		From:     &mailjet.RecipientV31{Email: from},
		To:       &mailjet.RecipientsV31{mailjet.RecipientV31{Email: m.To}},
		Subject:  m.Subject,
		TextPart: m.Body,
	}}
	if err := n.send(&mailjet.MessagesV31{Info: info}); err != nil {
		return errors.Wrap(err, "could not send mail")
	}
	n.logger.Info("mail sent", zap.String("to", m.To), zap.String("subject", m.Subject))
	return nil
}
