package notify

import (
	mailjet "github.com/mailjet/mailjet-apiv3-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Option is a functional option supplied to New.
type Option func(*Notifier) error

// WithSender sets the default sender email address.
func WithSender(sender string) Option {
	return func(n *Notifier) error {
		if sender != "" {
			n.sender = sender
		}
		return nil
	}
}

// WithSecrets applies the Mailjet API keys. Both must be set or both empty.
func WithSecrets(publicKey, privateKey string) Option {
	return func(n *Notifier) error {
		if (publicKey == "") != (privateKey == "") {
			return errors.New("mailjet public and private keys must be set together")
		}
		n.publicKey, n.privateKey = publicKey, privateKey
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(n *Notifier) error {
		if l != nil {
			n.logger = l
		}
		return nil
	}
}

// withTransport replaces the Mailjet call; tests only.
func withTransport(send func(*mailjet.MessagesV31) error) Option {
	return func(n *Notifier) error {
		n.send = send
		return nil
	}
}
