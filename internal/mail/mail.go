// Package mail sends account mail over SMTP, localized to the recipient's
// language preference.
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gomail "github.com/wneessen/go-mail"

	"userhub.org/internal/auth"
	"userhub.org/internal/i18n"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// ResetURL is the page the reset token is appended to as a query
	// parameter.
	ResetURL string
}

type Mailer struct {
	client   *gomail.Client
	tr       *i18n.Translator
	from     string
	resetURL string
}

var _ auth.Mailer = (*Mailer)(nil)

func New(cfg Config, tr *i18n.Translator) (*Mailer, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	if tr == nil {
		return nil, errors.New("translator is required")
	}
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &Mailer{
		client:   client,
		tr:       tr,
		from:     cfg.From,
		resetURL: cfg.ResetURL,
	}, nil
}

func (m *Mailer) SendPasswordReset(ctx context.Context, user auth.User, token string) error {
	link := fmt.Sprintf("%s?token=%s", m.resetURL, token)
	subject := m.tr.Translate(user.Language, "email.password_reset.subject", nil)
	body := m.tr.Translate(user.Language, "email.password_reset.body", map[string]string{
		"name": user.Name,
		"link": link,
	})
	return m.send(ctx, user.Email, subject, body)
}

func (m *Mailer) SendWelcome(ctx context.Context, user auth.User) error {
	subject := m.tr.Translate(user.Language, "email.welcome.subject", nil)
	body := m.tr.Translate(user.Language, "email.welcome.body", map[string]string{
		"name": user.Name,
	})
	return m.send(ctx, user.Email, subject, body)
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)
	return m.client.DialAndSendWithContext(ctx, msg)
}
