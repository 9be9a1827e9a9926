package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// TitledDeliverer is a Deliverer whose messages carry a title, such as an
// email subject.
type TitledDeliverer interface {
	Deliverer
	DeliverTitled(ctx context.Context, channel, title, text string) error
}

// EmailNotifier sends rendered grids as HTML mail over SMTP.
type EmailNotifier struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// TLS is mandatory, opportunistic or none.
	TLS     string
	Timeout time.Duration
	Logger  zerolog.Logger
}

func NewEmailNotifier(host string, port int, username, password, from, tls string, logger zerolog.Logger) *EmailNotifier {
	return &EmailNotifier{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		TLS:      tls,
		Timeout:  30 * time.Second,
		Logger:   logger.With().Str("component", "email").Logger(),
	}
}

// Deliver sends text with a generic subject.
func (e *EmailNotifier) Deliver(ctx context.Context, recipients, text string) error {
	return e.DeliverTitled(ctx, recipients, "compgrid report", text)
}

// DeliverTitled sends text to the comma-separated recipients with title as subject.
func (e *EmailNotifier) DeliverTitled(ctx context.Context, recipients, title, text string) error {
	to := splitRecipients(recipients)
	if len(to) == 0 {
		return fmt.Errorf("no email recipients")
	}

	msg := mail.NewMsg()
	if err := msg.From(e.From); err != nil {
		return fmt.Errorf("email sender %q: %w", e.From, err)
	}
	if err := msg.To(to...); err != nil {
		return fmt.Errorf("email recipients: %w", err)
	}
	msg.Subject(title)
	msg.SetBodyString(mail.TypeTextHTML, text)

	client, err := mail.NewClient(e.Host, e.options()...)
	if err != nil {
		return fmt.Errorf("email client: %w", err)
	}
	e.Logger.Info().Strs("recipients", to).Str("subject", title).Msg("sending email")
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (e *EmailNotifier) options() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(e.Port),
		mail.WithTimeout(e.Timeout),
	}
	switch e.TLS {
	case "none":
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	case "opportunistic":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if e.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(e.Username),
			mail.WithPassword(e.Password),
		)
	}
	return opts
}

func splitRecipients(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
