package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/amishk599/jobdigest/internal/model"
)

// Ensure MailNotifier implements model.Notifier.
var _ model.Notifier = (*MailNotifier)(nil)

// MailConfig holds SMTP connection and addressing settings.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
	From     string
	To       string
	Timeout  time.Duration
}

// MailNotifier delivers a digest as a single e-mail with HTML and plain-text parts.
type MailNotifier struct {
	cfg    MailConfig
	logger *slog.Logger
}

// NewMailNotifier returns a notifier that sends through the configured SMTP server.
func NewMailNotifier(cfg MailConfig, logger *slog.Logger) *MailNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &MailNotifier{cfg: cfg, logger: logger}
}

// Notify sends d. With no SMTP host configured the digest is dropped and an
// error is logged, but nil is returned so the run still counts as a success.
func (n *MailNotifier) Notify(ctx context.Context, d model.Digest) error {
	if n.cfg.Host == "" {
		n.logger.Error("SMTP_HOST not configured, skipping email", "subject", d.Subject, "jobs", len(d.Jobs))
		return nil
	}

	msg, err := n.buildMessage(d)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(n.cfg.Host, n.clientOptions()...)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending digest to %s via %s:%d: %w", n.cfg.To, n.cfg.Host, n.cfg.Port, err)
	}

	n.logger.Info("digest emailed", "to", n.cfg.To, "jobs", len(d.Jobs))
	return nil
}

func (n *MailNotifier) buildMessage(d model.Digest) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", n.cfg.From, err)
	}
	if err := msg.To(n.cfg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", n.cfg.To, err)
	}
	msg.Subject(d.Subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, plainText(d))
	msg.AddAlternativeString(mail.TypeTextHTML, d.HTML)
	return msg, nil
}

// plainText is the text/plain alternative for clients that do not render HTML.
func plainText(d model.Digest) string {
	var b strings.Builder
	b.WriteString(d.Subject + "\n\n")
	for _, j := range d.Jobs {
		fmt.Fprintf(&b, "- %s | %s | %s\n  %s\n", j.Title, j.Company, j.Location, j.URL)
	}
	return b.String()
}

func (n *MailNotifier) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(n.cfg.Port),
		mail.WithTimeout(n.cfg.Timeout),
	}

	auth := mail.SMTPAuthPlain
	if n.cfg.UseTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
		auth = mail.SMTPAuthPlainNoEnc
	}

	if n.cfg.Username != "" && n.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(auth),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}
	return opts
}
