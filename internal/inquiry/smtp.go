package inquiry

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig configures the SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// SMTPRelay sends messages through an SMTP server, upgrading to TLS when
// the server offers STARTTLS.
type SMTPRelay struct {
	cfg SMTPConfig
}

func NewSMTPRelay(cfg SMTPConfig) *SMTPRelay {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPRelay{cfg: cfg}
}

func (r *SMTPRelay) options() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(r.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(r.cfg.Timeout),
	}
	if r.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(r.cfg.Username),
			mail.WithPassword(r.cfg.Password),
		)
	}
	return opts
}

func (r *SMTPRelay) Send(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(r.cfg.Host, r.options()...)
	if err != nil {
		return fmt.Errorf("smtp: failed to create client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp: send failed: %w", err)
	}
	return nil
}
