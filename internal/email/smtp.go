package email

import (
	"context"
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"

	"github.com/dropDatabas3/tilgate/internal/observability/logger"
)

// SMTPConfig parámetros de conexión.
type SMTPConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	From               string
	FromName           string
	TLSMode            string // auto | starttls | ssl | none
	InsecureSkipVerify bool   // sólo dev
}

// SMTPSender implementa Sender usando SMTP (go-mail).
type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.TLSMode == "" {
		cfg.TLSMode = "auto"
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) message(msg Message) *mail.Message {
	m := mail.NewMessage()
	if s.cfg.FromName != "" {
		m.SetAddressHeader("From", s.cfg.From, s.cfg.FromName)
	} else {
		m.SetHeader("From", s.cfg.From)
	}
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.ToAddress, msg.ToName)
	} else {
		m.SetHeader("To", msg.ToAddress)
	}
	m.SetHeader("Subject", msg.Subject)

	// multipart/alternative cuando hay texto y html
	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}
	return m
}

func (s *SMTPSender) dialer() *mail.Dialer {
	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify,
	}
	switch s.cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	case "starttls":
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}
	return d
}

// Send abre una conexión por mensaje. go-mail no acepta context: se respeta
// una cancelación previa al dial.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	log := logger.From(ctx).With(
		logger.Component("email.smtp"),
		logger.String("host", s.cfg.Host),
		logger.Int("port", s.cfg.Port),
	)
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.dialer().DialAndSend(s.message(msg)); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Info("email sent", logger.String("subject", msg.Subject))
	return nil
}
