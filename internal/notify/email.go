package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
)

// EmailConfig agrupa os parâmetros SMTP.
type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// EmailNotifier envia a notificação por e-mail a cada destinatário.
type EmailNotifier struct {
	cfg  EmailConfig
	addr string
	send func(e *email.Email, addr string, a smtp.Auth) error
}

// NewEmailNotifier devolve nil quando o host SMTP não está configurado.
func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	if cfg.Host == "" {
		return nil
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &EmailNotifier{
		cfg:  cfg,
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		send: func(e *email.Email, addr string, a smtp.Auth) error { return e.Send(addr, a) },
	}
}

func (n *EmailNotifier) Canal() string { return "email" }

func (n *EmailNotifier) Notify(ctx context.Context, ev Evento) error {
	if n == nil {
		return errors.New("email notifier não configurado")
	}

	para := make([]string, 0, len(ev.Destinatarios))
	for _, d := range ev.Destinatarios {
		if d.Email != "" {
			para = append(para, d.Email)
		}
	}
	if len(para) == 0 {
		return nil
	}

	e := email.NewEmail()
	e.From = n.cfg.From
	e.To = para
	e.Subject = ev.Titulo
	e.Text = []byte(ev.Mensagem)

	var auth smtp.Auth
	if n.cfg.User != "" {
		auth = smtp.PlainAuth("", n.cfg.User, n.cfg.Password, n.cfg.Host)
	}

	done := make(chan error, 1)
	go func() { done <- n.send(e, n.addr, auth) }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("email: %w", err)
		}
		return nil
	}
}
