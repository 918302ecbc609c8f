// Package notify entrega notificações de forma assíncrona. O núcleo apenas
// publica eventos; falhas de entrega nunca voltam para quem publicou.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	TipoJustificativaCriada    = "justificativa.criada"
	TipoJustificativaAprovada  = "justificativa.aprovada"
	TipoJustificativaRejeitada = "justificativa.rejeitada"
)

// Destinatario identifica quem deve receber a notificação.
type Destinatario struct {
	Nome  string `json:"nome"`
	Email string `json:"email"`
}

// Evento é o envelope publicado na fila.
type Evento struct {
	ID            string            `json:"id"`
	Tipo          string            `json:"tipo"`
	Titulo        string            `json:"titulo"`
	Mensagem      string            `json:"mensagem"`
	Destinatarios []Destinatario    `json:"destinatarios"`
	Dados         map[string]string `json:"dados,omitempty"`
	CriadoEm      time.Time         `json:"criado_em"`
	Tentativas    int               `json:"tentativas"`
	// Pendentes restringe a reentrega aos canais que falharam.
	Pendentes     []string          `json:"pendentes,omitempty"`
}

// Publisher publica eventos sem bloquear o chamador com erros.
type Publisher interface {
	Publish(ctx context.Context, ev Evento)
}

// Notifier entrega um evento em um canal (Slack, e-mail).
type Notifier interface {
	Canal() string
	Notify(ctx context.Context, ev Evento) error
}

// Noop descarta os eventos. Usado sem Redis e nos testes.
type Noop struct{}

func (Noop) Publish(_ context.Context, ev Evento) {
	log.Debug().Str("tipo", ev.Tipo).Msg("notificação descartada (noop)")
}
