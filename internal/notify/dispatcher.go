package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/frequencia/internal/obs"
	"github.com/gestaozabele/frequencia/internal/util"
)

const (
	// Fila recebe os eventos publicados; os workers consomem via BRPOP.
	Fila = "frequencia:notificacoes"
	// FilaDLQ guarda eventos que esgotaram as tentativas.
	FilaDLQ = "dlq:" + Fila
)

type lister interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Dispatcher enfileira eventos em uma lista Redis.
type Dispatcher struct {
	rdb lister
}

// NewDispatcher cria o publicador sobre o cliente Redis.
func NewDispatcher(rdb lister) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// Publish serializa e enfileira o evento. Erros são apenas registrados.
func (d *Dispatcher) Publish(ctx context.Context, ev Evento) {
	if ev.ID == "" {
		ev.ID = util.NewULID()
	}
	if ev.CriadoEm.IsZero() {
		ev.CriadoEm = util.Now()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("tipo", ev.Tipo).Msg("notify: falha ao serializar evento")
		obs.Notifications.WithLabelValues("fila", "erro").Inc()
		return
	}
	if err := d.rdb.LPush(context.WithoutCancel(ctx), Fila, data).Err(); err != nil {
		log.Error().Err(err).Str("tipo", ev.Tipo).Msg("notify: falha ao enfileirar evento")
		obs.Notifications.WithLabelValues("fila", "erro").Inc()
		return
	}
	obs.Notifications.WithLabelValues("fila", "enfileirado").Inc()
}
