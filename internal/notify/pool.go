package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/frequencia/internal/obs"
)

const (
	popTimeout     = 5 * time.Second
	maxTentativas  = 3
	notifyTimeout  = 10 * time.Second
	pausaAposFalha = time.Second
)

type queue interface {
	lister
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Pool consome a fila de notificações com N workers.
type Pool struct {
	rdb       queue
	notifiers []Notifier
	workers   int
}

// NewPool cria o pool. Notifiers nil são ignorados.
func NewPool(rdb queue, workers int, notifiers ...Notifier) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ativos := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			ativos = append(ativos, n)
		}
	}
	return &Pool{rdb: rdb, notifiers: ativos, workers: workers}
}

// Run bloqueia até ctx ser cancelado e todos os workers terminarem.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.runWorker(ctx, id)
		}(i)
	}
	log.Info().Int("workers", p.workers).Int("canais", len(p.notifiers)).Msg("notify: pool iniciado")
	wg.Wait()
	log.Info().Msg("notify: pool encerrado")
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}
		result, err := p.rdb.BRPop(ctx, popTimeout, Fila).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			log.Warn().Err(err).Int("worker", id).Msg("notify: falha ao ler fila")
			select {
			case <-ctx.Done():
			case <-time.After(pausaAposFalha):
			}
			continue
		}
		if len(result) < 2 {
			continue
		}
		p.Processar(ctx, result[1])
	}
}

// Processar entrega um evento serializado a todos os canais. Em caso de falha
// o evento volta para a fila até esgotar as tentativas e então vai para a DLQ.
func (p *Pool) Processar(ctx context.Context, raw string) {
	var ev Evento
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		log.Error().Err(err).Msg("notify: evento inválido descartado")
		return
	}

	var falhas []error
	var pendentes []string
	for _, n := range p.notifiers {
		if !deveEntregar(ev, n.Canal()) {
			continue
		}
		nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		err := n.Notify(nctx, ev)
		cancel()
		if err != nil {
			obs.Notifications.WithLabelValues(n.Canal(), "erro").Inc()
			log.Warn().Err(err).Str("canal", n.Canal()).Str("tipo", ev.Tipo).Str("id", ev.ID).Msg("notify: falha na entrega")
			falhas = append(falhas, err)
			pendentes = append(pendentes, n.Canal())
			continue
		}
		obs.Notifications.WithLabelValues(n.Canal(), "entregue").Inc()
	}
	if len(falhas) == 0 {
		return
	}

	ev.Tentativas++
	ev.Pendentes = pendentes
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	destino := Fila
	if ev.Tentativas >= maxTentativas {
		destino = FilaDLQ
	}
	if err := p.rdb.LPush(context.WithoutCancel(ctx), destino, data).Err(); err != nil {
		log.Error().Err(err).Str("fila", destino).Str("id", ev.ID).Msg("notify: falha ao reenfileirar evento")
		return
	}
	if destino == FilaDLQ {
		log.Warn().Str("tipo", ev.Tipo).Str("id", ev.ID).Int("tentativas", ev.Tentativas).
			Str("motivo", errors.Join(falhas...).Error()).Msg("notify: evento movido para a DLQ")
	}
}

func deveEntregar(ev Evento, canal string) bool {
	if len(ev.Pendentes) == 0 {
		return true
	}
	for _, c := range ev.Pendentes {
		if c == canal {
			return true
		}
	}
	return false
}
