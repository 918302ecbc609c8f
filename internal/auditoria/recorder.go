// Package auditoria grava e consulta o log de auditoria. Toda operação que
// altera estado gera exatamente uma entrada, de sucesso ou de erro.
package auditoria

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/frequencia/internal/apperr"
	"github.com/gestaozabele/frequencia/internal/authz"
	"github.com/gestaozabele/frequencia/internal/obs"
	"github.com/gestaozabele/frequencia/internal/repo"
	"github.com/gestaozabele/frequencia/internal/util"
)

// Evento descreve a operação a registrar.
type Evento struct {
	Ator       authz.Actor
	Acao       string
	Categoria  repo.CategoriaAuditoria
	Tipo       repo.TipoAcao
	Descricao  string
	Alteracoes []repo.Alteracao
	AlvoID     string
}

// Recorder monta as entradas com metadados da requisição e grava no store.
type Recorder struct {
	store repo.Store
	now   func() time.Time
}

// NewRecorder cria o gravador de auditoria.
func NewRecorder(store repo.Store) *Recorder {
	return &Recorder{store: store, now: util.Now}
}

// Sucesso grava a entrada dentro da transação de negócio q. Um erro aqui deve
// abortar a transação.
func (r *Recorder) Sucesso(ctx context.Context, q repo.Querier, ev Evento) error {
	entrada := r.montar(ctx, ev, repo.AuditoriaSucesso, "")
	if err := q.AppendAuditoria(ctx, entrada); err != nil {
		return err
	}
	obs.AuditEntries.WithLabelValues(string(ev.Categoria), string(repo.AuditoriaSucesso)).Inc()
	return nil
}

// Falha grava uma entrada de erro em transação própria e devolve a causa
// (unida ao erro de gravação, se houver).
func (r *Recorder) Falha(ctx context.Context, ev Evento, causa error) error {
	entrada := r.montar(ctx, ev, repo.AuditoriaErro, mensagemFalha(causa))
	err := r.store.WithTx(context.WithoutCancel(ctx), func(ctx context.Context, q repo.Querier) error {
		return q.AppendAuditoria(ctx, entrada)
	})
	if err != nil {
		log.Error().Err(err).Str("acao", ev.Acao).Msg("falha ao gravar auditoria de erro")
		return errors.Join(causa, err)
	}
	obs.AuditEntries.WithLabelValues(string(ev.Categoria), string(repo.AuditoriaErro)).Inc()
	return causa
}

// Executar roda fn em transação e garante uma entrada de auditoria: a de
// sucesso na mesma transação ou a de erro após o rollback. fn pode ajustar o
// evento (descrição, alterações, alvo) antes do commit.
func (r *Recorder) Executar(ctx context.Context, ev Evento, fn func(ctx context.Context, q repo.Querier, ev *Evento) error) error {
	err := r.store.WithTx(ctx, func(ctx context.Context, q repo.Querier) error {
		if err := fn(ctx, q, &ev); err != nil {
			return err
		}
		return r.Sucesso(ctx, q, ev)
	})
	if err != nil {
		return r.Falha(ctx, ev, err)
	}
	return nil
}

func (r *Recorder) montar(ctx context.Context, ev Evento, status repo.StatusAuditoria, detalhe string) repo.EntradaAuditoria {
	agora := r.now()
	meta := MetadadosDe(ctx)

	descricao := ev.Descricao
	if detalhe != "" {
		if descricao != "" {
			descricao += ": "
		}
		descricao += detalhe
	}

	entrada := repo.EntradaAuditoria{
		ID:         util.NewULIDAt(agora),
		Momento:    agora,
		AtorPapel:  string(ev.Ator.Role),
		Acao:       ev.Acao,
		Categoria:  ev.Categoria,
		Tipo:       ev.Tipo,
		Status:     status,
		Descricao:  descricao,
		Alteracoes: ev.Alteracoes,
		AlvoID:     ev.AlvoID,
		IP:         meta.IP,
		Cliente:    meta.Cliente,
		RequestID:  meta.RequestID,
	}
	if ev.Ator.ID != uuid.Nil {
		id := ev.Ator.ID
		entrada.AtorID = &id
	}
	return entrada
}

func mensagemFalha(causa error) string {
	if causa == nil {
		return ""
	}
	var appErr *apperr.Error
	if errors.As(causa, &appErr) {
		return appErr.Error()
	}
	if errors.Is(causa, apperr.ErrNotFound) || errors.Is(causa, apperr.ErrConflict) {
		return causa.Error()
	}
	return "erro interno"
}
