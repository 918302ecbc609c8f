// Package justificativa conduz o ciclo de vida das justificativas de falta e
// atraso: pendente, depois aprovado ou rejeitado, sem volta.
package justificativa

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/frequencia/internal/apperr"
	"github.com/gestaozabele/frequencia/internal/auditoria"
	"github.com/gestaozabele/frequencia/internal/authz"
	"github.com/gestaozabele/frequencia/internal/notify"
	"github.com/gestaozabele/frequencia/internal/obs"
	"github.com/gestaozabele/frequencia/internal/repo"
	"github.com/gestaozabele/frequencia/internal/storage"
	"github.com/gestaozabele/frequencia/internal/util"
)

const (
	pageSize      = 500
	maxAnexos     = 5
	dataFormato   = "2006-01-02"
	dataExibicao  = "02/01/2006"
	maxDiasPedido = 90
)

// Service aplica as regras de criação e decisão.
type Service struct {
	store     repo.Store
	recorder  *auditoria.Recorder
	validator *util.Validator
	uploader  storage.Uploader
	publisher notify.Publisher
	now       func() time.Time
}

// NewService cria o serviço. uploader e publisher podem ser nil.
func NewService(store repo.Store, recorder *auditoria.Recorder, validator *util.Validator, uploader storage.Uploader, publisher notify.Publisher) *Service {
	if uploader == nil {
		uploader = storage.NoopUploader{}
	}
	if publisher == nil {
		publisher = notify.Noop{}
	}
	return &Service{
		store:     store,
		recorder:  recorder,
		validator: validator,
		uploader:  uploader,
		publisher: publisher,
		now:       util.Now,
	}
}

// CriarInput são os dados enviados pelo solicitante.
type CriarInput struct {
	DataInicio string                 `json:"data_inicio" validate:"required,datetime=2006-01-02"`
	DataFim    string                 `json:"data_fim" validate:"omitempty,datetime=2006-01-02"`
	Tipo       repo.TipoJustificativa `json:"tipo" validate:"required,oneof=justificativa_falta justificativa_atraso atestado"`
	Descricao  string                 `json:"descricao" validate:"required,min=10,max=2000"`
}

// Criar registra uma justificativa pendente do próprio ator.
func (s *Service) Criar(ctx context.Context, actor authz.Actor, input CriarInput) (repo.Justificativa, error) {
	ev := auditoria.Evento{
		Ator:      actor,
		Acao:      "Criar justificativa",
		Categoria: repo.CategoriaJustificativa,
		Tipo:      repo.AcaoCreate,
		Descricao: "Justificativa enviada",
	}

	var (
		criada      repo.Justificativa
		solicitante repo.Usuario
		aprovadores []repo.Usuario
	)
	err := s.recorder.Executar(ctx, ev, func(ctx context.Context, q repo.Querier, ev *auditoria.Evento) error {
		input.Descricao = strings.TrimSpace(input.Descricao)
		if err := s.validator.Struct(input); err != nil {
			return err
		}
		inicio, fim, err := periodo(input.DataInicio, input.DataFim)
		if err != nil {
			return err
		}

		solicitante, err = q.GetUsuario(ctx, actor.ID)
		if err != nil {
			return err
		}

		agora := s.now()
		j := repo.Justificativa{
			ID:            uuid.New(),
			SolicitanteID: actor.ID,
			DataInicio:    inicio,
			DataFim:       fim,
			Tipo:          input.Tipo,
			Descricao:     input.Descricao,
			Anexos:        []string{},
			Status:        repo.JustificativaPendente,
			Versao:        1,
			CriadoEm:      agora,
		}
		if err := q.InsertJustificativa(ctx, j); err != nil {
			return err
		}

		aprovadores, err = destinatariosAprovacao(ctx, q, solicitante)
		if err != nil {
			return err
		}

		ev.AlvoID = j.ID.String()
		ev.Descricao = fmt.Sprintf("Justificativa enviada (%s, %s)", j.Tipo, descreverPeriodo(j))
		ev.Alteracoes = []repo.Alteracao{{Campo: "status", Depois: string(j.Status)}}
		criada = j
		return nil
	})
	if err != nil {
		return repo.Justificativa{}, err
	}

	s.publisher.Publish(ctx, notify.Evento{
		Tipo:          notify.TipoJustificativaCriada,
		Titulo:        "Nova justificativa para análise",
		Mensagem:      fmt.Sprintf("%s enviou %s para %s.", solicitante.Nome, rotulo(criada.Tipo), descreverPeriodo(criada)),
		Destinatarios: destinatarios(aprovadores...),
		Dados:         map[string]string{"justificativa_id": criada.ID.String()},
	})
	return criada, nil
}

func periodo(inicioRaw, fimRaw string) (time.Time, *time.Time, error) {
	inicio, err := time.Parse(dataFormato, inicioRaw)
	if err != nil {
		return time.Time{}, nil, apperr.ValidationFields("dados inválidos", map[string]string{"data_inicio": "data inválida"})
	}
	if fimRaw == "" {
		return inicio, nil, nil
	}
	fim, err := time.Parse(dataFormato, fimRaw)
	if err != nil {
		return time.Time{}, nil, apperr.ValidationFields("dados inválidos", map[string]string{"data_fim": "data inválida"})
	}
	if fim.Before(inicio) {
		return time.Time{}, nil, apperr.ValidationFields("dados inválidos", map[string]string{"data_fim": "deve ser igual ou posterior à data de início"})
	}
	if fim.Sub(inicio) > maxDiasPedido*24*time.Hour {
		return time.Time{}, nil, apperr.ValidationFields("dados inválidos", map[string]string{"data_fim": "período máximo de 90 dias"})
	}
	return inicio, &fim, nil
}

// destinatariosAprovacao devolve o coordenador do solicitante e os diretores
// de ensino ativos.
func destinatariosAprovacao(ctx context.Context, q repo.Querier, solicitante repo.Usuario) ([]repo.Usuario, error) {
	out, err := q.ListUsuariosByPapel(ctx, []authz.Role{authz.RoleDiretorEnsino})
	if err != nil {
		return nil, err
	}
	if solicitante.CoordenadorID != nil {
		coord, err := q.GetUsuario(ctx, *solicitante.CoordenadorID)
		if err == nil && coord.Ativo {
			out = append(out, coord)
		}
	}
	return out, nil
}

// Anexo é um arquivo enviado para uma justificativa.
type Anexo struct {
	Nome         string
	TipoConteudo string
	Conteudo     []byte
}

// AnexarArquivo envia o arquivo ao storage e o associa à justificativa. Só o
// solicitante pode anexar, e apenas enquanto pendente.
func (s *Service) AnexarArquivo(ctx context.Context, actor authz.Actor, id uuid.UUID, anexo Anexo) (repo.Justificativa, error) {
	ev := auditoria.Evento{
		Ator:      actor,
		Acao:      "Anexar arquivo",
		Categoria: repo.CategoriaJustificativa,
		Tipo:      repo.AcaoUpdate,
		Descricao: "Arquivo anexado à justificativa",
		AlvoID:    id.String(),
	}

	var atualizada repo.Justificativa
	err := s.recorder.Executar(ctx, ev, func(ctx context.Context, q repo.Querier, ev *auditoria.Evento) error {
		if err := storage.ValidarAnexo(anexo.TipoConteudo, len(anexo.Conteudo)); err != nil {
			return apperr.ValidationFields("arquivo inválido", map[string]string{"arquivo": err.Error()})
		}

		j, err := q.GetJustificativaForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if j.SolicitanteID != actor.ID {
			return &apperr.Error{Kind: apperr.ErrUnauthorized, Message: "apenas o solicitante pode anexar arquivos"}
		}
		if j.Status != repo.JustificativaPendente {
			return &apperr.Error{Kind: apperr.ErrInvalidStateTransition, Message: "anexos só podem ser enviados enquanto a justificativa está pendente"}
		}
		if len(j.Anexos) >= maxAnexos {
			return apperr.ValidationFields("arquivo inválido", map[string]string{"arquivo": "limite de 5 anexos atingido"})
		}

		res, err := s.uploader.Enviar(ctx, storage.Objeto{
			Chave:        storage.ChaveAnexo(j.ID, anexo.Nome, anexo.TipoConteudo),
			Conteudo:     anexo.Conteudo,
			TipoConteudo: anexo.TipoConteudo,
		})
		if err != nil {
			return fmt.Errorf("enviar anexo: %w", err)
		}

		versao := j.Versao
		j.Anexos = append(j.Anexos, res.URL)
		if err := q.UpdateJustificativa(ctx, j, versao); err != nil {
			return err
		}
		j.Versao = versao + 1

		ev.Descricao = fmt.Sprintf("Arquivo %q anexado à justificativa", anexo.Nome)
		ev.Alteracoes = []repo.Alteracao{{Campo: "anexos", Antes: fmt.Sprint(len(j.Anexos) - 1), Depois: fmt.Sprint(len(j.Anexos))}}
		atualizada = j
		return nil
	})
	if err != nil {
		return repo.Justificativa{}, err
	}
	return atualizada, nil
}

// Aprovar decide a justificativa pendente e marca como justificados os
// registros de frequência do solicitante no período.
func (s *Service) Aprovar(ctx context.Context, actor authz.Actor, id uuid.UUID, comentario string) (repo.Justificativa, error) {
	ev := auditoria.Evento{
		Ator:      actor,
		Acao:      "Aprovar justificativa",
		Categoria: repo.CategoriaJustificativa,
		Tipo:      repo.AcaoApprove,
		Descricao: "Justificativa aprovada",
		AlvoID:    id.String(),
	}
	if !authz.Authorize(actor, authz.CanApproveJustifications) {
		return repo.Justificativa{}, s.recorder.Falha(ctx, ev, apperr.Unauthorized(authz.CanApproveJustifications))
	}

	var (
		decidida    repo.Justificativa
		solicitante repo.Usuario
	)
	err := s.recorder.Executar(ctx, ev, func(ctx context.Context, q repo.Querier, ev *auditoria.Evento) error {
		j, err := q.GetJustificativaForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if j.Status != repo.JustificativaPendente {
			return apperr.InvalidTransition(string(j.Status), string(repo.JustificativaAprovada))
		}

		var d auditoria.Diff
		d.Campo("status", string(j.Status), string(repo.JustificativaAprovada))
		if err := s.decidir(ctx, q, &j, actor, repo.JustificativaAprovada, strings.TrimSpace(comentario)); err != nil {
			return err
		}

		n, err := justificarRegistros(ctx, q, j, *j.DecididoEm, &d)
		if err != nil {
			return err
		}
		if solicitante, err = q.GetUsuario(ctx, j.SolicitanteID); err != nil {
			return err
		}

		ev.Descricao = fmt.Sprintf("Justificativa aprovada (%s, %s, %d registros justificados)", j.Tipo, descreverPeriodo(j), n)
		ev.Alteracoes = d.Lista()
		decidida = j
		return nil
	})
	if err != nil {
		return repo.Justificativa{}, err
	}

	obs.JustificationDecisions.WithLabelValues(string(repo.JustificativaAprovada)).Inc()
	log.Info().Str("justificativa_id", id.String()).Str("decidido_por", actor.ID.String()).Msg("justificativa aprovada")

	mensagem := fmt.Sprintf("Sua justificativa (%s) para %s foi aprovada.", rotulo(decidida.Tipo), descreverPeriodo(decidida))
	if decidida.Motivo != "" {
		mensagem += " Comentário: " + decidida.Motivo
	}
	s.publisher.Publish(ctx, notify.Evento{
		Tipo:          notify.TipoJustificativaAprovada,
		Titulo:        "Justificativa aprovada",
		Mensagem:      mensagem,
		Destinatarios: destinatarios(solicitante),
		Dados:         map[string]string{"justificativa_id": id.String()},
	})
	return decidida, nil
}

// Rejeitar decide a justificativa pendente. O motivo é obrigatório.
func (s *Service) Rejeitar(ctx context.Context, actor authz.Actor, id uuid.UUID, motivo string) (repo.Justificativa, error) {
	motivo = strings.TrimSpace(motivo)
	ev := auditoria.Evento{
		Ator:      actor,
		Acao:      "Rejeitar justificativa",
		Categoria: repo.CategoriaJustificativa,
		Tipo:      repo.AcaoReject,
		Descricao: "Justificativa rejeitada",
		AlvoID:    id.String(),
	}
	if !authz.Authorize(actor, authz.CanApproveJustifications) {
		return repo.Justificativa{}, s.recorder.Falha(ctx, ev, apperr.Unauthorized(authz.CanApproveJustifications))
	}
	if motivo == "" {
		return repo.Justificativa{}, s.recorder.Falha(ctx, ev,
			apperr.ValidationFields("motivo obrigatório", map[string]string{"motivo": "obrigatório"}))
	}

	var (
		decidida    repo.Justificativa
		solicitante repo.Usuario
	)
	err := s.recorder.Executar(ctx, ev, func(ctx context.Context, q repo.Querier, ev *auditoria.Evento) error {
		j, err := q.GetJustificativaForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if j.Status != repo.JustificativaPendente {
			return apperr.InvalidTransition(string(j.Status), string(repo.JustificativaRejeitada))
		}

		var d auditoria.Diff
		d.Campo("status", string(j.Status), string(repo.JustificativaRejeitada))
		d.Campo("motivo", "", motivo)
		if err := s.decidir(ctx, q, &j, actor, repo.JustificativaRejeitada, motivo); err != nil {
			return err
		}
		if solicitante, err = q.GetUsuario(ctx, j.SolicitanteID); err != nil {
			return err
		}

		ev.Descricao = fmt.Sprintf("Justificativa rejeitada (%s, %s). Motivo: %s", j.Tipo, descreverPeriodo(j), motivo)
		ev.Alteracoes = d.Lista()
		decidida = j
		return nil
	})
	if err != nil {
		return repo.Justificativa{}, err
	}

	obs.JustificationDecisions.WithLabelValues(string(repo.JustificativaRejeitada)).Inc()
	s.publisher.Publish(ctx, notify.Evento{
		Tipo:          notify.TipoJustificativaRejeitada,
		Titulo:        "Justificativa rejeitada",
		Mensagem:      fmt.Sprintf("Sua justificativa (%s) para %s foi rejeitada. Motivo: %s", rotulo(decidida.Tipo), descreverPeriodo(decidida), motivo),
		Destinatarios: destinatarios(solicitante),
		Dados:         map[string]string{"justificativa_id": id.String()},
	})
	return decidida, nil
}

func (s *Service) decidir(ctx context.Context, q repo.Querier, j *repo.Justificativa, actor authz.Actor, status repo.StatusJustificativa, motivo string) error {
	agora := s.now()
	decisor := actor.ID
	versao := j.Versao

	j.Status = status
	j.DecididoPor = &decisor
	j.DecididoEm = &agora
	j.Motivo = motivo
	if err := q.UpdateJustificativa(ctx, *j, versao); err != nil {
		return err
	}
	j.Versao = versao + 1
	return nil
}

// justificarRegistros marca como justificado cada registro do solicitante no
// período com o instante da decisão e acumula as alterações em d.
func justificarRegistros(ctx context.Context, q repo.Querier, j repo.Justificativa, agora time.Time, d *auditoria.Diff) (int, error) {
	inicio, fim := j.DataInicio, j.Fim()
	solicitante := j.SolicitanteID

	var registros []repo.RegistroFrequencia
	for offset := 0; ; offset += pageSize {
		page, err := q.ListRegistros(ctx, repo.RegistroFilter{
			UsuarioID: &solicitante,
			Inicio:    &inicio,
			Fim:       &fim,
			Limit:     pageSize,
			Offset:    offset,
		})
		if err != nil {
			return 0, err
		}
		registros = append(registros, page...)
		if len(page) < pageSize {
			break
		}
	}

	var n int
	for _, r := range registros {
		if !j.Cobre(r.Data) {
			continue
		}
		d.Campo(fmt.Sprintf("registro[%s].status", r.Data.Format(dataFormato)), string(r.Status), string(repo.StatusJustificado))
		if r.Status == repo.StatusJustificado {
			continue
		}
		r.Status = repo.StatusJustificado
		r.AtualizadoEm = agora
		if err := q.UpdateRegistro(ctx, r); err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// Obter devolve a justificativa se o ator for o solicitante ou puder
// avaliar/consultar frequências.
func (s *Service) Obter(ctx context.Context, actor authz.Actor, id uuid.UUID) (repo.Justificativa, error) {
	var j repo.Justificativa
	err := s.store.View(ctx, func(ctx context.Context, q repo.Querier) error {
		var err error
		j, err = q.GetJustificativa(ctx, id)
		return err
	})
	if err != nil {
		return repo.Justificativa{}, err
	}
	if j.SolicitanteID != actor.ID && !podeVerTodas(actor) {
		return repo.Justificativa{}, apperr.Unauthorized(authz.CanApproveJustifications)
	}
	return j, nil
}

// Filtro restringe Listar.
type Filtro struct {
	SolicitanteID *uuid.UUID
	Status        []repo.StatusJustificativa
	Tipo          *repo.TipoJustificativa
	Inicio        *time.Time
	Fim           *time.Time
	Limit         int
	Offset        int
}

// Listar devolve as justificativas do próprio ator, ou de todos para quem
// pode avaliar/consultar frequências.
func (s *Service) Listar(ctx context.Context, actor authz.Actor, filtro Filtro) ([]repo.Justificativa, error) {
	if filtro.Inicio != nil && filtro.Fim != nil && filtro.Fim.Before(*filtro.Inicio) {
		return nil, apperr.Validation("período inválido")
	}
	if !podeVerTodas(actor) {
		id := actor.ID
		filtro.SolicitanteID = &id
	}

	var out []repo.Justificativa
	err := s.store.View(ctx, func(ctx context.Context, q repo.Querier) error {
		var err error
		out, err = q.ListJustificativas(ctx, repo.JustificativaFilter{
			SolicitanteID: filtro.SolicitanteID,
			Status:        filtro.Status,
			Tipo:          filtro.Tipo,
			Inicio:        filtro.Inicio,
			Fim:           filtro.Fim,
			Limit:         filtro.Limit,
			Offset:        filtro.Offset,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func podeVerTodas(actor authz.Actor) bool {
	return authz.Authorize(actor, authz.CanApproveJustifications) || authz.Authorize(actor, authz.CanViewAllFrequency)
}

func descreverPeriodo(j repo.Justificativa) string {
	if j.DataFim == nil || j.DataFim.Equal(j.DataInicio) {
		return j.DataInicio.Format(dataExibicao)
	}
	return j.DataInicio.Format(dataExibicao) + " a " + j.DataFim.Format(dataExibicao)
}

func rotulo(t repo.TipoJustificativa) string {
	switch t {
	case repo.TipoFalta:
		return "justificativa de falta"
	case repo.TipoAtraso:
		return "justificativa de atraso"
	case repo.TipoAtestado:
		return "atestado"
	}
	return string(t)
}

func destinatarios(usuarios ...repo.Usuario) []notify.Destinatario {
	out := make([]notify.Destinatario, 0, len(usuarios))
	vistos := map[uuid.UUID]bool{}
	for _, u := range usuarios {
		if vistos[u.ID] || u.Email == "" {
			continue
		}
		vistos[u.ID] = true
		out = append(out, notify.Destinatario{Nome: u.Nome, Email: u.Email})
	}
	return out
}
