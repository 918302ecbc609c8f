package frequencia

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/frequencia/internal/apperr"
	"github.com/gestaozabele/frequencia/internal/auditoria"
	"github.com/gestaozabele/frequencia/internal/auth"
	"github.com/gestaozabele/frequencia/internal/authz"
	"github.com/gestaozabele/frequencia/internal/obs"
	"github.com/gestaozabele/frequencia/internal/repo"
	"github.com/gestaozabele/frequencia/internal/util"
)

const (
	pageSize        = 500
	maxDiasPeriodo  = 366
	horaFormato     = "15:04"
	dataFormato     = "2006-01-02"
	defaultTotemTTL = 60 * time.Second
)

// ConfigProvider devolve a configuração de turnos vigente.
type ConfigProvider interface {
	Atual(ctx context.Context) (repo.ConfigFrequencia, error)
}

// TotemTokens emite e valida os QR codes exibidos no totem.
type TotemTokens interface {
	GenerateTotemToken(campus string, ttl time.Duration) (string, time.Time, error)
	ParseTotemToken(token string) (*auth.TotemClaims, error)
}

// Service registra entradas e saídas e responde consultas de frequência.
type Service struct {
	store     repo.Store
	recorder  *auditoria.Recorder
	config    ConfigProvider
	tokens    TotemTokens
	totemTTL  time.Duration
	simulacao bool
	now       func() time.Time
}

// Option ajusta o Service.
type Option func(*Service)

// WithTotemTTL define a validade dos QR codes.
func WithTotemTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.totemTTL = ttl
		}
	}
}

// WithSimulacao aceita registros sem método verificado.
func WithSimulacao(enabled bool) Option {
	return func(s *Service) { s.simulacao = enabled }
}

// WithClock troca o relógio usado nas derivações.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService cria o serviço de frequência.
func NewService(store repo.Store, recorder *auditoria.Recorder, config ConfigProvider, tokens TotemTokens, opts ...Option) *Service {
	s := &Service{
		store:    store,
		recorder: recorder,
		config:   config,
		tokens:   tokens,
		totemTTL: defaultTotemTTL,
		now:      util.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EntradaInput traz as provas de presença enviadas pelo cliente.
type EntradaInput struct {
	QRToken     string            `json:"qr_token"`
	Localizacao *repo.Localizacao `json:"localizacao"`
	SSID        string            `json:"ssid"`
}

// QRCode é o token exibido pelo totem.
type QRCode struct {
	Token    string    `json:"token"`
	Campus   string    `json:"campus"`
	ExpiraEm time.Time `json:"expira_em"`
}

// EmitirQRCode gera um token de curta duração vinculado ao campus.
func (s *Service) EmitirQRCode(ctx context.Context, campus string) (QRCode, error) {
	campus = strings.TrimSpace(campus)
	if campus == "" {
		return QRCode{}, apperr.ValidationFields("dados inválidos", map[string]string{"campus": "obrigatório"})
	}
	token, exp, err := s.tokens.GenerateTotemToken(campus, s.totemTTL)
	if err != nil {
		return QRCode{}, err
	}
	return QRCode{Token: token, Campus: campus, ExpiraEm: exp}, nil
}

// RegistrarEntrada cria o registro do dia com o status derivado no momento.
func (s *Service) RegistrarEntrada(ctx context.Context, actor authz.Actor, input EntradaInput) (repo.RegistroFrequencia, error) {
	ev := auditoria.Evento{
		Ator:      actor,
		Acao:      "Registrar entrada",
		Categoria: repo.CategoriaFrequencia,
		Tipo:      repo.AcaoCreate,
		Descricao: "Entrada registrada",
	}

	cfg, err := s.config.Atual(ctx)
	if err != nil {
		return repo.RegistroFrequencia{}, s.recorder.Falha(ctx, ev, err)
	}

	var criado repo.RegistroFrequencia
	err = s.recorder.Executar(ctx, ev, func(ctx context.Context, q repo.Querier, ev *auditoria.Evento) error {
		usuario, err := q.GetUsuario(ctx, actor.ID)
		if err != nil {
			return err
		}
		if !usuario.Ativo {
			return apperr.Validation("usuário inativo")
		}

		metodos, err := s.verificar(cfg, usuario, input)
		if err != nil {
			return err
		}

		agora := s.now()
		data, janela := turnoVigente(cfg, usuario, agora)
		if _, err := q.GetRegistroAberto(ctx, usuario.ID, data); err == nil {
			return apperr.Validation("já existe entrada sem saída registrada hoje")
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}

		justificativas, err := aprovadas(ctx, q, &usuario.ID, data, data)
		if err != nil {
			return err
		}

		entrada := agora
		reg := repo.RegistroFrequencia{
			ID:           uuid.New(),
			UsuarioID:    usuario.ID,
			Data:         data,
			Entrada:      &entrada,
			Metodos:      metodos,
			Localizacao:  input.Localizacao,
			CriadoEm:     agora,
			AtualizadoEm: agora,
		}
		reg.Status = DeriveStatus(reg, janela, cfg.ToleranciaMinutos, justificativas, agora)

		if err := q.InsertRegistro(ctx, reg); err != nil {
			return err
		}
		ev.AlvoID = reg.ID.String()
		ev.Descricao = fmt.Sprintf("Entrada registrada às %s (%s)", entrada.In(cfg.Location()).Format(horaFormato), reg.Status)
		ev.Alteracoes = []repo.Alteracao{
			{Campo: "entrada", Depois: entrada.Format(time.RFC3339)},
			{Campo: "status", Depois: string(reg.Status)},
		}
		criado = reg
		return nil
	})
	if err != nil {
		return repo.RegistroFrequencia{}, err
	}

	obs.Checkins.WithLabelValues(string(criado.Status)).Inc()
	log.Info().Str("usuario_id", criado.UsuarioID.String()).Str("status", string(criado.Status)).Msg("entrada registrada")
	return criado, nil
}

// turnoVigente devolve o dia de referência e a janela de uma entrada em agora.
// Depois da meia-noite, um turno de ontem que ainda não terminou prevalece.
func turnoVigente(cfg repo.ConfigFrequencia, usuario repo.Usuario, agora time.Time) (time.Time, Janela) {
	hoje := DataCivil(cfg, agora)
	ontem := hoje.AddDate(0, 0, -1)
	if j := ResolverJanela(cfg, usuario, ontem); !j.SemTurno && agora.Before(j.Fim) {
		return ontem, j
	}
	return hoje, ResolverJanela(cfg, usuario, hoje)
}

// verificar devolve os métodos comprovados. Sem nenhum, só o modo de
// simulação permite o registro (como manual).
func (s *Service) verificar(cfg repo.ConfigFrequencia, usuario repo.Usuario, input EntradaInput) ([]repo.MetodoVerificacao, error) {
	fields := map[string]string{}
	metodos := make([]repo.MetodoVerificacao, 0, 3)

	if token := strings.TrimSpace(input.QRToken); token != "" {
		claims, err := s.tokens.ParseTotemToken(token)
		switch {
		case err != nil:
			fields["qr_token"] = "QR code inválido ou expirado"
		case !strings.EqualFold(claims.Campus, usuario.Campus):
			fields["qr_token"] = "QR code de outro campus"
		default:
			metodos = append(metodos, repo.MetodoQRCode)
		}
	}

	if input.Localizacao != nil {
		switch {
		case !coordenadasValidas(*input.Localizacao):
			return nil, apperr.ValidationFields("dados inválidos", map[string]string{"localizacao": "coordenadas inválidas"})
		case DentroDaGeofence(cfg.Geofences, usuario.Campus, *input.Localizacao):
			metodos = append(metodos, repo.MetodoGeolocalizacao)
		default:
			fields["localizacao"] = "fora da área permitida"
		}
	}

	if input.SSID != "" {
		if redePermitida(cfg.RedesWiFi, input.SSID) {
			metodos = append(metodos, repo.MetodoWiFi)
		} else {
			fields["ssid"] = "rede não autorizada"
		}
	}

	if len(metodos) > 0 {
		return metodos, nil
	}
	if s.simulacao {
		return []repo.MetodoVerificacao{repo.MetodoManual}, nil
	}
	if len(fields) == 0 {
		fields["metodos"] = "informe QR code, localização ou rede Wi-Fi"
	}
	return nil, apperr.ValidationFields("presença não verificada", fields)
}

// RegistrarSaida fecha a entrada em aberto de hoje (ou de ontem, para turnos
// que cruzam a meia-noite).
func (s *Service) RegistrarSaida(ctx context.Context, actor authz.Actor) (repo.RegistroFrequencia, error) {
	ev := auditoria.Evento{
		Ator:      actor,
		Acao:      "Registrar saída",
		Categoria: repo.CategoriaFrequencia,
		Tipo:      repo.AcaoUpdate,
		Descricao: "Saída registrada",
	}

	cfg, err := s.config.Atual(ctx)
	if err != nil {
		return repo.RegistroFrequencia{}, s.recorder.Falha(ctx, ev, err)
	}

	var atualizado repo.RegistroFrequencia
	err = s.recorder.Executar(ctx, ev, func(ctx context.Context, q repo.Querier, ev *auditoria.Evento) error {
		agora := s.now()
		hoje := DataCivil(cfg, agora)

		reg, err := q.GetRegistroAberto(ctx, actor.ID, hoje)
		if errors.Is(err, repo.ErrNotFound) {
			reg, err = q.GetRegistroAberto(ctx, actor.ID, hoje.AddDate(0, 0, -1))
		}
		if errors.Is(err, repo.ErrNotFound) {
			return apperr.Validation("nenhuma entrada em aberto")
		}
		if err != nil {
			return err
		}

		saida := agora
		reg.Saida = &saida
		reg.AtualizadoEm = agora
		if err := q.UpdateRegistro(ctx, reg); err != nil {
			return err
		}
		ev.AlvoID = reg.ID.String()
		ev.Descricao = fmt.Sprintf("Saída registrada às %s", saida.In(cfg.Location()).Format(horaFormato))
		ev.Alteracoes = []repo.Alteracao{{Campo: "saida", Depois: saida.Format(time.RFC3339)}}
		atualizado = reg
		return nil
	})
	if err != nil {
		return repo.RegistroFrequencia{}, err
	}
	return atualizado, nil
}

// EditarStatus sobrescreve o status de um registro; exige canEditFrequency.
func (s *Service) EditarStatus(ctx context.Context, actor authz.Actor, id uuid.UUID, status repo.StatusFrequencia, observacao string) (repo.RegistroFrequencia, error) {
	ev := auditoria.Evento{
		Ator:      actor,
		Acao:      "Editar frequência",
		Categoria: repo.CategoriaFrequencia,
		Tipo:      repo.AcaoUpdate,
		Descricao: "Status de frequência alterado",
		AlvoID:    id.String(),
	}
	if !authz.Authorize(actor, authz.CanEditFrequency) {
		return repo.RegistroFrequencia{}, s.recorder.Falha(ctx, ev, apperr.Unauthorized(authz.CanEditFrequency))
	}

	var atualizado repo.RegistroFrequencia
	err := s.recorder.Executar(ctx, ev, func(ctx context.Context, q repo.Querier, ev *auditoria.Evento) error {
		if !status.Valid() {
			return apperr.ValidationFields("dados inválidos", map[string]string{"status": "valores aceitos: presente, atrasado, ausente ou justificado"})
		}
		reg, err := q.GetRegistro(ctx, id)
		if err != nil {
			return err
		}

		var d auditoria.Diff
		d.Campo("status", string(reg.Status), string(status))
		d.Campo("observacao", reg.Observacao, observacao)

		reg.Status = status
		reg.StatusManual = true
		reg.Observacao = observacao
		reg.AtualizadoEm = s.now()
		if err := q.UpdateRegistro(ctx, reg); err != nil {
			return err
		}
		ev.Alteracoes = d.Lista()
		atualizado = reg
		return nil
	})
	if err != nil {
		return repo.RegistroFrequencia{}, err
	}
	return atualizado, nil
}

// Filtro restringe Listar.
type Filtro struct {
	UsuarioID *uuid.UUID
	Setor     string
	Status    []repo.StatusFrequencia
	Inicio    *time.Time
	Fim       *time.Time
	Limit     int
	Offset    int
}

// Listar devolve registros no escopo do ator com o status re-derivado (exceto
// quando editado manualmente).
func (s *Service) Listar(ctx context.Context, actor authz.Actor, filtro Filtro) ([]repo.RegistroFrequencia, error) {
	if filtro.Inicio != nil && filtro.Fim != nil && filtro.Fim.Before(*filtro.Inicio) {
		return nil, apperr.Validation("período inválido")
	}
	cfg, err := s.config.Atual(ctx)
	if err != nil {
		return nil, err
	}

	var out []repo.RegistroFrequencia
	err = s.store.View(ctx, func(ctx context.Context, q repo.Querier) error {
		rf, err := escopo(ctx, q, actor, filtro, authz.CanViewAllFrequency, authz.CanViewFrequency)
		if err != nil {
			return err
		}

		var registros []repo.RegistroFrequencia
		if len(filtro.Status) == 0 {
			rf.Limit, rf.Offset = filtro.Limit, filtro.Offset
			registros, err = q.ListRegistros(ctx, rf)
		} else {
			registros, err = todosRegistros(ctx, q, rf)
		}
		if err != nil {
			return err
		}

		deriv, err := s.novoDerivador(ctx, q, cfg, registros, filtro.Inicio, filtro.Fim)
		if err != nil {
			return err
		}
		for i := range registros {
			registros[i].Status = deriv.status(registros[i])
		}

		if len(filtro.Status) > 0 {
			registros = filtrarStatus(registros, filtro.Status)
			registros = paginar(registros, filtro.Limit, filtro.Offset)
		}
		out = registros
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// escopo monta o filtro de repositório respeitando a visibilidade do ator:
// tudo com all, o próprio setor com setor e apenas os próprios registros
// caso contrário.
func escopo(ctx context.Context, q repo.Querier, actor authz.Actor, filtro Filtro, all, setor authz.Capability) (repo.RegistroFilter, error) {
	rf := repo.RegistroFilter{
		UsuarioID: filtro.UsuarioID,
		Setor:     filtro.Setor,
		Inicio:    filtro.Inicio,
		Fim:       filtro.Fim,
	}
	switch {
	case authz.Authorize(actor, all):
	case authz.Authorize(actor, setor):
		eu, err := q.GetUsuario(ctx, actor.ID)
		if err != nil {
			return rf, err
		}
		rf.Setor = eu.Setor
	default:
		id := actor.ID
		rf.UsuarioID = &id
		rf.Setor = ""
	}
	return rf, nil
}

func todosRegistros(ctx context.Context, q repo.Querier, rf repo.RegistroFilter) ([]repo.RegistroFrequencia, error) {
	var out []repo.RegistroFrequencia
	for offset := 0; ; offset += pageSize {
		rf.Limit, rf.Offset = pageSize, offset
		page, err := q.ListRegistros(ctx, rf)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < pageSize {
			return out, nil
		}
	}
}

func aprovadas(ctx context.Context, q repo.Querier, solicitante *uuid.UUID, inicio, fim time.Time) ([]repo.Justificativa, error) {
	var out []repo.Justificativa
	for offset := 0; ; offset += pageSize {
		page, err := q.ListJustificativas(ctx, repo.JustificativaFilter{
			SolicitanteID: solicitante,
			Status:        []repo.StatusJustificativa{repo.JustificativaAprovada},
			Inicio:        &inicio,
			Fim:           &fim,
			Limit:         pageSize,
			Offset:        offset,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < pageSize {
			return out, nil
		}
	}
}

// derivador guarda usuários e justificativas aprovadas para re-derivar status.
type derivador struct {
	cfg            repo.ConfigFrequencia
	agora          time.Time
	usuarios       map[uuid.UUID]repo.Usuario
	justificativas map[uuid.UUID][]repo.Justificativa
}

func (s *Service) novoDerivador(ctx context.Context, q repo.Querier, cfg repo.ConfigFrequencia, registros []repo.RegistroFrequencia, inicio, fim *time.Time) (*derivador, error) {
	d := &derivador{
		cfg:            cfg,
		agora:          s.now(),
		usuarios:       map[uuid.UUID]repo.Usuario{},
		justificativas: map[uuid.UUID][]repo.Justificativa{},
	}
	if len(registros) == 0 {
		return d, nil
	}

	de, ate := intervalo(registros)
	if inicio != nil && inicio.After(de) {
		de = repo.DateOnly(*inicio)
	}
	if fim != nil && fim.Before(ate) {
		ate = repo.DateOnly(*fim)
	}

	for _, r := range registros {
		if _, ok := d.usuarios[r.UsuarioID]; ok {
			continue
		}
		u, err := q.GetUsuario(ctx, r.UsuarioID)
		if err != nil {
			return nil, err
		}
		d.usuarios[u.ID] = u

		js, err := aprovadas(ctx, q, &u.ID, de, ate)
		if err != nil {
			return nil, err
		}
		d.justificativas[u.ID] = js
	}
	return d, nil
}

func (d *derivador) status(r repo.RegistroFrequencia) repo.StatusFrequencia {
	if r.StatusManual {
		return r.Status
	}
	janela := ResolverJanela(d.cfg, d.usuarios[r.UsuarioID], r.Data)
	return DeriveStatus(r, janela, d.cfg.ToleranciaMinutos, d.justificativas[r.UsuarioID], d.agora)
}

func intervalo(registros []repo.RegistroFrequencia) (time.Time, time.Time) {
	de, ate := registros[0].Data, registros[0].Data
	for _, r := range registros[1:] {
		if r.Data.Before(de) {
			de = r.Data
		}
		if r.Data.After(ate) {
			ate = r.Data
		}
	}
	return de, ate
}

func filtrarStatus(registros []repo.RegistroFrequencia, status []repo.StatusFrequencia) []repo.RegistroFrequencia {
	out := registros[:0]
	for _, r := range registros {
		for _, st := range status {
			if r.Status == st {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func paginar(registros []repo.RegistroFrequencia, limit, offset int) []repo.RegistroFrequencia {
	if limit <= 0 || limit > pageSize {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(registros) {
		return []repo.RegistroFrequencia{}
	}
	end := offset + limit
	if end > len(registros) {
		end = len(registros)
	}
	return registros[offset:end]
}

// RelatorioInput define período e setor do relatório.
type RelatorioInput struct {
	Inicio time.Time
	Fim    time.Time
	Setor  string
}

// LinhaRelatorio soma os dias de um servidor por status.
type LinhaRelatorio struct {
	UsuarioID   uuid.UUID `json:"usuario_id"`
	Nome        string    `json:"nome"`
	Setor       string    `json:"setor"`
	Presente    int       `json:"presente"`
	Atrasado    int       `json:"atrasado"`
	Ausente     int       `json:"ausente"`
	Justificado int       `json:"justificado"`
}

// Relatorio agrega a frequência do período.
type Relatorio struct {
	Inicio time.Time        `json:"inicio"`
	Fim    time.Time        `json:"fim"`
	Setor  string           `json:"setor,omitempty"`
	Linhas []LinhaRelatorio `json:"linhas"`
}

// Relatorio conta, por servidor, os dias presentes, atrasados, ausentes e
// justificados. Dias de turno sem registro contam como ausência.
func (s *Service) Relatorio(ctx context.Context, actor authz.Actor, input RelatorioInput) (Relatorio, error) {
	ev := auditoria.Evento{
		Ator:      actor,
		Acao:      "Exportar relatório",
		Categoria: repo.CategoriaFrequencia,
		Tipo:      repo.AcaoExport,
		Descricao: "Relatório de frequência gerado",
	}
	if !authz.Authorize(actor, authz.CanViewReports) {
		return Relatorio{}, s.recorder.Falha(ctx, ev, apperr.Unauthorized(authz.CanViewReports))
	}

	cfg, err := s.config.Atual(ctx)
	if err != nil {
		return Relatorio{}, s.recorder.Falha(ctx, ev, err)
	}

	var rel Relatorio
	err = s.recorder.Executar(ctx, ev, func(ctx context.Context, q repo.Querier, ev *auditoria.Evento) error {
		inicio, fim := repo.DateOnly(input.Inicio), repo.DateOnly(input.Fim)
		if input.Inicio.IsZero() || input.Fim.IsZero() || fim.Before(inicio) {
			return apperr.ValidationFields("dados inválidos", map[string]string{"periodo": "informe início e fim válidos"})
		}
		if fim.Sub(inicio) > maxDiasPeriodo*24*time.Hour {
			return apperr.ValidationFields("dados inválidos", map[string]string{"periodo": "máximo de 366 dias"})
		}

		rf, err := escopo(ctx, q, actor, Filtro{Setor: input.Setor, Inicio: &inicio, Fim: &fim}, authz.CanViewAllReports, authz.CanViewReports)
		if err != nil {
			return err
		}
		rel, err = s.montarRelatorio(ctx, q, cfg, rf, inicio, fim)
		if err != nil {
			return err
		}
		ev.Descricao = fmt.Sprintf("Relatório de frequência gerado (%s a %s, %d servidores)",
			inicio.Format(dataFormato), fim.Format(dataFormato), len(rel.Linhas))
		return nil
	})
	if err != nil {
		return Relatorio{}, err
	}
	return rel, nil
}

func (s *Service) montarRelatorio(ctx context.Context, q repo.Querier, cfg repo.ConfigFrequencia, rf repo.RegistroFilter, inicio, fim time.Time) (Relatorio, error) {
	usuarios, err := usuariosNoEscopo(ctx, q, rf)
	if err != nil {
		return Relatorio{}, err
	}
	registros, err := todosRegistros(ctx, q, rf)
	if err != nil {
		return Relatorio{}, err
	}

	porDia := map[uuid.UUID]map[time.Time][]repo.RegistroFrequencia{}
	for _, r := range registros {
		if porDia[r.UsuarioID] == nil {
			porDia[r.UsuarioID] = map[time.Time][]repo.RegistroFrequencia{}
		}
		porDia[r.UsuarioID][r.Data] = append(porDia[r.UsuarioID][r.Data], r)
	}

	agora := s.now()
	hoje := DataCivil(cfg, agora)
	rel := Relatorio{Inicio: inicio, Fim: fim, Setor: rf.Setor, Linhas: make([]LinhaRelatorio, 0, len(usuarios))}

	for _, u := range usuarios {
		js, err := aprovadas(ctx, q, &u.ID, inicio, fim)
		if err != nil {
			return Relatorio{}, err
		}
		linha := LinhaRelatorio{UsuarioID: u.ID, Nome: u.Nome, Setor: u.Setor}
		for dia := inicio; !dia.After(fim) && !dia.After(hoje); dia = dia.AddDate(0, 0, 1) {
			janela := ResolverJanela(cfg, u, dia)
			regs := porDia[u.ID][dia]
			if len(regs) == 0 {
				if janela.SemTurno {
					continue
				}
				st := DeriveStatus(repo.RegistroFrequencia{UsuarioID: u.ID, Data: dia}, janela, cfg.ToleranciaMinutos, js, agora)
				// turno ainda aberto e sem entrada: o dia não entra na contagem
				if st != repo.StatusPresente {
					linha.somar(st)
				}
				continue
			}
			// o primeiro registro do dia define o status do dia
			r := regs[len(regs)-1]
			st := r.Status
			if !r.StatusManual {
				st = DeriveStatus(r, janela, cfg.ToleranciaMinutos, js, agora)
			}
			linha.somar(st)
		}
		rel.Linhas = append(rel.Linhas, linha)
	}

	sort.Slice(rel.Linhas, func(i, j int) bool { return rel.Linhas[i].Nome < rel.Linhas[j].Nome })
	return rel, nil
}

func (l *LinhaRelatorio) somar(st repo.StatusFrequencia) {
	switch st {
	case repo.StatusPresente:
		l.Presente++
	case repo.StatusAtrasado:
		l.Atrasado++
	case repo.StatusAusente:
		l.Ausente++
	case repo.StatusJustificado:
		l.Justificado++
	}
}

func usuariosNoEscopo(ctx context.Context, q repo.Querier, rf repo.RegistroFilter) ([]repo.Usuario, error) {
	if rf.UsuarioID != nil {
		u, err := q.GetUsuario(ctx, *rf.UsuarioID)
		if err != nil {
			return nil, err
		}
		if rf.Setor != "" && !strings.EqualFold(u.Setor, rf.Setor) {
			return nil, nil
		}
		return []repo.Usuario{u}, nil
	}

	var out []repo.Usuario
	for offset := 0; ; offset += pageSize {
		page, err := q.ListUsuarios(ctx, repo.UsuarioFilter{Setor: rf.Setor, Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		for _, u := range page {
			if u.Ativo {
				out = append(out, u)
			}
		}
		if len(page) < pageSize {
			return out, nil
		}
	}
}
