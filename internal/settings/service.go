// Package settings mantém a configuração de turnos, tolerância e verificação
// de presença, com cache em Redis.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/frequencia/internal/apperr"
	"github.com/gestaozabele/frequencia/internal/auditoria"
	"github.com/gestaozabele/frequencia/internal/authz"
	"github.com/gestaozabele/frequencia/internal/repo"
	"github.com/gestaozabele/frequencia/internal/util"
)

const (
	cacheKey = "frequencia:config"
	cacheTTL = 60 * time.Second
)

// ToleranciasPermitidas lista os valores aceitos de tolerância em minutos.
var ToleranciasPermitidas = []int{5, 10, 15, 30}

var modosRegistro = map[string]struct{}{"qrcode": {}, "manual": {}, "biometric": {}}

type redisCommander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Service lê e altera a configuração de frequência.
type Service struct {
	store    repo.Store
	redis    redisCommander
	recorder *auditoria.Recorder
	now      func() time.Time
}

// NewService cria o serviço. redisClient pode ser nil (sem cache).
func NewService(store repo.Store, redisClient redisCommander, recorder *auditoria.Recorder) *Service {
	return &Service{store: store, redis: redisClient, recorder: recorder, now: util.Now}
}

// AtualizarInput traz apenas os campos a alterar.
type AtualizarInput struct {
	ToleranciaMinutos *int                `json:"tolerancia_minutos"`
	FusoHorario       *string             `json:"fuso_horario"`
	ModoRegistro      *string             `json:"modo_registro"`
	Turnos            []repo.TurnoDiario  `json:"turnos"`
	TurnosNoturnos    []repo.TurnoNoturno `json:"turnos_noturnos"`
	Geofences         []repo.Geofence     `json:"geofences"`
	RedesWiFi         []string            `json:"redes_wifi"`
}

// Atual devolve a configuração vigente sem checar permissões. Usada pela
// derivação de status e pelo registro de ponto.
func (s *Service) Atual(ctx context.Context) (repo.ConfigFrequencia, error) {
	if cfg, ok := s.fromCache(ctx); ok {
		return cfg, nil
	}

	var cfg repo.ConfigFrequencia
	err := s.store.View(ctx, func(ctx context.Context, q repo.Querier) error {
		var err error
		cfg, err = carregar(ctx, q)
		return err
	})
	if err != nil {
		return repo.ConfigFrequencia{}, err
	}
	s.toCache(ctx, cfg)
	return cfg, nil
}

// Obter devolve a configuração para exibição; exige canViewSettings.
func (s *Service) Obter(ctx context.Context, actor authz.Actor) (repo.ConfigFrequencia, error) {
	if !authz.Authorize(actor, authz.CanViewSettings) {
		return repo.ConfigFrequencia{}, apperr.Unauthorized(authz.CanViewSettings)
	}
	return s.Atual(ctx)
}

// Atualizar aplica input sobre a configuração atual; exige canManageSettings.
func (s *Service) Atualizar(ctx context.Context, actor authz.Actor, input AtualizarInput) (repo.ConfigFrequencia, error) {
	ev := auditoria.Evento{
		Ator:      actor,
		Acao:      "Atualizar configurações",
		Categoria: repo.CategoriaSistema,
		Tipo:      repo.AcaoUpdate,
		Descricao: "Configurações de frequência atualizadas",
		AlvoID:    "configuracoes",
	}
	if !authz.Authorize(actor, authz.CanManageSettings) {
		return repo.ConfigFrequencia{}, s.recorder.Falha(ctx, ev, apperr.Unauthorized(authz.CanManageSettings))
	}

	var salvo repo.ConfigFrequencia
	err := s.recorder.Executar(ctx, ev, func(ctx context.Context, q repo.Querier, ev *auditoria.Evento) error {
		atual, err := carregar(ctx, q)
		if err != nil {
			return err
		}
		novo := aplicar(atual, input)
		if err := Validar(novo); err != nil {
			return err
		}
		novo.AtualizadoEm = s.now()
		id := actor.ID
		novo.AtualizadoPor = &id

		if err := q.SaveConfig(ctx, novo); err != nil {
			return err
		}
		ev.Alteracoes = diff(atual, novo)
		salvo = novo
		return nil
	})
	if err != nil {
		return repo.ConfigFrequencia{}, err
	}

	s.invalidate(ctx)
	return salvo, nil
}

// Validar confere tolerância, horários, fuso, modo e geofences.
func Validar(cfg repo.ConfigFrequencia) error {
	fields := map[string]string{}

	if !toleranciaValida(cfg.ToleranciaMinutos) {
		fields["tolerancia_minutos"] = "valores aceitos: 5, 10, 15 ou 30"
	}
	if _, err := time.LoadLocation(cfg.FusoHorario); err != nil || cfg.FusoHorario == "" {
		fields["fuso_horario"] = "fuso horário IANA inválido"
	}
	if _, ok := modosRegistro[cfg.ModoRegistro]; !ok {
		fields["modo_registro"] = "valores aceitos: qrcode, manual ou biometric"
	}

	vistos := map[time.Weekday]bool{}
	for i, t := range cfg.Turnos {
		key := fmt.Sprintf("turnos[%d]", i)
		if t.DiaSemana < time.Sunday || t.DiaSemana > time.Saturday || vistos[t.DiaSemana] {
			fields[key] = "dia da semana inválido ou repetido"
			continue
		}
		vistos[t.DiaSemana] = true
		if !t.Ativo {
			continue
		}
		if !util.ValidHHMM(t.Inicio) || !util.ValidHHMM(t.Fim) {
			fields[key] = "horários devem estar no formato HH:MM"
		} else if t.Fim <= t.Inicio {
			fields[key] = "fim deve ser posterior ao início"
		}
	}

	for i, t := range cfg.TurnosNoturnos {
		key := fmt.Sprintf("turnos_noturnos[%d]", i)
		switch {
		case t.ID == uuid.Nil:
			fields[key] = "id obrigatório"
		case strings.TrimSpace(t.Nome) == "":
			fields[key] = "nome obrigatório"
		case !util.ValidHHMM(t.Inicio) || !util.ValidHHMM(t.Fim):
			fields[key] = "horários devem estar no formato HH:MM"
		case t.Inicio == t.Fim:
			fields[key] = "início e fim não podem ser iguais"
		}
	}

	for i, g := range cfg.Geofences {
		key := fmt.Sprintf("geofences[%d]", i)
		switch {
		case strings.TrimSpace(g.Campus) == "":
			fields[key] = "campus obrigatório"
		case g.RaioMetros <= 0:
			fields[key] = "raio deve ser positivo"
		case g.Lat < -90 || g.Lat > 90 || g.Lng < -180 || g.Lng > 180:
			fields[key] = "coordenadas inválidas"
		}
	}

	if len(fields) > 0 {
		return apperr.ValidationFields("configuração inválida", fields)
	}
	return nil
}

func toleranciaValida(min int) bool {
	for _, v := range ToleranciasPermitidas {
		if v == min {
			return true
		}
	}
	return false
}

func carregar(ctx context.Context, q repo.Querier) (repo.ConfigFrequencia, error) {
	cfg, err := q.GetConfig(ctx)
	if errors.Is(err, repo.ErrNotFound) {
		return repo.DefaultConfig(), nil
	}
	if err != nil {
		return repo.ConfigFrequencia{}, err
	}
	if cfg.ToleranciaMinutos == 0 {
		cfg.ToleranciaMinutos = repo.DefaultToleranciaMinutos
	}
	if cfg.FusoHorario == "" {
		cfg.FusoHorario = repo.DefaultFusoHorario
	}
	return cfg, nil
}

func aplicar(cfg repo.ConfigFrequencia, in AtualizarInput) repo.ConfigFrequencia {
	if in.ToleranciaMinutos != nil {
		cfg.ToleranciaMinutos = *in.ToleranciaMinutos
	}
	if in.FusoHorario != nil {
		cfg.FusoHorario = strings.TrimSpace(*in.FusoHorario)
	}
	if in.ModoRegistro != nil {
		cfg.ModoRegistro = strings.ToLower(strings.TrimSpace(*in.ModoRegistro))
	}
	if in.Turnos != nil {
		cfg.Turnos = in.Turnos
	}
	if in.TurnosNoturnos != nil {
		cfg.TurnosNoturnos = in.TurnosNoturnos
	}
	if in.Geofences != nil {
		cfg.Geofences = in.Geofences
	}
	if in.RedesWiFi != nil {
		redes := make([]string, 0, len(in.RedesWiFi))
		for _, r := range in.RedesWiFi {
			if r = strings.TrimSpace(r); r != "" {
				redes = append(redes, r)
			}
		}
		cfg.RedesWiFi = redes
	}
	return cfg
}

func diff(antes, depois repo.ConfigFrequencia) []repo.Alteracao {
	var d auditoria.Diff
	d.Campo("tolerancia_minutos", strconv.Itoa(antes.ToleranciaMinutos), strconv.Itoa(depois.ToleranciaMinutos))
	d.Campo("fuso_horario", antes.FusoHorario, depois.FusoHorario)
	d.Campo("modo_registro", antes.ModoRegistro, depois.ModoRegistro)
	d.Campo("turnos", asJSON(antes.Turnos), asJSON(depois.Turnos))
	d.Campo("turnos_noturnos", asJSON(antes.TurnosNoturnos), asJSON(depois.TurnosNoturnos))
	d.Campo("geofences", asJSON(antes.Geofences), asJSON(depois.Geofences))
	d.Campo("redes_wifi", strings.Join(antes.RedesWiFi, ","), strings.Join(depois.RedesWiFi, ","))
	return d.Lista()
}

func asJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func (s *Service) fromCache(ctx context.Context) (repo.ConfigFrequencia, bool) {
	if s.redis == nil {
		return repo.ConfigFrequencia{}, false
	}
	raw, err := s.redis.Get(ctx, cacheKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("settings: leitura do cache falhou")
		}
		return repo.ConfigFrequencia{}, false
	}
	var cfg repo.ConfigFrequencia
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return repo.ConfigFrequencia{}, false
	}
	return cfg, true
}

func (s *Service) toCache(ctx context.Context, cfg repo.ConfigFrequencia) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, cacheKey, payload, cacheTTL).Err(); err != nil {
		log.Warn().Err(err).Msg("settings: escrita do cache falhou")
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, cacheKey).Err(); err != nil {
		log.Warn().Err(err).Msg("settings: invalidação do cache falhou")
	}
}
