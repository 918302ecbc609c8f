package repo

import (
	"time"

	"github.com/google/uuid"

	"github.com/gestaozabele/frequencia/internal/authz"
)

// Usuario representa servidor da instituição.
type Usuario struct {
	ID             uuid.UUID  `json:"id"`
	Nome           string     `json:"nome"`
	Email          string     `json:"email"`
	Papel          authz.Role `json:"papel"`
	Campus         string     `json:"campus"`
	Setor          string     `json:"setor"`
	Matricula      string     `json:"matricula"`
	Telefone       string     `json:"telefone,omitempty"`
	CoordenadorID  *uuid.UUID `json:"coordenador_id,omitempty"`
	CargaHoraria   int        `json:"carga_horaria"`
	TurnoNoturnoID *uuid.UUID `json:"turno_noturno_id,omitempty"`
	Ativo          bool       `json:"ativo"`
	SenhaHash      string     `json:"-"`
	CriadoEm       time.Time  `json:"criado_em"`
	AtualizadoEm   time.Time  `json:"atualizado_em"`
}

// Actor converte o usuário no ator usado pelas checagens de autorização.
func (u Usuario) Actor() authz.Actor {
	return authz.Actor{ID: u.ID, Role: u.Papel}
}

// StatusFrequencia é o status exibido de um registro de ponto.
type StatusFrequencia string

const (
	StatusPresente    StatusFrequencia = "presente"
	StatusAtrasado    StatusFrequencia = "atrasado"
	StatusAusente     StatusFrequencia = "ausente"
	StatusJustificado StatusFrequencia = "justificado"
)

// Valid indica se o status pertence ao enum.
func (s StatusFrequencia) Valid() bool {
	switch s {
	case StatusPresente, StatusAtrasado, StatusAusente, StatusJustificado:
		return true
	}
	return false
}

// MetodoVerificacao é um dos meios de comprovação do registro.
type MetodoVerificacao string

const (
	MetodoQRCode         MetodoVerificacao = "qrcode"
	MetodoGeolocalizacao MetodoVerificacao = "geolocalizacao"
	MetodoWiFi           MetodoVerificacao = "wifi"
	MetodoManual         MetodoVerificacao = "manual"
)

// Localizacao guarda coordenadas informadas no registro.
type Localizacao struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RegistroFrequencia é um par entrada/saída de um servidor em uma data.
type RegistroFrequencia struct {
	ID           uuid.UUID           `json:"id"`
	UsuarioID    uuid.UUID           `json:"usuario_id"`
	Data         time.Time           `json:"data"`
	Entrada      *time.Time          `json:"entrada,omitempty"`
	Saida        *time.Time          `json:"saida,omitempty"`
	Status       StatusFrequencia    `json:"status"`
	StatusManual bool                `json:"status_manual"`
	Metodos      []MetodoVerificacao `json:"metodos"`
	Localizacao  *Localizacao        `json:"localizacao,omitempty"`
	Observacao   string              `json:"observacao,omitempty"`
	CriadoEm     time.Time           `json:"criado_em"`
	AtualizadoEm time.Time           `json:"atualizado_em"`
}

// StatusJustificativa é o estado do ciclo de vida da justificativa.
type StatusJustificativa string

const (
	JustificativaPendente  StatusJustificativa = "pendente"
	JustificativaAprovada  StatusJustificativa = "aprovado"
	JustificativaRejeitada StatusJustificativa = "rejeitado"
)

// TipoJustificativa diferencia faltas, atrasos e atestados.
type TipoJustificativa string

const (
	TipoFalta    TipoJustificativa = "justificativa_falta"
	TipoAtraso   TipoJustificativa = "justificativa_atraso"
	TipoAtestado TipoJustificativa = "atestado"
)

// Valid indica se o tipo é aceito.
func (t TipoJustificativa) Valid() bool {
	switch t {
	case TipoFalta, TipoAtraso, TipoAtestado:
		return true
	}
	return false
}

// Justificativa é uma solicitação de abono de falta/atraso.
type Justificativa struct {
	ID            uuid.UUID           `json:"id"`
	SolicitanteID uuid.UUID           `json:"solicitante_id"`
	DataInicio    time.Time           `json:"data_inicio"`
	DataFim       *time.Time          `json:"data_fim,omitempty"`
	Tipo          TipoJustificativa   `json:"tipo"`
	Descricao     string              `json:"descricao"`
	Anexos        []string            `json:"anexos"`
	Status        StatusJustificativa `json:"status"`
	DecididoPor   *uuid.UUID          `json:"decidido_por,omitempty"`
	DecididoEm    *time.Time          `json:"decidido_em,omitempty"`
	Motivo        string              `json:"motivo,omitempty"`
	Versao        int                 `json:"versao"`
	CriadoEm      time.Time           `json:"criado_em"`
}

// Fim devolve a data final efetiva (início quando não há data fim).
func (j Justificativa) Fim() time.Time {
	if j.DataFim != nil {
		return *j.DataFim
	}
	return j.DataInicio
}

// Cobre indica se a data (civil) está dentro do período solicitado.
func (j Justificativa) Cobre(data time.Time) bool {
	d := DateOnly(data)
	return !d.Before(DateOnly(j.DataInicio)) && !d.After(DateOnly(j.Fim()))
}

// CategoriaAuditoria agrupa entradas por área.
type CategoriaAuditoria string

const (
	CategoriaUsuario            CategoriaAuditoria = "usuario"
	CategoriaFrequencia         CategoriaAuditoria = "frequencia"
	CategoriaJustificativa      CategoriaAuditoria = "justificativa"
	CategoriaAuditoriaPermissao CategoriaAuditoria = "permissao"
	CategoriaSistema            CategoriaAuditoria = "sistema"
)

// TipoAcao classifica a operação auditada.
type TipoAcao string

const (
	AcaoCreate  TipoAcao = "create"
	AcaoRead    TipoAcao = "read"
	AcaoUpdate  TipoAcao = "update"
	AcaoDelete  TipoAcao = "delete"
	AcaoApprove TipoAcao = "approve"
	AcaoReject  TipoAcao = "reject"
	AcaoExport  TipoAcao = "export"
)

// StatusAuditoria é o resultado registrado.
type StatusAuditoria string

const (
	AuditoriaSucesso  StatusAuditoria = "sucesso"
	AuditoriaErro     StatusAuditoria = "erro"
	AuditoriaPendente StatusAuditoria = "pendente"
)

// Alteracao descreve a mudança de um campo.
type Alteracao struct {
	Campo  string `json:"campo"`
	Antes  string `json:"antes"`
	Depois string `json:"depois"`
}

// EntradaAuditoria é imutável depois de gravada.
type EntradaAuditoria struct {
	ID         string             `json:"id"`
	Momento    time.Time          `json:"momento"`
	AtorID     *uuid.UUID         `json:"ator_id,omitempty"`
	AtorPapel  string             `json:"ator_papel,omitempty"`
	Acao       string             `json:"acao"`
	Categoria  CategoriaAuditoria `json:"categoria"`
	Tipo       TipoAcao           `json:"tipo"`
	Status     StatusAuditoria    `json:"status"`
	Descricao  string             `json:"descricao"`
	Alteracoes []Alteracao        `json:"alteracoes,omitempty"`
	AlvoID     string             `json:"alvo_id,omitempty"`
	IP         string             `json:"ip,omitempty"`
	Cliente    string             `json:"cliente,omitempty"`
	RequestID  string             `json:"request_id,omitempty"`
}

// CategoriaPermissao agrupa permissões customizadas.
type CategoriaPermissao string

const (
	PermissaoUsuarios   CategoriaPermissao = "usuarios"
	PermissaoFrequencia CategoriaPermissao = "frequencia"
	PermissaoRelatorios CategoriaPermissao = "relatorios"
	PermissaoSistema    CategoriaPermissao = "sistema"
)

// Valid indica se a categoria é aceita.
func (c CategoriaPermissao) Valid() bool {
	switch c {
	case PermissaoUsuarios, PermissaoFrequencia, PermissaoRelatorios, PermissaoSistema:
		return true
	}
	return false
}

// Permissao é uma permissão nomeada associada a um papel.
type Permissao struct {
	ID        uuid.UUID          `json:"id"`
	Nome      string             `json:"nome"`
	Papel     authz.Role         `json:"papel"`
	Categoria CategoriaPermissao `json:"categoria"`
	Descricao string             `json:"descricao"`
	Sistema   bool               `json:"sistema"`
	CriadoEm  time.Time          `json:"criado_em"`
}

// TurnoDiario é o expediente de um dia da semana. Inicio/Fim em HH:MM.
type TurnoDiario struct {
	DiaSemana time.Weekday `json:"dia_semana"`
	Inicio    string       `json:"inicio"`
	Fim       string       `json:"fim"`
	Ativo     bool         `json:"ativo"`
}

// TurnoNoturno é um turno nomeado que pode cruzar a meia-noite.
type TurnoNoturno struct {
	ID     uuid.UUID `json:"id"`
	Nome   string    `json:"nome"`
	Inicio string    `json:"inicio"`
	Fim    string    `json:"fim"`
}

// Geofence delimita a área aceita para registro por geolocalização.
type Geofence struct {
	Campus     string  `json:"campus"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	RaioMetros float64 `json:"raio_metros"`
}

// ConfigFrequencia reúne parâmetros usados na derivação de status e no registro.
type ConfigFrequencia struct {
	ToleranciaMinutos int            `json:"tolerancia_minutos"`
	FusoHorario       string         `json:"fuso_horario"`
	ModoRegistro      string         `json:"modo_registro"`
	Turnos            []TurnoDiario  `json:"turnos"`
	TurnosNoturnos    []TurnoNoturno `json:"turnos_noturnos"`
	Geofences         []Geofence     `json:"geofences"`
	RedesWiFi         []string       `json:"redes_wifi"`
	AtualizadoEm      time.Time      `json:"atualizado_em"`
	AtualizadoPor     *uuid.UUID     `json:"atualizado_por,omitempty"`
}

// Location devolve o fuso configurado (padrão America/Fortaleza; UTC se inválido).
func (c ConfigFrequencia) Location() *time.Location {
	name := c.FusoHorario
	if name == "" {
		name = DefaultFusoHorario
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TurnoDoDia devolve o turno diurno do dia da semana.
func (c ConfigFrequencia) TurnoDoDia(dia time.Weekday) (TurnoDiario, bool) {
	for _, t := range c.Turnos {
		if t.DiaSemana == dia {
			return t, t.Ativo
		}
	}
	return TurnoDiario{}, false
}

// TurnoNoturnoPorID localiza um turno noturno.
func (c ConfigFrequencia) TurnoNoturnoPorID(id uuid.UUID) (TurnoNoturno, bool) {
	for _, t := range c.TurnosNoturnos {
		if t.ID == id {
			return t, true
		}
	}
	return TurnoNoturno{}, false
}

const (
	// DefaultToleranciaMinutos é a tolerância padrão para atraso.
	DefaultToleranciaMinutos = 15
	// DefaultFusoHorario é o fuso padrão da instituição.
	DefaultFusoHorario = "America/Fortaleza"
)

// DefaultConfig é a configuração usada enquanto nada foi salvo.
func DefaultConfig() ConfigFrequencia {
	turnos := make([]TurnoDiario, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		ativo := d != time.Saturday && d != time.Sunday
		t := TurnoDiario{DiaSemana: d, Ativo: ativo}
		if ativo {
			t.Inicio, t.Fim = "08:00", "17:00"
		}
		turnos = append(turnos, t)
	}
	return ConfigFrequencia{
		ToleranciaMinutos: DefaultToleranciaMinutos,
		FusoHorario:       DefaultFusoHorario,
		ModoRegistro:      "qrcode",
		Turnos:            turnos,
		TurnosNoturnos:    []TurnoNoturno{},
		Geofences:         []Geofence{},
		RedesWiFi:         []string{},
	}
}

// TokenRefresh guarda o estado de um refresh token emitido.
type TokenRefresh struct {
	Subject   uuid.UUID `json:"subject"`
	TokenHash string    `json:"token_hash"`
	Expiracao time.Time `json:"expiracao"`
}

// DateOnly devolve a data civil de t (no fuso de t) como meia-noite UTC. Todas
// as datas sem horário (registros, justificativas) são guardadas nesse formato.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
