// Package frequencia deriva o status de presença e conduz o registro de
// entrada e saída dos servidores.
package frequencia

import (
	"fmt"
	"time"

	"github.com/gestaozabele/frequencia/internal/repo"
)

// Janela é o intervalo esperado de trabalho de um usuário em um dia civil.
// SemTurno indica dia sem turno aplicável: a janela cobre o dia inteiro e
// não há atraso possível.
type Janela struct {
	Inicio   time.Time
	Fim      time.Time
	SemTurno bool
	Turno    string
}

// ResolverJanela escolhe o único turno aplicável ao usuário na data: o turno
// noturno atribuído (em dias úteis ativos) ou o turno diurno do dia da semana.
// Turnos cujo fim é anterior ao início cruzam a meia-noite.
func ResolverJanela(cfg repo.ConfigFrequencia, usuario repo.Usuario, data time.Time) Janela {
	loc := cfg.Location()
	y, m, d := repo.DateOnly(data).Date()
	inicioDia := time.Date(y, m, d, 0, 0, 0, 0, loc)
	semTurno := Janela{Inicio: inicioDia, Fim: inicioDia.AddDate(0, 0, 1), SemTurno: true}

	diurno, ativo := cfg.TurnoDoDia(inicioDia.Weekday())
	if !ativo {
		return semTurno
	}

	if usuario.TurnoNoturnoID != nil {
		if noturno, ok := cfg.TurnoNoturnoPorID(*usuario.TurnoNoturnoID); ok {
			if j, err := montarJanela(inicioDia, noturno.Inicio, noturno.Fim); err == nil {
				j.Turno = noturno.Nome
				return j
			}
		}
	}

	j, err := montarJanela(inicioDia, diurno.Inicio, diurno.Fim)
	if err != nil {
		return semTurno
	}
	j.Turno = "diurno"
	return j
}

func montarJanela(dia time.Time, inicio, fim string) (Janela, error) {
	hi, mi, err := parseHHMM(inicio)
	if err != nil {
		return Janela{}, err
	}
	hf, mf, err := parseHHMM(fim)
	if err != nil {
		return Janela{}, err
	}
	start := time.Date(dia.Year(), dia.Month(), dia.Day(), hi, mi, 0, 0, dia.Location())
	end := time.Date(dia.Year(), dia.Month(), dia.Day(), hf, mf, 0, 0, dia.Location())
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return Janela{Inicio: start, Fim: end}, nil
}

func parseHHMM(v string) (int, int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, 0, fmt.Errorf("horário inválido %q", v)
	}
	return t.Hour(), t.Minute(), nil
}

// DeriveStatus aplica a precedência: justificativa aprovada, ausência após o
// fim da janela, atraso além da tolerância e, por fim, presença.
func DeriveStatus(registro repo.RegistroFrequencia, janela Janela, toleranciaMin int, justificativas []repo.Justificativa, agora time.Time) repo.StatusFrequencia {
	for _, j := range justificativas {
		if j.Status == repo.JustificativaAprovada && j.SolicitanteID == registro.UsuarioID && j.Cobre(registro.Data) {
			return repo.StatusJustificado
		}
	}

	if registro.Entrada == nil {
		if agora.After(janela.Fim) {
			return repo.StatusAusente
		}
		return repo.StatusPresente
	}

	if !janela.SemTurno {
		limite := janela.Inicio.Add(time.Duration(toleranciaMin) * time.Minute)
		if registro.Entrada.After(limite) {
			return repo.StatusAtrasado
		}
	}
	return repo.StatusPresente
}

// DataCivil devolve o dia civil de t no fuso da instituição.
func DataCivil(cfg repo.ConfigFrequencia, t time.Time) time.Time {
	return repo.DateOnly(t.In(cfg.Location()))
}
