// Package authz concentra o modelo de autorização: papéis, capacidades e
// filtragem de navegação. É a única fonte de verdade para decidir o que cada
// papel pode fazer; handlers e serviços consultam sempre este pacote.
package authz

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ErrUnknownRole indica papel fora do conjunto conhecido.
var ErrUnknownRole = errors.New("papel desconhecido")

// Role identifica o cargo do servidor. Imutável após a criação da conta.
type Role string

const (
	RoleDiretor       Role = "diretor"
	RoleDiretorEnsino Role = "diretor_ensino"
	RoleCoordenador   Role = "coordenador"
	RoleProfessor     Role = "professor"
)

// Capability nomeia uma ação controlada.
type Capability string

const (
	CanViewDashboard         Capability = "canViewDashboard"
	CanViewAllUsers          Capability = "canViewAllUsers"
	CanManageUsers           Capability = "canManageUsers"
	CanViewFrequency         Capability = "canViewFrequency"
	CanViewAllFrequency      Capability = "canViewAllFrequency"
	CanEditFrequency         Capability = "canEditFrequency"
	CanApproveJustifications Capability = "canApproveJustifications"
	CanViewReports           Capability = "canViewReports"
	CanViewAllReports        Capability = "canViewAllReports"
	CanViewSettings          Capability = "canViewSettings"
	CanManageSettings        Capability = "canManageSettings"
	CanViewAudit             Capability = "canViewAudit"
)

var knownCapabilities = []Capability{
	CanViewDashboard,
	CanViewAllUsers,
	CanManageUsers,
	CanViewFrequency,
	CanViewAllFrequency,
	CanEditFrequency,
	CanApproveJustifications,
	CanViewReports,
	CanViewAllReports,
	CanViewSettings,
	CanManageSettings,
	CanViewAudit,
}

// Capabilities é o conjunto de permissões booleanas de um papel.
type Capabilities map[Capability]bool

// Allows responde false para chaves desconhecidas.
func (c Capabilities) Allows(capability Capability) bool {
	return c[capability]
}

// grants lista apenas as capacidades concedidas; as demais são false.
var grants = map[Role][]Capability{
	RoleDiretor: {
		CanViewDashboard,
		CanViewAllUsers,
		CanViewFrequency,
		CanViewAllFrequency,
		CanViewReports,
		CanViewAllReports,
		CanViewSettings,
		CanViewAudit,
	},
	RoleDiretorEnsino: {
		CanViewDashboard,
		CanViewAllUsers,
		CanManageUsers,
		CanViewFrequency,
		CanViewAllFrequency,
		CanEditFrequency,
		CanApproveJustifications,
		CanViewReports,
		CanViewAllReports,
		CanViewSettings,
		CanManageSettings,
		CanViewAudit,
	},
	RoleCoordenador: {
		CanViewDashboard,
		CanViewFrequency,
		CanApproveJustifications,
		CanViewReports,
	},
	RoleProfessor: {},
}

// Roles devolve os papéis conhecidos em ordem estável.
func Roles() []Role {
	return []Role{RoleDiretor, RoleDiretorEnsino, RoleCoordenador, RoleProfessor}
}

// Keys devolve todas as capacidades conhecidas.
func Keys() []Capability {
	out := make([]Capability, len(knownCapabilities))
	copy(out, knownCapabilities)
	return out
}

// ParseRole normaliza e valida o papel informado.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, value)
	}
	return role, nil
}

// Valid indica se o papel pertence ao enum.
func (r Role) Valid() bool {
	_, ok := grants[r]
	return ok
}

// CapabilitiesFor devolve o mapa completo de capacidades do papel. Toda chave
// conhecida está presente. O mapa retornado é uma cópia.
func CapabilitiesFor(role Role) (Capabilities, error) {
	granted, ok := grants[role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, string(role))
	}

	caps := make(Capabilities, len(knownCapabilities))
	for _, key := range knownCapabilities {
		caps[key] = false
	}
	for _, key := range granted {
		caps[key] = true
	}
	return caps, nil
}

// Actor é o usuário autenticado que executa uma operação.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// Authorize responde se o ator possui a capacidade. Papéis inválidos nunca
// recebem permissão.
func Authorize(actor Actor, capability Capability) bool {
	caps, err := CapabilitiesFor(actor.Role)
	if err != nil {
		return false
	}
	return caps.Allows(capability)
}

// Granted lista, ordenadas, as capacidades concedidas ao papel.
func Granted(role Role) []Capability {
	caps, err := CapabilitiesFor(role)
	if err != nil {
		return nil
	}
	out := make([]Capability, 0, len(caps))
	for key, ok := range caps {
		if ok {
			out = append(out, key)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
