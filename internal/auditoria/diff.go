package auditoria

import "github.com/gestaozabele/frequencia/internal/repo"

// Diff acumula alterações campo a campo, ignorando campos inalterados.
type Diff []repo.Alteracao

// Campo registra a alteração se antes e depois diferirem.
func (d *Diff) Campo(nome, antes, depois string) {
	if antes == depois {
		return
	}
	*d = append(*d, repo.Alteracao{Campo: nome, Antes: antes, Depois: depois})
}

// Lista devolve as alterações acumuladas.
func (d Diff) Lista() []repo.Alteracao {
	return []repo.Alteracao(d)
}
