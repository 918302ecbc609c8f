// Package storage guarda os anexos das justificativas em um bucket
// compatível com S3 (R2, MinIO).
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// MaxTamanhoAnexo limita cada arquivo a 5 MiB.
const MaxTamanhoAnexo = 5 << 20

// ErrNaoConfigurado indica ausência de bucket.
var ErrNaoConfigurado = errors.New("storage: armazenamento de anexos não configurado")

var tiposPermitidos = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

// Objeto é o arquivo a enviar.
type Objeto struct {
	Chave        string
	Conteudo     []byte
	TipoConteudo string
}

// Resultado descreve o objeto gravado.
type Resultado struct {
	URL  string `json:"url"`
	ETag string `json:"etag,omitempty"`
}

// Uploader grava objetos no armazenamento.
type Uploader interface {
	Enviar(ctx context.Context, obj Objeto) (Resultado, error)
}

// ValidarAnexo confere tipo e tamanho aceitos para atestados e comprovantes.
func ValidarAnexo(tipoConteudo string, tamanho int) error {
	if _, ok := tiposPermitidos[normalizarTipo(tipoConteudo)]; !ok {
		return errors.New("tipo de arquivo não aceito (use PDF, JPEG ou PNG)")
	}
	if tamanho <= 0 {
		return errors.New("arquivo vazio")
	}
	if tamanho > MaxTamanhoAnexo {
		return fmt.Errorf("arquivo excede %d MiB", MaxTamanhoAnexo>>20)
	}
	return nil
}

// ChaveAnexo monta justificativas/<id>/<uuid>-<nome><ext>.
func ChaveAnexo(justificativaID uuid.UUID, nome, tipoConteudo string) string {
	base := strings.TrimSuffix(path.Base(strings.ReplaceAll(nome, "\\", "/")), path.Ext(nome))
	base = sanitizar(base)
	if base == "" {
		base = "anexo"
	}
	return fmt.Sprintf("justificativas/%s/%s-%s%s", justificativaID, uuid.NewString()[:8], base, tiposPermitidos[normalizarTipo(tipoConteudo)])
}

func normalizarTipo(tipo string) string {
	if i := strings.IndexByte(tipo, ';'); i >= 0 {
		tipo = tipo[:i]
	}
	return strings.ToLower(strings.TrimSpace(tipo))
}

func sanitizar(nome string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(nome) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteByte('-')
		}
		if b.Len() >= 60 {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}
