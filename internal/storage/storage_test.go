package storage

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestaozabele/frequencia/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestS3UploaderAssinaRequisicao(t *testing.T) {
	var capturada *http.Request
	var corpo []byte
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		capturada = r
		corpo, _ = io.ReadAll(r.Body)
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Etag": []string{`"abc123"`}},
			Body:       io.NopCloser(strings.NewReader("")),
		}, nil
	})}

	u, err := NewS3Uploader(config.StorageConfig{
		Endpoint:        "https://r2.example.com",
		Bucket:          "anexos",
		AccessKeyID:     "AKID",
		SecretAccessKey: "segredo",
		PublicBaseURL:   "https://arquivos.ifce.edu.br/",
	}, client)
	require.NoError(t, err)
	u.now = func() time.Time { return time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC) }

	res, err := u.Enviar(context.Background(), Objeto{
		Chave:        "justificativas/abc/atestado.pdf",
		Conteudo:     []byte("%PDF-1.4 atestado"),
		TipoConteudo: "application/pdf",
	})
	require.NoError(t, err)

	require.NotNil(t, capturada)
	assert.Equal(t, http.MethodPut, capturada.Method)
	assert.Equal(t, "/anexos/justificativas/abc/atestado.pdf", capturada.URL.Path)
	assert.Equal(t, "%PDF-1.4 atestado", string(corpo))
	assert.Equal(t, "20260302T120000Z", capturada.Header.Get("x-amz-date"))
	assert.Equal(t,
		"AWS4-HMAC-SHA256 Credential=AKID/20260302/auto/s3/aws4_request, "+
			"SignedHeaders=content-length;content-type;host;x-amz-content-sha256;x-amz-date, "+
			"Signature=c8bbab9b5f4807e74d06b049af59cf65d4a0b485fbf3cd662511759a3d0e90d0",
		capturada.Header.Get("Authorization"))

	assert.Equal(t, "https://arquivos.ifce.edu.br/justificativas/abc/atestado.pdf", res.URL)
	assert.Equal(t, "abc123", res.ETag)
}

func TestS3UploaderErroDoBucket(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusForbidden,
			Body:       io.NopCloser(strings.NewReader("AccessDenied")),
		}, nil
	})}
	u, err := NewS3Uploader(config.StorageConfig{
		Endpoint: "https://r2.example.com", Bucket: "anexos", AccessKeyID: "a", SecretAccessKey: "b",
	}, client)
	require.NoError(t, err)

	_, err = u.Enviar(context.Background(), Objeto{Chave: "x.pdf", Conteudo: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestNewS3UploaderConfiguracao(t *testing.T) {
	_, err := NewS3Uploader(config.StorageConfig{}, nil)
	assert.ErrorIs(t, err, ErrNaoConfigurado)

	_, err = NewS3Uploader(config.StorageConfig{Endpoint: "r2.example.com", Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s"}, nil)
	assert.Error(t, err)
}

func TestValidarAnexo(t *testing.T) {
	assert.NoError(t, ValidarAnexo("application/pdf", 1024))
	assert.NoError(t, ValidarAnexo("image/JPEG; charset=binary", 1024))
	assert.Error(t, ValidarAnexo("application/zip", 1024))
	assert.Error(t, ValidarAnexo("image/png", 0))
	assert.Error(t, ValidarAnexo("image/png", MaxTamanhoAnexo+1))
}

func TestChaveAnexo(t *testing.T) {
	id := uuid.MustParse("0b6f3c7e-9a8d-4c1e-b2f1-3c4d5e6f7a8b")

	chave := ChaveAnexo(id, `C:\Docs\Atestado Médico.PDF`, "application/pdf")
	assert.True(t, strings.HasPrefix(chave, "justificativas/"+id.String()+"/"))
	assert.True(t, strings.HasSuffix(chave, "-atestado-mdico.pdf"), chave)

	assert.True(t, strings.HasSuffix(ChaveAnexo(id, "../../", "image/png"), "-anexo.png"))
}

func TestMemoria(t *testing.T) {
	m := &Memoria{BaseURL: "mem://anexos"}
	res, err := m.Enviar(context.Background(), Objeto{Chave: "a/b.png", Conteudo: []byte{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, "mem://anexos/a/b.png", res.URL)

	obj, ok := m.Objeto("a/b.png")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2}, obj.Conteudo)

	_, err = NoopUploader{}.Enviar(context.Background(), Objeto{})
	assert.ErrorIs(t, err, ErrNaoConfigurado)
}
