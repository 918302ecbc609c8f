package storage

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gestaozabele/frequencia/internal/config"
)

// S3Uploader grava anexos com requisições PUT assinadas (SigV4).
type S3Uploader struct {
	endpoint  string
	region    string
	bucket    string
	accessKey string
	secretKey string
	publicURL string
	client    *http.Client
	now       func() time.Time
}

// NewS3Uploader valida a configuração e cria o uploader.
func NewS3Uploader(cfg config.StorageConfig, client *http.Client) (*S3Uploader, error) {
	if !cfg.Enabled() {
		return nil, ErrNaoConfigurado
	}
	if !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return nil, errors.New("storage: endpoint deve incluir http:// ou https://")
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	return &S3Uploader{
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		region:    region,
		bucket:    cfg.Bucket,
		accessKey: cfg.AccessKeyID,
		secretKey: cfg.SecretAccessKey,
		publicURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		client:    client,
		now:       time.Now,
	}, nil
}

// Enviar grava o objeto e devolve a URL pública (ou a do bucket).
func (u *S3Uploader) Enviar(ctx context.Context, obj Objeto) (Resultado, error) {
	if strings.TrimSpace(obj.Chave) == "" {
		return Resultado{}, errors.New("storage: chave do objeto obrigatória")
	}
	if len(obj.Conteudo) == 0 {
		return Resultado{}, errors.New("storage: conteúdo vazio")
	}
	tipo := obj.TipoConteudo
	if tipo == "" {
		tipo = "application/octet-stream"
	}

	chave := (&url.URL{Path: strings.TrimLeft(obj.Chave, "/")}).EscapedPath()
	destino := fmt.Sprintf("%s/%s/%s", u.endpoint, u.bucket, chave)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, destino, bytes.NewReader(obj.Conteudo))
	if err != nil {
		return Resultado{}, err
	}
	soma := sha256.Sum256(obj.Conteudo)
	payloadHash := hex.EncodeToString(soma[:])

	req.ContentLength = int64(len(obj.Conteudo))
	req.Header.Set("Content-Type", tipo)
	req.Header.Set("Content-Length", strconv.Itoa(len(obj.Conteudo)))
	req.Header.Set("x-amz-content-sha256", payloadHash)
	u.assinar(req, payloadHash, u.now().UTC())

	resp, err := u.client.Do(req)
	if err != nil {
		return Resultado{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Resultado{}, fmt.Errorf("storage: upload falhou (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	res := Resultado{URL: destino, ETag: strings.Trim(resp.Header.Get("ETag"), `"`)}
	if u.publicURL != "" {
		res.URL = u.publicURL + "/" + chave
	}
	return res, nil
}

func (u *S3Uploader) assinar(req *http.Request, payloadHash string, agora time.Time) {
	amzDate := agora.Format("20060102T150405Z")
	dia := agora.Format("20060102")

	req.Header.Set("x-amz-date", amzDate)
	req.Header.Set("Host", req.URL.Host)

	headers, assinados := cabecalhosCanonicos(req.Header)
	canonica := strings.Join([]string{
		req.Method,
		uriEncode(caminhoCanonico(req.URL.EscapedPath()), false),
		queryCanonica(req.URL.Query()),
		headers,
		assinados,
		payloadHash,
	}, "\n")
	hashCanonica := sha256.Sum256([]byte(canonica))

	escopo := dia + "/" + u.region + "/s3/aws4_request"
	paraAssinar := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		escopo,
		hex.EncodeToString(hashCanonica[:]),
	}, "\n")

	chave := hmacSHA256([]byte("AWS4"+u.secretKey), []byte(dia))
	for _, parte := range []string{u.region, "s3", "aws4_request"} {
		chave = hmacSHA256(chave, []byte(parte))
	}
	assinatura := hex.EncodeToString(hmacSHA256(chave, []byte(paraAssinar)))

	req.Header.Set("Authorization", fmt.Sprintf(
		"AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		u.accessKey, escopo, assinados, assinatura,
	))
}

func caminhoCanonico(p string) string {
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func queryCanonica(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		vals := append([]string(nil), values[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			parts = append(parts, uriEncode(k, true)+"="+uriEncode(v, true))
		}
	}
	return strings.Join(parts, "&")
}

// cabecalhosCanonicos devolve as linhas "nome:valor" ordenadas e a lista de
// nomes assinados.
func cabecalhosCanonicos(h http.Header) (string, string) {
	nomes := make([]string, 0, len(h))
	valores := make(map[string]string, len(h))
	for k, vals := range h {
		nome := strings.ToLower(k)
		if nome == "authorization" {
			continue
		}
		limpos := make([]string, len(vals))
		for i, v := range vals {
			limpos[i] = strings.TrimSpace(v)
		}
		if _, ok := valores[nome]; !ok {
			nomes = append(nomes, nome)
		}
		valores[nome] = strings.Join(limpos, ",")
	}
	sort.Strings(nomes)

	var linhas strings.Builder
	for _, n := range nomes {
		linhas.WriteString(n + ":" + valores[n] + "\n")
	}
	return linhas.String(), strings.Join(nomes, ";")
}

func uriEncode(input string, encodeSlash bool) string {
	var b strings.Builder
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9'),
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		case c == '/' && !encodeSlash:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
