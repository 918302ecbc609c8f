package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// AudienceAPI identifica tokens de acesso de servidores.
	AudienceAPI = "frequencia"
	// AudienceTotem identifica tokens exibidos no QR Code do totem.
	AudienceTotem = "totem"
)

// ErrTokenInvalido cobre assinatura, expiração e audiência inválidas.
var ErrTokenInvalido = errors.New("token inválido")

// Claims representa as informações presentes em um JWT de acesso.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TotemClaims vincula o QR Code a um campus.
type TotemClaims struct {
	Campus string `json:"campus"`
	jwt.RegisteredClaims
}

// JWTManager encapsula geração e validação de tokens.
type JWTManager struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

// NewJWTManager cria o gerenciador com segredo e TTL configurados.
func NewJWTManager(secret string, accessTTL time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), accessTTL: accessTTL, now: time.Now}
}

// AccessTTL expõe a validade configurada dos tokens de acesso.
func (m *JWTManager) AccessTTL() time.Duration {
	return m.accessTTL
}

// GenerateAccessToken cria um JWT HS256 com o papel do usuário.
func (m *JWTManager) GenerateAccessToken(subject uuid.UUID, role string) (string, time.Time, error) {
	now := m.now().UTC()
	expires := now.Add(m.accessTTL)

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			Audience:  jwt.ClaimStrings{AudienceAPI},
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// ParseAndValidate verifica assinatura, expiração e audiência.
func (m *JWTManager) ParseAndValidate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if err := m.parse(tokenString, AudienceAPI, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// GenerateTotemToken emite o token curto exibido pelo totem do campus.
func (m *JWTManager) GenerateTotemToken(campus string, ttl time.Duration) (string, time.Time, error) {
	now := m.now().UTC()
	expires := now.Add(ttl)

	claims := TotemClaims{
		Campus: campus,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{AudienceTotem},
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// ParseTotemToken valida o token lido do QR Code.
func (m *JWTManager) ParseTotemToken(tokenString string) (*TotemClaims, error) {
	claims := &TotemClaims{}
	if err := m.parse(tokenString, AudienceTotem, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *JWTManager) parse(tokenString, audience string, claims jwt.Claims) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(m.now),
	)

	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return errors.Join(ErrTokenInvalido, err)
	}
	if !token.Valid {
		return ErrTokenInvalido
	}
	return nil
}
