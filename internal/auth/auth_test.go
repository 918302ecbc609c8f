package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestAccessTokenRoundTrip(t *testing.T) {
	mgr := NewJWTManager(testSecret, time.Minute)
	id := uuid.New()

	token, expires, err := mgr.GenerateAccessToken(id, "coordenador")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expires, 5*time.Second)

	claims, err := mgr.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, id.String(), claims.Subject)
	assert.Equal(t, "coordenador", claims.Role)
}

func TestAccessTokenRejectsOtherSecret(t *testing.T) {
	token, _, err := NewJWTManager(testSecret, time.Minute).GenerateAccessToken(uuid.New(), "professor")
	require.NoError(t, err)

	_, err = NewJWTManager("ffffffffffffffffffffffffffffffff", time.Minute).ParseAndValidate(token)
	assert.True(t, errors.Is(err, ErrTokenInvalido))
}

func TestTotemTokenCannotAuthenticate(t *testing.T) {
	mgr := NewJWTManager(testSecret, time.Minute)
	token, _, err := mgr.GenerateTotemToken("Fortaleza", time.Minute)
	require.NoError(t, err)

	_, err = mgr.ParseAndValidate(token)
	assert.ErrorIs(t, err, ErrTokenInvalido)

	claims, err := mgr.ParseTotemToken(token)
	require.NoError(t, err)
	assert.Equal(t, "Fortaleza", claims.Campus)
}

func TestTotemTokenExpires(t *testing.T) {
	mgr := NewJWTManager(testSecret, time.Minute)
	issued := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return issued }

	token, _, err := mgr.GenerateTotemToken("Maracanaú", 60*time.Second)
	require.NoError(t, err)

	mgr.now = func() time.Time { return issued.Add(59 * time.Second) }
	_, err = mgr.ParseTotemToken(token)
	require.NoError(t, err)

	mgr.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = mgr.ParseTotemToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalido)
}

func TestPasswordHashAndPolicy(t *testing.T) {
	hash, err := Hash("senha123")
	require.NoError(t, err)

	ok, err := Verify("senha123", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify("outra123", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Verify("senha123", "")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, CheckPolicy("curta1"), ErrSenhaFraca)
	assert.ErrorIs(t, CheckPolicy("somenteletras"), ErrSenhaFraca)
	assert.NoError(t, CheckPolicy("letras123"))
}

func TestRefreshTokenHash(t *testing.T) {
	raw, hash, err := GenerateRefreshToken()
	require.NoError(t, err)
	assert.Equal(t, HashRefreshToken(raw), hash)
	assert.Equal(t, "frequencia:refresh:"+hash, RefreshRedisKey(hash))
}

func TestCheckRefreshFormat(t *testing.T) {
	raw, _, err := GenerateRefreshToken()
	require.NoError(t, err)
	assert.NoError(t, CheckRefreshFormat(raw))

	for _, invalido := range []string{"", "abc", raw + "==", raw[:len(raw)-2], "não-é-base64!"} {
		assert.ErrorIs(t, CheckRefreshFormat(invalido), ErrInvalidRefresh, invalido)
	}
}
