package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func writePasswordFile(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "htpasswd")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0600))
	return path
}

func TestVerifyBasicPlain(t *testing.T) {
	path := writePasswordFile(t, "alice:secret\n# comment\n\nbob:hunter2\n")
	service, err := NewService(path, "")
	require.NoError(t, err)

	assert.True(t, service.VerifyBasic("alice", "secret"))
	assert.True(t, service.VerifyBasic("bob", "hunter2"))
	assert.False(t, service.VerifyBasic("alice", "wrong"))
	assert.False(t, service.VerifyBasic("carol", "secret"))
}

func TestVerifyBasicBcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	path := writePasswordFile(t, "alice:"+string(hash)+"\n")
	service, err := NewService(path, "")
	require.NoError(t, err)

	assert.True(t, service.VerifyBasic("alice", "secret"))
	assert.False(t, service.VerifyBasic("alice", "wrong"))
}

func TestVerifyBasicSHA(t *testing.T) {
	// {SHA} entry for "secret"
	path := writePasswordFile(t, "alice:{SHA}5en6G6MezRroT3XKqkdPOmY/BfQ=\n")
	service, err := NewService(path, "")
	require.NoError(t, err)

	assert.True(t, service.VerifyBasic("alice", "secret"))
	assert.False(t, service.VerifyBasic("alice", "wrong"))
}

func TestDisabledPasswordFile(t *testing.T) {
	service, err := NewService(".", "")
	require.NoError(t, err)
	assert.False(t, service.VerifyBasic("anyone", "anything"))
}

func TestMissingPasswordFile(t *testing.T) {
	_, err := NewService(filepath.Join(t.TempDir(), "nope"), "")
	assert.Error(t, err)
}

func TestValidateToken(t *testing.T) {
	service, err := NewService(".", "topsecret")
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte("topsecret"))
	require.NoError(t, err)

	claims, err := service.ValidateToken("Bearer " + signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	_, err = service.ValidateToken("Bearer not-a-token")
	assert.Error(t, err)

	forged, err := token.SignedString([]byte("othersecret"))
	require.NoError(t, err)
	_, err = service.ValidateToken("Bearer " + forged)
	assert.Error(t, err)
}

func TestValidateTokenWithoutSecret(t *testing.T) {
	service, err := NewService(".", "")
	require.NoError(t, err)
	_, err = service.ValidateToken("Bearer anything")
	assert.Error(t, err)
}
