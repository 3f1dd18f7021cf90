// Package auth verifies upload and download credentials. Passwords come
// from an htpasswd-style file; bearer tokens are HMAC-signed JWTs.
package auth

import (
	"bufio"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Claims represents JWT claims
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service handles credential verification
type Service struct {
	jwtSecret string
	disabled  bool
	users     map[string]string
}

// NewService creates an authentication service. passwordFile of "." (or
// empty) disables password checking; jwtSecret of "" disables bearer
// tokens.
func NewService(passwordFile, jwtSecret string) (*Service, error) {
	s := &Service{jwtSecret: jwtSecret, users: make(map[string]string)}
	if passwordFile == "" || passwordFile == "." {
		s.disabled = true
		return s, nil
	}
	if err := s.loadPasswordFile(passwordFile); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) loadPasswordFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read password file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, hash, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		s.users[name] = hash
	}
	return scanner.Err()
}

// VerifyBasic checks a username/password pair against the password file.
// Supported entry formats: bcrypt ($2a$/$2b$/$2y$), {SHA} and plain text.
func (s *Service) VerifyBasic(username, password string) bool {
	if s.disabled {
		return false
	}
	hash, ok := s.users[username]
	if !ok {
		return false
	}
	switch {
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	case strings.HasPrefix(hash, "{SHA}"):
		sum := sha1.Sum([]byte(password))
		encoded := base64.StdEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(hash[len("{SHA}"):]), []byte(encoded)) == 1
	default:
		return subtle.ConstantTimeCompare([]byte(hash), []byte(password)) == 1
	}
}

// ValidateToken validates a JWT bearer token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	if s.jwtSecret == "" {
		return nil, fmt.Errorf("bearer tokens are not configured")
	}
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
