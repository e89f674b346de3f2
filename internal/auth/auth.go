package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrNoSecret           = errors.New("jwt secret is not configured")
)

// User is an operator account allowed to log in to the API
type User struct {
	Username     string
	PasswordHash string
	IsAdmin      bool
}

// Claims represents the JWT claims for an authenticated user
type Claims struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Service handles authentication operations
type Service struct {
	jwtSecret     []byte
	tokenDuration time.Duration
	users         map[string]User
}

// NewService creates a new auth service for a fixed set of users
func NewService(jwtSecret string, tokenDuration time.Duration, users []User) *Service {
	if tokenDuration == 0 {
		tokenDuration = 24 * time.Hour
	}
	s := &Service{
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: tokenDuration,
		users:         make(map[string]User, len(users)),
	}
	for _, u := range users {
		s.users[u.Username] = u
	}
	return s
}

// HashPassword creates a bcrypt hash of a password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckPassword compares a password against a hash
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Authenticate checks a username and password against the configured users
func (s *Service) Authenticate(username, password string) (*User, error) {
	user, ok := s.users[username]
	if !ok || !CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// GenerateToken creates a JWT for an authenticated user
func (s *Service) GenerateToken(user *User) (string, error) {
	if len(s.jwtSecret) == 0 {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims := Claims{
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken validates a JWT and returns the claims. Tokens for users that
// are no longer configured are rejected.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	if len(s.jwtSecret) == 0 {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	user, ok := s.users[claims.Username]
	if !ok {
		return nil, ErrInvalidToken
	}
	claims.IsAdmin = user.IsAdmin

	return claims, nil
}
