package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const tokenKeyPrefix = "auth:token:"

// Service authenticates users and manages bearer tokens. Tokens are opaque
// random strings stored in redis with the configured TTL, so a restart of the
// API keeps sessions alive and a logout invalidates the token everywhere.
type Service struct {
	repo     Repository
	redis    *redis.Client
	tokenTTL time.Duration
}

func NewService(repo Repository, rdb *redis.Client, tokenTTL time.Duration) *Service {
	return &Service{repo: repo, redis: rdb, tokenTTL: tokenTTL}
}

// Login verifies the credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if !user.Active {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token := uuid.NewString()
	if err := s.redis.Set(ctx, tokenKeyPrefix+token, user.ID, s.tokenTTL).Err(); err != nil {
		return "", nil, fmt.Errorf("auth: store token: %w", err)
	}
	return token, user, nil
}

// Logout revokes the token. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, tokenKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("auth: revoke token: %w", err)
	}
	return nil
}

// Authenticate resolves a bearer token to its user and slides the TTL.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	val, err := s.redis.Get(ctx, tokenKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: lookup token: %w", err)
	}
	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrInvalidCredentials
	}
	s.redis.Expire(ctx, tokenKeyPrefix+token, s.tokenTTL)
	return user, nil
}
