package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/AlpayBeydemir/ecommerce-graphql/internal/model"
	"github.com/AlpayBeydemir/ecommerce-graphql/internal/repository"
)

// tokenIDBytes — длина идентификатора токена в байтах до hex-кодирования.
const tokenIDBytes = 40

func newTokenID() (string, error) {
	b := make([]byte, tokenIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Register регистрирует нового пользователя и сразу выдаёт пару токенов.
func (s *Service) Register(ctx context.Context, email, name, password string) (*model.User, *model.Credentials, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.store.CreateUser(ctx, email, name, hash)
	if err != nil {
		return nil, nil, err
	}

	creds, err := s.IssueTokens(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return &model.User{ID: id, Email: email, Name: name}, creds, nil
}

// Login проверяет учётные данные пользователя и выдаёт пару токенов.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, *model.Credentials, error) {
	var u *model.User
	err := retryTransient(ctx, func() (err error) {
		u, err = s.store.UserByEmail(ctx, email)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	creds, err := s.IssueTokens(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}

	return u, creds, nil
}

// IssueTokens создаёт пользователю токен доступа и привязанный к нему
// токен обновления одной атомарной единицей работы. Устранимые сбои
// хранилища повторяются: неудачная попытка откатывается целиком.
func (s *Service) IssueTokens(ctx context.Context, userID int64) (*model.Credentials, error) {
	var creds *model.Credentials
	err := retryTransient(ctx, func() (err error) {
		creds, err = s.issueTokens(ctx, userID)
		return err
	})
	return creds, err
}

func (s *Service) issueTokens(ctx context.Context, userID int64) (*model.Credentials, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	creds, err := s.issueTokenPair(ctx, tx, userID, "Personal Access Token")
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return creds, nil
}

// issueTokenPair создаёт пару токенов внутри открытой транзакции. Прежний
// токен обновления того же токена доступа удаляется: связь строго один к одному.
func (s *Service) issueTokenPair(ctx context.Context, tx Tx, userID int64, name string) (*model.Credentials, error) {
	accessID, err := newTokenID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	access := &model.AccessToken{
		ID:        accessID,
		UserID:    userID,
		Name:      name,
		ExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	}
	if err := tx.CreateAccessToken(ctx, access); err != nil {
		return nil, err
	}

	refreshID, err := newTokenID()
	if err != nil {
		return nil, err
	}

	refresh := &model.RefreshToken{
		ID:            refreshID,
		AccessTokenID: accessID,
		ExpiresAt:     now.Add(s.cfg.RefreshTokenTTL),
	}
	if err := tx.ReplaceRefreshToken(ctx, refresh); err != nil {
		return nil, err
	}

	return &model.Credentials{
		AccessToken:  accessID,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
		RefreshToken: refreshID,
	}, nil
}

// RefreshTokens обменивает токен обновления на новую пару токенов.
// Токен обновления одноразовый: старая пара отзывается в той же транзакции,
// повторная попытка с тем же токеном завершается отказом. Строка токена
// блокируется, поэтому параллельные попытки обмена сериализуются.
func (s *Service) RefreshTokens(ctx context.Context, refreshTokenID string) (*model.Credentials, error) {
	var creds *model.Credentials
	err := retryTransient(ctx, func() (err error) {
		creds, err = s.refreshTokens(ctx, refreshTokenID)
		return err
	})
	return creds, err
}

func (s *Service) refreshTokens(ctx context.Context, refreshTokenID string) (*model.Credentials, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rt, err := tx.RefreshTokenForUpdate(ctx, refreshTokenID)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	if rt.Revoked {
		return nil, ErrRefreshTokenRevoked
	}
	if time.Now().After(rt.ExpiresAt) {
		return nil, ErrRefreshTokenExpired
	}

	oldAccess, err := tx.AccessTokenByID(ctx, rt.AccessTokenID)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	user, err := tx.UserByID(ctx, oldAccess.UserID)
	if err != nil {
		return nil, err
	}

	if err := tx.RevokeAccessToken(ctx, oldAccess.ID); err != nil {
		return nil, err
	}
	if err := tx.RevokeRefreshToken(ctx, rt.ID); err != nil {
		return nil, err
	}

	creds, err := s.issueTokenPair(ctx, tx, user.ID, "Refreshed Personal Access Token")
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return creds, nil
}

// Logout отзывает токен доступа и его токен обновления. Отзыв необратим.
func (s *Service) Logout(ctx context.Context, accessTokenID string) error {
	return retryTransient(ctx, func() error {
		return s.logout(ctx, accessTokenID)
	})
}

func (s *Service) logout(ctx context.Context, accessTokenID string) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.AccessTokenByID(ctx, accessTokenID); err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return ErrAccessTokenInvalid
		}
		return err
	}

	if err := tx.RevokeAccessToken(ctx, accessTokenID); err != nil {
		return err
	}
	if err := tx.RevokeRefreshTokenForAccess(ctx, accessTokenID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RevokeAllTokens отзывает все токены пользователя (выход со всех устройств).
func (s *Service) RevokeAllTokens(ctx context.Context, userID int64) error {
	return retryTransient(ctx, func() error {
		return s.revokeAllTokens(ctx, userID)
	})
}

func (s *Service) revokeAllTokens(ctx context.Context, userID int64) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.RevokeUserTokens(ctx, userID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// VerifyAccessToken проверяет токен доступа и возвращает идентификатор
// его владельца. Используется middleware аутентификации.
func (s *Service) VerifyAccessToken(ctx context.Context, accessTokenID string) (int64, error) {
	var t *model.AccessToken
	err := retryTransient(ctx, func() (err error) {
		t, err = s.store.AccessTokenByID(ctx, accessTokenID)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return 0, ErrAccessTokenInvalid
		}
		return 0, err
	}

	if t.Revoked || time.Now().After(t.ExpiresAt) {
		return 0, ErrAccessTokenInvalid
	}

	return t.UserID, nil
}
