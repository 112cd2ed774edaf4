// Package users manages wallet-identified player accounts and the
// challenge/response login flow.
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/defidojo/dojo-backend/internal/app/domain/user"
	"github.com/defidojo/dojo-backend/internal/app/storage"
	"github.com/defidojo/dojo-backend/internal/session"
	"github.com/defidojo/dojo-backend/pkg/logger"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrBadChallenge = errors.New("challenge nonce invalid or expired")
	ErrNoWallet     = errors.New("wallet address required")
)

// TokenIssuer mints session tokens for authenticated wallets.
type TokenIssuer interface {
	IssueToken(userID, wallet string) (string, error)
}

// Service handles account lookup and wallet login.
type Service struct {
	store    storage.UserStore
	nonces   session.NonceStore
	issuer   TokenIssuer
	nonceTTL time.Duration
	log      *logger.Logger
}

func New(store storage.UserStore, nonces session.NonceStore, issuer TokenIssuer, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{
		store:    store,
		nonces:   nonces,
		issuer:   issuer,
		nonceTTL: session.DefaultNonceTTL,
		log:      log,
	}
}

// Challenge issues a fresh single-use nonce for the wallet to sign.
func (s *Service) Challenge(ctx context.Context, wallet string) (string, error) {
	if wallet == "" {
		return "", ErrNoWallet
	}
	nonce, err := session.NewNonce()
	if err != nil {
		return "", err
	}
	if err := s.nonces.SaveNonce(ctx, wallet, nonce, s.nonceTTL); err != nil {
		return "", err
	}
	return nonce, nil
}

// Login redeems a challenge nonce for a session token, creating the account
// on first sight of the wallet. The signed nonce proves wallet control; the
// signature blob itself is opaque to this layer.
func (s *Service) Login(ctx context.Context, wallet, nonce string) (user.User, string, error) {
	if wallet == "" {
		return user.User{}, "", ErrNoWallet
	}

	stored, err := s.nonces.TakeNonce(ctx, wallet)
	if err != nil || stored != nonce || nonce == "" {
		return user.User{}, "", ErrBadChallenge
	}

	u, err := s.store.GetUserByWallet(ctx, wallet)
	if errors.Is(err, storage.ErrNotFound) {
		u, err = s.store.CreateUser(ctx, user.User{WalletAddress: wallet})
		if err == nil {
			s.log.WithField("user_id", u.ID).WithField("wallet", wallet).Info("created user")
		}
	}
	if err != nil {
		return user.User{}, "", fmt.Errorf("resolve user: %w", err)
	}

	token, err := s.issuer.IssueToken(u.ID, u.WalletAddress)
	if err != nil {
		return user.User{}, "", err
	}
	return u, token, nil
}

// Get returns a user profile.
func (s *Service) Get(ctx context.Context, userID string) (user.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, ErrUserNotFound
	}
	return u, err
}
