package users

import (
	"context"
	"errors"
	"testing"

	"github.com/defidojo/dojo-backend/internal/app/storage/memory"
	"github.com/defidojo/dojo-backend/internal/session"
)

type staticIssuer struct{}

func (staticIssuer) IssueToken(userID, wallet string) (string, error) {
	return "token-for-" + userID, nil
}

func newService() (*Service, *memory.Store) {
	store := memory.New()
	return New(store, session.NewMemoryNonceStore(), staticIssuer{}, nil), store
}

func TestService_ChallengeLoginFlow(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	nonce, err := svc.Challenge(ctx, "SPWALLET")
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}

	u, token, err := svc.Login(ctx, "SPWALLET", nonce)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.WalletAddress != "SPWALLET" || u.ID == "" {
		t.Fatalf("account not created: %+v", u)
	}
	if token != "token-for-"+u.ID {
		t.Fatalf("unexpected token: %s", token)
	}

	// The nonce is single-use.
	if _, _, err := svc.Login(ctx, "SPWALLET", nonce); !errors.Is(err, ErrBadChallenge) {
		t.Fatalf("nonce replay should fail, got %v", err)
	}

	// A second login resolves the same account.
	nonce2, _ := svc.Challenge(ctx, "SPWALLET")
	again, _, err := svc.Login(ctx, "SPWALLET", nonce2)
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if again.ID != u.ID {
		t.Fatalf("duplicate account created: %s vs %s", again.ID, u.ID)
	}
}

func TestService_LoginRejectsBadNonce(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	if _, _, err := svc.Login(ctx, "SPWALLET", "made-up"); !errors.Is(err, ErrBadChallenge) {
		t.Fatalf("unknown nonce: got %v", err)
	}

	if _, err := svc.Challenge(ctx, ""); !errors.Is(err, ErrNoWallet) {
		t.Fatalf("empty wallet challenge: got %v", err)
	}
	if _, _, err := svc.Login(ctx, "", "x"); !errors.Is(err, ErrNoWallet) {
		t.Fatalf("empty wallet login: got %v", err)
	}

	// A nonce issued to one wallet cannot authenticate another.
	nonce, _ := svc.Challenge(ctx, "SPALICE")
	if _, _, err := svc.Login(ctx, "SPBOB", nonce); !errors.Is(err, ErrBadChallenge) {
		t.Fatalf("cross-wallet nonce: got %v", err)
	}
}

func TestService_Get(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	nonce, _ := svc.Challenge(ctx, "SPWALLET")
	u, _, err := svc.Login(ctx, "SPWALLET", nonce)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	got, err := svc.Get(ctx, u.ID)
	if err != nil || got.ID != u.ID {
		t.Fatalf("get: %v %+v", err, got)
	}
	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("missing user: got %v", err)
	}
}
