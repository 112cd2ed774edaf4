package quests

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/defidojo/dojo-backend/internal/app/domain/quest"
	"github.com/defidojo/dojo-backend/internal/app/services/catalog"
	"github.com/defidojo/dojo-backend/internal/app/storage/memory"
	"github.com/defidojo/dojo-backend/internal/hub"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []hub.Event
}

func (n *recordingNotifier) SendToUser(userID string, event hub.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func newTestService(t *testing.T) (*Service, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	return New(catalog.Default(), memory.New(), notifier, nil), notifier
}

func TestService_StartEnforcesSingleActiveInstance(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inst, err := svc.Start(ctx, "user-1", "liquidity-kata")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if inst.State != quest.StateStarted {
		t.Fatalf("fresh instance should be started, got %s", inst.State)
	}
	if inst.ServerSeed == "" {
		t.Fatal("server seed not assigned")
	}

	if _, err := svc.Start(ctx, "user-1", "liquidity-kata"); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("duplicate start should conflict, got %v", err)
	}

	// Other quests and other users are unaffected.
	if _, err := svc.Start(ctx, "user-1", "oracle-sight"); err != nil {
		t.Fatalf("start second quest: %v", err)
	}
	if _, err := svc.Start(ctx, "user-2", "liquidity-kata"); err != nil {
		t.Fatalf("start for other user: %v", err)
	}
}

func TestService_StartUnknownQuest(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Start(context.Background(), "user-1", "no-such-quest"); !errors.Is(err, ErrQuestNotFound) {
		t.Fatalf("expected ErrQuestNotFound, got %v", err)
	}
}

func TestService_SubmitActionLifecycle(t *testing.T) {
	svc, notifier := newTestService(t)
	ctx := context.Background()

	inst, err := svc.Start(ctx, "user-1", "liquidity-kata")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	updated, err := svc.SubmitAction(ctx, "user-1", inst.ID, quest.Action{
		Type:    "provide_liquidity",
		Payload: map[string]interface{}{"pair": "STX/sBTC", "amount": 2.0},
	})
	if err != nil {
		t.Fatalf("submit action: %v", err)
	}
	if updated.State != quest.StateCompleted || updated.Score != 100 {
		t.Fatalf("unexpected outcome: state=%s score=%v", updated.State, updated.Score)
	}

	// Terminal instances reject further actions.
	_, err = svc.SubmitAction(ctx, "user-1", inst.ID, quest.Action{Type: "provide_liquidity"})
	if !errors.Is(err, ErrQuestNotActive) {
		t.Fatalf("completed instance should reject actions, got %v", err)
	}

	// Restart is allowed once the previous instance is terminal.
	if _, err := svc.Start(ctx, "user-1", "liquidity-kata"); err != nil {
		t.Fatalf("restart after completion: %v", err)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.events) < 2 {
		t.Fatalf("expected start and transition notifications, got %d", len(notifier.events))
	}
}

func TestService_HidesForeignInstances(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inst, err := svc.Start(ctx, "user-1", "liquidity-kata")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := svc.Status(ctx, "user-2", inst.ID); !errors.Is(err, ErrInstanceNotFound) {
		t.Fatalf("foreign instance should look absent, got %v", err)
	}
	if _, err := svc.SubmitAction(ctx, "user-2", inst.ID, quest.Action{Type: "provide_liquidity"}); !errors.Is(err, ErrInstanceNotFound) {
		t.Fatalf("foreign submit should look absent, got %v", err)
	}
}

func TestService_ConcurrentSubmissionsSerialized(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inst, err := svc.Start(ctx, "user-1", "oracle-sight")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	action := quest.Action{
		Type:    "predict_price",
		Payload: map[string]interface{}{"prediction": "sideways", "confidence": 1.0},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.SubmitAction(ctx, "user-1", inst.ID, action)
		}()
	}
	wg.Wait()

	final, err := svc.Status(ctx, "user-1", inst.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	// Every submission must have been applied one at a time: the attempt
	// counter cannot lose updates.
	attempts, _ := final.Progress["attempts"].(int)
	if attempts != 8 {
		t.Fatalf("lost updates under concurrency: attempts=%d", attempts)
	}
}
