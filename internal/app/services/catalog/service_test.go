package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	cat := Default()

	if len(cat.List()) != 3 {
		t.Fatalf("expected 3 seeded quests, got %d", len(cat.List()))
	}

	def, err := cat.Get("liquidity-kata")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if def.Rules.Pair != "STX/sBTC" || def.Rules.MinAmount != 1 {
		t.Fatalf("unexpected rules: %+v", def.Rules)
	}
	if def.Reward.XP != 50 || def.Reward.BadgeID != "liquidity-kata" {
		t.Fatalf("unexpected reward: %+v", def.Reward)
	}

	if _, err := cat.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := cat.GetBySlug("oracle-sight"); err != nil {
		t.Fatalf("get by slug: %v", err)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quests.yaml")
	content := `quests:
  - id: test-quest
    slug: test-quest
    title: Test Quest
    difficulty: 1
    rules:
      type: tx-proof
      max_attempts: 3
    reward:
      xp: 10
      badge_id: test-badge
    active: true
  - title: Inactive Quest
    rules:
      type: tx-proof
    active: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cat, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	def, err := cat.Get("test-quest")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if def.Rules.MaxAttempts != 3 || def.Reward.XP != 10 {
		t.Fatalf("yaml fields lost: %+v", def)
	}

	// Inactive quests load but are hidden from the active list.
	if got := len(cat.List()); got != 1 {
		t.Fatalf("active list should hide inactive quests, got %d", got)
	}
	if got := len(cat.ListAll()); got != 2 {
		t.Fatalf("full list should keep inactive quests, got %d", got)
	}

	// Quests without an id get one generated and slugged.
	all := cat.ListAll()
	for _, d := range all {
		if d.ID == "" || d.Slug == "" {
			t.Fatalf("missing generated id/slug: %+v", d)
		}
	}
}

func TestLoad_FallsBackWithoutPath(t *testing.T) {
	cat, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cat.List()) == 0 {
		t.Fatal("empty path should yield the seeded catalog")
	}
}

func TestLoad_RejectsBadCatalog(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("missing file should error")
	}

	dup := filepath.Join(t.TempDir(), "dup.yaml")
	content := `quests:
  - id: same
    rules: {type: tx-proof}
  - id: same
    rules: {type: tx-proof}
`
	if err := os.WriteFile(dup, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := Load(dup, nil); err == nil {
		t.Fatal("duplicate ids should be rejected")
	}
}
