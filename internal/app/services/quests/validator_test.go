package quests

import (
	"reflect"
	"testing"

	"github.com/defidojo/dojo-backend/internal/app/domain/quest"
)

func liquidityRules() quest.Rules {
	return quest.Rules{
		Type:      "liquidity-kata",
		Pair:      "STX/sBTC",
		MinAmount: 1,
	}
}

func TestValidate_LiquidityCompletes(t *testing.T) {
	action := quest.Action{
		Type:    "provide_liquidity",
		Payload: map[string]interface{}{"pair": "STX/sBTC", "amount": 2.0},
	}

	out := Validate(liquidityRules(), map[string]interface{}{}, "seed", action)
	if out.State != quest.StateCompleted {
		t.Fatalf("expected completed, got %s", out.State)
	}
	if out.Score != 100 {
		t.Fatalf("completion should force full score, got %v", out.Score)
	}
	if added, _ := out.Progress["liquidity_added"].(bool); !added {
		t.Fatalf("liquidity_added not recorded: %v", out.Progress)
	}
	if out.Progress["attempts"] != 1 {
		t.Fatalf("attempt not counted: %v", out.Progress["attempts"])
	}
}

func TestValidate_LiquidityWrongPair(t *testing.T) {
	action := quest.Action{
		Type:    "provide_liquidity",
		Payload: map[string]interface{}{"pair": "BTC/ETH", "amount": 5.0},
	}

	out := Validate(liquidityRules(), map[string]interface{}{}, "seed", action)
	if out.State != quest.StateOngoing {
		t.Fatalf("wrong pair must not complete, got %s", out.State)
	}
	if out.Score != 0 {
		t.Fatalf("wrong pair must not score, got %v", out.Score)
	}
	if out.Progress["attempts"] != 1 {
		t.Fatalf("a rejected attempt still counts: %v", out.Progress["attempts"])
	}
}

func TestValidate_LiquidityBelowMinimum(t *testing.T) {
	action := quest.Action{
		Type:    "provide_liquidity",
		Payload: map[string]interface{}{"pair": "STX/sBTC", "amount": 0.5},
	}

	out := Validate(liquidityRules(), map[string]interface{}{}, "seed", action)
	if out.State != quest.StateOngoing || out.Score != 0 {
		t.Fatalf("below-minimum amount must not score: state=%s score=%v", out.State, out.Score)
	}
}

func TestValidate_UnknownActionIsNoOp(t *testing.T) {
	progress := map[string]interface{}{"attempts": 2}
	action := quest.Action{Type: "dance", Payload: map[string]interface{}{"x": 1}}

	out := Validate(liquidityRules(), progress, "seed", action)
	if out.State != quest.StateOngoing {
		t.Fatalf("unknown action must keep quest ongoing, got %s", out.State)
	}
	if out.Score != 0 {
		t.Fatalf("unknown action must not score, got %v", out.Score)
	}
	if out.Progress["attempts"] != 2 {
		t.Fatalf("unknown action must not count an attempt: %v", out.Progress["attempts"])
	}
}

func TestValidate_PureAndDeterministic(t *testing.T) {
	rules := quest.Rules{Type: "price-prediction"}
	progress := map[string]interface{}{"attempts": 1}
	action := quest.Action{
		Type:    "predict_price",
		Payload: map[string]interface{}{"prediction": "up", "confidence": 3.0},
	}

	first := Validate(rules, progress, "fixed-seed", action)
	second := Validate(rules, progress, "fixed-seed", action)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs diverged:\n%+v\n%+v", first, second)
	}
	if progress["attempts"] != 1 || len(progress) != 1 {
		t.Fatalf("input progress mutated: %v", progress)
	}
}

func TestValidate_PredictionOutcomeFollowsSeed(t *testing.T) {
	rules := quest.Rules{Type: "price-prediction"}
	up := quest.Action{Type: "predict_price", Payload: map[string]interface{}{"prediction": "up", "confidence": 5.0}}
	down := quest.Action{Type: "predict_price", Payload: map[string]interface{}{"prediction": "down", "confidence": 5.0}}

	outUp := Validate(rules, map[string]interface{}{}, "seed-a", up)
	outDown := Validate(rules, map[string]interface{}{}, "seed-a", down)

	upCorrect, _ := outUp.Progress["prediction_correct"].(bool)
	downCorrect, _ := outDown.Progress["prediction_correct"].(bool)
	if upCorrect == downCorrect {
		t.Fatalf("exactly one direction must match the seeded move: up=%v down=%v", upCorrect, downCorrect)
	}

	var winner, loser Outcome
	if upCorrect {
		winner, loser = outUp, outDown
	} else {
		winner, loser = outDown, outUp
	}
	if winner.State != quest.StateCompleted || winner.Score != 100 {
		t.Fatalf("correct prediction must complete at full score: %+v", winner)
	}
	if loser.State != quest.StateOngoing || loser.Score != 25 {
		t.Fatalf("wrong prediction keeps quarter score and stays ongoing: %+v", loser)
	}
}

func TestValidate_MaxAttemptsFails(t *testing.T) {
	rules := quest.Rules{Type: "price-prediction", MaxAttempts: 2}
	wrong := quest.Action{Type: "predict_price", Payload: map[string]interface{}{"prediction": "sideways", "confidence": 1.0}}

	out := Validate(rules, map[string]interface{}{}, "seed", wrong)
	if out.State != quest.StateOngoing {
		t.Fatalf("first miss should stay ongoing, got %s", out.State)
	}

	out = Validate(rules, out.Progress, "seed", wrong)
	if out.State != quest.StateFailed {
		t.Fatalf("exhausted attempts must fail the quest, got %s", out.State)
	}
}

func TestValidate_TxProof(t *testing.T) {
	rules := quest.Rules{Type: "tx-proof"}

	out := Validate(rules, map[string]interface{}{}, "seed", quest.Action{
		Type:    "submit_tx_proof",
		Payload: map[string]interface{}{"txid": "0xabc"},
	})
	if out.State != quest.StateCompleted || out.Score != 100 {
		t.Fatalf("tx proof should complete at full score: %+v", out)
	}

	out = Validate(rules, map[string]interface{}{}, "seed", quest.Action{
		Type:    "submit_tx_proof",
		Payload: map[string]interface{}{"txid": "   "},
	})
	if out.State != quest.StateOngoing || out.Score != 0 {
		t.Fatalf("blank txid must not count: %+v", out)
	}
}

func TestValidate_LegacyActionAliases(t *testing.T) {
	out := Validate(liquidityRules(), map[string]interface{}{}, "seed", quest.Action{
		Type:    "simulate_add_liquidity",
		Payload: map[string]interface{}{"pair": "stx/sbtc", "amount": 3},
	})
	if out.State != quest.StateCompleted {
		t.Fatalf("legacy alias should validate like the canonical name, got %s", out.State)
	}
}
