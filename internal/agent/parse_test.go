package agent

import (
	"errors"
	"testing"

	"github.com/rawblock/scam-investigator/pkg/models"
)

func TestParseAction_BareJSON(t *testing.T) {
	act, err := ParseAction(`{"action": "click", "selector": "#register", "reasoning": "open signup", "confidence": 0.85}`)
	if err != nil {
		t.Fatal(err)
	}
	if act.Action != models.ActionClick || act.Selector != "#register" || act.Confidence != 0.85 {
		t.Fatalf("wrong action: %+v", act)
	}
}

func TestParseAction_FencedJSON(t *testing.T) {
	content := "Here is my decision:\n```json\n{\"action\": \"type\", \"selector\": \"input[name=email]\", \"value\": \"a@b.com\"}\n```"
	act, err := ParseAction(content)
	if err != nil {
		t.Fatal(err)
	}
	if act.Action != models.ActionTypeText || act.Value != "a@b.com" {
		t.Fatalf("wrong action: %+v", act)
	}
}

func TestParseAction_NonStringValueReserialised(t *testing.T) {
	content := `{"action": "done", "value": [{"wallet_address": "T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb", "token_symbol": "USDT", "network_short": "trx"}]}`
	act, err := ParseAction(content)
	if err != nil {
		t.Fatal(err)
	}
	if act.Action != models.ActionDone {
		t.Fatalf("wrong action: %+v", act)
	}
	// The array value must survive as JSON text.
	wallets, err := ParseWalletList(act.Value, "https://scam.example")
	if err != nil {
		t.Fatal(err)
	}
	if len(wallets) != 1 {
		t.Fatalf("expected 1 wallet, got %d", len(wallets))
	}
	w := wallets[0]
	if w.WalletAddress != "T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb" || w.TokenSymbol != "USDT" || w.NetworkShort != "trx" {
		t.Fatalf("wallet fields wrong: %+v", w)
	}
}

func TestParseAction_GarbageFails(t *testing.T) {
	if _, err := ParseAction("I cannot help with that."); err == nil {
		t.Fatal("prose should not parse")
	}
	if _, err := ParseAction(`{"selector": "#x"}`); err == nil {
		t.Fatal("missing action field should fail")
	}
}

func TestParseBatch_BareArray(t *testing.T) {
	content := `[{"action": "type", "selector": "#email", "value": "a@b.com"},
	             {"action": "select", "selector": "#country", "value": "US"},
	             {"action": "click", "selector": "#tos"}]`
	actions, err := ParseBatchActions(content)
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(actions))
	}
	if actions[2].Action != models.ActionClick {
		t.Fatalf("order not preserved: %+v", actions)
	}
}

func TestParseBatch_WrappedKeys(t *testing.T) {
	for _, key := range []string{"actions", "fills", "fields"} {
		content := `{"` + key + `": [{"action": "type", "selector": "#pw", "value": "x"}]}`
		actions, err := ParseBatchActions(content)
		if err != nil {
			t.Fatalf("key %s: %v", key, err)
		}
		if len(actions) != 1 {
			t.Fatalf("key %s: expected 1 action", key)
		}
	}
}

func TestParseBatch_StuckSentinel(t *testing.T) {
	_, err := ParseBatchActions("[STUCK]")
	if !errors.Is(err, ErrBatchStuck) {
		t.Fatalf("expected ErrBatchStuck, got %v", err)
	}
}

func TestParseBatch_RejectsNonFillActions(t *testing.T) {
	if _, err := ParseBatchActions(`[{"action": "navigate", "value": "https://x.test"}]`); err == nil {
		t.Fatal("navigate is not a fill action")
	}
}

func TestParseWalletList_ObjectWrapper(t *testing.T) {
	value := `{"wallets": [{"wallet_address": "0x742d35Cc6634C0532925a3b844Bc454e4438f44e", "token_symbol": "usdt", "network_short": "ETH"}]}`
	wallets, err := ParseWalletList(value, "https://scam.example")
	if err != nil {
		t.Fatal(err)
	}
	if len(wallets) != 1 {
		t.Fatalf("expected 1 wallet, got %d", len(wallets))
	}
	if wallets[0].TokenSymbol != "USDT" || wallets[0].NetworkShort != "eth" {
		t.Fatalf("casing rules not applied: %+v", wallets[0])
	}
	if wallets[0].Source != models.CaptureLLM {
		t.Fatalf("source should be llm: %+v", wallets[0])
	}
}

func TestParseWalletList_SkipsEmptyAddresses(t *testing.T) {
	value := `[{"wallet_address": "", "token_symbol": "BTC"}, {"wallet_address": "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", "token_symbol": "BTC", "network_short": "btc"}]`
	wallets, err := ParseWalletList(value, "https://scam.example")
	if err != nil {
		t.Fatal(err)
	}
	if len(wallets) != 1 {
		t.Fatalf("empty address should be dropped, got %d entries", len(wallets))
	}
}
