package agent

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/rawblock/scam-investigator/internal/llm"
	"github.com/rawblock/scam-investigator/pkg/models"
)

func TestIdentity_PasswordVariants(t *testing.T) {
	id := NewIdentity(rand.New(rand.NewSource(1)))

	for _, v := range []PasswordVariant{PasswordDefault, PasswordDigits8, PasswordDigits12, PasswordSimple10} {
		if id.Password(v) == "" {
			t.Fatalf("variant %s missing", v)
		}
	}
	if len(id.Password(PasswordDigits8)) != 8 {
		t.Fatalf("digits_8 must be 8 chars: %q", id.Password(PasswordDigits8))
	}
	if len(id.Password(PasswordDigits12)) != 12 {
		t.Fatalf("digits_12 must be 12 chars: %q", id.Password(PasswordDigits12))
	}
	// Unknown variants fall back to default.
	if id.Password("weird") != id.Password(PasswordDefault) {
		t.Fatal("unknown variant should fall back to default")
	}
}

func TestIdentity_Complete(t *testing.T) {
	id := NewVault(42).Draw()
	if id.Email == "" || id.Phone == "" || id.DOB == "" || id.FakeSSN == "" || id.Username == "" {
		t.Fatalf("incomplete identity: %+v", id)
	}
	if !strings.Contains(id.Email, "@") {
		t.Fatalf("malformed email: %q", id.Email)
	}
	if !strings.HasPrefix(id.FakeSSN, "900-") {
		t.Fatalf("ssn must use the invalid 900 prefix: %q", id.FakeSSN)
	}
	vals := id.FieldValues()
	if vals["email"] != id.Email || vals["password_default"] == "" {
		t.Fatalf("field values incomplete: %v", vals)
	}
}

func imageMsg(text string) llm.Message {
	return llm.Message{Role: llm.RoleUser, Parts: []llm.ContentPart{
		{Type: "text", Text: text},
		{Type: "image", MediaType: "image/png", Data: "aGVsbG8="},
	}}
}

func TestWindowedHistory_StripsOldImages(t *testing.T) {
	history := []llm.Message{
		imageMsg("turn 1"),
		llm.TextMessage(llm.RoleAssistant, `{"action":"click"}`),
		imageMsg("turn 2"),
		llm.TextMessage(llm.RoleAssistant, `{"action":"scroll"}`),
		imageMsg("turn 3"),
	}

	out := windowedHistory(history)
	if len(out) != 5 {
		t.Fatalf("window should keep all 5, got %d", len(out))
	}
	if out[0].HasImages() {
		t.Fatal("oldest user message should have its image stripped")
	}
	if !out[2].HasImages() || !out[4].HasImages() {
		t.Fatal("two most recent user messages keep their images")
	}
	if !strings.Contains(out[0].FlatText(), screenshotPlaceholder) {
		t.Fatalf("stripped message should carry the placeholder: %q", out[0].FlatText())
	}
	// Input must not be mutated.
	if !history[0].HasImages() {
		t.Fatal("windowedHistory mutated its input")
	}
}

func TestWindowedHistory_BoundsLength(t *testing.T) {
	var history []llm.Message
	for i := 0; i < 25; i++ {
		history = append(history, llm.TextMessage(llm.RoleUser, "turn"))
	}
	if got := len(windowedHistory(history)); got != conversationWindow {
		t.Fatalf("window should cap at %d, got %d", conversationWindow, got)
	}
}

func TestIsRepeated(t *testing.T) {
	c := NewController(DefaultConfig(), nil, nil, nil)
	act := models.AgentAction{Action: models.ActionClick, Selector: "#next"}

	if c.isRepeated(act) || c.isRepeated(act) {
		t.Fatal("two repeats are below the threshold")
	}
	if !c.isRepeated(act) {
		t.Fatal("third identical action should trip the loop breaker")
	}
	// Terminal actions never count as repeats.
	done := models.AgentAction{Action: models.ActionDone}
	for i := 0; i < 5; i++ {
		if c.isRepeated(done) {
			t.Fatal("done must never be flagged as repeated")
		}
	}
}

func TestStateMachine_Transitions(t *testing.T) {
	want := []models.AgentState{
		models.StateLoadSite, models.StateFindRegister, models.StateFillRegister,
		models.StateSubmitRegister, models.StateCheckEmail, models.StateNavigateDeposit,
		models.StateExtractWallets, models.StateComplete,
	}
	state := models.StateLoadSite
	for i := 0; i < len(want)-1; i++ {
		if state != want[i] {
			t.Fatalf("step %d: got %s want %s", i, state, want[i])
		}
		state = state.NextState()
	}
	if !state.IsTerminal() {
		t.Fatalf("%s should be terminal", state)
	}
	if models.StateComplete.NextState() != models.StateComplete {
		t.Fatal("terminal states map to themselves")
	}
}

func TestBuildUserMessage_TruncatesPageText(t *testing.T) {
	obs := Observation{
		State:    models.StateFindRegister,
		PageText: strings.Repeat("x", pageTextLimit+500),
		PageURL:  "https://scam.example",
	}
	msg := buildUserMessage(obs)
	text := msg.FlatText()
	if !strings.Contains(text, "[...text truncated...]") {
		t.Fatal("oversized page text should be truncated")
	}
	if !strings.Contains(text, "STATE: FIND_REGISTER") {
		t.Fatalf("state header missing: %.100s", text)
	}
	if msg.HasImages() {
		t.Fatal("no screenshot was provided")
	}
}
