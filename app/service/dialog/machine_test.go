package dialog

import (
	"strings"
	"testing"
	"time"
)

func testFacts() Facts {
	return Facts{
		PropertyID:       "508437",
		OwnerName:        "Анна соб",
		Address:          "ул. Ленина, 10",
		Price:            85000,
		CommissionRate:   50,
		PriorEngagements: 2,
	}
}

func testMachine(t *testing.T, profile Profile) *Machine {
	t.Helper()
	return NewMachine(profile, NewPhrases(nil, nil), NewTexts("Capital Mars", testFacts()))
}

func TestInitializeGreetingVariants(t *testing.T) {
	m := testMachine(t, ProfileV2)

	d := m.Initialize("Анна")
	if d.Next != StateInitialQuestion {
		t.Fatalf("Initialize().Next = %q, want %q", d.Next, StateInitialQuestion)
	}
	if len(d.Replies) != 2 {
		t.Fatalf("Initialize() replies = %d, want 2", len(d.Replies))
	}
	if d.Replies[0].Text != "Анна, добрый день!" || d.Replies[0].Pace != PaceImmediate {
		t.Errorf("greeting = %+v, want immediate \"Анна, добрый день!\"", d.Replies[0])
	}
	q := d.Replies[1].Text
	if !strings.Contains(q, "2 раза") || !strings.Contains(q, "ул. Ленина, 10") {
		t.Errorf("qualifying question %q should cite count and address", q)
	}

	facts := testFacts()
	facts.PriorEngagements = 0
	facts.LastAdvertised = time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	m = NewMachine(ProfileV2, NewPhrases(nil, nil), NewTexts("Capital Mars", facts))

	q = m.Initialize("Анна").Replies[1].Text
	if strings.Contains(q, "Мы уже") {
		t.Errorf("zero-count question %q should not cite a count", q)
	}
	if !strings.Contains(q, "в марте 2024 года") {
		t.Errorf("zero-count question %q should cite the last cooperation date", q)
	}
}

func TestNextV2Table(t *testing.T) {
	m := testMachine(t, ProfileV2)

	tests := []struct {
		state    State
		intent   Intent
		want     State
		contains string
	}{
		{StateInitialQuestion, IntentPositive, StatePriceConfirmation, "85 000"},
		{StateInitialQuestion, IntentNegative, StateCompleted, "извините за беспокойство"},
		{StatePriceConfirmation, IntentPositive, StateCommissionInfo, "50%"},
		{StatePriceConfirmation, IntentNegative, StatePriceUpdate, "какая цена"},
		{StateCommissionInfo, IntentPositive, StateCompleted, "запускаем в рекламу"},
		{StateCommissionInfo, IntentNegative, StateCompleted, "Если передумаете"},
	}

	for _, tt := range tests {
		d, ok := m.Next(tt.state, tt.intent)
		if !ok {
			t.Errorf("Next(%s, %s) ok = false, want true", tt.state, tt.intent)
			continue
		}
		if d.Next != tt.want {
			t.Errorf("Next(%s, %s).Next = %s, want %s", tt.state, tt.intent, d.Next, tt.want)
		}
		if len(d.Replies) != 1 || !strings.Contains(d.Replies[0].Text, tt.contains) {
			t.Errorf("Next(%s, %s) replies = %+v, want one containing %q", tt.state, tt.intent, d.Replies, tt.contains)
		}
	}
}

func TestNextNeutralAndCompletedAreNoOps(t *testing.T) {
	m := testMachine(t, ProfileV2)

	for _, state := range []State{StateInitialQuestion, StatePriceConfirmation, StateCommissionInfo} {
		if _, ok := m.Next(state, IntentNeutral); ok {
			t.Errorf("Next(%s, neutral) ok = true, want no-op", state)
		}
	}

	for _, intent := range []Intent{IntentPositive, IntentNegative, IntentNeutral} {
		if _, ok := m.Next(StateCompleted, intent); ok {
			t.Errorf("Next(completed, %s) ok = true, want no-op", intent)
		}
	}
	if _, ok := m.Prefilter(StateCompleted, "стоп"); ok {
		t.Error("Prefilter(completed) ok = true, want no-op")
	}
}

func TestNextV1Table(t *testing.T) {
	m := testMachine(t, ProfileV1)

	d, ok := m.Next(StatePriceConfirmation, IntentPositive)
	if !ok || d.Next != StateCompleted {
		t.Fatalf("v1 Next(price_confirmation, positive) = %+v, %v, want completed", d, ok)
	}

	d, ok = m.Next(StatePriceConfirmation, IntentNegative)
	if !ok || d.Next != StatePriceConfirmation {
		t.Fatalf("v1 Next(price_confirmation, negative) = %+v, %v, want to stay", d, ok)
	}

	if _, ok := m.Prefilter(StateInitialQuestion, "стоп, не пишите"); ok {
		t.Error("v1 Prefilter ok = true, want hard intents disabled")
	}
}

func TestPrefilterPriceUpdate(t *testing.T) {
	m := testMachine(t, ProfileV2)

	d, ok := m.Prefilter(StatePriceUpdate, "стоп, не пишите")
	if !ok || d.Next != StateCompleted || len(d.Replies) != 1 {
		t.Fatalf("Prefilter(price_update, opt-out) = %+v, %v, want completed with one reply", d, ok)
	}

	d, ok = m.Prefilter(StatePriceUpdate, "ну как сказать")
	if !ok || d.Next != StatePriceUpdate || len(d.Replies) != 1 {
		t.Fatalf("Prefilter(price_update, no digits) = %+v, %v, want same state and a re-ask", d, ok)
	}

	d, ok = m.Prefilter(StatePriceUpdate, "цена 95k")
	if !ok || d.Next != StateCommissionInfo {
		t.Fatalf("Prefilter(price_update, 95k) = %+v, %v, want commission_info", d, ok)
	}
	text := d.Replies[0].Text
	if !strings.Contains(text, "95 000") || !strings.Contains(text, "50%") {
		t.Errorf("commission reply %q should contain grouped price and rate", text)
	}

	d, ok = m.Prefilter(StatePriceUpdate, "подождите")
	if !ok || d.Next != StatePriceUpdate {
		t.Errorf("Prefilter(price_update, pause) = %+v, %v, want re-ask without pause handling", d, ok)
	}
}

func TestPrefilterHardIntents(t *testing.T) {
	m := testMachine(t, ProfileV2)

	d, ok := m.Prefilter(StatePriceConfirmation, "Подождите, уточню у мужа")
	if !ok || d.Next != StatePriceConfirmation || d.Reason != "pause" {
		t.Errorf("pause = %+v, %v, want acknowledgement and unchanged state", d, ok)
	}

	d, ok = m.Prefilter(StateInitialQuestion, "Не пишите мне больше")
	if !ok || d.Next != StateCompleted || d.Reason != "opt_out" {
		t.Errorf("opt-out = %+v, %v, want completed", d, ok)
	}

	if _, ok := m.Prefilter(StateInitialQuestion, "да, сдаю"); ok {
		t.Error("Prefilter(да, сдаю) ok = true, want classifier to decide")
	}
}

func TestAcceptsObjections(t *testing.T) {
	m := testMachine(t, ProfileV2)

	if m.AcceptsObjections(StatePriceUpdate) {
		t.Error("AcceptsObjections(price_update) = true, want false")
	}
	if m.AcceptsObjections(StateCompleted) {
		t.Error("AcceptsObjections(completed) = true, want false")
	}
	if !m.AcceptsObjections(StateCommissionInfo) {
		t.Error("AcceptsObjections(commission_info) = false, want true")
	}
}

func TestProfileByName(t *testing.T) {
	if p, err := ProfileByName("v1"); err != nil || p.Name != "v1" {
		t.Errorf("ProfileByName(v1) = %v, %v", p.Name, err)
	}
	if p, err := ProfileByName(""); err != nil || p.Name != "v2" {
		t.Errorf("ProfileByName(\"\") = %v, %v, want v2", p.Name, err)
	}
	if _, err := ProfileByName("v3"); err == nil {
		t.Error("ProfileByName(v3) error = nil, want error")
	}
}
