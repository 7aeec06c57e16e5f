package dialog

import "testing"

func TestPhrasesMatchWholeWords(t *testing.T) {
	p := NewPhrases(nil, nil)

	optOut := []struct {
		text string
		want bool
	}{
		{"стоп", true},
		{"Стоп, не пишите", true},
		{"STOP!", true},
		{"Удалите   мой номер, пожалуйста", true},
		{"уже сдал", true},
		{"Стопроцентно да, сдаю", false},
		{"nonstop", false},
		{"стопка документов готова", false},
		{"да, сдаю", false},
	}

	for _, tt := range optOut {
		if got := p.OptOut(tt.text); got != tt.want {
			t.Errorf("OptOut(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}

	pause := []struct {
		text string
		want bool
	}{
		{"Подождите, уточню у мужа", true},
		{"давайте позже", true},
		{"позжее", false},
		{"later", true},
		{"collateral", false},
	}

	for _, tt := range pause {
		if got := p.Pause(tt.text); got != tt.want {
			t.Errorf("Pause(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestPrefilterIgnoresPhraseInsideWord(t *testing.T) {
	m := testMachine(t, ProfileV2)

	if d, ok := m.Prefilter(StateInitialQuestion, "Стопроцентно да, сдаю"); ok {
		t.Errorf("Prefilter(Стопроцентно да, сдаю) = %+v, want classifier to decide", d)
	}

	d, ok := m.Prefilter(StatePriceUpdate, "Стопроцентно 95к")
	if !ok || d.Next != StateCommissionInfo {
		t.Errorf("Prefilter(price_update, Стопроцентно 95к) = %+v, %v, want commission_info", d, ok)
	}
}
