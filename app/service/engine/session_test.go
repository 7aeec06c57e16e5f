package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"salesbot/app/client/greenapi"
	"salesbot/app/service/dedup"
	"salesbot/app/service/dialog"
	"salesbot/app/service/dispatch"
	"salesbot/app/service/poller"
	"salesbot/app/util/clock"
)

const testChat = "79990001122@c.us"

type fakeGateway struct {
	mu      sync.Mutex
	queue   []*greenapi.Notification
	deleted []int64
	texts   []string
	sendErr error
}

func (f *fakeGateway) SendMessage(_ context.Context, _, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.texts = append(f.texts, text)
	return "id", nil
}

func (f *fakeGateway) ReceiveNotification(_ context.Context, _ time.Duration) (*greenapi.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return nil, nil
	}

	n := f.queue[0]
	f.queue = f.queue[1:]
	return n, nil
}

func (f *fakeGateway) DeleteNotification(_ context.Context, receiptID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, receiptID)
	return nil
}

func (f *fakeGateway) LastIncomingMessages(context.Context, int) ([]greenapi.JournalMessage, error) {
	return nil, nil
}

func (f *fakeGateway) IDInstance() string {
	return "1101000001"
}

func (f *fakeGateway) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.texts...)
}

type scriptedClassifier struct {
	intents map[string]dialog.Intent
	calls   int
}

func (c *scriptedClassifier) Classify(_ context.Context, text string) dialog.Intent {
	c.calls++
	return c.intents[text]
}

type trimNormalizer struct{}

func (trimNormalizer) Normalize(_ context.Context, raw string) string {
	return strings.TrimSuffix(raw, " соб")
}

type fakeAnswerer struct {
	answers map[string]string
}

func (f fakeAnswerer) Answer(_ context.Context, text string) (string, error) {
	return f.answers[text], nil
}

type fixture struct {
	session    *Session
	gateway    *fakeGateway
	pump       *poller.Pump
	clock      *clock.Manual
	classifier *scriptedClassifier
}

func newFixture(t *testing.T, profile dialog.Profile, objections ObjectionAnswerer) *fixture {
	t.Helper()

	clk := clock.NewManual(time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC))
	gw := &fakeGateway{}
	pump := poller.NewPump(gw, clk, time.Second, 5*time.Second, false)

	f := &fixture{gateway: gw, pump: pump, clock: clk}
	f.session, f.classifier = f.newSession(t, testChat, profile, objections)

	return f
}

func (f *fixture) newSession(t *testing.T, chatID string, profile dialog.Profile, objections ObjectionAnswerer) (*Session, *scriptedClassifier) {
	t.Helper()

	cls := &scriptedClassifier{intents: map[string]dialog.Intent{
		"да":        dialog.IntentPositive,
		"верно":     dialog.IntentPositive,
		"нет":       dialog.IntentNegative,
		"не совсем": dialog.IntentNegative,
	}}

	facts := dialog.Facts{
		PropertyID:       "508437",
		OwnerName:        "Анна соб",
		Address:          "ул. Ленина, 10",
		Price:            95000,
		CommissionRate:   50,
		PriorEngagements: 2,
	}

	inbox, err := f.pump.Subscribe(chatID)
	if err != nil {
		t.Fatalf("Subscribe(%s) error = %v", chatID, err)
	}

	filter := dedup.NewFilter(f.clock, 5*time.Second, 10*time.Second, 100, nil)

	s := NewSession(SessionParams{
		ChatID:     chatID,
		Facts:      facts,
		Clock:      f.clock,
		Timing:     Timing{ReplyDelay: 1500 * time.Millisecond, QuestionDelay: 2 * time.Second, ErrorBackoff: 5 * time.Second},
		Machine:    dialog.NewMachine(profile, dialog.NewPhrases(nil, nil), dialog.NewTexts("Capital Mars", facts)),
		Poller:     poller.New(inbox, poller.NewValidator(f.gateway.IDInstance(), chatID), filter),
		Dispatcher: dispatch.New(f.clock, f.gateway, filter, nil),
		Classifier: cls,
		Normalizer: trimNormalizer{},
		Objections: objections,
		Release:    func() { f.pump.Unsubscribe(chatID, inbox) },
	})

	return s, cls
}

// say delivers text as a fresh inbound message, spaced past the dedup windows.
func (f *fixture) say(t *testing.T, text string) error {
	t.Helper()

	f.clock.Advance(time.Minute)
	return f.session.HandleMessage(context.Background(), poller.Message{ChatID: testChat, Text: text})
}

func TestFirstMessageInitializes(t *testing.T) {
	f := newFixture(t, dialog.ProfileV2, nil)

	if err := f.say(t, "Здравствуйте"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	if got := f.session.State(); got != dialog.StateInitialQuestion {
		t.Errorf("State() = %s, want initial_question", got)
	}

	texts := f.gateway.sentTexts()
	if len(texts) != 2 || texts[0] != "Анна, добрый день!" {
		t.Fatalf("sent = %q, want greeting and question", texts)
	}
	if f.classifier.calls != 0 {
		t.Errorf("classifier calls = %d, want 0 for the first message", f.classifier.calls)
	}

	slept := f.clock.Slept()
	if len(slept) != 2 || slept[0] != 0 || slept[1] != 2*time.Second {
		t.Errorf("delays = %v, want [0 2s]", slept)
	}
}

func TestQualifiedOwnerGetsPriceConfirmation(t *testing.T) {
	f := newFixture(t, dialog.ProfileV2, nil)
	_ = f.say(t, "Здравствуйте")

	if err := f.say(t, "да"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	if got := f.session.State(); got != dialog.StatePriceConfirmation {
		t.Errorf("State() = %s, want price_confirmation", got)
	}

	texts := f.gateway.sentTexts()
	if len(texts) != 3 || !strings.Contains(texts[2], "95 000") {
		t.Errorf("sent = %q, want one more reply quoting 95 000", texts)
	}
}

func TestPriceUpdateFlow(t *testing.T) {
	f := newFixture(t, dialog.ProfileV2, nil)
	for _, text := range []string{"Здравствуйте", "да", "нет"} {
		_ = f.say(t, text)
	}

	if got := f.session.State(); got != dialog.StatePriceUpdate {
		t.Fatalf("State() = %s, want price_update", got)
	}

	calls := f.classifier.calls
	if err := f.say(t, "цена 90k"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if f.classifier.calls != calls {
		t.Error("classifier called in price_update")
	}
	if got := f.session.State(); got != dialog.StateCommissionInfo {
		t.Fatalf("State() = %s, want commission_info", got)
	}

	texts := f.gateway.sentTexts()
	last := texts[len(texts)-1]
	if !strings.Contains(last, "90 000") || !strings.Contains(last, "50%") {
		t.Errorf("commission reply = %q, want new price and rate", last)
	}

	_ = f.say(t, "верно")
	if got := f.session.State(); got != dialog.StateCompleted {
		t.Errorf("State() = %s, want completed", got)
	}
}

func TestPriceUpdateOptOut(t *testing.T) {
	f := newFixture(t, dialog.ProfileV2, nil)
	for _, text := range []string{"Здравствуйте", "да", "нет"} {
		_ = f.say(t, text)
	}
	before := len(f.gateway.sentTexts())

	_ = f.say(t, "стоп, не пишите")

	if got := f.session.State(); got != dialog.StateCompleted {
		t.Errorf("State() = %s, want completed", got)
	}
	if got := len(f.gateway.sentTexts()) - before; got != 1 {
		t.Errorf("replies = %d, want exactly 1", got)
	}
}

func TestNeutralAndCompletedAreNoOps(t *testing.T) {
	f := newFixture(t, dialog.ProfileV2, nil)
	_ = f.say(t, "Здравствуйте")
	before := len(f.gateway.sentTexts())

	_ = f.say(t, "спасибо")
	if got := f.session.State(); got != dialog.StateInitialQuestion {
		t.Errorf("State() after neutral = %s, want initial_question", got)
	}
	if len(f.gateway.sentTexts()) != before {
		t.Error("neutral message produced a reply")
	}

	_ = f.say(t, "нет")
	if got := f.session.State(); got != dialog.StateCompleted {
		t.Fatalf("State() = %s, want completed", got)
	}

	before = len(f.gateway.sentTexts())
	calls := f.classifier.calls
	for _, text := range []string{"да", "стоп", "подождите"} {
		_ = f.say(t, text)
	}
	if f.session.State() != dialog.StateCompleted || len(f.gateway.sentTexts()) != before || f.classifier.calls != calls {
		t.Error("completed conversation reacted to new messages")
	}
}

func TestObjectionKeepsState(t *testing.T) {
	f := newFixture(t, dialog.ProfileV2, fakeAnswerer{answers: map[string]string{
		"а почему так дорого?": "Комиссия платится только по факту заселения.",
	}})
	_ = f.say(t, "Здравствуйте")
	_ = f.say(t, "да")
	calls := f.classifier.calls

	_ = f.say(t, "а почему так дорого?")

	if got := f.session.State(); got != dialog.StatePriceConfirmation {
		t.Errorf("State() = %s, want price_confirmation", got)
	}
	if f.classifier.calls != calls {
		t.Error("classifier called for an answered objection")
	}
	texts := f.gateway.sentTexts()
	if texts[len(texts)-1] != "Комиссия платится только по факту заселения." {
		t.Errorf("last reply = %q", texts[len(texts)-1])
	}
}

func TestFailedSendKeepsTransition(t *testing.T) {
	f := newFixture(t, dialog.ProfileV2, nil)
	_ = f.say(t, "Здравствуйте")

	f.gateway.sendErr = errors.New("gateway down")
	if err := f.say(t, "да"); err == nil {
		t.Fatal("HandleMessage() error = nil, want send error")
	}

	if got := f.session.State(); got != dialog.StatePriceConfirmation {
		t.Errorf("State() = %s, want the committed price_confirmation", got)
	}
}

func TestV1ProfileCompletesAfterPrice(t *testing.T) {
	f := newFixture(t, dialog.ProfileV1, nil)
	_ = f.say(t, "Здравствуйте")
	_ = f.say(t, "да")
	_ = f.say(t, "да")

	if got := f.session.State(); got != dialog.StateCompleted {
		t.Errorf("State() = %s, want completed", got)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunGreetsAndStops(t *testing.T) {
	f := newFixture(t, dialog.ProfileV2, nil)
	f.session.greetOnStart = true

	done := make(chan struct{})
	go func() {
		f.session.Run(context.Background())
		close(done)
	}()

	waitFor(t, "greeting", func() bool { return len(f.gateway.sentTexts()) == 2 })
	f.session.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after Stop()")
	}

	if f.session.State() != dialog.StateInitialQuestion {
		t.Errorf("State() = %s, want initial_question", f.session.State())
	}

	snap := f.session.Snapshot()
	if snap.Running || snap.ChatID != testChat || snap.PropertyID != "508437" || snap.ID == "" {
		t.Errorf("Snapshot() = %+v", snap)
	}

	if _, err := f.pump.Subscribe(testChat); err != nil {
		t.Errorf("Subscribe() after stop error = %v, want the inbox released", err)
	}
}

func TestSessionsSharingOneQueue(t *testing.T) {
	const otherChat = "79995556677@c.us"

	f := newFixture(t, dialog.ProfileV2, nil)
	other, _ := f.newSession(t, otherChat, dialog.ProfileV2, nil)

	f.gateway.queue = []*greenapi.Notification{
		inboundNotification(1, "B1", otherChat, "Здравствуйте"),
		inboundNotification(2, "A1", testChat, "Здравствуйте"),
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := f.pump.PumpOnce(ctx); err != nil {
			t.Fatalf("PumpOnce() error = %v", err)
		}
	}

	// The session that reads first must not consume the other chat's reply.
	for _, s := range []*Session{f.session, other} {
		if err := s.poller.RunCycle(ctx, s.HandleMessage); err != nil {
			t.Fatalf("RunCycle(%s) error = %v", s.ChatID(), err)
		}
	}

	for _, s := range []*Session{f.session, other} {
		if got := s.State(); got != dialog.StateInitialQuestion {
			t.Errorf("%s State() = %s, want initial_question", s.ChatID(), got)
		}
	}
	if got := len(f.gateway.sentTexts()); got != 4 {
		t.Errorf("sent %d messages, want greeting and question for both chats", got)
	}
	if len(f.gateway.deleted) != 2 {
		t.Errorf("deleted = %v, want both receipts", f.gateway.deleted)
	}
}

func inboundNotification(receipt int64, id, sender, text string) *greenapi.Notification {
	return &greenapi.Notification{
		ReceiptID: receipt,
		Body: greenapi.NotificationBody{
			TypeWebhook: greenapi.WebhookIncoming,
			IDMessage:   id,
			SenderData:  greenapi.SenderData{ChatID: sender, Sender: sender},
			MessageData: greenapi.MessageData{
				TypeMessage:     "textMessage",
				TextMessageData: &greenapi.TextMessageData{TextMessage: text},
			},
		},
	}
}

func TestRunExitsOnContextCancel(t *testing.T) {
	f := newFixture(t, dialog.ProfileV2, nil)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.session.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if f.session.Running() {
		t.Error("Running() = true after Run returned")
	}
}
