package dialog

import (
	"fmt"
)

// Pace tells the dispatcher how long to wait before a reply goes out.
type Pace int

const (
	PaceImmediate Pace = iota
	PaceReply
	PaceQuestion
)

type Reply struct {
	Text string
	Pace Pace
}

// Decision is the outcome of one step: the state to commit and the replies to
// send afterwards, in order.
type Decision struct {
	Next    State
	Replies []Reply
	Reason  string
}

type transitionKey struct {
	from   State
	intent Intent
}

type transition struct {
	to     State
	reason string
	reply  func(Texts) string
}

// Profile is a versioned transition table plus the feature switches that
// differed between deployments of the bot.
type Profile struct {
	Name string
	// HardIntents enables the raw-text opt-out and pause checks.
	HardIntents bool
	table       map[transitionKey]transition
}

var ProfileV1 = Profile{
	Name: "v1",
	table: map[transitionKey]transition{
		{StateInitialQuestion, IntentPositive}:   {StatePriceConfirmation, "qualified", Texts.PriceConfirmation},
		{StateInitialQuestion, IntentNegative}:   {StateCompleted, "declined", Texts.Decline},
		{StatePriceConfirmation, IntentPositive}: {StateCompleted, "price_confirmed", Texts.CommissionFinal},
		{StatePriceConfirmation, IntentNegative}: {StatePriceConfirmation, "price_rejected", Texts.AskPrice},
	},
}

var ProfileV2 = Profile{
	Name:        "v2",
	HardIntents: true,
	table: map[transitionKey]transition{
		{StateInitialQuestion, IntentPositive}:   {StatePriceConfirmation, "qualified", Texts.PriceConfirmation},
		{StateInitialQuestion, IntentNegative}:   {StateCompleted, "declined", Texts.Decline},
		{StatePriceConfirmation, IntentPositive}: {StateCommissionInfo, "price_confirmed", Texts.Commission},
		{StatePriceConfirmation, IntentNegative}: {StatePriceUpdate, "price_rejected", Texts.AskPrice},
		{StateCommissionInfo, IntentPositive}:    {StateCompleted, "commission_accepted", Texts.ClosingConfirmed},
		{StateCommissionInfo, IntentNegative}:    {StateCompleted, "commission_declined", Texts.ClosingDeclined},
	},
}

func ProfileByName(name string) (Profile, error) {
	switch name {
	case "", ProfileV2.Name:
		return ProfileV2, nil
	case ProfileV1.Name:
		return ProfileV1, nil
	default:
		return Profile{}, fmt.Errorf("unknown dialog profile %q", name)
	}
}

// Machine maps (state, intent, raw text) to a Decision. It holds no
// conversation state and performs no I/O.
type Machine struct {
	profile Profile
	phrases Phrases
	texts   Texts
}

func NewMachine(profile Profile, phrases Phrases, texts Texts) *Machine {
	return &Machine{
		profile: profile,
		phrases: phrases,
		texts:   texts,
	}
}

func (m *Machine) Profile() Profile {
	return m.profile
}

// Initialize is the entry transition out of StateUninitialized. ownerName must
// already be normalized.
func (m *Machine) Initialize(ownerName string) Decision {
	return Decision{
		Next:   StateInitialQuestion,
		Reason: "initialized",
		Replies: []Reply{
			{Text: m.texts.Greeting(ownerName), Pace: PaceImmediate},
			{Text: m.texts.Qualifying(ownerName), Pace: PaceQuestion},
		},
	}
}

// Prefilter decides on raw text alone, before objection handling and
// classification. The second result is false when the text has to go on to
// the classifier.
func (m *Machine) Prefilter(state State, text string) (Decision, bool) {
	if state.Terminal() || state == StateUninitialized {
		return Decision{}, false
	}

	if state == StatePriceUpdate {
		return m.priceUpdate(text), true
	}

	if !m.profile.HardIntents {
		return Decision{}, false
	}

	switch {
	case m.phrases.OptOut(text):
		return Decision{
			Next:    StateCompleted,
			Reason:  "opt_out",
			Replies: []Reply{{Text: m.texts.ClosingOptOut(), Pace: PaceReply}},
		}, true
	case m.phrases.Pause(text):
		return Decision{
			Next:    state,
			Reason:  "pause",
			Replies: []Reply{{Text: m.texts.PauseAck(), Pace: PaceReply}},
		}, true
	}

	return Decision{}, false
}

func (m *Machine) priceUpdate(text string) Decision {
	if m.profile.HardIntents && m.phrases.OptOut(text) {
		return Decision{
			Next:    StateCompleted,
			Reason:  "opt_out",
			Replies: []Reply{{Text: m.texts.ClosingOptOut(), Pace: PaceReply}},
		}
	}

	price, ok := ExtractPrice(text)
	if !ok {
		return Decision{
			Next:    StatePriceUpdate,
			Reason:  "price_unreadable",
			Replies: []Reply{{Text: m.texts.AskPriceAgain(), Pace: PaceReply}},
		}
	}

	return Decision{
		Next:    StateCommissionInfo,
		Reason:  "price_updated",
		Replies: []Reply{{Text: m.texts.CommissionWithPrice(price), Pace: PaceReply}},
	}
}

// AcceptsObjections reports whether free text in this state may be routed to
// the objection service. Price answers are never treated as objections.
func (m *Machine) AcceptsObjections(state State) bool {
	return !state.Terminal() && state != StateUninitialized && state != StatePriceUpdate
}

// Next applies a classified intent. Neutral intents, terminal states and
// pairs missing from the table yield no decision.
func (m *Machine) Next(state State, intent Intent) (Decision, bool) {
	if intent == IntentNeutral || state.Terminal() {
		return Decision{}, false
	}

	tr, ok := m.profile.table[transitionKey{state, intent}]
	if !ok {
		return Decision{}, false
	}

	return Decision{
		Next:    tr.to,
		Reason:  tr.reason,
		Replies: []Reply{{Text: tr.reply(m.texts), Pace: PaceReply}},
	}, true
}
