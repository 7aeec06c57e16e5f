package dialog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var monthsPrepositional = [...]string{
	"январе", "феврале", "марте", "апреле", "мае", "июне",
	"июле", "августе", "сентябре", "октябре", "ноябре", "декабре",
}

// Texts renders every outbound message of the flow for one property.
type Texts struct {
	company string
	facts   Facts
}

func NewTexts(company string, facts Facts) Texts {
	return Texts{company: company, facts: facts}
}

func (t Texts) Greeting(name string) string {
	if name == "" {
		return "Добрый день!"
	}
	return fmt.Sprintf("%s, добрый день!", name)
}

// Qualifying cites previous rentals only when there were some.
func (t Texts) Qualifying(name string) string {
	intro := fmt.Sprintf("Я — ИИ (искусственный интеллект) компании %s.", t.company)

	if t.facts.PriorEngagements <= 0 {
		var b strings.Builder
		b.WriteString(intro)
		if when := formatMonth(t.facts.LastAdvertised); when != "" {
			fmt.Fprintf(&b, " Мы работали с вами %s.", when)
		}
		fmt.Fprintf(&b, " Видим, что ваша квартира на %s снова сдается — верно? Если да, можем подключиться к сдаче вашей квартиры?", t.facts.Address)
		return b.String()
	}

	seen := "Видим"
	if name != "" {
		seen = name + ", видим"
	}

	return fmt.Sprintf("%s Мы уже %d %s сдавали вашу квартиру на %s. %s, что она снова сдается — верно? Если да, можем подключиться к сдаче вашей квартиры?",
		intro, t.facts.PriorEngagements, timesWord(t.facts.PriorEngagements), t.facts.Address, seen)
}

func (t Texts) PriceConfirmation() string {
	return fmt.Sprintf("Хорошо, спасибо за доверие. Пару моментов для актуализации информации. Стоимость квартиры %s руб (с коммуналкой, но счетчики отдельно), верно?",
		FormatPrice(t.facts.Price))
}

func (t Texts) Decline() string {
	return "Я вас понял, извините за беспокойство."
}

func (t Texts) AskPrice() string {
	return "Понял вас. Подскажите, пожалуйста, какая цена актуальна на данный момент?"
}

func (t Texts) AskPriceAgain() string {
	return "Не совсем понял. Напишите, пожалуйста, актуальную стоимость цифрами, например: 95 000."
}

func (t Texts) Commission() string {
	return fmt.Sprintf("На всякий случай проговариваю, что наша комиссия по факту заселения жильцов, оплачиваемая вами, %s%% (как и при прошлом сотрудничестве). Согласны?",
		formatRate(t.facts.CommissionRate))
}

func (t Texts) CommissionWithPrice(price int64) string {
	return fmt.Sprintf("Спасибо, зафиксировал стоимость %s руб. На всякий случай проговариваю, что наша комиссия по факту заселения жильцов, оплачиваемая вами, %s%% (как и при прошлом сотрудничестве). Согласны?",
		FormatPrice(price), formatRate(t.facts.CommissionRate))
}

// CommissionFinal is the closing disclosure of the v1 flow, which does not wait
// for the commission to be accepted.
func (t Texts) CommissionFinal() string {
	return fmt.Sprintf("На всякий случай проговариваю, что наша комиссия по факту заселения жильцов оплачиваемая вами %s%% (как и при прошлом сотрудничестве). Тогда мы запускаем в рекламу, как будут первые звонки сразу свяжемся с вами.",
		formatRate(t.facts.CommissionRate))
}

func (t Texts) ClosingConfirmed() string {
	return "Отлично! Тогда мы запускаем в рекламу, как будут первые звонки сразу свяжемся с вами."
}

func (t Texts) ClosingDeclined() string {
	return "Понял вас, спасибо за ответ. Если передумаете, просто напишите нам сюда."
}

func (t Texts) ClosingOptOut() string {
	return "Понял вас, больше не побеспокоим. Хорошего дня!"
}

func (t Texts) PauseAck() string {
	return "Хорошо, не тороплю. Напишите, когда будет удобно."
}

func timesWord(n int) string {
	if n%10 >= 2 && n%10 <= 4 && (n%100 < 12 || n%100 > 14) {
		return "раза"
	}
	return "раз"
}

func formatRate(rate float64) string {
	return strings.ReplaceAll(strconv.FormatFloat(rate, 'f', -1, 64), ".", ",")
}

func formatMonth(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("в %s %d года", monthsPrepositional[t.Month()-1], t.Year())
}
