package transcript

import "time"

type Direction string

const (
	DirectionIn    Direction = "in"
	DirectionOut   Direction = "out"
	DirectionState Direction = "state"
)

type Entry struct {
	Time      time.Time `json:"time"`
	Direction Direction `json:"direction"`
	Text      string    `json:"text,omitempty"`
	State     string    `json:"state,omitempty"`
}
