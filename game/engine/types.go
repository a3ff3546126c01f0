package engine

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Answer is one of the five answer codes a player can give to a question.
type Answer int

const (
	Yes Answer = iota
	No
	DontKnow
	Probably
	ProbablyNot
)

// NoAnswer stands in for a code that could not be parsed. It is never Valid.
const NoAnswer Answer = -1

var answerNames = [...]string{"yes", "no", "dont_know", "probably", "probably_not"}

// Valid reports whether a is one of the known answer codes.
func (a Answer) Valid() bool {
	return a >= Yes && a <= ProbablyNot
}

func (a Answer) String() string {
	if !a.Valid() {
		return "answer(" + strconv.Itoa(int(a)) + ")"
	}
	return answerNames[a]
}

// ParseAnswer parses a decimal answer code. Anything that is not an integer
// in the closed set yields ErrInvalidAnswer.
func ParseAnswer(s string) (Answer, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidAnswer, "%q is not a number", s)
	}
	a := Answer(n)
	if !a.Valid() {
		return 0, errors.Wrapf(ErrInvalidAnswer, "%d is not between %d and %d", n, Yes, ProbablyNot)
	}
	return a, nil
}

// AllAnswers lists the answer codes in numeric order.
func AllAnswers() []Answer {
	return []Answer{Yes, No, DontKnow, Probably, ProbablyNot}
}

// Suggestion is the engine's guess, only present once the game is won.
type Suggestion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PhotoURL    string `json:"photo_url"`
}

// State is the passive view of a game after the latest engine call.
type State struct {
	Question   string      `json:"question"`
	Progress   int         `json:"progress"`
	Step       int         `json:"step"`
	Win        bool        `json:"win"`
	Suggestion *Suggestion `json:"suggestion,omitempty"`
}

// Options configure a new game.
type Options struct {
	Region    string `json:"region" env:"ENGINE_REGION" envDefault:"id"`
	ChildMode bool   `json:"child_mode" env:"ENGINE_CHILD_MODE" envDefault:"false"`
	Catalog   string `json:"catalog,omitempty" env:"ENGINE_CATALOG"`
}

// Merge returns o with empty fields taken from defaults. ChildMode is
// sticky: either side enabling it enables it.
func (o Options) Merge(defaults Options) Options {
	if o.Region == "" {
		o.Region = defaults.Region
	}
	if o.Catalog == "" {
		o.Catalog = defaults.Catalog
	}
	o.ChildMode = o.ChildMode || defaults.ChildMode
	return o
}

// Question is a yes/no question a Simulator can ask.
type Question struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Character is a guessable entry of a Catalog. Traits maps question IDs to
// the truthful answer for this character; a missing trait means "no".
type Character struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	PhotoURL    string          `json:"photo_url"`
	Adult       bool            `json:"adult,omitempty"`
	Traits      map[string]bool `json:"traits"`
}

// Catalog is the set of characters and questions a Simulator plays over.
type Catalog struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Questions   []Question  `json:"questions"`
	Characters  []Character `json:"characters"`
}
