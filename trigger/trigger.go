// Package trigger decides whether the assistant should respond to a room
// message. Decisions are made from the message text alone, without a model
// call, so they are cheap enough to run on every incoming message.
package trigger

import (
	"math/rand"
	"strings"
	"unicode/utf8"

	"github.com/parleyhq/parley/core"
)

// Reason explains why the engine did or did not fire.
type Reason string

const (
	ReasonDisabled         Reason = "disabled"
	ReasonDirectThread     Reason = "direct_thread"
	ReasonExplicitMention  Reason = "explicit_mention"
	ReasonLanguageBarrier  Reason = "language_barrier"
	ReasonEmpathyIssue     Reason = "empathy_issue"
	ReasonQuestionSampling Reason = "question_sampling"
	ReasonNone             Reason = "none"
)

// Decision is the outcome of evaluating one message.
type Decision struct {
	ShouldRespond bool
	Reason        Reason
}

// Rand supplies the random draw for question sampling. It lets tests pin
// the sequence with a seeded source.
type Rand interface {
	Float64() float64
}

// Options configures an Engine. Zero values fall back to the defaults
// listed on each field.
type Options struct {
	// MentionTokens are standalone tokens that count as an explicit mention
	// of the assistant. Default: "@ai", "ai".
	MentionTokens []string

	// HelpKeywords also count as explicit mentions when they appear as
	// standalone words.
	HelpKeywords []string

	// LanguageCues are case-insensitive substrings suggesting a participant
	// is struggling to follow the conversation.
	LanguageCues []string

	// EmpathyCues are case-insensitive substrings suggesting interpersonal
	// friction the assistant may help defuse.
	EmpathyCues []string

	// QuestionProbability is the chance of responding to an unaddressed
	// question. Default 0.3.
	QuestionProbability float64

	// QuestionMinLength is the minimum text length, counted in runes, for
	// question sampling. Default 10.
	QuestionMinLength int

	// Rand overrides the sampling source. The default draws from the
	// lock-protected top-level math/rand source, so one engine can serve
	// concurrent Decide calls.
	Rand Rand
}

// Engine evaluates room messages against a fixed cue configuration.
type Engine struct {
	mentionTokens       []string
	languageCues        []string
	empathyCues         []string
	questionProbability float64
	questionMinLength   int
	rand                Rand
}

// NewEngine creates a trigger engine.
func NewEngine(optFns ...func(o *Options)) *Engine {
	opts := Options{
		MentionTokens:       []string{"@ai", "ai"},
		HelpKeywords:        []string{"help", "assistant"},
		LanguageCues:        []string{"don't understand", "dont understand", "translate", "what did", "what does that mean", "in english", "lost me"},
		EmpathyCues:         []string{"rude", "hurt", "offended", "that was mean", "uncalled for", "not cool"},
		QuestionProbability: 0.3,
		QuestionMinLength:   10,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.QuestionProbability <= 0 {
		opts.QuestionProbability = 0.3
	}
	if opts.QuestionMinLength <= 0 {
		opts.QuestionMinLength = 10
	}

	e := &Engine{
		questionProbability: opts.QuestionProbability,
		questionMinLength:   opts.QuestionMinLength,
		rand:                opts.Rand,
	}
	for _, t := range opts.MentionTokens {
		e.mentionTokens = append(e.mentionTokens, strings.ToLower(t))
	}
	for _, k := range opts.HelpKeywords {
		e.mentionTokens = append(e.mentionTokens, strings.ToLower(k))
	}
	for _, c := range opts.LanguageCues {
		e.languageCues = append(e.languageCues, strings.ToLower(c))
	}
	for _, c := range opts.EmpathyCues {
		e.empathyCues = append(e.empathyCues, strings.ToLower(c))
	}
	if e.rand == nil {
		e.rand = sharedRand{}
	}
	return e
}

// sharedRand draws from the top-level math/rand source, which serializes
// access internally.
type sharedRand struct{}

func (sharedRand) Float64() float64 { return rand.Float64() }

// Decide evaluates one message. Rules are checked in precedence order and
// the first match wins: disabled, explicit mention, language barrier,
// empathy issue, question sampling.
func (e *Engine) Decide(room core.RoomConfig, text string) Decision {
	if !room.AgentEnabled {
		return Decision{ShouldRespond: false, Reason: ReasonDisabled}
	}

	lower := strings.ToLower(text)

	if e.mentioned(lower) {
		return Decision{ShouldRespond: true, Reason: ReasonExplicitMention}
	}
	for _, cue := range e.languageCues {
		if strings.Contains(lower, cue) {
			return Decision{ShouldRespond: true, Reason: ReasonLanguageBarrier}
		}
	}
	for _, cue := range e.empathyCues {
		if strings.Contains(lower, cue) {
			return Decision{ShouldRespond: true, Reason: ReasonEmpathyIssue}
		}
	}
	if strings.Contains(text, "?") && utf8.RuneCountInString(text) >= e.questionMinLength {
		if e.rand.Float64() < e.questionProbability {
			return Decision{ShouldRespond: true, Reason: ReasonQuestionSampling}
		}
	}

	return Decision{ShouldRespond: false, Reason: ReasonNone}
}

// mentioned reports whether any mention token appears as a standalone word.
// Surrounding punctuation is trimmed so "ai," and "(@ai)" still match, but
// "aisle" does not.
func (e *Engine) mentioned(lower string) bool {
	for _, field := range strings.Fields(lower) {
		word := strings.Trim(field, ".,:;!?()[]{}\"'")
		for _, token := range e.mentionTokens {
			if word == token {
				return true
			}
		}
	}
	return false
}
