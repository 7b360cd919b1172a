package trigger

import (
	"math/rand"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/parleyhq/parley/core"
)

func enabledRoom() core.RoomConfig {
	return core.RoomConfig{AgentEnabled: true, ParticipantIDs: []string{"u1", "u2"}}
}

// fixedRand pins the sampling draw.
type fixedRand struct {
	value float64
}

func (r fixedRand) Float64() float64 { return r.value }

func newTestEngine(optFns ...func(o *Options)) *Engine {
	fns := append([]func(o *Options){func(o *Options) {
		o.Rand = fixedRand{value: 0.99} // sampling never fires unless overridden
	}}, optFns...)
	return NewEngine(fns...)
}

func TestDecide_DisabledRoom(t *testing.T) {
	e := newTestEngine()
	room := core.RoomConfig{AgentEnabled: false, ParticipantIDs: []string{"u1"}}

	for _, text := range []string{"@ai hello", "I don't understand", "anything?"} {
		d := e.Decide(room, text)
		if d.ShouldRespond || d.Reason != ReasonDisabled {
			t.Fatalf("text %q: expected disabled, got %+v", text, d)
		}
	}
}

func TestDecide_ExplicitMention(t *testing.T) {
	e := newTestEngine()

	cases := []string{
		"@ai can you translate what François said?",
		"hey ai, what do you think",
		"(@ai) thoughts?",
		"AI what is the plan",
		"can someone help here",
	}
	for _, text := range cases {
		d := e.Decide(enabledRoom(), text)
		if !d.ShouldRespond || d.Reason != ReasonExplicitMention {
			t.Fatalf("text %q: expected explicit_mention, got %+v", text, d)
		}
	}
}

func TestDecide_MentionMustBeStandalone(t *testing.T) {
	e := newTestEngine()

	for _, text := range []string{"the aisle is blocked", "detail matters", "email me later"} {
		d := e.Decide(enabledRoom(), text)
		if d.Reason == ReasonExplicitMention {
			t.Fatalf("text %q: substring must not count as mention", text)
		}
	}
}

func TestDecide_LanguageBarrier(t *testing.T) {
	e := newTestEngine()

	cases := []string{
		"I don't understand what he said",
		"Can anyone TRANSLATE that for me",
		"what did François just say",
	}
	for _, text := range cases {
		d := e.Decide(enabledRoom(), text)
		if !d.ShouldRespond || d.Reason != ReasonLanguageBarrier {
			t.Fatalf("text %q: expected language_barrier, got %+v", text, d)
		}
	}
}

func TestDecide_EmpathyIssue(t *testing.T) {
	e := newTestEngine()

	d := e.Decide(enabledRoom(), "that was really rude of him")
	if !d.ShouldRespond || d.Reason != ReasonEmpathyIssue {
		t.Fatalf("expected empathy_issue, got %+v", d)
	}
}

func TestDecide_PrecedenceFirstMatchWins(t *testing.T) {
	e := newTestEngine()

	// Mention outranks the language cue also present in the text
	d := e.Decide(enabledRoom(), "@ai I don't understand that")
	if d.Reason != ReasonExplicitMention {
		t.Fatalf("expected mention precedence, got %+v", d)
	}

	// Language cue outranks empathy cue
	d = e.Decide(enabledRoom(), "I don't understand why he was so rude")
	if d.Reason != ReasonLanguageBarrier {
		t.Fatalf("expected language precedence, got %+v", d)
	}
}

func TestDecide_QuestionSampling(t *testing.T) {
	fires := newTestEngine(func(o *Options) { o.Rand = fixedRand{value: 0.1} })
	d := fires.Decide(enabledRoom(), "what is the plan for tomorrow?")
	if !d.ShouldRespond || d.Reason != ReasonQuestionSampling {
		t.Fatalf("expected question_sampling, got %+v", d)
	}

	quiet := newTestEngine(func(o *Options) { o.Rand = fixedRand{value: 0.9} })
	d = quiet.Decide(enabledRoom(), "what is the plan for tomorrow?")
	if d.ShouldRespond || d.Reason != ReasonNone {
		t.Fatalf("expected none on failed draw, got %+v", d)
	}
}

func TestDecide_QuestionLengthBoundary(t *testing.T) {
	e := newTestEngine(func(o *Options) {
		o.Rand = fixedRand{value: 0.0}
		o.QuestionMinLength = 10
	})

	atBoundary := "homework?!" // exactly 10 characters
	if len(atBoundary) != 10 {
		t.Fatalf("test fixture drifted: %d chars", len(atBoundary))
	}
	if d := e.Decide(enabledRoom(), atBoundary); d.Reason != ReasonQuestionSampling {
		t.Fatalf("boundary length must be eligible, got %+v", d)
	}

	below := atBoundary[:9]
	if !strings.Contains(below, "?") {
		t.Fatalf("test fixture drifted: %q", below)
	}
	if d := e.Decide(enabledRoom(), below); d.Reason != ReasonNone {
		t.Fatalf("one below boundary must be ineligible, got %+v", d)
	}
}

func TestDecide_MultibyteQuestionCountsRunes(t *testing.T) {
	e := newTestEngine(func(o *Options) {
		o.Rand = fixedRand{value: 0.0}
		o.QuestionMinLength = 10
	})

	short := "àéîõü çà?" // 9 runes but 16 bytes
	if utf8.RuneCountInString(short) != 9 {
		t.Fatalf("test fixture drifted: %d runes", utf8.RuneCountInString(short))
	}
	if d := e.Decide(enabledRoom(), short); d.Reason != ReasonNone {
		t.Fatalf("9 visible characters must be ineligible, got %+v", d)
	}

	long := "qué hacemos mañana por la tarde?"
	if d := e.Decide(enabledRoom(), long); d.Reason != ReasonQuestionSampling {
		t.Fatalf("accented question above threshold must sample, got %+v", d)
	}
}

func TestDecide_DefaultEngineIsConcurrencySafe(t *testing.T) {
	// The default sampling source is shared across goroutines; the runner
	// calls Decide concurrently for independent scopes.
	e := NewEngine()
	room := enabledRoom()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				d := e.Decide(room, "does anyone know when the meeting starts?")
				if d.Reason != ReasonQuestionSampling && d.Reason != ReasonNone {
					t.Errorf("unexpected decision %+v", d)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestDecide_DeterministicForSeed(t *testing.T) {
	text := "does anyone know when the meeting starts?"

	run := func() []bool {
		e := NewEngine(func(o *Options) {
			o.Rand = rand.New(rand.NewSource(42))
		})
		var out []bool
		for i := 0; i < 20; i++ {
			out = append(out, e.Decide(enabledRoom(), text).ShouldRespond)
		}
		return out
	}

	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("decision %d diverged across identical seeds", i)
		}
	}
}

func TestDecide_PlainStatementIsNone(t *testing.T) {
	e := newTestEngine()
	d := e.Decide(enabledRoom(), "see you all tomorrow at nine")
	if d.ShouldRespond || d.Reason != ReasonNone {
		t.Fatalf("expected none, got %+v", d)
	}
}
