package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/parleyhq/parley/agent"
	"github.com/parleyhq/parley/core"
	"github.com/parleyhq/parley/memory"
	"github.com/parleyhq/parley/model"
	"github.com/parleyhq/parley/tool"
	"github.com/parleyhq/parley/trigger"
)

// fakeMessageStore is an in-process core.MessageStore.
type fakeMessageStore struct {
	mu     sync.Mutex
	scopes map[string][]core.Message
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{scopes: map[string][]core.Message{}}
}

func (s *fakeMessageStore) RecentMessages(_ context.Context, scopeID string, limit int) ([]core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.scopes[scopeID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]core.Message(nil), msgs...), nil
}

func (s *fakeMessageStore) SaveMessage(_ context.Context, scopeID string, msg core.Message) (core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes[scopeID] = append(s.scopes[scopeID], msg)
	return msg, nil
}

func (s *fakeMessageStore) count(scopeID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scopes[scopeID])
}

type fakeDirectory map[string]string

func (d fakeDirectory) User(_ context.Context, userID string) (core.Participant, error) {
	name, ok := d[userID]
	if !ok {
		return core.Participant{}, errors.New("unknown user")
	}
	return core.Participant{UserID: userID, DisplayName: name}, nil
}

func newTestRunner(gw model.Gateway, msgs core.MessageStore, optFns ...func(o *Options)) *Runner {
	reg := tool.NewRegistry(nil)
	return NewRunner(gw, reg, tool.NewExecutor(reg), msgs, optFns...)
}

func privateThread() core.RoomConfig {
	return core.RoomConfig{AgentEnabled: true}
}

func TestRunTurn_PersistsReplyAndMemory(t *testing.T) {
	gw := model.NewMockGateway("m")
	gw.EnqueueTurn(&model.Turn{Text: "Nice to meet you."})

	msgs := newFakeMessageStore()
	mem := memory.NewInMemoryStore()
	r := newTestRunner(gw, msgs, func(o *Options) { o.Memory = mem })

	incoming := core.NewMessage("t1", "u1", "hello, I am Bob")
	if _, err := msgs.SaveMessage(context.Background(), "t1", incoming); err != nil {
		t.Fatalf("saving incoming: %v", err)
	}

	res, err := r.RunTurn(context.Background(), privateThread(), "t1", "u1", incoming)
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if res.Answer != "Nice to meet you." {
		t.Fatalf("unexpected answer: %q", res.Answer)
	}

	// Reply persisted after the incoming message
	if got := msgs.count("t1"); got != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", got)
	}

	// Both sides of the turn landed in memory
	recalled, err := mem.Recall(context.Background(), "u1")
	if err != nil {
		t.Fatalf("recall failed: %v", err)
	}
	if len(recalled) != 2 || recalled[0].Body != "hello, I am Bob" {
		t.Fatalf("unexpected memory: %#v", recalled)
	}
	if recalled[1].Sender != core.SenderAgent {
		t.Fatalf("expected agent reply in memory, got %#v", recalled[1])
	}
}

func TestRunTurn_RecalledMemoryReachesModel(t *testing.T) {
	gw := model.NewMockGateway("m")
	msgs := newFakeMessageStore()
	mem := memory.NewInMemoryStore()

	seed := []core.Message{
		core.NewMessage("old-thread", "u1", "my dog is called Rex"),
		core.NewAgentMessage("old-thread", "Noted."),
	}
	if err := mem.AppendTurn(context.Background(), "u1", seed); err != nil {
		t.Fatalf("seeding memory: %v", err)
	}

	r := newTestRunner(gw, msgs, func(o *Options) { o.Memory = mem })

	incoming := core.NewMessage("t2", "u1", "what is my dog called?")
	res, err := r.RunTurn(context.Background(), privateThread(), "t2", "u1", incoming)
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	// The mock echoes the last user text; the turn must have seen the
	// recalled exchange without error.
	if !strings.Contains(res.Answer, "what is my dog called?") {
		t.Fatalf("unexpected answer: %q", res.Answer)
	}
	if res.State != agent.StateFinalized {
		t.Fatalf("expected finalized turn, got %v", res.State)
	}
}

func TestRunTurn_DegradedOnGatewayFailure(t *testing.T) {
	gw := model.NewMockGateway("m")
	gw.EnqueueError(&model.ProviderProtocolError{Provider: "mock", Err: errors.New("bad request")})

	msgs := newFakeMessageStore()
	r := newTestRunner(gw, msgs)

	incoming := core.NewMessage("t1", "u1", "hello")
	res, err := r.RunTurn(context.Background(), privateThread(), "t1", "u1", incoming)
	if err != nil {
		t.Fatalf("turn must not error, got %v", err)
	}
	if !res.Degraded() || res.Answer == "" {
		t.Fatalf("expected degraded answer, got %+v", res)
	}
	// The degraded answer is still delivered and persisted
	if got := msgs.count("t1"); got != 1 {
		t.Fatalf("expected persisted degraded reply, got %d messages", got)
	}
}

func TestRunTurn_CancelledTurnIsDiscarded(t *testing.T) {
	gw := model.NewMockGateway("m")
	msgs := newFakeMessageStore()
	mem := memory.NewInMemoryStore()
	r := newTestRunner(gw, msgs, func(o *Options) { o.Memory = mem })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	incoming := core.NewMessage("t1", "u1", "hello")
	_, err := r.RunTurn(ctx, privateThread(), "t1", "u1", incoming)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := msgs.count("t1"); got != 0 {
		t.Fatalf("cancelled turn must not persist, got %d messages", got)
	}
	recalled, _ := mem.Recall(context.Background(), "u1")
	if len(recalled) != 0 {
		t.Fatalf("cancelled turn must not reach memory: %#v", recalled)
	}
}

func TestRunTurn_BudgetExpiryDeliversDegradedAnswer(t *testing.T) {
	msgs := newFakeMessageStore()
	mem := memory.NewInMemoryStore()
	reg := tool.NewRegistry(nil)
	r := NewRunner(&stalledGateway{}, reg, tool.NewExecutor(reg), msgs, func(o *Options) {
		o.TurnBudget = 50 * time.Millisecond
		o.Memory = mem
	})

	incoming := core.NewMessage("t1", "u1", "are you there?")
	res, err := r.RunTurn(context.Background(), privateThread(), "t1", "u1", incoming)
	if err != nil {
		t.Fatalf("budget expiry must not error, got %v", err)
	}
	if res == nil || !res.Degraded() || res.Answer == "" {
		t.Fatalf("expected degraded answer, got %+v", res)
	}
	// The degraded reply is persisted and remembered like any other turn
	if got := msgs.count("t1"); got != 1 {
		t.Fatalf("expected persisted degraded reply, got %d messages", got)
	}
	recalled, err := mem.Recall(context.Background(), "u1")
	if err != nil || len(recalled) != 2 {
		t.Fatalf("expected full turn in memory, got %d messages (err %v)", len(recalled), err)
	}
}

func TestRunTurn_MemoryAccessErrorDegradesToEmptyRecall(t *testing.T) {
	gw := model.NewMockGateway("m")
	msgs := newFakeMessageStore()

	r := newTestRunner(gw, msgs, func(o *Options) { o.Memory = &lockedOutStore{} })

	incoming := core.NewMessage("t1", "u1", "hello after rotation")
	res, err := r.RunTurn(context.Background(), privateThread(), "t1", "u1", incoming)
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if res.State != agent.StateFinalized {
		t.Fatalf("turn must survive memory trouble, got %v", res.State)
	}
}

func TestRunTurn_SerializedPerScope(t *testing.T) {
	msgs := newFakeMessageStore()

	var inFlight, maxInFlight int32
	var mu sync.Mutex
	reg := tool.NewRegistry(nil)
	r := NewRunner(&slowGateway{delay: 20 * time.Millisecond, inFlight: &inFlight, max: &maxInFlight, mu: &mu},
		reg, tool.NewExecutor(reg), msgs)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			incoming := core.NewMessage("same-scope", "u1", "ping")
			if _, err := r.RunTurn(context.Background(), privateThread(), "same-scope", "u1", incoming); err != nil {
				t.Errorf("turn failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxInFlight != 1 {
		t.Fatalf("turns in one scope must serialize, saw %d in flight", maxInFlight)
	}
}

func TestRunTurn_ScopesRunConcurrently(t *testing.T) {
	msgs := newFakeMessageStore()

	var inFlight, maxInFlight int32
	var mu sync.Mutex
	reg := tool.NewRegistry(nil)
	r := NewRunner(&slowGateway{delay: 40 * time.Millisecond, inFlight: &inFlight, max: &maxInFlight, mu: &mu},
		reg, tool.NewExecutor(reg), msgs)

	var wg sync.WaitGroup
	for _, scope := range []string{"s1", "s2", "s3"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			incoming := core.NewMessage(scope, "u1", "ping")
			if _, err := r.RunTurn(context.Background(), privateThread(), scope, "u1", incoming); err != nil {
				t.Errorf("turn failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxInFlight < 2 {
		t.Fatalf("distinct scopes must overlap, saw max %d in flight", maxInFlight)
	}
}

func TestShouldRespond_Delegation(t *testing.T) {
	gw := model.NewMockGateway("m")
	r := newTestRunner(gw, newFakeMessageStore())

	room := core.RoomConfig{AgentEnabled: true, ParticipantIDs: []string{"u1", "u2"}}
	if d := r.ShouldRespond(room, "@ai summarize please"); d.Reason != trigger.ReasonExplicitMention {
		t.Fatalf("expected explicit_mention, got %+v", d)
	}

	private := privateThread()
	if d := r.ShouldRespond(private, "anything at all"); !d.ShouldRespond || d.Reason != trigger.ReasonDirectThread {
		t.Fatalf("private threads always respond, got %+v", d)
	}

	disabled := core.RoomConfig{AgentEnabled: false}
	if d := r.ShouldRespond(disabled, "hello"); d.ShouldRespond {
		t.Fatalf("disabled scope must not respond, got %+v", d)
	}
}

func TestRunTurn_RoomUsesDisplayNames(t *testing.T) {
	gw := model.NewMockGateway("m")
	msgs := newFakeMessageStore()
	r := newTestRunner(gw, msgs, func(o *Options) {
		o.Users = fakeDirectory{"u-bob": "Bob"}
	})

	room := core.RoomConfig{AgentEnabled: true, ParticipantIDs: []string{"u-bob"}}
	incoming := core.NewMessage("room-1", "u-bob", "who is around?")

	res, err := r.RunTurn(context.Background(), room, "room-1", "u-bob", incoming)
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	// The mock echoes the last user text, which carries the speaker label
	if !strings.Contains(res.Answer, "[Bob]:") {
		t.Fatalf("expected labeled room context, got %q", res.Answer)
	}
}

// lockedOutStore denies every recall, as a store does after key loss.
type lockedOutStore struct{}

func (s *lockedOutStore) AppendTurn(context.Context, string, []core.Message) error {
	return nil
}

func (s *lockedOutStore) Recall(_ context.Context, userID string) ([]core.Message, error) {
	return nil, &memory.AccessError{UserID: userID, Reason: "no key for record"}
}

func (s *lockedOutStore) RotateKey(context.Context, string) error { return nil }

// stalledGateway blocks until the turn context expires.
type stalledGateway struct{}

func (g *stalledGateway) Generate(ctx context.Context, _ model.Request) (*model.Turn, error) {
	<-ctx.Done()
	return nil, &model.ProviderUnavailableError{Provider: "stalled", Err: ctx.Err()}
}

func (g *stalledGateway) Info() model.Info { return model.Info{Name: "stalled", Provider: "mock"} }

// slowGateway answers after a delay and records the maximum number of
// Generate calls in flight at once.
type slowGateway struct {
	delay    time.Duration
	inFlight *int32
	max      *int32
	mu       *sync.Mutex
}

func (g *slowGateway) Generate(context.Context, model.Request) (*model.Turn, error) {
	g.mu.Lock()
	*g.inFlight++
	if *g.inFlight > *g.max {
		*g.max = *g.inFlight
	}
	g.mu.Unlock()

	time.Sleep(g.delay)

	g.mu.Lock()
	*g.inFlight--
	g.mu.Unlock()

	return &model.Turn{Text: "pong", FinishReason: "stop"}, nil
}

func (g *slowGateway) Info() model.Info { return model.Info{Name: "slow", Provider: "mock"} }
