// Package conversation assembles model-ready prompts from stored message
// history. It owns the system prompt wording, the speaker-label convention
// for rooms, and the sliding context window.
package conversation

import (
	"fmt"
	"strings"

	"github.com/parleyhq/parley/core"
)

// DefaultWindow is the number of history messages a prompt may carry.
const DefaultWindow = 10

// Options configures a Builder.
type Options struct {
	// Window bounds how many history messages are included, oldest dropped
	// first. Default DefaultWindow.
	Window int
}

// Builder turns message history into a (system prompt, contents) pair.
type Builder struct {
	window int
}

// NewBuilder creates a prompt builder.
func NewBuilder(optFns ...func(o *Options)) *Builder {
	opts := Options{Window: DefaultWindow}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	return &Builder{window: opts.Window}
}

// BuildRoom assembles the prompt for a multi-participant room. User messages
// are labeled "[DisplayName]: body" so the model can track speakers;
// assistant messages carry no label. Unknown senders fall back to their
// user id.
func (b *Builder) BuildRoom(agentName string, participants []core.Participant, history []core.Message) (string, []core.Content) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, an assistant participating in a group conversation.\n", agentName)
	sb.WriteString("The participants are: ")
	for i, p := range participants {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.DisplayName)
	}
	sb.WriteString(".\n")
	sb.WriteString("Messages from participants are prefixed with their name in brackets. ")
	sb.WriteString("Address people by name when it helps, keep replies brief, and only ")
	sb.WriteString("speak when you add something useful to the whole group.")

	names := make(map[string]string, len(participants))
	for _, p := range participants {
		names[p.UserID] = p.DisplayName
	}

	return sb.String(), b.contents(history, func(m core.Message) string {
		name := names[m.Sender]
		if name == "" {
			name = m.Sender
		}
		return fmt.Sprintf("[%s]: %s", name, m.Body)
	})
}

// BuildPrivate assembles the prompt for a one-on-one thread. No speaker
// labels are applied.
func (b *Builder) BuildPrivate(agentName string, history []core.Message) (string, []core.Content) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, a personal assistant in a private conversation.\n", agentName)
	sb.WriteString("Be direct and helpful. You may use your memory of earlier ")
	sb.WriteString("conversations with this person when it is relevant.")

	return sb.String(), b.contents(history, func(m core.Message) string {
		return m.Body
	})
}

// contents converts the newest b.window history messages into model contents.
// Tool activity recorded in history is reconstructed into the corresponding
// union parts so the pairing invariant survives a reload.
func (b *Builder) contents(history []core.Message, label func(core.Message) string) []core.Content {
	if len(history) > b.window {
		history = history[len(history)-b.window:]
	}
	history = trimDanglingTools(history)

	contents := make([]core.Content, 0, len(history))
	for _, msg := range history {
		switch msg.Kind {
		case core.KindToolCall:
			if msg.ToolCall == nil {
				continue
			}
			contents = append(contents, core.Content{
				Role:  core.RoleAssistant,
				Parts: []core.Part{core.ToolCallPart{ToolCall: *msg.ToolCall}},
			})
		case core.KindToolResult:
			if msg.ToolResult == nil {
				continue
			}
			contents = append(contents, core.Content{
				Role:  core.RoleTool,
				Parts: []core.Part{core.ToolResultPart{ToolResult: *msg.ToolResult}},
			})
		default:
			role := core.RoleUser
			body := label(msg)
			if msg.Sender == core.SenderAgent {
				role = core.RoleAssistant
				body = msg.Body
			}
			contents = append(contents, core.Content{
				Role:  role,
				Parts: []core.Part{core.TextPart{Text: body}},
			})
		}
	}
	return contents
}

// trimDanglingTools drops tool messages whose counterpart fell outside the
// window: results with no earlier call, and calls with no surviving result.
// The window boundary can split a call/result pair, and a half pair would be
// rejected by every provider.
func trimDanglingTools(history []core.Message) []core.Message {
	called := make(map[string]bool)
	answered := make(map[string]bool)

	kept := make([]core.Message, 0, len(history))
	for _, m := range history {
		switch m.Kind {
		case core.KindToolCall:
			if m.ToolCall == nil {
				continue
			}
			called[m.ToolCall.ID] = true
			kept = append(kept, m)
		case core.KindToolResult:
			if m.ToolResult == nil || !called[m.ToolResult.CallID] || answered[m.ToolResult.CallID] {
				continue
			}
			answered[m.ToolResult.CallID] = true
			kept = append(kept, m)
		default:
			kept = append(kept, m)
		}
	}

	out := make([]core.Message, 0, len(kept))
	for _, m := range kept {
		if m.Kind == core.KindToolCall && !answered[m.ToolCall.ID] {
			continue
		}
		out = append(out, m)
	}
	return out
}
