package core

import "fmt"

// ValidatePairing checks the tool call / tool result pairing invariant over an
// ordered content sequence: every ToolResultPart must reference a ToolCallPart
// issued earlier in the sequence, no call may be answered twice, and results
// must not precede their calls. Adapters run this client-side before any
// provider request is built; providers are never relied on to catch it.
// It also enforces the strict form some providers require: once a call is
// issued, its result must arrive before any further assistant content, and no
// call may be left unanswered at the end of the sequence.
func ValidatePairing(contents []Content) error {
	issued := map[string]bool{}   // call id -> seen
	answered := map[string]bool{} // call id -> already has a result
	pending := 0                  // issued calls still awaiting a result

	for i, c := range contents {
		if c.Role == RoleAssistant && pending > 0 {
			return fmt.Errorf("content[%d]: assistant content before %d pending tool result(s)", i, pending)
		}
		for _, p := range c.Parts {
			switch part := p.(type) {
			case ToolCallPart:
				id := part.ToolCall.ID
				if id == "" {
					return fmt.Errorf("content[%d]: tool call %q has empty id", i, part.ToolCall.Name)
				}
				if issued[id] {
					return fmt.Errorf("content[%d]: duplicate tool call id %q", i, id)
				}
				issued[id] = true
				pending++
			case ToolResultPart:
				id := part.ToolResult.CallID
				if !issued[id] {
					return fmt.Errorf("content[%d]: orphan tool result for call id %q", i, id)
				}
				if answered[id] {
					return fmt.Errorf("content[%d]: duplicate tool result for call id %q", i, id)
				}
				answered[id] = true
				pending--
			}
		}
	}

	if pending > 0 {
		return fmt.Errorf("%d tool call(s) left without a result", pending)
	}

	return nil
}
