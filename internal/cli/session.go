package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/leonletto/tellersim/internal/rpc"
)

// Step is one request of a scripted session. Expect names the deferred
// notification the step triggers, if any.
type Step struct {
	Method string
	Params any
	Expect string
}

// DefaultScript is the walkthrough a real terminal performs when a customer
// asks for help and withdraws cash.
func DefaultScript() []Step {
	return []Step{
		{Method: rpc.MethodPing.String(), Params: map[string]any{}},
		{Method: rpc.MethodCreateSession.String(), Params: map[string]any{"selfservice": false}},
		{Method: rpc.MethodRequestHelp.String(), Params: map[string]any{}, Expect: rpc.NotifyCallEstablished},
		{Method: rpc.MethodReadCard.String(), Params: map[string]any{}, Expect: rpc.NotifyCardRead},
		{Method: rpc.MethodDispense.String(), Params: map[string]any{"amount": 100, "notes": []int{50, 50}}, Expect: rpc.NotifyDispenseComplete},
	}
}

// StepResult records what a step produced.
type StepResult struct {
	Method       string          `json:"method"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	Notification string          `json:"notification,omitempty"`
}

// RunScript executes steps in order on c, printing each reply to out, then
// waits up to wait for every expected notification. Other notifications
// are printed as they arrive.
func RunScript(ctx context.Context, c *Client, steps []Step, wait time.Duration, out io.Writer) ([]StepResult, error) {
	results := make([]StepResult, 0, len(steps))
	expected := map[string]int{}

	for i, step := range steps {
		var raw json.RawMessage
		res := StepResult{Method: step.Method}
		if err := c.Call(ctx, step.Method, step.Params, &raw); err != nil {
			res.Error = err.Error()
			_, _ = fmt.Fprintf(out, "%d. %s -> error: %v\n", i+1, step.Method, err)
		} else {
			res.Result = raw
			_, _ = fmt.Fprintf(out, "%d. %s -> %s\n", i+1, step.Method, raw)
			if step.Expect != "" {
				expected[step.Expect] = len(results)
			}
		}
		results = append(results, res)
	}

	if len(expected) == 0 {
		return results, nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	for len(expected) > 0 {
		select {
		case n, ok := <-c.Notifications():
			if !ok {
				return results, ErrClientClosed
			}
			idx, want := expected[n.Method]
			if !want {
				_, _ = fmt.Fprintf(out, "   <- %s %s\n", n.Method, n.Params)
				continue
			}
			delete(expected, n.Method)
			results[idx].Notification = string(n.Params)
			_, _ = fmt.Fprintf(out, "   <- %s %s\n", n.Method, n.Params)
		case <-timer.C:
			missing := make([]string, 0, len(expected))
			for m := range expected {
				missing = append(missing, m)
			}
			return results, fmt.Errorf("timed out after %s waiting for %v", wait, missing)
		case <-ctx.Done():
			return results, ctx.Err()
		}
	}
	return results, nil
}
