package dialogue_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/switchboard-ai/switchboard/pkg/dialogue"
	"github.com/switchboard-ai/switchboard/pkg/guard"
)

func testDep(t *testing.T) *guard.Dependency {
	t.Helper()
	return guard.NewDependency("dialogue", guard.Options{
		Timeout:     100 * time.Millisecond,
		MaxRetries:  1,
		BackoffBase: time.Millisecond,
		TripAfter:   3,
		Cooloff:     50 * time.Millisecond,
	})
}

func TestOrchestratorRespond(t *testing.T) {
	responder := dialogue.NewMockResponder()
	responder.RespondFunc = func(ctx context.Context, req dialogue.Request) (string, error) {
		return "We open at nine.", nil
	}

	o := dialogue.NewOrchestrator(responder, nil, testDep(t), dialogue.OrchestratorConfig{
		Persona: "You are the booking agent for Mario's.",
	}, nil)

	reply := o.Respond(context.Background(), nil, "when do you open", false)
	if reply.Fallback {
		t.Fatal("unexpected fallback")
	}
	if reply.Text != "We open at nine." {
		t.Errorf("got %q", reply.Text)
	}

	reqs := responder.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	if !strings.Contains(reqs[0].System, "Mario's") {
		t.Errorf("persona missing from system prompt: %q", reqs[0].System)
	}
	if reqs[0].Transcript != "when do you open" {
		t.Errorf("transcript = %q", reqs[0].Transcript)
	}
}

func TestOrchestratorTrimsHistory(t *testing.T) {
	responder := dialogue.NewMockResponder()
	o := dialogue.NewOrchestrator(responder, nil, testDep(t), dialogue.OrchestratorConfig{
		HistoryWindow: 4,
	}, nil)

	history := make([]dialogue.Turn, 10)
	for i := range history {
		history[i] = dialogue.Turn{Speaker: dialogue.SpeakerCaller, Text: fmt.Sprintf("turn %d", i)}
	}

	o.Respond(context.Background(), history, "latest", false)

	reqs := responder.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	got := reqs[0].History
	if len(got) != 4 {
		t.Fatalf("expected 4 history turns, got %d", len(got))
	}
	if got[0].Text != "turn 6" || got[3].Text != "turn 9" {
		t.Errorf("wrong window: first %q last %q", got[0].Text, got[3].Text)
	}
}

func TestOrchestratorKnowledge(t *testing.T) {
	t.Run("context injected for questions", func(t *testing.T) {
		responder := dialogue.NewMockResponder()
		knowledge := &dialogue.MockKnowledge{
			LookupFunc: func(ctx context.Context, query string) (string, error) {
				return "Open 9am to 5pm weekdays.", nil
			},
		}

		o := dialogue.NewOrchestrator(responder, knowledge, testDep(t), dialogue.OrchestratorConfig{}, nil)
		o.Respond(context.Background(), nil, "what are your hours?", false)

		reqs := responder.Requests()
		if !strings.Contains(reqs[0].System, "Open 9am to 5pm weekdays.") {
			t.Errorf("context not injected: %q", reqs[0].System)
		}
	})

	t.Run("statements skip lookup", func(t *testing.T) {
		responder := dialogue.NewMockResponder()
		knowledge := &dialogue.MockKnowledge{}

		o := dialogue.NewOrchestrator(responder, knowledge, testDep(t), dialogue.OrchestratorConfig{}, nil)
		o.Respond(context.Background(), nil, "I'd like to make a booking", false)

		if n := len(knowledge.Queries()); n != 0 {
			t.Errorf("expected no lookups, got %d", n)
		}
	})

	t.Run("lookup failure proceeds without context", func(t *testing.T) {
		responder := dialogue.NewMockResponder()
		knowledge := &dialogue.MockKnowledge{
			LookupFunc: func(ctx context.Context, query string) (string, error) {
				return "", fmt.Errorf("lookup service down")
			},
		}

		o := dialogue.NewOrchestrator(responder, knowledge, testDep(t), dialogue.OrchestratorConfig{}, nil)
		reply := o.Respond(context.Background(), nil, "what are your hours?", false)

		if reply.Fallback {
			t.Error("lookup failure must not force a fallback reply")
		}
		if responder.CallCount() != 1 {
			t.Errorf("responder not reached, calls = %d", responder.CallCount())
		}
	})
}

func TestOrchestratorFallback(t *testing.T) {
	t.Run("question gets information fallback", func(t *testing.T) {
		responder := dialogue.NewMockResponderWithError(&dialogue.APIError{StatusCode: 400, Message: "bad request"})

		o := dialogue.NewOrchestrator(responder, nil, testDep(t), dialogue.OrchestratorConfig{}, nil)
		reply := o.Respond(context.Background(), nil, "what are your hours?", false)

		if !reply.Fallback {
			t.Fatal("expected fallback reply")
		}
		if !strings.Contains(reply.Text, "information") {
			t.Errorf("expected information fallback, got %q", reply.Text)
		}
	})

	t.Run("statement gets generic fallback", func(t *testing.T) {
		responder := dialogue.NewMockResponderWithError(&dialogue.APIError{StatusCode: 400, Message: "bad request"})

		o := dialogue.NewOrchestrator(responder, nil, testDep(t), dialogue.OrchestratorConfig{}, nil)
		reply := o.Respond(context.Background(), nil, "I want to book a table", false)

		if !reply.Fallback {
			t.Fatal("expected fallback reply")
		}
		if !strings.Contains(reply.Text, "say that again") {
			t.Errorf("expected generic fallback, got %q", reply.Text)
		}
	})
}

func TestOrchestratorResumedReply(t *testing.T) {
	responder := dialogue.NewMockResponder()
	responder.RespondFunc = func(ctx context.Context, req dialogue.Request) (string, error) {
		return "the hours are nine to five", nil
	}

	o := dialogue.NewOrchestrator(responder, nil, testDep(t), dialogue.OrchestratorConfig{}, nil)
	reply := o.Respond(context.Background(), nil, "go on", true)

	if !strings.HasPrefix(reply.Text, "Sorry about that.") {
		t.Errorf("expected resume phrasing, got %q", reply.Text)
	}
}

func TestOrchestratorWordCap(t *testing.T) {
	responder := dialogue.NewMockResponder()
	responder.RespondFunc = func(ctx context.Context, req dialogue.Request) (string, error) {
		return strings.Repeat("word ", 50) + "end", nil
	}

	o := dialogue.NewOrchestrator(responder, nil, testDep(t), dialogue.OrchestratorConfig{WordCap: 10}, nil)
	reply := o.Respond(context.Background(), nil, "tell me everything", false)

	if n := len(strings.Fields(reply.Text)); n > 10 {
		t.Errorf("reply exceeds word cap: %d words", n)
	}
}

func TestOrchestratorOpening(t *testing.T) {
	t.Run("static greeting wins", func(t *testing.T) {
		responder := dialogue.NewMockResponder()
		o := dialogue.NewOrchestrator(responder, nil, testDep(t), dialogue.OrchestratorConfig{
			Greeting: "Thanks for calling Mario's!",
		}, nil)

		reply := o.Opening(context.Background())
		if reply.Text != "Thanks for calling Mario's!" {
			t.Errorf("got %q", reply.Text)
		}
		if responder.CallCount() != 0 {
			t.Error("responder must not be consulted for a static greeting")
		}
	})

	t.Run("generated when unset", func(t *testing.T) {
		responder := dialogue.NewMockResponder()
		responder.RespondFunc = func(ctx context.Context, req dialogue.Request) (string, error) {
			return "Hi, you've reached the front desk.", nil
		}

		o := dialogue.NewOrchestrator(responder, nil, testDep(t), dialogue.OrchestratorConfig{}, nil)
		reply := o.Opening(context.Background())
		if reply.Text != "Hi, you've reached the front desk." {
			t.Errorf("got %q", reply.Text)
		}
	})

	t.Run("canned greeting on failure", func(t *testing.T) {
		responder := dialogue.NewMockResponderWithError(&dialogue.APIError{StatusCode: 400, Message: "nope"})

		o := dialogue.NewOrchestrator(responder, nil, testDep(t), dialogue.OrchestratorConfig{}, nil)
		reply := o.Opening(context.Background())
		if !reply.Fallback || reply.Text == "" {
			t.Errorf("expected canned greeting fallback, got %+v", reply)
		}
	})
}
