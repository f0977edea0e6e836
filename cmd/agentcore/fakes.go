package main

import (
	"context"
	"encoding/json"

	"github.com/cortex-prime/agentcore/internal/scheduler"
	"github.com/cortex-prime/agentcore/pkg/action"
)

// cannedStreamer plays back one pre-recorded iteration's raw protocol text
// per call, delivered in small chunks, to exercise the streaming parser the
// way a real LLM transport would (spec §6: "chunks, order preserved, may be
// partial utf-8 boundaries"). request is expected to be the 1-based
// iteration number the controller supplied via its RequestBuilder.
type cannedStreamer struct {
	iterations []string
}

func (s cannedStreamer) StartLLMStream(ctx context.Context, request any) (<-chan string, error) {
	i, _ := request.(int)
	ch := make(chan string, 32)
	if i < 1 || i > len(s.iterations) {
		close(ch)
		return ch, nil
	}
	text := s.iterations[i-1]
	go func() {
		defer close(ch)
		const chunkSize = 7
		for j := 0; j < len(text); j += chunkSize {
			end := j + chunkSize
			if end > len(text) {
				end = len(text)
			}
			select {
			case ch <- text[j:end]:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// echoCallable answers every non-internal action with its own resolved
// parameters as output, since no real tool/agent/relic/workflow/llm
// collaborator is wired into this demo binary (spec §1: those are external
// collaborators, out of scope for the core).
type echoCallable struct{}

func (echoCallable) Invoke(ctx context.Context, kind action.Kind, target string, parameters json.RawMessage) scheduler.CallResult {
	return scheduler.CallResult{Success: true, Output: parameters}
}
