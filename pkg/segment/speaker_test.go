package segment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/tessera-labs/weave/pkg/ai"
	"github.com/tessera-labs/weave/pkg/coding"
)

type fakeAIClient struct {
	response string
	err      error
	calls    int
}

func (f *fakeAIClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return f.response, f.err
}

func (f *fakeAIClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.response), out)
}

func (f *fakeAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAIClient) ResetMetrics() {}

func (f *fakeAIClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func TestSpeakerDetectorAnnotatesUnknown(t *testing.T) {
	client := &fakeAIClient{
		response: `{"speakers":[{"paragraph":2,"speaker":"Maria","confidence":0.9}]}`,
	}
	detector := NewSpeakerDetector(client)

	quotes := []coding.Quote{
		{Paragraph: 1, Speaker: "Interviewer", Text: "What changed?"},
		{Paragraph: 2, Speaker: SpeakerUnknown, Text: "The whole deployment process."},
	}

	got := detector.Annotate(context.Background(), quotes)
	if got[0].Speaker != "Interviewer" {
		t.Errorf("attributed quote was modified: %q", got[0].Speaker)
	}
	if got[1].Speaker != "Maria" {
		t.Errorf("quote 2 speaker = %q, want Maria", got[1].Speaker)
	}
}

func TestSpeakerDetectorSkipsWhenAllAttributed(t *testing.T) {
	client := &fakeAIClient{}
	detector := NewSpeakerDetector(client)

	quotes := []coding.Quote{
		{Paragraph: 1, Speaker: "Alice", Text: "We shipped it."},
	}
	detector.Annotate(context.Background(), quotes)

	if client.calls != 0 {
		t.Errorf("expected no LLM calls, got %d", client.calls)
	}
}

func TestSpeakerDetectorFallsBackOnError(t *testing.T) {
	client := &fakeAIClient{
		err: ai.NewLLMError(ai.KindFatal, "speaker_detection", errors.New("model missing")),
	}
	detector := NewSpeakerDetector(client)

	quotes := []coding.Quote{
		{Paragraph: 1, Speaker: SpeakerUnknown, Text: "It broke on day one."},
	}
	got := detector.Annotate(context.Background(), quotes)

	if got[0].Speaker != SpeakerUnknown {
		t.Errorf("fallback should keep heuristic result, got %q", got[0].Speaker)
	}
}
