package prompt

import (
	"strings"
	"testing"

	"github.com/leofalp/explainer/core/request"
)

var samplePayload = request.Payload{
	Text:          "  serendipity ",
	ContextBefore: "It was pure",
	PageTitle:     "Words",
	PageURL:       "https://example.com/words",
}

func TestBuild_Explain_IncludesContextAndLanguage(t *testing.T) {
	p, err := Build(samplePayload, "Italian", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"Page title: Words", "It was pure", "serendipity", "Respond only in Italian."} {
		if !strings.Contains(p.User, want) {
			t.Errorf("expected %q in prompt:\n%s", want, p.User)
		}
	}
	if p.System != DefaultSystemPrompt {
		t.Errorf("expected default system prompt, got %q", p.System)
	}
}

func TestBuild_Explain_OmitsEmptyContext(t *testing.T) {
	p, err := Build(request.Payload{Text: "hello"}, "", "Be brief.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(p.User, "Page title") || strings.Contains(p.User, "Preceding context") {
		t.Errorf("did not expect empty sections:\n%s", p.User)
	}
	if !strings.Contains(p.User, "Respond only in English.") {
		t.Errorf("expected default language:\n%s", p.User)
	}
	if p.System != "Be brief." {
		t.Errorf("expected custom system prompt, got %q", p.System)
	}
}

func TestBuild_TranslateModes_DoNotLeak(t *testing.T) {
	markers := map[request.Mode]string{
		request.ModeTranslation: "Return only the translation",
		request.ModeIdioms:      "3 to 5 idiomatic",
		request.ModeSimilar:     "4 to 6",
		request.ModeLearning:    "## Vocabulary",
	}

	for mode := range markers {
		payload := samplePayload
		payload.Mode = mode

		p, err := Build(payload, "German", "")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", mode, err)
		}
		for other, marker := range markers {
			contains := strings.Contains(p.User, marker)
			if other == mode && !contains {
				t.Errorf("%s: expected own marker %q", mode, marker)
			}
			if other != mode && contains {
				t.Errorf("%s: leaked %s marker %q", mode, other, marker)
			}
		}
		if strings.Contains(p.User, "Page title") {
			t.Errorf("%s: translate prompt must not carry explain sections", mode)
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	payload := samplePayload
	payload.Mode = request.ModeLearning

	first, _ := Build(payload, "French", "")
	second, _ := Build(payload, "French", "")
	if first != second {
		t.Error("expected identical prompts for identical input")
	}
}

func TestBuild_UnknownMode_ReturnsError(t *testing.T) {
	payload := samplePayload
	payload.Mode = "poetry"
	if _, err := Build(payload, "English", ""); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
