package render

import (
	"strings"
	"testing"

	"golang.org/x/text/language"
)

func TestResolveTag(t *testing.T) {
	tests := []struct {
		locale string
		want   language.Tag
	}{
		{locale: "en", want: language.English},
		{locale: "en-US", want: language.English},
		{locale: "pt-BR", want: language.MustParse("pt-BR")},
		{locale: "pt", want: language.MustParse("pt-BR")},
		{locale: "", want: language.English},
		{locale: "not-a-locale!", want: language.English},
		{locale: "ja", want: language.English},
	}

	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			if got := ResolveTag(tt.locale); got != tt.want {
				t.Fatalf("ResolveTag(%q) = %v, want %v", tt.locale, got, tt.want)
			}
		})
	}
}

func TestDisconnectedVariants(t *testing.T) {
	en := language.English

	bot := Disconnected(en, "Ada", true)
	if !strings.Contains(bot, "Ada") || !strings.Contains(bot, "bot") {
		t.Fatalf("Disconnected(bot) = %q, want name and bot mention", bot)
	}

	waiting := Disconnected(en, "Ada", false)
	if !strings.Contains(waiting, "Ada") || strings.Contains(waiting, "bot") {
		t.Fatalf("Disconnected(waiting) = %q, want name without bot mention", waiting)
	}
}

func TestPortugueseCopy(t *testing.T) {
	pt := ResolveTag("pt-BR")

	got := Reconnected(pt, "Ada", true)
	if !strings.Contains(got, "Ada") || !strings.Contains(got, "voltou") {
		t.Fatalf("Reconnected(pt-BR) = %q, want localized copy", got)
	}

	if en := Reconnected(language.English, "Ada", true); en == got {
		t.Fatalf("Reconnected english and pt-BR copy identical: %q", en)
	}
}

func TestSessionClosed(t *testing.T) {
	abandoned := SessionClosed(language.English, true)
	ended := SessionClosed(language.English, false)
	if abandoned == ended {
		t.Fatalf("SessionClosed variants identical: %q", abandoned)
	}
}
