package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindForStatus(t *testing.T) {
	require.ErrorIs(t, KindForStatus(401), ErrAuth)
	require.ErrorIs(t, KindForStatus(403), ErrAuth)
	require.ErrorIs(t, KindForStatus(500), ErrTransport)
	require.ErrorIs(t, KindForStatus(429), ErrTransport)
}

func TestKind(t *testing.T) {
	require.Equal(t, "", Kind(nil))
	require.Equal(t, "auth", Kind(fmt.Errorf("openai: %w: bad key", ErrAuth)))
	require.Equal(t, "invalid_voice", Kind(fmt.Errorf("x: %w", ErrInvalidVoice)))
	require.Equal(t, "playback", Kind(ErrPlayback))
	require.Equal(t, "transport", Kind(ErrTransport))
	require.Equal(t, "missing_credential", Kind(ErrMissingCredential))
	require.Equal(t, "unknown", Kind(errors.New("boom")))
}

func TestGrammarUserPromptIncludesText(t *testing.T) {
	prompt := GrammarUserPrompt("their going home")
	require.Contains(t, prompt, "maintaining its original meaning and tone")
	require.Contains(t, prompt, "\n\ntheir going home")
}

func TestCleanCorrection(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		original string
		want     string
	}{
		{name: "plain", reply: " They're going home. \n", original: "their going home", want: "They're going home."},
		{name: "fenced", reply: "```text\nThey're going home.\n```", original: "x", want: "They're going home."},
		{name: "quoted", reply: `"They're going home."`, original: "their going home", want: "They're going home."},
		{name: "quoted original kept", reply: `"Hi."`, original: `"hi"`, want: `"Hi."`},
		{name: "empty falls back", reply: "  ", original: "their going home", want: "their going home"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CleanCorrection(tc.reply, tc.original))
		})
	}
}
