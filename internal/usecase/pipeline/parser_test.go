package pipeline

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	ucErrors "github.com/johnquangdev/meeting-intelligence/internal/usecase/errors"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding prose", `Here you go: {"a":{"b":2}} hope it helps`, `{"a":{"b":2}}`},
		{"no object", "sorry, I cannot help", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractJSON(tc.in))
		})
	}
}

func TestParseActionItems(t *testing.T) {
	meetingID := uuid.New()
	content := "```json\n" + `{"action_items": [
		{"task": "Send the deck", "assignee": "Alice", "deadline": "2024-03-15"},
		{"task": "Book a room", "assignee": "TBD", "deadline": "next Friday"},
		{"task": "  ", "assignee": "Bob"},
		{"task": "Update roadmap", "assignee": null, "deadline": null}
	]}` + "\n```"

	items, err := parseActionItems(meetingID, content)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "Send the deck", items[0].Task)
	assert.Equal(t, "Alice", items[0].Assignee)
	require.NotNil(t, items[0].Deadline)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *items[0].Deadline)

	assert.Equal(t, entities.UnassignedAssignee, items[1].Assignee)
	assert.Nil(t, items[1].Deadline, "relative deadlines are dropped")

	assert.Equal(t, entities.UnassignedAssignee, items[2].Assignee)
	for i, item := range items {
		assert.Equal(t, i, item.Position)
		assert.Equal(t, meetingID, item.MeetingID)
	}
}

func TestParseDecisions_MadeByShapes(t *testing.T) {
	content := `{"decisions": [
		{"decision": "Ship on Monday", "made_by": ["Alice", "alice", "Bob"]},
		{"decision": "Drop the beta", "made_by": "Carol"},
		{"decision": "Hire a designer", "made_by": null}
	]}`

	decisions, err := parseDecisions(uuid.New(), content)
	require.NoError(t, err)
	require.Len(t, decisions, 3)

	assert.Equal(t, []string{"Alice", "Bob"}, []string(decisions[0].MadeBy))
	assert.Equal(t, []string{"Carol"}, []string(decisions[1].MadeBy))
	assert.Empty(t, decisions[2].MadeBy)
	assert.NotNil(t, decisions[2].MadeBy, "made_by renders as an empty list")
}

func TestParseParticipants_MergesSpeakerLabels(t *testing.T) {
	content := `{"participants": [
		{"name": "Alice", "role": "PM", "speaker_label": "Speaker A"},
		{"name": "alice", "role": null, "speaker_label": "A"},
		{"name": "Dana", "role": "guest", "speaker_label": null}
	]}`

	participants, err := parseParticipants(uuid.New(), content, []string{"A", "B"})
	require.NoError(t, err)
	require.Len(t, participants, 3)

	assert.Equal(t, "Alice", participants[0].Name)
	assert.Equal(t, "PM", participants[0].Role)
	assert.Equal(t, "A", participants[0].SpeakerLabel)
	assert.Equal(t, "Dana", participants[1].Name)
	assert.Equal(t, "Speaker B", participants[2].Name)
	assert.Equal(t, "B", participants[2].SpeakerLabel)
}

func TestParseParticipants_CapsSpeakerLabel(t *testing.T) {
	content := `{"participants": [{"name": "Alice", "speaker_label": "Speaker ` + strings.Repeat("z", 200) + `"}]}`

	participants, err := parseParticipants(uuid.New(), content, nil)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, strings.Repeat("Z", maxSpeakerLabelLen), participants[0].SpeakerLabel)
}

func TestParseTopics_DedupesAndAcceptsObjects(t *testing.T) {
	content := `{"topics": ["Budget", {"label": "Hiring"}, "budget ", {"topic": "Roadmap"}, ""]}`

	topics, err := parseTopics(uuid.New(), content)
	require.NoError(t, err)

	labels := make([]string, len(topics))
	for i, topic := range topics {
		labels[i] = topic.Label
		assert.Equal(t, i, topic.Position)
	}
	assert.Equal(t, []string{"Budget", "Hiring", "Roadmap"}, labels)
}

func TestParse_MalformedOutput(t *testing.T) {
	_, err := parseTopics(uuid.New(), "I could not find any topics.")
	assert.ErrorIs(t, err, ucErrors.ErrMalformedAnalysis)

	_, err = parseActionItems(uuid.New(), `{"action_items": "none"}`)
	assert.ErrorIs(t, err, ucErrors.ErrMalformedAnalysis)
	assert.True(t, isRetryable(err))
}

func TestUserPrompt_Truncates(t *testing.T) {
	long := strings.Repeat("x", maxPromptChars+10)
	prompt := userPrompt(long)
	assert.Contains(t, prompt, "[transcript truncated]")
	assert.Less(t, len(prompt), maxPromptChars+100)
}

func TestUserPrompt_TruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", maxPromptChars+10)
	prompt := userPrompt(long)
	assert.True(t, utf8.ValidString(prompt))
	assert.Contains(t, prompt, strings.Repeat("é", maxPromptChars)+"\n[transcript truncated]")
}
