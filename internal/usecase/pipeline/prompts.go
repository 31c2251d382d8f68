package pipeline

import (
	"fmt"
	"unicode/utf8"
)

// maxPromptChars caps the transcript sent to the model
const maxPromptChars = 60000

const systemPromptBase = `You analyse meeting transcripts. Speakers are labelled "Speaker A", "Speaker B" and so on unless they introduce themselves. ` +
	`Answer with a single JSON object and nothing else. Use only information stated in the transcript. ` +
	`If nothing qualifies, return an empty list.`

const actionItemsPrompt = systemPromptBase + `
Extract action items: who needs to do what by when.
Format:
{"action_items": [{"task": "...", "assignee": "person name or unassigned", "deadline": "YYYY-MM-DD or null"}]}`

const decisionsPrompt = systemPromptBase + `
Extract the key decisions made in the meeting.
Format:
{"decisions": [{"decision": "...", "made_by": ["person name", "..."]}]}`

const participantsPrompt = systemPromptBase + `
Identify the participants who spoke and their roles when mentioned.
Format:
{"participants": [{"name": "...", "role": "... or null", "speaker_label": "A"}]}`

const topicsPrompt = systemPromptBase + `
List the main discussion topics as short labels of at most five words.
Format:
{"topics": ["..."]}`

func userPrompt(transcript string) string {
	if utf8.RuneCountInString(transcript) > maxPromptChars {
		transcript = truncate(transcript, maxPromptChars) + "\n[transcript truncated]"
	}
	return fmt.Sprintf("Transcript:\n%s", transcript)
}
