package pipeline

import (
	"strings"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	pkgai "github.com/johnquangdev/meeting-intelligence/pkg/ai"
)

// DefaultChunkMaxWords bounds a transcript chunk when no limit is configured
const DefaultChunkMaxWords = 500

type timedWord struct {
	text    string
	speaker string
	start   float64
	end     float64
}

// BuildChunks packs consecutive utterances into chunks of at most maxWords words.
// Long utterances are split with times interpolated across their words. The
// speaker is kept only when every word of a chunk has the same one.
func BuildChunks(meetingID uuid.UUID, transcript *pkgai.Transcript, maxWords int) []entities.TranscriptChunk {
	if transcript == nil {
		return nil
	}
	if maxWords <= 0 {
		maxWords = DefaultChunkMaxWords
	}

	words := flattenWords(transcript)
	chunks := make([]entities.TranscriptChunk, 0, len(words)/maxWords+1)
	prevEnd := 0.0

	for i := 0; i < len(words); i += maxWords {
		end := i + maxWords
		if end > len(words) {
			end = len(words)
		}
		group := words[i:end]

		texts := make([]string, len(group))
		speaker := group[0].speaker
		for j, w := range group {
			texts[j] = w.text
			if w.speaker != speaker {
				speaker = ""
			}
		}

		start := group[0].start
		if start < prevEnd {
			start = prevEnd
		}
		stop := group[len(group)-1].end
		if stop < start {
			stop = start
		}
		prevEnd = stop

		chunks = append(chunks, entities.TranscriptChunk{
			ID:            uuid.New(),
			MeetingID:     meetingID,
			SequenceIndex: len(chunks),
			Speaker:       speaker,
			Text:          strings.Join(texts, " "),
			StartTime:     start,
			EndTime:       stop,
		})
	}
	return chunks
}

// flattenWords spreads every utterance's time span evenly over its words
func flattenWords(transcript *pkgai.Transcript) []timedWord {
	utterances := transcript.Utterances
	if len(utterances) == 0 && strings.TrimSpace(transcript.Text) != "" {
		utterances = []pkgai.Utterance{{Text: transcript.Text, End: transcript.DurationSeconds}}
	}

	var words []timedWord
	for _, u := range utterances {
		fields := strings.Fields(u.Text)
		if len(fields) == 0 {
			continue
		}
		span := u.End - u.Start
		if span < 0 {
			span = 0
		}
		step := span / float64(len(fields))
		for k, f := range fields {
			words = append(words, timedWord{
				text:    f,
				speaker: truncate(u.Speaker, maxSpeakerLabelLen),
				start:   u.Start + step*float64(k),
				end:     u.Start + step*float64(k+1),
			})
		}
	}
	return words
}

// speakerTranscript renders utterances as "Speaker X: text" lines for prompts
func speakerTranscript(transcript *pkgai.Transcript) string {
	if transcript == nil {
		return ""
	}
	if len(transcript.Utterances) == 0 {
		return strings.TrimSpace(transcript.Text)
	}
	var b strings.Builder
	for _, u := range transcript.Utterances {
		text := strings.TrimSpace(u.Text)
		if text == "" {
			continue
		}
		if u.Speaker != "" {
			b.WriteString("Speaker ")
			b.WriteString(u.Speaker)
			b.WriteString(": ")
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

// speakerLabels returns the distinct speaker labels in order of first appearance
func speakerLabels(transcript *pkgai.Transcript) []string {
	if transcript == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var labels []string
	for _, u := range transcript.Utterances {
		label := truncate(u.Speaker, maxSpeakerLabelLen)
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	return labels
}
