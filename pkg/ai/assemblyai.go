package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"

	"github.com/johnquangdev/meeting-intelligence/pkg/config"
)

// ErrTranscriptionRejected marks a transcript the provider could not produce.
// Retrying the same media does not help.
var ErrTranscriptionRejected = errors.New("transcription rejected")

// Utterance is one speaker turn with times in seconds.
type Utterance struct {
	Speaker string
	Text    string
	Start   float64
	End     float64
}

// Transcript is the provider-neutral transcription result.
type Transcript struct {
	ID              string
	Text            string
	LanguageCode    string
	DurationSeconds float64
	Utterances      []Utterance
}

// AssemblyAIClient transcribes media with the official AssemblyAI SDK.
type AssemblyAIClient struct {
	client       *aai.Client
	languageCode string
}

// NewAssemblyAIClient creates a client using values from the provided config.
// Pass a nil config to fall back to environment variables.
func NewAssemblyAIClient(cfg *config.AssemblyAIConfig) *AssemblyAIClient {
	var apiKey, lang string
	if cfg != nil {
		apiKey = cfg.APIKey
		lang = cfg.LanguageCode
	}
	if apiKey == "" {
		apiKey = os.Getenv("ASSEMBLYAI_API_KEY")
	}

	return &AssemblyAIClient{
		client:       aai.NewClient(apiKey),
		languageCode: strings.TrimSpace(lang),
	}
}

// Transcribe uploads the media stream and waits for a diarized transcript.
func (c *AssemblyAIClient) Transcribe(ctx context.Context, media io.Reader) (*Transcript, error) {
	uploadURL, err := c.client.Upload(ctx, media)
	if err != nil {
		return nil, fmt.Errorf("failed to upload to AssemblyAI: %w", err)
	}

	params := &aai.TranscriptOptionalParams{
		SpeakerLabels: aai.Bool(true),
	}
	if c.languageCode != "" {
		params.LanguageCode = aai.TranscriptLanguageCode(c.languageCode)
	} else {
		params.LanguageDetection = aai.Bool(true)
	}

	transcript, err := c.client.Transcripts.TranscribeFromURL(ctx, uploadURL, params)
	if err != nil {
		return nil, fmt.Errorf("assemblyai transcription failed: %w", err)
	}

	return convertTranscript(transcript)
}

// convertTranscript maps the SDK transcript into utterances.
// Transcripts without diarization fall back to a single utterance built from words.
func convertTranscript(t aai.Transcript) (*Transcript, error) {
	if t.Status == aai.TranscriptStatusError {
		reason := "unknown error"
		if t.Error != nil && *t.Error != "" {
			reason = *t.Error
		}
		return nil, fmt.Errorf("%w: %s", ErrTranscriptionRejected, reason)
	}

	out := &Transcript{
		LanguageCode: string(t.LanguageCode),
	}
	if t.ID != nil {
		out.ID = *t.ID
	}
	if t.Text != nil {
		out.Text = strings.TrimSpace(*t.Text)
	}

	for _, utt := range t.Utterances {
		u := Utterance{}
		if utt.Text != nil {
			u.Text = strings.TrimSpace(*utt.Text)
		}
		if u.Text == "" {
			continue
		}
		if utt.Speaker != nil {
			u.Speaker = *utt.Speaker
		}
		if utt.Start != nil {
			u.Start = float64(*utt.Start) / 1000.0 // ms to seconds
		}
		if utt.End != nil {
			u.End = float64(*utt.End) / 1000.0
		}
		out.Utterances = append(out.Utterances, u)
	}

	if len(out.Utterances) == 0 && len(t.Words) > 0 {
		var (
			words []string
			u     Utterance
		)
		for i, w := range t.Words {
			if w.Text == nil || strings.TrimSpace(*w.Text) == "" {
				continue
			}
			words = append(words, strings.TrimSpace(*w.Text))
			if i == 0 && w.Start != nil {
				u.Start = float64(*w.Start) / 1000.0
			}
			if w.End != nil {
				u.End = float64(*w.End) / 1000.0
			}
		}
		if len(words) > 0 {
			u.Text = strings.Join(words, " ")
			out.Utterances = append(out.Utterances, u)
		}
	}

	if len(out.Utterances) == 0 && out.Text != "" {
		out.Utterances = []Utterance{{Text: out.Text}}
	}

	if t.AudioDuration != nil {
		out.DurationSeconds = float64(*t.AudioDuration)
	} else if n := len(out.Utterances); n > 0 {
		out.DurationSeconds = out.Utterances[n-1].End
	}

	if out.Text == "" {
		parts := make([]string, 0, len(out.Utterances))
		for _, u := range out.Utterances {
			parts = append(parts, u.Text)
		}
		out.Text = strings.Join(parts, " ")
	}

	return out, nil
}
