package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
	ucErrors "github.com/johnquangdev/meeting-intelligence/internal/usecase/errors"
)

const maxLabelLen = 255

// maxSpeakerLabelLen matches the speaker columns of chunks and participants
const maxSpeakerLabelLen = 64

// flexibleStrings accepts a JSON string, a list of strings or null
type flexibleStrings []string

func (f *flexibleStrings) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}
	var single *string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	if single != nil && strings.TrimSpace(*single) != "" {
		*f = []string{*single}
	} else {
		*f = nil
	}
	return nil
}

// flexibleLabel accepts a JSON string or an object with a label-like field
type flexibleLabel string

func (l *flexibleLabel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = flexibleLabel(s)
		return nil
	}
	var obj struct {
		Label string `json:"label"`
		Topic string `json:"topic"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	switch {
	case obj.Label != "":
		*l = flexibleLabel(obj.Label)
	case obj.Topic != "":
		*l = flexibleLabel(obj.Topic)
	default:
		*l = flexibleLabel(obj.Name)
	}
	return nil
}

// optionalString accepts a JSON string or null
type optionalString string

func (o *optionalString) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s != nil {
		*o = optionalString(*s)
	}
	return nil
}

type actionItemsResponse struct {
	ActionItems []struct {
		Task     optionalString `json:"task"`
		Assignee optionalString `json:"assignee"`
		Deadline optionalString `json:"deadline"`
	} `json:"action_items"`
}

type decisionsResponse struct {
	Decisions []struct {
		Decision optionalString  `json:"decision"`
		MadeBy   flexibleStrings `json:"made_by"`
	} `json:"decisions"`
}

type participantsResponse struct {
	Participants []struct {
		Name         optionalString `json:"name"`
		Role         optionalString `json:"role"`
		SpeakerLabel optionalString `json:"speaker_label"`
	} `json:"participants"`
}

type topicsResponse struct {
	Topics []flexibleLabel `json:"topics"`
}

// decodeModelJSON unmarshals the JSON object found in a model reply
func decodeModelJSON(content string, out any) error {
	raw := extractJSON(content)
	if raw == "" {
		return fmt.Errorf("%w: no JSON object in reply", ucErrors.ErrMalformedAnalysis)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ucErrors.ErrMalformedAnalysis, err)
	}
	return nil
}

// extractJSON strips markdown fences and returns the outermost JSON object
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end < start {
		return ""
	}
	return strings.TrimSpace(content[start : end+1])
}

func parseActionItems(meetingID uuid.UUID, content string) ([]entities.ActionItem, error) {
	var resp actionItemsResponse
	if err := decodeModelJSON(content, &resp); err != nil {
		return nil, err
	}

	items := make([]entities.ActionItem, 0, len(resp.ActionItems))
	for _, raw := range resp.ActionItems {
		task := strings.TrimSpace(string(raw.Task))
		if task == "" {
			continue
		}
		items = append(items, entities.ActionItem{
			ID:        uuid.New(),
			MeetingID: meetingID,
			Position:  len(items),
			Task:      task,
			Assignee:  normalizeAssignee(string(raw.Assignee)),
			Deadline:  parseDeadline(string(raw.Deadline)),
		})
	}
	return items, nil
}

func parseDecisions(meetingID uuid.UUID, content string) ([]entities.Decision, error) {
	var resp decisionsResponse
	if err := decodeModelJSON(content, &resp); err != nil {
		return nil, err
	}

	decisions := make([]entities.Decision, 0, len(resp.Decisions))
	for _, raw := range resp.Decisions {
		text := strings.TrimSpace(string(raw.Decision))
		if text == "" {
			continue
		}
		decisions = append(decisions, entities.Decision{
			ID:        uuid.New(),
			MeetingID: meetingID,
			Position:  len(decisions),
			Text:      text,
			MadeBy:    datatypes.JSONSlice[string](dedupeFold(raw.MadeBy)),
		})
	}
	return decisions, nil
}

// parseParticipants merges model-named participants with the transcript's
// speaker labels. Speakers the model did not name are kept as "Speaker X".
func parseParticipants(meetingID uuid.UUID, content string, labels []string) ([]entities.Participant, error) {
	var resp participantsResponse
	if err := decodeModelJSON(content, &resp); err != nil {
		return nil, err
	}

	participants := make([]entities.Participant, 0, len(resp.Participants)+len(labels))
	seen := make(map[string]int)
	covered := make(map[string]struct{})

	add := func(name, role, label string) {
		name = truncate(strings.TrimSpace(name), maxLabelLen)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if idx, ok := seen[key]; ok {
			if participants[idx].Role == "" {
				participants[idx].Role = role
			}
			if participants[idx].SpeakerLabel == "" {
				participants[idx].SpeakerLabel = label
			}
			return
		}
		seen[key] = len(participants)
		participants = append(participants, entities.Participant{
			ID:           uuid.New(),
			MeetingID:    meetingID,
			Position:     len(participants),
			Name:         name,
			Role:         truncate(role, maxLabelLen),
			SpeakerLabel: label,
		})
	}

	for _, raw := range resp.Participants {
		label := normalizeSpeakerLabel(string(raw.SpeakerLabel))
		if label != "" {
			covered[label] = struct{}{}
		}
		add(string(raw.Name), strings.TrimSpace(string(raw.Role)), label)
	}
	for _, label := range labels {
		if _, ok := covered[label]; ok {
			continue
		}
		add("Speaker "+label, "", label)
	}
	return participants, nil
}

func parseTopics(meetingID uuid.UUID, content string) ([]entities.Topic, error) {
	var resp topicsResponse
	if err := decodeModelJSON(content, &resp); err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(resp.Topics))
	for _, t := range resp.Topics {
		labels = append(labels, truncate(string(t), maxLabelLen))
	}

	topics := make([]entities.Topic, 0, len(labels))
	for _, label := range dedupeFold(labels) {
		topics = append(topics, entities.Topic{
			ID:        uuid.New(),
			MeetingID: meetingID,
			Position:  len(topics),
			Label:     label,
		})
	}
	return topics, nil
}

var unassignedValues = map[string]struct{}{
	"":           {},
	"unassigned": {},
	"unknown":    {},
	"none":       {},
	"n/a":        {},
	"na":         {},
	"tbd":        {},
	"null":       {},
	"nobody":     {},
}

func normalizeAssignee(assignee string) string {
	assignee = strings.TrimSpace(assignee)
	if _, ok := unassignedValues[strings.ToLower(assignee)]; ok {
		return entities.UnassignedAssignee
	}
	return truncate(assignee, maxLabelLen)
}

var deadlineLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02 Jan 2006",
}

// parseDeadline returns nil for relative or unparseable deadlines
func parseDeadline(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

func normalizeSpeakerLabel(label string) string {
	label = strings.TrimSpace(label)
	if len(label) > len("speaker ") && strings.EqualFold(label[:len("speaker ")], "speaker ") {
		label = strings.TrimSpace(label[len("speaker "):])
	}
	return truncate(strings.ToUpper(label), maxSpeakerLabelLen)
}

// dedupeFold trims values and drops empty and case-insensitive duplicates, keeping order
func dedupeFold(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
