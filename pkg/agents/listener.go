package agents

import (
	"context"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/berinia/berinia/pkg/agent"
)

var (
	// +<id> suffix in the recipient local-part, e.g. replies+camp42@example.com.
	emailCampaignPattern = regexp.MustCompile(`\+([A-Za-z0-9_-]+)@`)
	// #<id> or [<id>] prefix in an SMS body.
	smsHashCampaignPattern    = regexp.MustCompile(`^\s*#([A-Za-z0-9_-]+)`)
	smsBracketCampaignPattern = regexp.MustCompile(`^\s*\[([A-Za-z0-9_-]+)\]`)
)

// InboundEvent is the normalized shape every inbound message is reduced to
// before interpretation.
type InboundEvent struct {
	Source        string         `json:"source"`
	Sender        string         `json:"sender"`
	Recipient     string         `json:"recipient,omitempty"`
	Content       string         `json:"content"`
	CampaignID    string         `json:"campaign_id,omitempty"`
	ReceivedAt    string         `json:"received_at"`
	ExtractedData map[string]any `json:"extracted_data,omitempty"`
	RawData       map[string]any `json:"raw_data,omitempty"`
}

func (e *InboundEvent) asMap() map[string]any {
	out := map[string]any{
		"source":      e.Source,
		"sender":      e.Sender,
		"content":     e.Content,
		"received_at": e.ReceivedAt,
	}
	if e.Recipient != "" {
		out["recipient"] = e.Recipient
	}
	if e.CampaignID != "" {
		out["campaign_id"] = e.CampaignID
	}
	if len(e.ExtractedData) > 0 {
		out["extracted_data"] = e.ExtractedData
	}
	if len(e.RawData) > 0 {
		out["raw_data"] = e.RawData
	}
	return out
}

// ResponseListener normalizes raw webhook payloads into InboundEvents and
// hands them to the ResponseInterpreter through the dispatcher. Stateless
// except for per-source counters.
type ResponseListener struct {
	*agent.BaseAgent
	deps Deps

	mu     sync.Mutex
	counts map[string]int
}

func NewResponseListener(d Deps) (*ResponseListener, error) {
	base, err := agent.NewBaseAgent("ResponseListener", d.configPath("ResponseListener"), d.promptPath("ResponseListener"))
	if err != nil {
		return nil, err
	}
	return &ResponseListener{BaseAgent: base, deps: d, counts: make(map[string]int)}, nil
}

func (l *ResponseListener) Run(ctx context.Context, input map[string]any) map[string]any {
	source := firstString(input, "source")
	var event *InboundEvent
	switch source {
	case "email":
		event = l.normalizeEmail(input)
	case "sms":
		event = l.normalizeSMS(input)
	case "whatsapp":
		event = l.normalizeGeneric(source, input)
	default:
		return agent.Errorf("unsupported inbound source: %q", source)
	}

	if event.Sender == "" || event.Content == "" {
		return agent.Errorf("inbound %s event missing sender or content", source)
	}

	l.mu.Lock()
	l.counts[source]++
	count := l.counts[source]
	l.mu.Unlock()

	slog.Info("inbound event normalized",
		"source", source,
		"sender", event.Sender,
		"campaign_id", event.CampaignID,
		"count", count)

	out := map[string]any{"event": event.asMap()}
	if l.deps.Dispatch != nil {
		out["interpretation"] = l.deps.Dispatch.Execute(ctx, "ResponseInterpreter", map[string]any{
			"event": event.asMap(),
		})
	}
	return agent.Success(out)
}

// Counts snapshots the per-source event counters.
func (l *ResponseListener) Counts() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int, len(l.counts))
	for k, v := range l.counts {
		out[k] = v
	}
	return out
}

// normalizeEmail reduces a raw email payload. The campaign identifier, when
// present, rides in a +<id> suffix of the recipient local-part.
func (l *ResponseListener) normalizeEmail(input map[string]any) *InboundEvent {
	recipient := firstString(input, "recipient", "to", "To")
	event := &InboundEvent{
		Source:     "email",
		Sender:     firstString(input, "sender", "from", "From"),
		Recipient:  recipient,
		Content:    firstString(input, "content", "body", "text", "body-plain"),
		ReceivedAt: time.Now().UTC().Format(time.RFC3339),
		RawData:    input,
	}
	if subject := firstString(input, "subject", "Subject"); subject != "" {
		event.ExtractedData = map[string]any{"subject": subject}
	}
	if m := emailCampaignPattern.FindStringSubmatch(recipient); m != nil {
		event.CampaignID = m[1]
	}
	return event
}

// normalizeSMS reduces a raw SMS payload. The campaign identifier, when
// present, is a #<id> or [<id>] prefix of the body; the body itself is
// preserved untouched.
func (l *ResponseListener) normalizeSMS(input map[string]any) *InboundEvent {
	body := firstString(input, "content", "body", "Body")
	event := &InboundEvent{
		Source:     "sms",
		Sender:     firstString(input, "sender", "from", "From"),
		Recipient:  firstString(input, "recipient", "to", "To"),
		Content:    body,
		ReceivedAt: time.Now().UTC().Format(time.RFC3339),
		RawData:    input,
	}
	if m := smsHashCampaignPattern.FindStringSubmatch(body); m != nil {
		event.CampaignID = m[1]
	} else if m := smsBracketCampaignPattern.FindStringSubmatch(body); m != nil {
		event.CampaignID = m[1]
	}
	return event
}

func (l *ResponseListener) normalizeGeneric(source string, input map[string]any) *InboundEvent {
	return &InboundEvent{
		Source:     source,
		Sender:     firstString(input, "sender", "from", "From"),
		Recipient:  firstString(input, "recipient", "to", "To"),
		Content:    firstString(input, "content", "body", "message", "text"),
		ReceivedAt: time.Now().UTC().Format(time.RFC3339),
		RawData:    input,
	}
}
