// Package protocol builds assist pipeline requests and classifies the
// frames the backend sends back.
package protocol

import (
	"encoding/json"
	"sync"

	"github.com/gizmoapp/gizmo/src/chat"
	"github.com/tidwall/gjson"
)

const (
	// TypeAssistPipelineRun is the request type of a conversation turn
	TypeAssistPipelineRun = "assist_pipeline/run"

	// StageIntent is used as both start and end stage: text in, text out
	StageIntent = "intent"

	// DefaultPipelineID is the pipeline used when none is configured
	DefaultPipelineID = "01hnnbz7n3mszayy67m7q9g90p"
)

// TurnInput carries the user text
type TurnInput struct {
	Text string `json:"text"`
}

// TurnRequest is the outbound frame for one conversation turn
type TurnRequest struct {
	ID             int64     `json:"id"`
	Type           string    `json:"type"`
	StartStage     string    `json:"start_stage"`
	EndStage       string    `json:"end_stage"`
	Input          TurnInput `json:"input"`
	Pipeline       string    `json:"pipeline,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
}

// Marshal encodes the request as a text frame payload
func (r TurnRequest) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Protocol mints request ids. Ids increase per connection and restart at 1
// after ResetCorrelation.
type Protocol struct {
	pipeline string

	mu   sync.Mutex
	next int64
}

// New creates a protocol for the given pipeline id
func New(pipelineID string) *Protocol {
	return &Protocol{pipeline: pipelineID, next: 1}
}

// PipelineID returns the configured pipeline
func (p *Protocol) PipelineID() string {
	return p.pipeline
}

// BuildTurnRequest creates the request for text in chat c. The chat's
// conversation id is included only when it has one.
func (p *Protocol) BuildTurnRequest(c chat.Chat, text string) TurnRequest {
	p.mu.Lock()
	id := p.next
	p.next++
	p.mu.Unlock()

	return TurnRequest{
		ID:             id,
		Type:           TypeAssistPipelineRun,
		StartStage:     StageIntent,
		EndStage:       StageIntent,
		Input:          TurnInput{Text: text},
		Pipeline:       p.pipeline,
		ConversationID: c.ConversationID,
	}
}

// ResetCorrelation restarts request ids; call it for every new connection
func (p *Protocol) ResetCorrelation() {
	p.mu.Lock()
	p.next = 1
	p.mu.Unlock()
}

// Kind classifies an inbound frame
type Kind int

const (
	KindUnrecognized Kind = iota
	KindSpeech
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindSpeech:
		return "speech"
	case KindError:
		return "error"
	default:
		return "unrecognized"
	}
}

// Default values for error results that omit details
const (
	UnknownErrorCode    = "unknown"
	UnknownErrorMessage = "unknown error"
)

// IntentNotSupported is the error code raised when no intent matched
const IntentNotSupported = "intent-not-supported"

// Result is the interpretation of one inbound frame
type Result struct {
	Kind Kind

	// Speech results
	Speech         string
	ConversationID string

	// Error results
	Code    string
	Message string

	// RequestID echoes the frame id when present
	RequestID int64
}

const (
	speechPath         = "event.data.intent_output.response.speech.plain.speech"
	conversationIDPath = "event.data.intent_output.conversation_id"
)

// Interpret classifies a frame. Error results take precedence over
// everything else; frames that are not JSON are unrecognized.
func Interpret(frame []byte) Result {
	if !gjson.ValidBytes(frame) {
		return Result{Kind: KindUnrecognized}
	}
	doc := gjson.ParseBytes(frame)
	if !doc.IsObject() {
		return Result{Kind: KindUnrecognized}
	}
	res := Result{RequestID: doc.Get("id").Int()}

	switch doc.Get("type").String() {
	case "result":
		if doc.Get("success").Type != gjson.False {
			return res
		}
		res.Kind = KindError
		res.Code = nonEmpty(doc.Get("error.code"), UnknownErrorCode)
		res.Message = nonEmpty(doc.Get("error.message"), UnknownErrorMessage)
		return res

	case "event":
		if doc.Get("event.type").String() != "intent-end" {
			return res
		}
		speech := doc.Get(speechPath)
		if speech.Type != gjson.String {
			return res
		}
		res.Kind = KindSpeech
		res.Speech = speech.Str
		if conv := doc.Get(conversationIDPath); conv.Type == gjson.String {
			res.ConversationID = conv.Str
		}
		return res
	}
	return res
}

// FrameType returns the top-level "type" of a frame, or "" for non-JSON
func FrameType(frame []byte) string {
	return gjson.GetBytes(frame, "type").String()
}

func nonEmpty(v gjson.Result, fallback string) string {
	if s := v.String(); v.Exists() && s != "" {
		return s
	}
	return fallback
}
