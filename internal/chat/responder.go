package chat

import (
	"context"
	"strings"
)

// Response is the generated reply for one chat message.
type Response struct {
	Content    string
	Confidence float64
	Intent     string
}

// Responder generates a reply for a chat message. Implementations may be
// slow or fail; the dispatcher always calls them under a timeout context and
// converts failures into an error event for the origin connection only.
type Responder interface {
	Respond(ctx context.Context, message, language, sessionID string) (*Response, error)
}

// StaticResponder is a keyword intent matcher used when no external chat
// service is configured. It keeps the transport path exercisable without a
// network dependency.
type StaticResponder struct {
	intents []intent
}

type intent struct {
	name     string
	keywords []string
	replies  map[string]string // language -> reply
}

// NewStaticResponder creates a responder with the built-in campus intents.
func NewStaticResponder() *StaticResponder {
	return &StaticResponder{
		intents: []intent{
			{
				name:     "greeting",
				keywords: []string{"hello", "hi", "hey", "namaste"},
				replies: map[string]string{
					"en":  "Hello! How can I help you with the college portal today?",
					"hi":  "Namaste! Main aapki kaise madad kar sakta hoon?",
					"raj": "Khamma Ghani! Main thari kai madad kar sakun?",
				},
			},
			{
				name:     "attendance",
				keywords: []string{"attendance", "present", "absent", "hajri"},
				replies: map[string]string{
					"en":  "You can view your attendance on the dashboard under the Attendance tab.",
					"hi":  "Aap apni attendance dashboard ke Attendance tab me dekh sakte hain.",
					"raj": "Thari hajri dashboard re Attendance tab me dekh sako.",
				},
			},
			{
				name:     "fees",
				keywords: []string{"fee", "fees", "payment", "shulk"},
				replies: map[string]string{
					"en":  "Fee details and payment status are available in the Fees section.",
					"hi":  "Fees ki jaankari Fees section me uplabdh hai.",
					"raj": "Fees ri jaankari Fees section me mil javeli.",
				},
			},
		},
	}
}

// Respond matches the message against known intents. Unmatched messages get
// a low-confidence fallback reply rather than an error.
func (s *StaticResponder) Respond(ctx context.Context, message, language, sessionID string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lower := strings.ToLower(message)
	for _, in := range s.intents {
		for _, kw := range in.keywords {
			if strings.Contains(lower, kw) {
				return &Response{
					Content:    replyFor(in.replies, language),
					Confidence: 0.9,
					Intent:     in.name,
				}, nil
			}
		}
	}

	fallback := map[string]string{
		"en":  "I'm not sure about that yet. Please check with the college office.",
		"hi":  "Mujhe iske baare me jaankari nahi hai. Kripya college office se sampark karein.",
		"raj": "Mhane iske baare me pato koni. College office su puchho.",
	}
	return &Response{
		Content:    replyFor(fallback, language),
		Confidence: 0.2,
		Intent:     "fallback",
	}, nil
}

func replyFor(replies map[string]string, language string) string {
	if reply, ok := replies[language]; ok {
		return reply
	}
	return replies["en"]
}
