package events

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator builds the shared payload validator. JSON tag names are used
// in validation errors so rejections reference wire field names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeInbound unmarshals and validates the payload for an inbound event.
// The returned value is one of the *Payload structs from payloads.go.
// Unknown types and malformed payloads are rejected here, at the boundary,
// so handler logic only ever sees well-formed events.
func DecodeInbound(ev *Inbound) (interface{}, error) {
	var payload interface{}

	switch ev.Type {
	case InboundJoinChat:
		payload = &JoinChatPayload{}
	case InboundJoinDashboard:
		payload = &JoinDashboardPayload{}
	case InboundSendMessage:
		payload = &SendMessagePayload{}
	case InboundMarkAttendance:
		payload = &MarkAttendancePayload{}
	case InboundBroadcastAnnouncement:
		payload = &BroadcastAnnouncementPayload{}
	case InboundNewAssignment:
		payload = &NewAssignmentPayload{}
	case InboundGradeUpdated:
		payload = &GradeUpdatedPayload{}
	case InboundFeePayment:
		payload = &FeePaymentPayload{}
	case InboundJoinLiveClass, InboundLeaveLiveClass:
		payload = &LiveClassPayload{}
	default:
		return nil, ErrUnknownEventType
	}

	if len(ev.Payload) == 0 {
		return nil, ErrEmptyPayload
	}

	if err := json.Unmarshal(ev.Payload, payload); err != nil {
		return nil, ErrMalformedPayload
	}

	if err := validate.Struct(payload); err != nil {
		return nil, err
	}

	return payload, nil
}

// IsValidRole reports whether role is one of the three connection roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleStudent, RoleTeacher, RolePrincipal:
		return true
	}
	return false
}

// IsValidLanguage reports whether lang is a supported chat reply language.
func IsValidLanguage(lang string) bool {
	switch lang {
	case LanguageEnglish, LanguageHindi, LanguageRajasthani:
		return true
	}
	return false
}
