package events

import (
	"encoding/json"
	"time"
)

// Inbound event types accepted by the hub. Every type maps to exactly one
// payload shape in payloads.go and is validated before dispatch.
const (
	InboundJoinChat              = "join_chat"
	InboundJoinDashboard         = "join_dashboard"
	InboundSendMessage           = "send_message"
	InboundMarkAttendance        = "mark_attendance"
	InboundBroadcastAnnouncement = "broadcast_announcement"
	InboundNewAssignment         = "new_assignment"
	InboundGradeUpdated          = "grade_updated"
	InboundFeePayment            = "fee_payment"
	InboundJoinLiveClass         = "join_live_class"
	InboundLeaveLiveClass        = "leave_live_class"
)

// Outbound event types pushed to clients.
const (
	OutboundWelcome            = "welcome"
	OutboundJoinedChat         = "joined_chat"
	OutboundDashboardJoined    = "dashboard_joined"
	OutboundReceiveMessage     = "receive_message"
	OutboundAttendanceUpdated  = "attendance_updated"
	OutboundAttendanceRecorded = "attendance_recorded"
	OutboundAnnouncement       = "announcement"
	OutboundAssignmentNotice   = "assignment_notification"
	OutboundGradeNotice        = "grade_notification"
	OutboundPaymentNotice      = "payment_notification"
	OutboundPaymentUpdate      = "payment_update"
	OutboundUserJoinedClass    = "user_joined_class"
	OutboundUserLeftClass      = "user_left_class"
	OutboundError              = "error"
)

// Roles recognized on dashboard joins. The "all" sentinel is only valid
// inside broadcast_announcement target lists, never as a connection role.
const (
	RoleStudent   = "student"
	RoleTeacher   = "teacher"
	RolePrincipal = "principal"

	RoleSentinelAll = "all"
)

// Chat assistant reply languages.
const (
	LanguageEnglish    = "en"
	LanguageHindi      = "hi"
	LanguageRajasthani = "raj"
)

// Inbound is the envelope produced by exactly one client per event.
// OriginConnectionID is attached server-side and never trusted from the wire.
type Inbound struct {
	Type               string          `json:"type"`
	Payload            json.RawMessage `json:"payload"`
	OriginConnectionID string          `json:"-"`
}

// Outbound is the fire-and-forget envelope pushed to zero or more
// connections. Receivers do not acknowledge it and there is no re-delivery.
type Outbound struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewOutbound stamps an outbound envelope with the current time.
func NewOutbound(eventType string, payload interface{}) *Outbound {
	return &Outbound{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}
