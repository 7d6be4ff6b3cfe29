package events

// Inbound payload shapes. Validation tags follow the wire contract exactly;
// a payload that fails validation is rejected before any state mutation.

// JoinChatPayload subscribes the origin connection to a chat session room.
type JoinChatPayload struct {
	SessionID string `json:"sessionId" validate:"required"`
}

// JoinDashboardPayload declares identity and subscribes the origin to its
// role, department and user rooms. Token carries an optional signed identity
// assertion; when the hub requires verification the token is mandatory.
type JoinDashboardPayload struct {
	UserID     string `json:"userId" validate:"required"`
	Role       string `json:"role" validate:"required,oneof=student teacher principal"`
	Department string `json:"department,omitempty" validate:"omitempty,max=100"`
	Token      string `json:"token,omitempty"`
}

// SendMessagePayload carries one chat message destined for a session room.
type SendMessagePayload struct {
	Message   string `json:"message" validate:"required,max=2000"`
	Language  string `json:"language" validate:"required,oneof=en hi raj"`
	SessionID string `json:"sessionId" validate:"required"`
}

// MarkAttendancePayload records one attendance mark made by a teacher.
type MarkAttendancePayload struct {
	StudentID string `json:"studentId" validate:"required"`
	CourseID  string `json:"courseId" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=present absent"`
	TeacherID string `json:"teacherId" validate:"required"`
}

// Announcement is the client-authored body of a broadcast.
type Announcement struct {
	Title     string `json:"title" validate:"required,max=200"`
	Content   string `json:"content" validate:"required,max=5000"`
	Priority  string `json:"priority" validate:"omitempty,oneof=low medium high"`
	Type      string `json:"type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// BroadcastAnnouncementPayload targets one or more role rooms, optionally
// intersected with a department room. The "all" sentinel in TargetRoles
// expands to every registered role room at dispatch time.
type BroadcastAnnouncementPayload struct {
	Announcement Announcement `json:"announcement" validate:"required"`
	TargetRoles  []string     `json:"targetRoles" validate:"required,min=1,dive,oneof=student teacher principal all"`
	Department   string       `json:"department,omitempty"`
}

// NewAssignmentPayload notifies the listed students of a new assignment.
type NewAssignmentPayload struct {
	Title      string   `json:"title" validate:"required,max=200"`
	CourseID   string   `json:"courseId" validate:"required"`
	DueDate    string   `json:"dueDate" validate:"required"`
	StudentIDs []string `json:"studentIds" validate:"required,min=1"`
}

// GradeUpdatedPayload notifies one student of a grade change.
type GradeUpdatedPayload struct {
	StudentID string `json:"studentId" validate:"required"`
	CourseID  string `json:"courseId" validate:"required"`
	Grade     string `json:"grade" validate:"required"`
}

// FeePaymentPayload notifies a student of a payment status change and the
// principal role room of the update.
type FeePaymentPayload struct {
	StudentID string  `json:"studentId" validate:"required"`
	Amount    float64 `json:"amount" validate:"gte=0"`
	Status    string  `json:"status" validate:"required"`
}

// LiveClassPayload joins or leaves a live class presence room.
type LiveClassPayload struct {
	ClassID string `json:"classId" validate:"required"`
	UserID  string `json:"userId" validate:"required"`
}

// Outbound payload shapes.

// WelcomePayload greets a connection immediately after the handshake.
type WelcomePayload struct {
	Message      string `json:"message"`
	ConnectionID string `json:"connectionId"`
}

// JoinedChatPayload acknowledges a chat room join to the origin only.
type JoinedChatPayload struct {
	SessionID string `json:"sessionId"`
}

// DashboardJoinedPayload acknowledges a dashboard join to the origin only.
type DashboardJoinedPayload struct {
	UserID     string   `json:"userId"`
	Role       string   `json:"role"`
	Department string   `json:"department,omitempty"`
	Rooms      []string `json:"rooms"`
}

// ReceiveMessagePayload delivers a chat response to a session room.
type ReceiveMessagePayload struct {
	Message    string  `json:"message"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence,omitempty"`
	Intent     string  `json:"intent,omitempty"`
}

// AttendanceUpdatedPayload notifies department and student rooms of a mark.
type AttendanceUpdatedPayload struct {
	Message   string `json:"message"`
	StudentID string `json:"studentId"`
	CourseID  string `json:"courseId"`
	Status    string `json:"status"`
}

// AttendanceRecordedPayload acknowledges a mark to the recording teacher.
type AttendanceRecordedPayload struct {
	StudentID string `json:"studentId"`
	CourseID  string `json:"courseId"`
	Status    string `json:"status"`
}

// AnnouncementPayload is the fan-out form of a broadcast announcement.
type AnnouncementPayload struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority string `json:"priority,omitempty"`
	Type     string `json:"type,omitempty"`
}

// AssignmentNoticePayload notifies a student of a new assignment.
type AssignmentNoticePayload struct {
	Title    string `json:"title"`
	CourseID string `json:"courseId"`
	DueDate  string `json:"dueDate"`
}

// GradeNoticePayload notifies a student of a grade change.
type GradeNoticePayload struct {
	Message  string `json:"message"`
	CourseID string `json:"courseId"`
	Grade    string `json:"grade"`
}

// PaymentNoticePayload notifies a student of a payment status change.
type PaymentNoticePayload struct {
	Message string  `json:"message"`
	Amount  float64 `json:"amount"`
	Status  string  `json:"status"`
}

// PaymentUpdatePayload notifies the principal role room of a payment.
type PaymentUpdatePayload struct {
	StudentID string  `json:"studentId"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
}

// ClassPresencePayload notifies a class room of a join or leave.
type ClassPresencePayload struct {
	ClassID string `json:"classId"`
	UserID  string `json:"userId"`
}

// ErrorPayload reports a per-event failure to the origin only.
type ErrorPayload struct {
	Message string `json:"message"`
}
