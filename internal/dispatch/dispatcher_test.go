package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"campushub/internal/auth"
	"campushub/internal/chat"
	"campushub/internal/registry"
	"campushub/pkg/events"
)

// fakeConn records every event sent to it.
type fakeConn struct {
	id string

	mu     sync.Mutex
	events []*events.Outbound
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(v interface{}) error {
	out, ok := v.(*events.Outbound)
	if !ok {
		return fmt.Errorf("unexpected send type %T", v)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, out)
	return nil
}

func (f *fakeConn) Close() error { return nil }

func (f *fakeConn) received(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, ev := range f.events {
		if ev.Type == eventType {
			count++
		}
	}
	return count
}

// waitFor polls until the condition holds or the deadline passes. Used for
// the async chat path only.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met within deadline")
}

// failingResponder always errors.
type failingResponder struct{}

func (failingResponder) Respond(ctx context.Context, message, language, sessionID string) (*chat.Response, error) {
	return nil, errors.New("responder unavailable")
}

func newTestDispatcher(t *testing.T, opts Options) (*Dispatcher, *registry.Registry) {
	t.Helper()
	reg := registry.NewRegistry()
	return NewDispatcher(reg, chat.NewStaticResponder(), nil, opts), reg
}

func admit(t *testing.T, reg *registry.Registry, id string) *fakeConn {
	t.Helper()
	conn := &fakeConn{id: id}
	if err := reg.Admit(conn); err != nil {
		t.Fatalf("Admit %s failed: %v", id, err)
	}
	return conn
}

func inbound(t *testing.T, origin, eventType string, payload interface{}) *events.Inbound {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}
	return &events.Inbound{
		Type:               eventType,
		Payload:            data,
		OriginConnectionID: origin,
	}
}

func joinDashboard(t *testing.T, d *Dispatcher, origin, userID, role, dept string) {
	t.Helper()
	ev := inbound(t, origin, events.InboundJoinDashboard, events.JoinDashboardPayload{
		UserID:     userID,
		Role:       role,
		Department: dept,
	})
	if err := d.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("Dashboard join failed: %v", err)
	}
}

func TestDispatcher_MalformedPayloadRejected(t *testing.T) {
	d, reg := newTestDispatcher(t, Options{})
	conn := admit(t, reg, "conn1")

	ev := &events.Inbound{
		Type:               events.InboundJoinDashboard,
		Payload:            json.RawMessage(`{"userId": ""}`),
		OriginConnectionID: "conn1",
	}
	if err := d.HandleEvent(context.Background(), ev); err == nil {
		t.Fatal("Expected validation error")
	}

	if conn.received(events.OutboundError) != 1 {
		t.Error("Origin should receive exactly one error event")
	}
	if got := reg.Rooms("conn1"); len(got) != 0 {
		t.Errorf("Rejected event must not mutate state, got rooms %v", got)
	}
}

func TestDispatcher_UnknownEventType(t *testing.T) {
	d, reg := newTestDispatcher(t, Options{})
	conn := admit(t, reg, "conn1")

	ev := &events.Inbound{
		Type:               "mystery_event",
		Payload:            json.RawMessage(`{}`),
		OriginConnectionID: "conn1",
	}
	if err := d.HandleEvent(context.Background(), ev); !errors.Is(err, events.ErrUnknownEventType) {
		t.Fatalf("Expected ErrUnknownEventType, got %v", err)
	}
	if conn.received(events.OutboundError) != 1 {
		t.Error("Origin should receive an error event")
	}
}

func TestDispatcher_JoinChatAck(t *testing.T) {
	d, reg := newTestDispatcher(t, Options{})
	conn := admit(t, reg, "conn1")
	other := admit(t, reg, "conn2")

	ev := inbound(t, "conn1", events.InboundJoinChat, events.JoinChatPayload{SessionID: "s1"})
	if err := d.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	if !reg.InRoom("chat-session:s1", "conn1") {
		t.Error("Origin should be in the session room")
	}
	if conn.received(events.OutboundJoinedChat) != 1 {
		t.Error("Origin should be acknowledged exactly once")
	}
	if other.received(events.OutboundJoinedChat) != 0 {
		t.Error("Ack must go to the origin only")
	}
}

func TestDispatcher_JoinDashboardRooms(t *testing.T) {
	d, reg := newTestDispatcher(t, Options{})
	conn := admit(t, reg, "conn1")

	joinDashboard(t, d, "conn1", "u1", "teacher", "science")

	for _, room := range []string{"role:teacher", "user:u1", "department:science"} {
		if !reg.InRoom(room, "conn1") {
			t.Errorf("Expected membership in %s", room)
		}
	}
	if conn.received(events.OutboundDashboardJoined) != 1 {
		t.Error("Expected one dashboard_joined ack")
	}

	identity, ok := reg.Identity("conn1")
	if !ok || identity.UserID != "u1" || identity.Role != "teacher" {
		t.Errorf("Unexpected identity %+v", identity)
	}
}

func TestDispatcher_JoinDashboardTokenRequired(t *testing.T) {
	cfg := auth.Config{Secret: "secret", Issuer: "campushub", Expiration: time.Hour}
	d, reg := newTestDispatcher(t, Options{RequireIdentityToken: true, Auth: cfg})
	conn := admit(t, reg, "conn1")

	// Missing token.
	ev := inbound(t, "conn1", events.InboundJoinDashboard, events.JoinDashboardPayload{
		UserID: "u1",
		Role:   "student",
	})
	if err := d.HandleEvent(context.Background(), ev); !errors.Is(err, ErrIdentityTokenRequired) {
		t.Fatalf("Expected ErrIdentityTokenRequired, got %v", err)
	}

	// Token for a different identity.
	token, err := auth.NewToken(cfg, "someone-else", "student", "")
	if err != nil {
		t.Fatalf("NewToken failed: %v", err)
	}
	ev = inbound(t, "conn1", events.InboundJoinDashboard, events.JoinDashboardPayload{
		UserID: "u1",
		Role:   "student",
		Token:  token,
	})
	if err := d.HandleEvent(context.Background(), ev); !errors.Is(err, ErrIdentityMismatch) {
		t.Fatalf("Expected ErrIdentityMismatch, got %v", err)
	}
	if reg.InRoom("user:u1", "conn1") {
		t.Error("Rejected join must not grant room membership")
	}

	// Matching token succeeds.
	token, err = auth.NewToken(cfg, "u1", "student", "science")
	if err != nil {
		t.Fatalf("NewToken failed: %v", err)
	}
	ev = inbound(t, "conn1", events.InboundJoinDashboard, events.JoinDashboardPayload{
		UserID: "u1",
		Role:   "student",
		Token:  token,
	})
	if err := d.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("Verified join failed: %v", err)
	}
	if !reg.InRoom("department:science", "conn1") {
		t.Error("Department from verified claims should be joined")
	}
	if conn.received(events.OutboundDashboardJoined) != 1 {
		t.Error("Expected one dashboard_joined ack")
	}
}

func TestDispatcher_TwoClientChat(t *testing.T) {
	d, reg := newTestDispatcher(t, Options{})
	sender := admit(t, reg, "sender")
	listener := admit(t, reg, "listener")

	for _, id := range []string{"sender", "listener"} {
		ev := inbound(t, id, events.InboundJoinChat, events.JoinChatPayload{SessionID: "s1"})
		if err := d.HandleEvent(context.Background(), ev); err != nil {
			t.Fatalf("Join failed for %s: %v", id, err)
		}
	}

	ev := inbound(t, "sender", events.InboundSendMessage, events.SendMessagePayload{
		Message:   "hello there",
		Language:  "en",
		SessionID: "s1",
	})
	if err := d.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// Both session members receive the response, including the sender.
	waitFor(t, func() bool {
		return sender.received(events.OutboundReceiveMessage) == 1 &&
			listener.received(events.OutboundReceiveMessage) == 1
	})
}

func TestDispatcher_ChatResponderFailure(t *testing.T) {
	reg := registry.NewRegistry()
	d := NewDispatcher(reg, failingResponder{}, nil, Options{})
	sender := admit(t, reg, "sender")
	listener := admit(t, reg, "listener")

	for _, id := range []string{"sender", "listener"} {
		ev := inbound(t, id, events.InboundJoinChat, events.JoinChatPayload{SessionID: "s1"})
		if err := d.HandleEvent(context.Background(), ev); err != nil {
			t.Fatalf("Join failed: %v", err)
		}
	}

	ev := inbound(t, "sender", events.InboundSendMessage, events.SendMessagePayload{
		Message:   "hello",
		Language:  "en",
		SessionID: "s1",
	})
	if err := d.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	waitFor(t, func() bool { return sender.received(events.OutboundError) == 1 })
	if listener.received(events.OutboundError) != 0 {
		t.Error("Responder failure must surface to the origin only")
	}
	if listener.received(events.OutboundReceiveMessage) != 0 {
		t.Error("No message should be delivered on responder failure")
	}
}

func TestDispatcher_AnnouncementAllExactlyOnce(t *testing.T) {
	d, reg := newTestDispatcher(t, Options{})

	student := admit(t, reg, "student")
	teacher := admit(t, reg, "teacher")
	principal := admit(t, reg, "principal")
	joinDashboard(t, d, "student", "u1", "student", "science")
	joinDashboard(t, d, "teacher", "u2", "teacher", "science")
	joinDashboard(t, d, "principal", "u3", "principal", "")

	ev := inbound(t, "principal", events.InboundBroadcastAnnouncement, events.BroadcastAnnouncementPayload{
		Announcement: events.Announcement{Title: "Holiday", Content: "Campus closed Friday"},
		TargetRoles:  []string{"all"},
	})
	if err := d.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	for _, conn := range []*fakeConn{student, teacher, principal} {
		if got := conn.received(events.OutboundAnnouncement); got != 1 {
			t.Errorf("Connection %s received %d announcements, want exactly 1", conn.id, got)
		}
	}
}

func TestDispatcher_AnnouncementRoleDeptIntersection(t *testing.T) {
	d, reg := newTestDispatcher(t, Options{})

	sciStudent := admit(t, reg, "sci-student")
	artStudent := admit(t, reg, "art-student")
	sciTeacher := admit(t, reg, "sci-teacher")
	joinDashboard(t, d, "sci-student", "u1", "student", "science")
	joinDashboard(t, d, "art-student", "u2", "student", "arts")
	joinDashboard(t, d, "sci-teacher", "u3", "teacher", "science")

	ev := inbound(t, "sci-teacher", events.InboundBroadcastAnnouncement, events.BroadcastAnnouncementPayload{
		Announcement: events.Announcement{Title: "Lab", Content: "Lab moved to room 4"},
		TargetRoles:  []string{"student"},
		Department:   "science",
	})
	if err := d.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	if sciStudent.received(events.OutboundAnnouncement) != 1 {
		t.Error("Science student should receive the announcement")
	}
	if artStudent.received(events.OutboundAnnouncement) != 0 {
		t.Error("Arts student must be filtered out by the department intersection")
	}
	if sciTeacher.received(events.OutboundAnnouncement) != 0 {
		t.Error("Teacher is not in the target roles")
	}
}

func TestDispatcher_AnnouncementOverlappingRolesDeduplicated(t *testing.T) {
	d, reg := newTestDispatcher(t, Options{})

	conn := admit(t, reg, "conn1")
	joinDashboard(t, d, "conn1", "u1", "teacher", "")

	ev := inbound(t, "conn1", events.InboundBroadcastAnnouncement, events.BroadcastAnnouncementPayload{
		Announcement: events.Announcement{Title: "Staff", Content: "Meeting at noon"},
		TargetRoles:  []string{"teacher", "teacher", "principal"},
	})
	if err := d.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	if got := conn.received(events.OutboundAnnouncement); got != 1 {
		t.Errorf("Duplicate target roles delivered %d copies, want 1", got)
	}
}

func TestDispatcher_AnnouncementZeroMembersNoOp(t *testing.T) {
	d, reg := newTestDispatcher(t, Options{})
	conn := admit(t, reg, "conn1")

	ev := inbound(t, "conn1", events.InboundBroadcastAnnouncement, events.BroadcastAnnouncementPayload{
		Announcement: events.Announcement{Title: "Empty", Content: "Nobody is listening"},
		TargetRoles:  []string{"student"},
	})
	if err := d.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	if conn.received(events.OutboundAnnouncement) != 0 {
		t.Error("Zero-member dispatch should deliver nothing")
	}
	if conn.received(events.OutboundError) != 0 {
		t.Error("Zero-member dispatch should not error")
	}
}

func TestDispatcher_MarkAttendance(t *testing.T) {
	d, reg := newTestDispatcher(t, Options{})

	teacher := admit(t, reg, "teacher")
	colleague := admit(t, reg, "colleague")
	student := admit(t, reg, "student")
	outsider := admit(t, reg, "outsider")
	joinDashboard(t, d, "teacher", "t1", "teacher", "science")
	joinDashboard(t, d, "colleague", "t2", "teacher", "science")
	joinDashboard(t, d, "student", "s1", "student", "science")
	joinDashboard(t, d, "outsider", "s2", "student", "arts")

	ev := inbound(t, "teacher", events.InboundMarkAttendance, events.MarkAttendancePayload{
		StudentID: "s1",
		CourseID:  "phys101",
		Status:    "present",
		TeacherID: "t1",
	})
	if err := d.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("Attendance failed: %v", err)
	}

	if colleague.received(events.OutboundAttendanceUpdated) != 1 {
		t.Error("Department colleague should receive attendance_updated")
	}
	if student.received(events.OutboundAttendanceUpdated) != 1 {
		t.Error("Affected student should receive attendance_updated")
	}
	if outsider.received(events.OutboundAttendanceUpdated) != 0 {
		t.Error("Other departments must not receive attendance_updated")
	}
	if teacher.received(events.OutboundAttendanceUpdated) != 0 {
		t.Error("Origin is excluded from the department echo by default")
	}
	if teacher.received(events.OutboundAttendanceRecorded) != 1 {
		t.Error("Origin should receive exactly one attendance_recorded ack")
	}
}

func TestDispatcher_MarkAttendanceIncludeOrigin(t *testing.T) {
	d, reg := newTestDispatcher(t, Options{IncludeAttendanceOrigin: true})

	teacher := admit(t, reg, "teacher")
	joinDashboard(t, d, "teacher", "t1", "teacher", "science")

	ev := inbound(t, "teacher", events.InboundMarkAttendance, events.MarkAttendancePayload{
		StudentID: "s1",
		CourseID:  "phys101",
		Status:    "absent",
		TeacherID: "t1",
	})
	if err := d.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("Attendance failed: %v", err)
	}

	if teacher.received(events.OutboundAttendanceUpdated) != 1 {
		t.Error("With IncludeAttendanceOrigin the origin receives the echo")
	}
}

func TestDispatcher_NewAssignmentTargetsStudents(t *testing.T) {
	d, reg := newTestDispatcher(t, Options{})

	s1 := admit(t, reg, "s1")
	s2 := admit(t, reg, "s2")
	s3 := admit(t, reg, "s3")
	joinDashboard(t, d, "s1", "u1", "student", "")
	joinDashboard(t, d, "s2", "u2", "student", "")
	joinDashboard(t, d, "s3", "u3", "student", "")

	ev := inbound(t, "s3", events.InboundNewAssignment, events.NewAssignmentPayload{
		Title:      "Essay",
		CourseID:   "eng101",
		DueDate:    "2026-09-15",
		StudentIDs: []string{"u1", "u2"},
	})
	if err := d.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("Assignment failed: %v", err)
	}

	if s1.received(events.OutboundAssignmentNotice) != 1 {
		t.Error("u1 should be notified")
	}
	if s2.received(events.OutboundAssignmentNotice) != 1 {
		t.Error("u2 should be notified")
	}
	if s3.received(events.OutboundAssignmentNotice) != 0 {
		t.Error("Unlisted student must not be notified")
	}
}

func TestDispatcher_FeePaymentNotifiesPrincipal(t *testing.T) {
	d, reg := newTestDispatcher(t, Options{})

	student := admit(t, reg, "student")
	principal := admit(t, reg, "principal")
	joinDashboard(t, d, "student", "u1", "student", "")
	joinDashboard(t, d, "principal", "p1", "principal", "")

	ev := inbound(t, "student", events.InboundFeePayment, events.FeePaymentPayload{
		StudentID: "u1",
		Amount:    1500,
		Status:    "paid",
	})
	if err := d.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("Fee payment failed: %v", err)
	}

	if student.received(events.OutboundPaymentNotice) != 1 {
		t.Error("Student should receive payment_notification")
	}
	if principal.received(events.OutboundPaymentUpdate) != 1 {
		t.Error("Principal role room should receive payment_update")
	}
	if student.received(events.OutboundPaymentUpdate) != 0 {
		t.Error("Student must not receive the principal update")
	}
}

func TestDispatcher_LiveClassPresence(t *testing.T) {
	d, reg := newTestDispatcher(t, Options{})

	first := admit(t, reg, "first")
	second := admit(t, reg, "second")

	join := func(origin, userID string) {
		ev := inbound(t, origin, events.InboundJoinLiveClass, events.LiveClassPayload{
			ClassID: "c1",
			UserID:  userID,
		})
		if err := d.HandleEvent(context.Background(), ev); err != nil {
			t.Fatalf("Join live class failed: %v", err)
		}
	}

	join("first", "u1")
	join("second", "u2")

	// The first member sees the second join; the joiner does not see itself.
	if first.received(events.OutboundUserJoinedClass) != 1 {
		t.Error("Existing member should see the new join")
	}
	if second.received(events.OutboundUserJoinedClass) != 0 {
		t.Error("Joiner must not be notified of its own join")
	}

	leave := inbound(t, "second", events.InboundLeaveLiveClass, events.LiveClassPayload{
		ClassID: "c1",
		UserID:  "u2",
	})
	if err := d.HandleEvent(context.Background(), leave); err != nil {
		t.Fatalf("Leave live class failed: %v", err)
	}

	if first.received(events.OutboundUserLeftClass) != 1 {
		t.Error("Remaining member should see the leave")
	}
	if reg.InRoom("class:c1", "second") {
		t.Error("Leaver should be out of the class room")
	}
}
