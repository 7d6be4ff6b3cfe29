package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"campushub/internal/auth"
	"campushub/internal/chat"
	"campushub/internal/registry"
	"campushub/internal/rooms"
	"campushub/pkg/events"
	"campushub/pkg/interfaces"
	"campushub/pkg/types"
)

// Options controls dispatch policy.
type Options struct {
	// ChatTimeout bounds the chat responder call so one slow origin never
	// hangs its own session, let alone anyone else's.
	ChatTimeout time.Duration

	// IncludeAttendanceOrigin delivers the attendance_updated echo back to
	// the marking teacher's department-room membership. Off by default: the
	// origin already has local state and gets attendance_recorded instead.
	IncludeAttendanceOrigin bool

	// RequireIdentityToken rejects dashboard joins whose identity is not
	// backed by a verified token.
	RequireIdentityToken bool

	// Auth configures token verification when RequireIdentityToken is set.
	Auth auth.Config
}

// DefaultOptions returns the dispatch policy used in production.
func DefaultOptions() Options {
	return Options{
		ChatTimeout:             10 * time.Second,
		IncludeAttendanceOrigin: false,
		RequireIdentityToken:    false,
	}
}

// Dispatcher is the central switch from inbound event type to room
// resolution and fan-out. All mutations of registry state happen on the
// hub's single processing goroutine; the only suspension point is the chat
// responder call, which runs in its own goroutine and re-resolves registry
// state at delivery time.
type Dispatcher struct {
	registry  *registry.Registry
	responder chat.Responder
	dbManager interfaces.DatabaseManager
	opts      Options
}

// NewDispatcher creates a dispatcher. dbManager may be nil, in which case
// announcements are fanned out without an audit record.
func NewDispatcher(reg *registry.Registry, responder chat.Responder, dbManager interfaces.DatabaseManager, opts Options) *Dispatcher {
	if opts.ChatTimeout <= 0 {
		opts.ChatTimeout = DefaultOptions().ChatTimeout
	}
	return &Dispatcher{
		registry:  reg,
		responder: responder,
		dbManager: dbManager,
		opts:      opts,
	}
}

// HandleEvent validates and dispatches one inbound event. Malformed payloads
// are rejected before any state mutation: logged, answered with an error
// event to the origin, and never allowed to crash the hub. Errors from one
// client's event never affect another client's membership or delivery.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev *events.Inbound) error {
	origin := ev.OriginConnectionID

	payload, err := events.DecodeInbound(ev)
	if err != nil {
		log.Printf("Rejected inbound event: type=%s conn=%s err=%v", ev.Type, origin, err)
		d.sendError(origin, fmt.Sprintf("invalid %s payload", ev.Type))
		return err
	}

	d.registry.Touch(origin)

	switch p := payload.(type) {
	case *events.JoinChatPayload:
		return d.handleJoinChat(origin, p)
	case *events.JoinDashboardPayload:
		return d.handleJoinDashboard(origin, p)
	case *events.SendMessagePayload:
		return d.handleSendMessage(origin, p)
	case *events.MarkAttendancePayload:
		return d.handleMarkAttendance(origin, p)
	case *events.BroadcastAnnouncementPayload:
		return d.handleBroadcastAnnouncement(ctx, origin, p)
	case *events.NewAssignmentPayload:
		return d.handleNewAssignment(origin, p)
	case *events.GradeUpdatedPayload:
		return d.handleGradeUpdated(p)
	case *events.FeePaymentPayload:
		return d.handleFeePayment(p)
	case *events.LiveClassPayload:
		if ev.Type == events.InboundJoinLiveClass {
			return d.handleJoinLiveClass(origin, p)
		}
		return d.handleLeaveLiveClass(origin, p)
	default:
		return events.ErrUnknownEventType
	}
}

// handleJoinChat subscribes the origin to a chat session room and
// acknowledges to the origin only.
func (d *Dispatcher) handleJoinChat(origin string, p *events.JoinChatPayload) error {
	if err := d.registry.JoinRoom(origin, rooms.SessionRoom(p.SessionID)); err != nil {
		// Connection raced a disconnect; benign.
		log.Printf("Chat join on gone connection: conn=%s session=%s", origin, p.SessionID)
		return nil
	}

	d.sendToConnection(origin, events.NewOutbound(events.OutboundJoinedChat, events.JoinedChatPayload{
		SessionID: p.SessionID,
	}))
	log.Printf("Connection joined chat: conn=%s session=%s", origin, p.SessionID)
	return nil
}

// handleJoinDashboard declares identity and subscribes the origin to its
// role, department and user rooms. With token verification enabled the
// verified claims are authoritative and a mismatching assertion is rejected.
func (d *Dispatcher) handleJoinDashboard(origin string, p *events.JoinDashboardPayload) error {
	identity := registry.Identity{
		UserID:     p.UserID,
		Role:       p.Role,
		Department: p.Department,
	}

	if d.opts.RequireIdentityToken {
		if p.Token == "" {
			d.sendError(origin, "identity token required")
			return ErrIdentityTokenRequired
		}
		claims, err := auth.ParseToken(d.opts.Auth, p.Token)
		if err != nil {
			d.sendError(origin, "invalid identity token")
			return fmt.Errorf("%w: %v", ErrInvalidIdentityToken, err)
		}
		if claims.UserID != p.UserID || claims.Role != p.Role {
			d.sendError(origin, "identity does not match token")
			return ErrIdentityMismatch
		}
		if claims.Department != "" {
			identity.Department = claims.Department
		}
	}

	if err := d.registry.DeclareIdentity(origin, identity); err != nil {
		log.Printf("Dashboard join on gone connection: conn=%s user=%s", origin, p.UserID)
		return nil
	}

	joined := []string{
		rooms.RoleRoom(identity.Role),
		rooms.UserRoom(identity.UserID),
	}
	if identity.Department != "" {
		joined = append(joined, rooms.DepartmentRoom(identity.Department))
	}
	for _, key := range joined {
		if err := d.registry.JoinRoom(origin, key); err != nil {
			return nil // disconnected mid-join; cleanup already ran
		}
	}

	d.sendToConnection(origin, events.NewOutbound(events.OutboundDashboardJoined, events.DashboardJoinedPayload{
		UserID:     identity.UserID,
		Role:       identity.Role,
		Department: identity.Department,
		Rooms:      joined,
	}))
	log.Printf("Dashboard joined: conn=%s user=%s role=%s dept=%s", origin, identity.UserID, identity.Role, identity.Department)
	return nil
}

// handleSendMessage obtains a chat response and fans it out to the session
// room. The responder runs in its own goroutine under a timeout; the member
// snapshot is resolved after the call completes so delivery reflects current
// registry state rather than the state at enqueue time.
func (d *Dispatcher) handleSendMessage(origin string, p *events.SendMessagePayload) error {
	roomKey := rooms.SessionRoom(p.SessionID)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.ChatTimeout)
		defer cancel()

		resp, err := d.responder.Respond(ctx, p.Message, p.Language, p.SessionID)
		if err != nil {
			log.Printf("Chat response failed: conn=%s session=%s err=%v", origin, p.SessionID, err)
			if d.registry.Has(origin) {
				d.sendError(origin, "failed to generate chat response")
			}
			return
		}

		out := events.NewOutbound(events.OutboundReceiveMessage, events.ReceiveMessagePayload{
			Message:    resp.Content,
			Language:   p.Language,
			Confidence: resp.Confidence,
			Intent:     resp.Intent,
		})
		delivered := d.sendToRoom(roomKey, out, "")
		log.Printf("Chat response delivered: session=%s intent=%s recipients=%d", p.SessionID, resp.Intent, delivered)
	}()

	return nil
}

// handleMarkAttendance notifies the origin's department room (excluding the
// origin unless configured otherwise), the course room when anyone watches
// it, and the affected student's user room. The origin gets an
// attendance_recorded acknowledgement instead of the echo.
func (d *Dispatcher) handleMarkAttendance(origin string, p *events.MarkAttendancePayload) error {
	updated := events.NewOutbound(events.OutboundAttendanceUpdated, events.AttendanceUpdatedPayload{
		Message:   fmt.Sprintf("Attendance marked %s for student %s in %s", p.Status, p.StudentID, p.CourseID),
		StudentID: p.StudentID,
		CourseID:  p.CourseID,
		Status:    p.Status,
	})

	targets := []string{
		rooms.ClassRoom(p.CourseID),
		rooms.UserRoom(p.StudentID),
	}
	if identity, ok := d.registry.Identity(origin); ok && identity.Department != "" {
		targets = append(targets, rooms.DepartmentRoom(identity.Department))
	}

	exclude := origin
	if d.opts.IncludeAttendanceOrigin {
		exclude = ""
	}
	delivered := d.sendToRooms(targets, updated, exclude)

	d.sendToConnection(origin, events.NewOutbound(events.OutboundAttendanceRecorded, events.AttendanceRecordedPayload{
		StudentID: p.StudentID,
		CourseID:  p.CourseID,
		Status:    p.Status,
	}))

	log.Printf("Attendance dispatched: student=%s course=%s status=%s recipients=%d", p.StudentID, p.CourseID, p.Status, delivered)
	return nil
}

// handleBroadcastAnnouncement resolves the target role rooms (expanding the
// "all" sentinel to every registered role room), optionally intersects with
// a department room, audits the announcement, and delivers exactly one copy
// per matching connection.
func (d *Dispatcher) handleBroadcastAnnouncement(ctx context.Context, origin string, p *events.BroadcastAnnouncementPayload) error {
	roleRooms := d.resolveTargetRoleRooms(p.TargetRoles)

	// One logical target set: a connection matching multiple roles gets one copy.
	recipients := make(map[string]struct{})
	for _, roomKey := range roleRooms {
		for _, id := range d.registry.MemberIDs(roomKey) {
			recipients[id] = struct{}{}
		}
	}

	if p.Department != "" {
		deptKey := rooms.DepartmentRoom(p.Department)
		for id := range recipients {
			if !d.registry.InRoom(deptKey, id) {
				delete(recipients, id)
			}
		}
	}

	record := &types.AnnouncementRecord{
		ID:          uuid.New().String(),
		Title:       p.Announcement.Title,
		Content:     p.Announcement.Content,
		Priority:    p.Announcement.Priority,
		Type:        p.Announcement.Type,
		TargetRoles: p.TargetRoles,
		Department:  p.Department,
		CreatedAt:   time.Now(),
	}
	if d.dbManager != nil {
		if err := d.dbManager.StoreAnnouncement(ctx, record); err != nil {
			// Audit failure does not block delivery.
			log.Printf("Announcement audit failed: title=%q err=%v", record.Title, err)
		}
	}

	out := events.NewOutbound(events.OutboundAnnouncement, events.AnnouncementPayload{
		ID:       record.ID,
		Title:    record.Title,
		Message:  record.Content,
		Priority: record.Priority,
		Type:     record.Type,
	})

	delivered := 0
	for id := range recipients {
		if conn, ok := d.registry.Transport(id); ok {
			d.send(conn, out)
			delivered++
		}
	}

	log.Printf("Announcement dispatched: title=%q roles=%v dept=%s recipients=%d", record.Title, p.TargetRoles, p.Department, delivered)
	return nil
}

// resolveTargetRoleRooms expands target roles to role room keys. The "all"
// sentinel resolves every registered role room instead.
func (d *Dispatcher) resolveTargetRoleRooms(targetRoles []string) []string {
	for _, role := range targetRoles {
		if role == events.RoleSentinelAll {
			return d.registry.RoleRooms()
		}
	}

	seen := make(map[string]struct{})
	var keys []string
	for _, role := range targetRoles {
		key := rooms.RoleRoom(role)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

// handleNewAssignment notifies each listed student's user room.
func (d *Dispatcher) handleNewAssignment(origin string, p *events.NewAssignmentPayload) error {
	out := events.NewOutbound(events.OutboundAssignmentNotice, events.AssignmentNoticePayload{
		Title:    p.Title,
		CourseID: p.CourseID,
		DueDate:  p.DueDate,
	})

	targets := make([]string, 0, len(p.StudentIDs))
	for _, studentID := range p.StudentIDs {
		targets = append(targets, rooms.UserRoom(studentID))
	}
	delivered := d.sendToRooms(targets, out, origin)

	log.Printf("Assignment dispatched: course=%s students=%d recipients=%d", p.CourseID, len(p.StudentIDs), delivered)
	return nil
}

// handleGradeUpdated notifies the affected student's user room.
func (d *Dispatcher) handleGradeUpdated(p *events.GradeUpdatedPayload) error {
	out := events.NewOutbound(events.OutboundGradeNotice, events.GradeNoticePayload{
		Message:  fmt.Sprintf("Grade updated for %s: %s", p.CourseID, p.Grade),
		CourseID: p.CourseID,
		Grade:    p.Grade,
	})
	d.sendToRoom(rooms.UserRoom(p.StudentID), out, "")
	return nil
}

// handleFeePayment notifies the student's user room and the principal role
// room.
func (d *Dispatcher) handleFeePayment(p *events.FeePaymentPayload) error {
	d.sendToRoom(rooms.UserRoom(p.StudentID), events.NewOutbound(events.OutboundPaymentNotice, events.PaymentNoticePayload{
		Message: fmt.Sprintf("Payment %s for amount %.2f", p.Status, p.Amount),
		Amount:  p.Amount,
		Status:  p.Status,
	}), "")

	d.sendToRoom(rooms.RoleRoom(events.RolePrincipal), events.NewOutbound(events.OutboundPaymentUpdate, events.PaymentUpdatePayload{
		StudentID: p.StudentID,
		Amount:    p.Amount,
		Status:    p.Status,
	}), "")
	return nil
}

// handleJoinLiveClass joins the class presence room and notifies existing
// members.
func (d *Dispatcher) handleJoinLiveClass(origin string, p *events.LiveClassPayload) error {
	roomKey := rooms.ClassRoom(p.ClassID)
	if err := d.registry.JoinRoom(origin, roomKey); err != nil {
		return nil
	}

	d.sendToRoom(roomKey, events.NewOutbound(events.OutboundUserJoinedClass, events.ClassPresencePayload{
		ClassID: p.ClassID,
		UserID:  p.UserID,
	}), origin)
	return nil
}

// handleLeaveLiveClass notifies remaining members and leaves the room.
func (d *Dispatcher) handleLeaveLiveClass(origin string, p *events.LiveClassPayload) error {
	roomKey := rooms.ClassRoom(p.ClassID)
	if err := d.registry.LeaveRoom(origin, roomKey); err != nil {
		return nil
	}

	d.sendToRoom(roomKey, events.NewOutbound(events.OutboundUserLeftClass, events.ClassPresencePayload{
		ClassID: p.ClassID,
		UserID:  p.UserID,
	}), "")
	return nil
}

// sendToRoom delivers an event to a snapshot of a room's members, optionally
// excluding one connection id. A zero-member room is a silent no-op. Returns
// the number of recipients attempted.
func (d *Dispatcher) sendToRoom(roomKey string, out *events.Outbound, exclude string) int {
	return d.sendToRooms([]string{roomKey}, out, exclude)
}

// sendToRooms delivers an event across several rooms, deduplicated so a
// connection in more than one target room receives exactly one copy.
func (d *Dispatcher) sendToRooms(roomKeys []string, out *events.Outbound, exclude string) int {
	seen := make(map[string]struct{})
	delivered := 0
	for _, roomKey := range roomKeys {
		for _, id := range d.registry.MemberIDs(roomKey) {
			if id == exclude {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if conn, ok := d.registry.Transport(id); ok {
				d.send(conn, out)
				delivered++
			}
		}
	}
	return delivered
}

// sendToConnection delivers an event to a single connection id, typically an
// acknowledgement to the origin.
func (d *Dispatcher) sendToConnection(connectionID string, out *events.Outbound) {
	if conn, ok := d.registry.Transport(connectionID); ok {
		d.send(conn, out)
	}
}

// sendError reports a per-event failure to the origin only.
func (d *Dispatcher) sendError(connectionID, message string) {
	d.sendToConnection(connectionID, events.NewOutbound(events.OutboundError, events.ErrorPayload{
		Message: message,
	}))
}

// send is best-effort: a full buffer or closed connection drops the event
// without affecting any other recipient.
func (d *Dispatcher) send(conn interfaces.Connection, out *events.Outbound) {
	if err := conn.Send(out); err != nil {
		log.Printf("Dropped outbound event: type=%s conn=%s err=%v", out.Type, conn.ID(), err)
	}
}
