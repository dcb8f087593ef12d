package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/models"
	"github.com/noah-isme/gema-classroom-api/internal/observability"
)

// SubmissionEventKind names a submission lifecycle event.
type SubmissionEventKind string

const (
	SubmissionEventSubmitted SubmissionEventKind = "submitted"
	SubmissionEventGraded    SubmissionEventKind = "graded"
)

// NotificationRelay delivers in-app notifications. NotificationService satisfies it.
type NotificationRelay interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
}

// GuardianResolver looks up the guardian account linked to a student.
type GuardianResolver interface {
	GuardianUserID(ctx context.Context, studentID uint) (*uint, error)
}

// EventPublisher publishes raw domain events. *nats.Conn satisfies it.
type EventPublisher interface {
	Publish(subject string, data []byte) error
}

// SubmissionEvent is emitted after a submission write has committed.
type SubmissionEvent struct {
	Kind        SubmissionEventKind
	Submission  models.Submission
	Assignment  models.Assignment
	Actor       ActivityActor
	RecordGrade bool
}

// SubmissionEventDispatcher fans submission events out to notifications, the
// grade book, the audit log and the event bus. Dispatch never fails.
type SubmissionEventDispatcher interface {
	Dispatch(ctx context.Context, event SubmissionEvent)
}

// SubmissionEventDeps groups the optional collaborators of the dispatcher.
type SubmissionEventDeps struct {
	Notifications NotificationRelay
	GradeBook     GradeBookRecorder
	Activity      ActivityRecorder
	Guardians     GuardianResolver
	Publisher     EventPublisher
	Channel       string
}

type submissionEventDispatcher struct {
	notifications NotificationRelay
	gradeBook     GradeBookRecorder
	activity      ActivityRecorder
	guardians     GuardianResolver
	publisher     EventPublisher
	subjectPrefix string
	logger        zerolog.Logger
	now           func() time.Time
}

type assignmentDomainEvent struct {
	Kind         SubmissionEventKind `json:"kind"`
	SubmissionID uint                `json:"submission_id"`
	AssignmentID uint                `json:"assignment_id"`
	StudentID    uint                `json:"student_id"`
	TeacherID    uint                `json:"teacher_id"`
	Mode         string              `json:"mode"`
	RawScore     int                 `json:"raw_score"`
	MaxScore     int                 `json:"max_score"`
	FinalGrade   *int                `json:"final_grade"`
	OccurredAt   time.Time           `json:"occurred_at"`
}

// NewSubmissionEventDispatcher builds the dispatcher. Nil collaborators are skipped.
func NewSubmissionEventDispatcher(deps SubmissionEventDeps, logger zerolog.Logger) SubmissionEventDispatcher {
	prefix := ""
	if deps.Channel != "" {
		prefix = strings.ReplaceAll(deps.Channel, ":", ".") + ".assignments"
	}

	return &submissionEventDispatcher{
		notifications: deps.Notifications,
		gradeBook:     deps.GradeBook,
		activity:      deps.Activity,
		guardians:     deps.Guardians,
		publisher:     deps.Publisher,
		subjectPrefix: prefix,
		logger:        logger.With().Str("component", "submission_events").Logger(),
		now:           time.Now,
	}
}

func (d *submissionEventDispatcher) Dispatch(ctx context.Context, event SubmissionEvent) {
	ctx = context.WithoutCancel(ctx)

	d.notify(ctx, event)

	if event.RecordGrade && d.gradeBook != nil {
		if err := d.gradeBook.RecordAssignmentGrade(ctx, event.Submission, event.Assignment); err != nil {
			d.fail("gradebook", event, err)
		}
	}

	d.audit(ctx, event)
	d.publish(event)
}

func (d *submissionEventDispatcher) notify(ctx context.Context, event SubmissionEvent) {
	if d.notifications == nil {
		return
	}

	recipients := make([]uint, 0, 2)
	switch event.Kind {
	case SubmissionEventSubmitted:
		recipients = append(recipients, event.Assignment.TeacherID)
	case SubmissionEventGraded:
		recipients = append(recipients, event.Submission.StudentID)
	}

	if d.guardians != nil {
		guardianID, err := d.guardians.GuardianUserID(ctx, event.Submission.StudentID)
		switch {
		case err != nil:
			d.fail("guardian_lookup", event, err)
		case guardianID != nil:
			recipients = append(recipients, *guardianID)
		}
	}

	payload := d.notificationPayload(event)
	seen := make(map[uint]struct{}, len(recipients))
	for _, userID := range recipients {
		if userID == 0 {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		payload.UserID = strconv.FormatUint(uint64(userID), 10)
		if _, err := d.notifications.Publish(ctx, payload); err != nil {
			d.fail("notification", event, err)
		}
	}
}

func (d *submissionEventDispatcher) notificationPayload(event SubmissionEvent) dto.NotificationCreateRequest {
	link := fmt.Sprintf("/assignments/%d/submissions/%d", event.Assignment.ID, event.Submission.ID)

	if event.Kind == SubmissionEventGraded {
		message := fmt.Sprintf("Your submission for %s has been graded.", event.Assignment.Title)
		if event.Submission.FinalGrade != nil {
			message = fmt.Sprintf("Your submission for %s has been graded: %d/100.", event.Assignment.Title, *event.Submission.FinalGrade)
		}
		return dto.NotificationCreateRequest{
			Title:   "Assignment graded",
			Type:    "assignment_graded",
			Message: message,
			Link:    link,
		}
	}

	return dto.NotificationCreateRequest{
		Title:   "Assignment submitted",
		Type:    "assignment_submitted",
		Message: fmt.Sprintf("Student #%d submitted %s.", event.Submission.StudentID, event.Assignment.Title),
		Link:    link,
	}
}

func (d *submissionEventDispatcher) audit(ctx context.Context, event SubmissionEvent) {
	if d.activity == nil {
		return
	}

	submissionID := event.Submission.ID
	metadata := map[string]interface{}{
		"assignment_id": event.Assignment.ID,
		"student_id":    event.Submission.StudentID,
		"raw_score":     event.Submission.RawScore,
		"max_score":     event.Submission.MaxScore,
	}
	if event.Submission.FinalGrade != nil {
		metadata["final_grade"] = *event.Submission.FinalGrade
	}

	if _, err := d.activity.Record(ctx, ActivityEntry{
		ActorID:     event.Actor.ID,
		ActorRole:   event.Actor.Role,
		Action:      "submission." + string(event.Kind),
		EntityType:  "submission",
		EntityID:    &submissionID,
		Description: fmt.Sprintf("%s %q", event.Kind, event.Assignment.Title),
		Metadata:    metadata,
	}); err != nil {
		d.fail("audit", event, err)
	}
}

func (d *submissionEventDispatcher) publish(event SubmissionEvent) {
	if d.publisher == nil || d.subjectPrefix == "" {
		return
	}

	payload, err := json.Marshal(assignmentDomainEvent{
		Kind:         event.Kind,
		SubmissionID: event.Submission.ID,
		AssignmentID: event.Assignment.ID,
		StudentID:    event.Submission.StudentID,
		TeacherID:    event.Assignment.TeacherID,
		Mode:         string(event.Assignment.Mode),
		RawScore:     event.Submission.RawScore,
		MaxScore:     event.Submission.MaxScore,
		FinalGrade:   event.Submission.FinalGrade,
		OccurredAt:   d.now().UTC(),
	})
	if err != nil {
		d.fail("event_bus", event, err)
		return
	}

	if err := d.publisher.Publish(d.subjectPrefix+"."+string(event.Kind), payload); err != nil {
		d.fail("event_bus", event, err)
	}
}

func (d *submissionEventDispatcher) fail(effect string, event SubmissionEvent, err error) {
	observability.SideEffectFailures().WithLabelValues(effect).Inc()
	d.logger.Warn().
		Err(err).
		Str("effect", effect).
		Str("event", string(event.Kind)).
		Uint("submission_id", event.Submission.ID).
		Msg("submission side effect failed")
}
