package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

type capturingPublisher struct {
	subject string
	payload []byte
}

func (p *capturingPublisher) Publish(subject string, data []byte) error {
	p.subject = subject
	p.payload = data
	return nil
}

func gradedEvent(studentID, teacherID uint) SubmissionEvent {
	grade := 83
	return SubmissionEvent{
		Kind: SubmissionEventGraded,
		Submission: models.Submission{
			ID:         44,
			StudentID:  studentID,
			RawScore:   25,
			MaxScore:   30,
			FinalGrade: &grade,
		},
		Assignment: models.Assignment{
			ID:        7,
			Title:     "Photosynthesis",
			TeacherID: teacherID,
			Mode:      models.AssignmentModeHomework,
		},
		Actor:       ActivityActor{ID: teacherID, Role: RoleTeacher},
		RecordGrade: true,
	}
}

func TestDispatchGradedNotifiesStudentAndGuardian(t *testing.T) {
	relay := &recordingRelay{}
	activity := &recordingActivity{}
	gradeBook := &recordingGradeBook{}
	publisher := &capturingPublisher{}

	dispatcher := NewSubmissionEventDispatcher(SubmissionEventDeps{
		Notifications: relay,
		GradeBook:     gradeBook,
		Activity:      activity,
		Guardians:     staticGuardians{guardians: map[uint]uint{21: 900}},
		Publisher:     publisher,
		Channel:       "gema:classroom",
	}, testLogger())

	dispatcher.Dispatch(context.Background(), gradedEvent(21, 5))

	require.Equal(t, []string{"21", "900"}, relay.recipients())
	require.Equal(t, "assignment_graded", relay.sent[0].Type)
	require.Equal(t, "/assignments/7/submissions/44", relay.sent[0].Link)
	require.Contains(t, relay.sent[0].Message, "83/100")
	require.Len(t, gradeBook.entries, 1)

	require.Len(t, activity.entries, 1)
	entry := activity.entries[0]
	require.Equal(t, "submission.graded", entry.Action)
	require.Equal(t, "submission", entry.EntityType)
	require.Equal(t, uint(44), *entry.EntityID)
	require.Equal(t, 83, entry.Metadata["final_grade"])

	require.Equal(t, "gema.classroom.assignments.graded", publisher.subject)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(publisher.payload, &body))
	require.Equal(t, "graded", body["kind"])
	require.EqualValues(t, 44, body["submission_id"])
	require.EqualValues(t, 83, body["final_grade"])
}

func TestDispatchDeduplicatesRecipients(t *testing.T) {
	relay := &recordingRelay{}
	dispatcher := NewSubmissionEventDispatcher(SubmissionEventDeps{
		Notifications: relay,
		Guardians:     staticGuardians{guardians: map[uint]uint{21: 21}},
	}, testLogger())

	dispatcher.Dispatch(context.Background(), gradedEvent(21, 5))

	require.Equal(t, []string{"21"}, relay.recipients())
}

func TestDispatchSubmittedSkipsGradeBookWithoutGrade(t *testing.T) {
	relay := &recordingRelay{}
	gradeBook := &recordingGradeBook{}
	dispatcher := NewSubmissionEventDispatcher(SubmissionEventDeps{
		Notifications: relay,
		GradeBook:     gradeBook,
	}, testLogger())

	event := gradedEvent(21, 5)
	event.Kind = SubmissionEventSubmitted
	event.Submission.FinalGrade = nil
	event.RecordGrade = false
	dispatcher.Dispatch(context.Background(), event)

	require.Equal(t, []string{"5"}, relay.recipients())
	require.Equal(t, "assignment_submitted", relay.sent[0].Type)
	require.Empty(t, gradeBook.entries)
}

func TestDispatchToleratesGuardianLookupFailure(t *testing.T) {
	relay := &recordingRelay{}
	dispatcher := NewSubmissionEventDispatcher(SubmissionEventDeps{
		Notifications: relay,
		Guardians:     staticGuardians{err: errUnavailable},
	}, testLogger())

	dispatcher.Dispatch(context.Background(), gradedEvent(21, 5))

	require.Equal(t, []string{"21"}, relay.recipients())
}

func TestDispatchSurvivesCanceledContext(t *testing.T) {
	relay := &recordingRelay{}
	dispatcher := NewSubmissionEventDispatcher(SubmissionEventDeps{Notifications: relay}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	cancel()
	dispatcher.Dispatch(ctx, gradedEvent(21, 5))

	require.Len(t, relay.sent, 1)
}

func TestDispatchWithoutChannelDoesNotPublish(t *testing.T) {
	publisher := &capturingPublisher{}
	dispatcher := NewSubmissionEventDispatcher(SubmissionEventDeps{Publisher: publisher}, testLogger())

	dispatcher.Dispatch(context.Background(), gradedEvent(21, 5))

	require.Empty(t, publisher.subject)
}
