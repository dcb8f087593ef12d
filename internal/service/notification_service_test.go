package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
)

func newTestNotificationService(t *testing.T) *notificationService {
	t.Helper()
	db := setupServiceDB(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewNotificationService(repository.NewNotificationRepository(db), client, "gema:classroom", nil, testValidator(), testLogger()).(*notificationService)
}

func TestNotificationPublishPersistsAndStreams(t *testing.T) {
	svc := newTestNotificationService(t)

	stream, cleanup := svc.Subscribe("21")
	defer cleanup()

	created, err := svc.Publish(context.Background(), dto.NotificationCreateRequest{
		UserID:  "21",
		Title:   "<i>Assignment graded</i>",
		Type:    "assignment_graded",
		Message: "<script>alert(1)</script>Your submission has been graded: 83/100.",
		Link:    "/assignments/7/submissions/44",
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.Equal(t, "Assignment graded", created.Title)
	require.Equal(t, "Your submission has been graded: 83/100.", created.Message)

	select {
	case received := <-stream:
		require.Equal(t, created.ID, received.ID)
	case <-time.After(time.Second):
		t.Fatal("notification was not streamed to the subscriber")
	}

	list, err := svc.List(context.Background(), "21", true, 10, 0)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.EqualValues(t, 1, list.Unread)
}

func TestNotificationMarkReadIsScopedToUser(t *testing.T) {
	svc := newTestNotificationService(t)

	created, err := svc.Publish(context.Background(), dto.NotificationCreateRequest{
		UserID:  "5",
		Title:   "Assignment submitted",
		Type:    "assignment_submitted",
		Message: "Student #21 submitted Homework.",
	})
	require.NoError(t, err)

	_, err = svc.MarkRead(context.Background(), created.ID, "21")
	require.ErrorIs(t, err, ErrNotificationNotFound)

	read, err := svc.MarkRead(context.Background(), created.ID, "5")
	require.NoError(t, err)
	require.True(t, read.Read)

	list, err := svc.List(context.Background(), "5", false, 10, 0)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Zero(t, list.Unread)
}

func TestNotificationPublishRejectsEmptyMessage(t *testing.T) {
	svc := newTestNotificationService(t)

	_, err := svc.Publish(context.Background(), dto.NotificationCreateRequest{
		UserID:  "5",
		Title:   "Empty",
		Type:    "generic",
		Message: "<script></script>",
	})
	require.Error(t, err)
}

func TestNotificationRemoteEventsReachLocalSubscribers(t *testing.T) {
	svc := newTestNotificationService(t)

	stream, cleanup := svc.Subscribe("900")
	defer cleanup()

	own, err := json.Marshal(notificationEvent{Source: svc.nodeID, Notification: dto.NotificationResponse{ID: 1, UserID: "900"}})
	require.NoError(t, err)
	svc.handleEvent(own)

	remote, err := json.Marshal(notificationEvent{Source: "other-node", Notification: dto.NotificationResponse{ID: 2, UserID: "900"}})
	require.NoError(t, err)
	svc.handleEvent(remote)

	select {
	case received := <-stream:
		require.Equal(t, uint(2), received.ID, "events from this node are already delivered locally")
		require.Equal(t, "generic", received.Type)
	case <-time.After(time.Second):
		t.Fatal("remote notification was not streamed")
	}
}
