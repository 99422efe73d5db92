package database

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itracksy/internal/models"
)

func TestConversationService_Create_DefaultsType(t *testing.T) {
	db, mock := newMock(t)
	svc := NewConversationService(NewWriteClient(db))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO feedback")).
		WithArgs(sqlmock.AnyArg(), "Ann", "ann@example.com", "love it", "general", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c := &models.Conversation{Name: "Ann", Email: "ann@example.com", Message: "love it"}
	require.NoError(t, svc.Create(context.Background(), c))
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "general", c.FeedbackType)
}

func TestConversationService_Get(t *testing.T) {
	db, mock := newMock(t)
	svc := NewConversationService(NewWriteClient(db))

	query := regexp.QuoteMeta("FROM feedback WHERE id = $1")
	cols := []string{"id", "name", "email", "message", "feedback_type", "replied_at", "created_at"}
	mock.ExpectQuery(query).WithArgs("f1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("f1", "Ann", "ann@example.com", "hi", "bug", nil, time.Now()))
	mock.ExpectQuery(query).WithArgs("nope").WillReturnRows(sqlmock.NewRows(cols))

	c, err := svc.Get(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, "bug", c.FeedbackType)
	assert.False(t, c.Replied())

	_, err = svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConversationService_LatestBySender(t *testing.T) {
	db, mock := newMock(t)
	svc := NewConversationService(NewWriteClient(db))

	query := regexp.QuoteMeta("SELECT id FROM feedback WHERE lower(email) = $1 ORDER BY created_at DESC LIMIT 1")
	mock.ExpectQuery(query).WithArgs("ann@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("f2"))
	mock.ExpectQuery(query).WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	id, err := svc.LatestBySender(context.Background(), "  Ann@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "f2", id)

	_, err = svc.LatestBySender(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConversationService_MarkReplied_SetOnce(t *testing.T) {
	db, mock := newMock(t)
	svc := NewConversationService(NewWriteClient(db))

	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta("UPDATE feedback SET replied_at = $1 WHERE id = $2 AND replied_at IS NULL")
	mock.ExpectExec(query).WithArgs(at, "f1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs(at.Add(time.Hour), "f1").WillReturnResult(sqlmock.NewResult(0, 0))

	stamped, err := svc.MarkReplied(context.Background(), "f1", at)
	require.NoError(t, err)
	assert.True(t, stamped)

	stamped, err = svc.MarkReplied(context.Background(), "f1", at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, stamped)
}

func TestConversationService_List_UnrepliedOnly(t *testing.T) {
	db, mock := newMock(t)
	svc := NewConversationService(NewWriteClient(db))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM feedback WHERE replied_at IS NULL ORDER BY created_at DESC LIMIT $1 OFFSET $2")).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "message", "feedback_type", "replied_at", "created_at"}))
	mock.ExpectRollback()

	list, err := svc.List(context.Background(), true, 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
