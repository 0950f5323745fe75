package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"whatsapp-assistant/internal/database"
	"whatsapp-assistant/internal/models"
)

type recordingNotifier struct {
	rows []models.AuditLog
}

func (r *recordingNotifier) NotifyAudit(row models.AuditLog) {
	r.rows = append(r.rows, row)
}

func TestRecord(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	n := &recordingNotifier{}
	l := NewLogger(db, n, zap.NewNop())

	err = l.Record(context.Background(), Entry{
		PhoneNumber:  "+1000",
		MessageText:  "hi",
		ResponseText: "not registered",
		ErrorMessage: "sender not registered",
	})
	require.NoError(t, err)

	var rows []models.AuditLog
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].TenantID)
	assert.Nil(t, rows[0].Intent)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Equal(t, "sender not registered", *rows[0].ErrorMessage)
	assert.False(t, rows[0].Success)

	require.Len(t, n.rows, 1)
	assert.Equal(t, rows[0].ID, n.rows[0].ID)
}

func TestRecordBestEffort_SwallowsFailure(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, db.Migrator().DropTable(&models.AuditLog{}))

	core, logs := observer.New(zapcore.ErrorLevel)
	n := &recordingNotifier{}
	l := NewLogger(db, n, zap.New(core))

	assert.NotPanics(t, func() {
		l.RecordBestEffort(context.Background(), Entry{PhoneNumber: "+1000"})
	})
	assert.Equal(t, 1, logs.FilterMessage("Audit write failed, continuing").Len())
	assert.Empty(t, n.rows)
}

func TestList(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	l := NewLogger(db, nil, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, Entry{TenantID: "t1", PhoneNumber: "+1", Success: true}))
	require.NoError(t, l.Record(ctx, Entry{TenantID: "t1", PhoneNumber: "+1", Success: false}))
	require.NoError(t, l.Record(ctx, Entry{TenantID: "t2", PhoneNumber: "+2", Success: true}))

	rows, total, err := l.List(ctx, Filter{TenantID: "t1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, rows, 2)

	ok := true
	rows, total, err = l.List(ctx, Filter{Success: &ok, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, rows, 1)
}
