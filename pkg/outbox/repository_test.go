package outbox

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
)

func newOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`).Error)
	return conn
}

func insertOutboxRow(t *testing.T, repo *Repository, conn *gorm.DB, createdAt time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, repo.Insert(conn, models.OutboxEvent{
		ID:            id,
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		CreatedAt:     createdAt,
	}))
	return id
}

func TestRepositoryFetchOrdersAndFilters(t *testing.T) {
	conn := newOutboxTestDB(t)
	repo := NewRepository(conn)
	base := time.Now().UTC().Add(-time.Hour)

	first := insertOutboxRow(t, repo, conn, base)
	second := insertOutboxRow(t, repo, conn, base.Add(time.Minute))
	published := insertOutboxRow(t, repo, conn, base.Add(2*time.Minute))
	exhausted := insertOutboxRow(t, repo, conn, base.Add(3*time.Minute))

	require.NoError(t, repo.MarkPublishedTx(conn, published))
	require.NoError(t, repo.MarkTerminalTx(conn, exhausted, errors.New("poison"), 5))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, first, rows[0].ID)
	require.Equal(t, second, rows[1].ID)

	limited, err := repo.FetchUnpublishedForPublish(conn, 1, 5)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestRepositoryMarkFailedIncrementsAttempts(t *testing.T) {
	conn := newOutboxTestDB(t)
	repo := NewRepository(conn)
	id := insertOutboxRow(t, repo, conn, time.Now().UTC())

	require.NoError(t, repo.MarkFailedTx(conn, id, errors.New("publish timeout")))
	require.NoError(t, repo.MarkFailedTx(conn, id, errors.New("publish timeout again")))

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row, "id = ?", id).Error)
	require.Equal(t, 2, row.AttemptCount)
	require.NotNil(t, row.LastError)
	require.Equal(t, "publish timeout again", *row.LastError)
	require.Nil(t, row.PublishedAt)
}

func TestRepositoryRequiresTransaction(t *testing.T) {
	repo := NewRepository(nil)
	require.Error(t, repo.Insert(nil, models.OutboxEvent{}))
	_, err := repo.FetchUnpublishedForPublish(nil, 1, 1)
	require.Error(t, err)
}
