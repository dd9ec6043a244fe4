package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/trafficsim/api/schemas"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing().WillReturnError(nil)
	s, err := New(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)
	return s, mockPool
}

func sampleResult() *schemas.SessionResult {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &schemas.SessionResult{
		SessionID:         "7c1d0a3e-5a3f-4bb8-9d0e-3f6f1e2d4c5b",
		CampaignID:        "spring",
		StartTime:         start,
		EndTime:           start.Add(65 * time.Second),
		DurationSeconds:   65,
		Device:            "Desktop",
		Source:            schemas.SourceOrganic,
		Visited:           true,
		Completed:         true,
		PagesCreated:      1,
		TotalActions:      9,
		SuccessfulActions: 7,
		AdInteractions:    1,
		Errors:            []string{},
		AdReport: &schemas.AdReport{
			DetailedInteractions: schemas.DetailedInteractions{
				ClickedAds: []schemas.AdEvent{
					{Timestamp: start.Add(10 * time.Second), AdType: "display", URL: "https://example.com/", Domain: "example.com", Success: true, Reason: "Successful interaction"},
				},
			},
		},
	}
}

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestSaveSession(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts session and copies ad clicks", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		r := sampleResult()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
			WithArgs(r.SessionID, "spring", "", r.StartTime, r.EndTime, 65,
				"Desktop", "Organic", "", true, true, false,
				1, 9, 7, 1, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectExec(regexp.QuoteMeta(sqlDeleteAdClicks)).
			WithArgs(r.SessionID).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectCopyFrom(pgx.Identifier{"ad_clicks"}, adClickColumns).WillReturnResult(1)
		mockPool.ExpectCommit()

		require.NoError(t, s.SaveSession(ctx, r))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("no ad report skips the copy", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		r := sampleResult()
		r.AdReport = nil
		r.Errors = nil

		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), []byte("[]"), []byte("{}")).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectExec(regexp.QuoteMeta(sqlDeleteAdClicks)).
			WithArgs(r.SessionID).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectCommit()

		require.NoError(t, s.SaveSession(ctx, r))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("rolls back when the upsert fails", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		execErr := errors.New("relation \"sessions\" does not exist")

		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).WillReturnError(execErr)
		mockPool.ExpectRollback()

		err := s.SaveSession(ctx, sampleResult())
		assert.ErrorIs(t, err, execErr)
		assert.ErrorContains(t, err, "failed to upsert session")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("rolls back when the copy fails", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		copyErr := errors.New("copy failed")

		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectExec(regexp.QuoteMeta(sqlDeleteAdClicks)).WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectCopyFrom(pgx.Identifier{"ad_clicks"}, adClickColumns).WillReturnError(copyErr)
		mockPool.ExpectRollback()

		err := s.SaveSession(ctx, sampleResult())
		assert.ErrorIs(t, err, copyErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		beginErr := errors.New("too many connections")
		mockPool.ExpectBegin().WillReturnError(beginErr)

		err := s.SaveSession(ctx, sampleResult())
		assert.ErrorIs(t, err, beginErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("missing id", func(t *testing.T) {
		s, _ := newMockStore(t)
		assert.Error(t, s.SaveSession(ctx, &schemas.SessionResult{}))
	})
}
