package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"owl-haccp/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockCCPRecordDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *CCPRecordRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewCCPRecordRepository(db, zap.NewNop())
	return db, mock, repo
}

func TestCreateCCPRecord_Success(t *testing.T) {
	db, mock, repo := setupMockCCPRecordDB(t)
	defer db.Close()

	action := "Re-cooked batch"
	record := &models.CCPRecord{
		ID:          uuid.New().String(),
		CCPID:       "ccp-1",
		RecordDate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		RecordTime:  "09:30",
		LotNumber:   "LOT-1",
		BatchNumber: "B-7",
		Measurements: []models.MeasurementValue{
			{ParameterCode: "temp", Value: 70, Unit: "°C", WithinLimit: false},
		},
		OverallWithinLimit: false,
		DeviationAction:    &action,
		Status:             models.RecordStatusDraft,
		RecordedBy:         "alice",
		CreatedAt:          time.Now(),
	}

	mock.ExpectExec(`INSERT INTO ccp_records`).
		WithArgs(
			record.ID, "ccp-1", record.RecordDate, "09:30", "LOT-1", "B-7",
			sqlmock.AnyArg(), false, sqlmock.AnyArg(), "DRAFT", "alice", record.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateCCPRecord(context.Background(), record)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCCPRecord_Success(t *testing.T) {
	db, mock, repo := setupMockCCPRecordDB(t)
	defer db.Close()

	recordID := uuid.New().String()
	verifiedAt := time.Now()
	rows := sqlmock.NewRows([]string{
		"record_id", "ccp_id", "record_date", "record_time", "lot_number", "batch_number",
		"measurements", "overall_within_limit", "deviation_action", "deviation_ref_id",
		"status", "recorded_by", "verified_by", "verified_at", "created_at",
	}).AddRow(
		recordID, "ccp-1", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "09:30", "LOT-1", "B-7",
		`[{"parameter_code":"temp","value":76.5,"unit":"°C","within_limit":true}]`, true, nil, nil,
		"VERIFIED", "alice", "bob", verifiedAt, time.Now(),
	)
	mock.ExpectQuery(`SELECT (.+) FROM ccp_records WHERE record_id = \$1`).
		WithArgs(recordID).
		WillReturnRows(rows)

	record, err := repo.GetCCPRecord(context.Background(), recordID)

	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusVerified, record.Status)
	assert.True(t, record.OverallWithinLimit)
	require.Len(t, record.Measurements, 1)
	assert.Equal(t, 76.5, record.Measurements[0].Value)
	assert.Nil(t, record.DeviationAction)
	require.NotNil(t, record.VerifiedBy)
	assert.Equal(t, "bob", *record.VerifiedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCCPRecord_NotFound(t *testing.T) {
	db, mock, repo := setupMockCCPRecordDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetCCPRecord(context.Background(), "nope")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestVerifyCCPRecord_Draft(t *testing.T) {
	db, mock, repo := setupMockCCPRecordDB(t)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec(`UPDATE ccp_records SET status = 'VERIFIED'(.+)WHERE record_id = \$1 AND status = 'DRAFT'`).
		WithArgs("rec-1", "bob", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.VerifyCCPRecord(context.Background(), "rec-1", "bob", at)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyCCPRecord_AlreadyVerified(t *testing.T) {
	db, mock, repo := setupMockCCPRecordDB(t)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec(`UPDATE ccp_records`).
		WithArgs("rec-1", "bob", at).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status FROM ccp_records WHERE record_id = \$1`).
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("VERIFIED"))

	err := repo.VerifyCCPRecord(context.Background(), "rec-1", "bob", at)

	assert.True(t, errors.Is(err, models.ErrRecordVerified))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyCCPRecord_NotFound(t *testing.T) {
	db, mock, repo := setupMockCCPRecordDB(t)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec(`UPDATE ccp_records`).
		WithArgs("rec-x", "bob", at).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status FROM ccp_records`).
		WithArgs("rec-x").
		WillReturnError(sql.ErrNoRows)

	err := repo.VerifyCCPRecord(context.Background(), "rec-x", "bob", at)

	assert.True(t, errors.Is(err, models.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetCCPDeviationRef(t *testing.T) {
	db, mock, repo := setupMockCCPRecordDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE ccp_records SET deviation_ref_id = \$2`).
		WithArgs("rec-1", "CA-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetCCPDeviationRef(context.Background(), "rec-1", "CA-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
