package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"owl-haccp/internal/evaluator"
	"owl-haccp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

var fixedNow = time.Date(2024, 7, 15, 9, 30, 0, 0, time.UTC)

type testEnv struct {
	ccpCatalog   *fakeCCPCatalog
	pestCatalog  *fakePestCatalog
	records      *fakeRecordStore
	calibrations *fakeCalibrationStore
	cache        *fakeStatusCache
	notifier     *recordingNotifier
	svc          *ComplianceService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		ccpCatalog: &fakeCCPCatalog{defs: map[string]*models.CCPDefinition{
			"ccp-cook": {
				ID: "ccp-cook", CCPNumber: "CCP-1", Process: "Cooking", Status: models.CCPStatusActive,
				Limits: []models.CriticalLimit{
					{ParameterCode: "T", ParameterName: "Core temperature", Min: floatPtr(85), Unit: "°C"},
					{ParameterCode: "pH", ParameterName: "Acidity", Min: floatPtr(4.2), Max: floatPtr(4.6)},
				},
			},
			"ccp-old": {
				ID: "ccp-old", CCPNumber: "CCP-9", Process: "Legacy", Status: models.CCPStatusMerged,
				Limits: []models.CriticalLimit{{ParameterCode: "T", Min: floatPtr(70)}},
			},
		}},
		pestCatalog: &fakePestCatalog{
			standards: map[models.Season][]models.PestStandard{
				models.SeasonSummer: {
					{Season: models.SeasonSummer, ZoneGrade: models.ZoneGradeClean, HazardCategory: models.HazardRodent, Level: 1, UpperLimit: 2},
					{Season: models.SeasonSummer, ZoneGrade: models.ZoneGradeClean, HazardCategory: models.HazardRodent, Level: 2, UpperLimit: 5},
				},
			},
			traps: []models.TrapLocation{
				{ID: "T-01", ZoneID: "Z-1", ZoneGrade: models.ZoneGradeClean, HazardCategory: models.HazardRodent},
				{ID: "T-02", ZoneID: "Z-1", ZoneGrade: models.ZoneGradeClean, HazardCategory: models.HazardRodent},
				{ID: "T-03", ZoneID: "Z-2", ZoneGrade: models.ZoneGradeGeneral, HazardCategory: models.HazardAirborne},
			},
		},
		records:      newFakeRecordStore(),
		calibrations: newFakeCalibrationStore(),
		cache:        &fakeStatusCache{},
		notifier:     &recordingNotifier{ref: "CA-100"},
	}
	env.svc = NewComplianceService(
		env.ccpCatalog, env.pestCatalog, env.records, env.records,
		env.calibrations, env.cache, env.notifier,
		Options{Workers: 3, SummerStart: time.May, SummerEnd: time.October, Clock: func() time.Time { return fixedNow }},
		zap.NewNop(),
	)
	return env
}

// ============================================
// CCP 监控记录
// ============================================

func TestRecordCCP_WithinLimits(t *testing.T) {
	env := newTestEnv(t)

	record, err := env.svc.RecordCCP(context.Background(), "ccp-cook", models.CCPRecordInput{
		RecordTime: "09:00",
		Measurements: []models.MeasurementInput{
			{ParameterCode: "T", Value: floatPtr(85)},
			{ParameterCode: "pH", Value: floatPtr(4.4)},
		},
	})

	require.NoError(t, err)
	assert.True(t, record.OverallWithinLimit)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "ccp-cook", record.CCPID)
	assert.Equal(t, models.RecordStatusDraft, record.Status)
	assert.Equal(t, time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC), record.RecordDate)
	assert.Equal(t, "°C", record.Measurements[0].Unit)
	assert.Empty(t, env.notifier.events)
	assert.Contains(t, env.records.ccp, record.ID)
}

func TestRecordCCP_DeviationEmittedExactlyOnce(t *testing.T) {
	env := newTestEnv(t)

	record, err := env.svc.RecordCCP(context.Background(), "ccp-cook", models.CCPRecordInput{
		Measurements: []models.MeasurementInput{
			{ParameterCode: "T", Value: floatPtr(85)},
			{ParameterCode: "pH", Value: floatPtr(4.0)},
		},
		DeviationAction: "Batch held for re-acidification",
	})

	require.NoError(t, err)
	assert.False(t, record.OverallWithinLimit)
	assert.True(t, record.Measurements[0].WithinLimit)
	assert.False(t, record.Measurements[1].WithinLimit)

	require.Len(t, env.notifier.events, 1)
	event := env.notifier.events[0]
	assert.Equal(t, models.DeviationSourceCCP, event.SourceType)
	assert.Equal(t, record.ID, event.SourceID)
	require.Len(t, event.Violations, 1)
	assert.Equal(t, "pH", event.Violations[0].ParameterCode)

	require.NotNil(t, record.DeviationRefID)
	assert.Equal(t, "CA-100", *record.DeviationRefID)
	assert.Equal(t, "CA-100", *env.records.ccp[record.ID].DeviationRefID)
}

func TestRecordCCP_NotifierFailureKeepsVerdict(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.err = errBackendDown

	record, err := env.svc.RecordCCP(context.Background(), "ccp-cook", models.CCPRecordInput{
		Measurements:    []models.MeasurementInput{{ParameterCode: "T", Value: floatPtr(80)}},
		DeviationAction: "Re-cook",
	})

	require.Error(t, err)
	require.NotNil(t, record)
	assert.False(t, record.OverallWithinLimit)
	assert.True(t, IsNotificationError(err))
	assert.True(t, errors.Is(err, errBackendDown))
	assert.Contains(t, env.records.ccp, record.ID)
	assert.Nil(t, record.DeviationRefID)
}

func TestRecordCCP_PartialDeliveryKeepsReferenceAndReportsError(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.err = errBackendDown
	env.notifier.partial = true

	record, err := env.svc.RecordCCP(context.Background(), "ccp-cook", models.CCPRecordInput{
		Measurements:    []models.MeasurementInput{{ParameterCode: "T", Value: floatPtr(80)}},
		DeviationAction: "Re-cook",
	})

	require.Error(t, err)
	assert.True(t, IsNotificationError(err))
	assert.True(t, errors.Is(err, errBackendDown))
	require.NotNil(t, record)
	require.NotNil(t, record.DeviationRefID)
	assert.Equal(t, "CA-100", *record.DeviationRefID)
	assert.Equal(t, "CA-100", *env.records.ccp[record.ID].DeviationRefID)
}

func TestRecordCCP_MissingDeviationAction(t *testing.T) {
	env := newTestEnv(t)

	record, err := env.svc.RecordCCP(context.Background(), "ccp-cook", models.CCPRecordInput{
		Measurements: []models.MeasurementInput{{ParameterCode: "T", Value: floatPtr(80)}},
	})

	assert.Nil(t, record)
	assert.True(t, errors.Is(err, evaluator.ErrMissingDeviationAction))
	assert.Empty(t, env.records.ccp)
	assert.Empty(t, env.notifier.events)
}

func TestRecordCCP_UnknownCCP(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.RecordCCP(context.Background(), "nope", models.CCPRecordInput{})

	var catalogErr *CatalogError
	assert.True(t, errors.As(err, &catalogErr))
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestRecordCCP_MergedDefinition(t *testing.T) {
	env := newTestEnv(t)
	input := models.CCPRecordInput{
		Measurements: []models.MeasurementInput{{ParameterCode: "T", Value: floatPtr(72)}},
	}

	_, err := env.svc.RecordCCP(context.Background(), "ccp-old", input)
	assert.True(t, errors.Is(err, models.ErrCCPInactive))

	input.Historical = true
	record, err := env.svc.RecordCCP(context.Background(), "ccp-old", input)
	require.NoError(t, err)
	assert.True(t, record.OverallWithinLimit)
}

func TestRecordCCP_StoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.records.createErr = errBackendDown

	record, err := env.svc.RecordCCP(context.Background(), "ccp-cook", models.CCPRecordInput{
		Measurements:    []models.MeasurementInput{{ParameterCode: "T", Value: floatPtr(60)}},
		DeviationAction: "Discard",
	})

	assert.Nil(t, record)
	assert.True(t, errors.Is(err, errBackendDown))
	assert.Empty(t, env.notifier.events)
}

func TestEvaluateBatch_PreservesOrder(t *testing.T) {
	env := newTestEnv(t)

	var subs []models.CCPSubmission
	for i := 0; i < 10; i++ {
		subs = append(subs, models.CCPSubmission{
			CCPID: "ccp-cook",
			Record: models.CCPRecordInput{
				LotNumber:       fmt.Sprintf("LOT-%d", i),
				Measurements:    []models.MeasurementInput{{ParameterCode: "T", Value: floatPtr(80 + float64(i))}},
				DeviationAction: "Hold",
			},
		})
	}
	subs = append(subs, models.CCPSubmission{CCPID: "missing"})

	results := env.svc.EvaluateBatch(context.Background(), subs)

	require.Len(t, results, 11)
	for i := 0; i < 10; i++ {
		require.NoError(t, results[i].Err)
		assert.Equal(t, i, results[i].Index)
		assert.Equal(t, fmt.Sprintf("LOT-%d", i), results[i].Record.LotNumber)
		assert.Equal(t, 80+float64(i) >= 85, results[i].Record.OverallWithinLimit)
	}
	assert.Error(t, results[10].Err)
	assert.Len(t, env.notifier.events, 5)
	assert.Equal(t, 11, env.ccpCatalog.calls)
}

func TestEvaluateBatch_Empty(t *testing.T) {
	env := newTestEnv(t)
	assert.Empty(t, env.svc.EvaluateBatch(context.Background(), nil))
}

func TestVerifyCCPRecord_Once(t *testing.T) {
	env := newTestEnv(t)
	record, err := env.svc.RecordCCP(context.Background(), "ccp-cook", models.CCPRecordInput{
		Measurements: []models.MeasurementInput{{ParameterCode: "T", Value: floatPtr(90)}},
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.VerifyCCPRecord(context.Background(), record.ID, "qa-lead"))
	err = env.svc.VerifyCCPRecord(context.Background(), record.ID, "qa-lead")
	assert.True(t, errors.Is(err, models.ErrRecordVerified))

	assert.Error(t, env.svc.VerifyCCPRecord(context.Background(), record.ID, " "))
}

// ============================================
// 防虫检查
// ============================================

func TestRecordPestCheck_SeasonDerivedAndLevel2(t *testing.T) {
	env := newTestEnv(t)

	check, err := env.svc.RecordPestCheck(context.Background(), models.PestCheckInput{
		CheckDate: time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC),
		TrapChecks: []models.TrapCheckInput{
			{TrapLocationID: "T-01", CatchCount: intPtr(1)},
			{TrapLocationID: "T-02", CatchCount: intPtr(5)},
			{TrapLocationID: "T-03", CatchCount: intPtr(9)},
		},
		CheckedBy: "pest-tech",
	})

	require.NoError(t, err)
	assert.Equal(t, models.SeasonSummer, check.Season)
	assert.Equal(t, models.PestStatusLevel2, check.OverallStatus)
	assert.Equal(t, 0, check.TrapChecks[0].Evaluation.Level)
	assert.Equal(t, 2, check.TrapChecks[1].Evaluation.Level)
	assert.True(t, check.TrapChecks[2].Evaluation.Unconfigured)

	require.Len(t, env.notifier.events, 1)
	assert.Equal(t, models.DeviationSourcePest, env.notifier.events[0].SourceType)
	require.NotNil(t, check.DeviationRefID)
	assert.Equal(t, "CA-100", *env.records.pest[check.ID].DeviationRefID)
}

func TestRecordPestCheck_NormalNoEvent(t *testing.T) {
	env := newTestEnv(t)

	check, err := env.svc.RecordPestCheck(context.Background(), models.PestCheckInput{
		Season:     models.SeasonSummer,
		TrapChecks: []models.TrapCheckInput{{TrapLocationID: "T-01", CatchCount: intPtr(0)}},
	})

	require.NoError(t, err)
	assert.Equal(t, models.PestStatusNormal, check.OverallStatus)
	assert.Equal(t, time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC), check.CheckDate)
	assert.Empty(t, env.notifier.events)
}

func TestRecordPestCheck_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.RecordPestCheck(ctx, models.PestCheckInput{Season: models.SeasonSummer})
	assert.True(t, errors.Is(err, evaluator.ErrEmptyMeasurementSet))

	_, err = env.svc.RecordPestCheck(ctx, models.PestCheckInput{
		Season:     models.SeasonSummer,
		TrapChecks: []models.TrapCheckInput{{TrapLocationID: "T-99", CatchCount: intPtr(1)}},
	})
	var unknown *evaluator.UnknownTrapError
	assert.True(t, errors.As(err, &unknown))

	env.pestCatalog.err = errBackendDown
	_, err = env.svc.RecordPestCheck(ctx, models.PestCheckInput{
		Season:     models.SeasonSummer,
		TrapChecks: []models.TrapCheckInput{{TrapLocationID: "T-01", CatchCount: intPtr(1)}},
	})
	var catalogErr *CatalogError
	assert.True(t, errors.As(err, &catalogErr))
	assert.Empty(t, env.records.pest)
}

func TestImportAndExportPestStandards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	exported, err := env.svc.ExportPestStandards(ctx)
	require.NoError(t, err)

	n, err := env.svc.ImportPestStandards(ctx, exported)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, env.pestCatalog.replaced, 2)
}

func TestImportPestStandards_InvalidFile(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.ImportPestStandards(context.Background(), errReader{})
	assert.Error(t, err)
	assert.Nil(t, env.pestCatalog.replaced)
}

type errReader struct{}

func (errReader) Read(p []byte) (int, error) { return 0, errBackendDown }

// ============================================
// 设备校准
// ============================================

func TestCalibrationStatus_RecomputeAndCache(t *testing.T) {
	env := newTestEnv(t)
	env.calibrations.records["THERM-01"] = models.CalibrationRecord{
		EquipmentID:         "THERM-01",
		LastCalibrationDate: time.Date(2023, 7, 31, 0, 0, 0, 0, time.UTC),
		Frequency:           models.FrequencyYearly,
	}

	status, err := env.svc.CalibrationStatus(context.Background(), "THERM-01")
	require.NoError(t, err)
	assert.Equal(t, models.CalibrationExpiring, status.Status)
	assert.Equal(t, 16, status.DaysRemaining)
	assert.Equal(t, 1, env.calibrations.gets)

	// 第二次命中缓存
	_, err = env.svc.CalibrationStatus(context.Background(), "THERM-01")
	require.NoError(t, err)
	assert.Equal(t, 1, env.calibrations.gets)
}

func TestCalibrationStatus_CacheErrorFallsBack(t *testing.T) {
	env := newTestEnv(t)
	env.cache.err = errBackendDown
	env.calibrations.records["SCALE-1"] = models.CalibrationRecord{
		EquipmentID:         "SCALE-1",
		LastCalibrationDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Frequency:           models.FrequencyMonthly,
	}

	status, err := env.svc.CalibrationStatus(context.Background(), "SCALE-1")
	require.NoError(t, err)
	assert.Equal(t, models.CalibrationExpired, status.Status)
}

func TestCalibrationStatus_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.CalibrationStatus(context.Background(), "missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestRegisterAndRenewCalibration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	record, err := env.svc.RegisterEquipment(ctx, "THERM-02", "Probe thermometer",
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), models.FrequencyMonthly)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), record.NextCalibrationDate)
	assert.Equal(t, models.CalibrationExpired, env.calibrations.saved["THERM-02"])

	quarterly := models.FrequencyQuarterly
	renewed, err := env.svc.RenewCalibration(ctx, "THERM-02", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), &quarterly, "PASS")
	require.NoError(t, err)
	assert.Equal(t, models.FrequencyQuarterly, renewed.Frequency)
	assert.Equal(t, time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), renewed.NextCalibrationDate)
	assert.Equal(t, models.CalibrationValid, env.calibrations.saved["THERM-02"])
	assert.Contains(t, env.cache.invalidated, "THERM-02")

	_, err = env.svc.RenewCalibration(ctx, "THERM-02", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), nil, "PASS")
	assert.True(t, errors.Is(err, evaluator.ErrRenewalBeforeLast))

	_, err = env.svc.RegisterEquipment(ctx, "X", "", fixedNow, models.Frequency("DAILY"))
	assert.True(t, errors.Is(err, evaluator.ErrUnknownFrequency))
}
