package service

import (
	"context"
	"time"

	"owl-haccp/internal/models"
)

// CCPCatalog CCP 定义来源
type CCPCatalog interface {
	GetCCPDefinition(ctx context.Context, ccpID string) (*models.CCPDefinition, error)
}

// PestCatalog 防虫标准与捕虫器位置来源
type PestCatalog interface {
	GetPestStandards(ctx context.Context, season models.Season) ([]models.PestStandard, error)
	GetTrapLocations(ctx context.Context) ([]models.TrapLocation, error)
	ReplacePestStandards(ctx context.Context, standards []models.PestStandard) error
}

// CCPRecordStore CCP 监控记录存储
type CCPRecordStore interface {
	CreateCCPRecord(ctx context.Context, record *models.CCPRecord) error
	GetCCPRecord(ctx context.Context, recordID string) (*models.CCPRecord, error)
	SetCCPDeviationRef(ctx context.Context, recordID, referenceID string) error
	VerifyCCPRecord(ctx context.Context, recordID, verifier string, at time.Time) error
}

// PestCheckStore 防虫检查记录存储
type PestCheckStore interface {
	CreatePestCheck(ctx context.Context, check *models.PestControlCheck) error
	GetPestCheck(ctx context.Context, checkID string) (*models.PestControlCheck, error)
	SetPestDeviationRef(ctx context.Context, checkID, referenceID string) error
	VerifyPestCheck(ctx context.Context, checkID, verifier string, at time.Time) error
}

// CalibrationStore 校准记录存储
type CalibrationStore interface {
	GetCalibrationRecord(ctx context.Context, equipmentID string) (*models.CalibrationRecord, error)
	SaveCalibrationRecord(ctx context.Context, record *models.CalibrationRecord, status models.CalibrationState) error
}

// CalibrationStatusCache 校准状态缓存（可选）
type CalibrationStatusCache interface {
	Get(ctx context.Context, equipmentID string, today time.Time) (*models.CalibrationStatus, bool, error)
	Set(ctx context.Context, status models.CalibrationStatus, today time.Time) error
	Invalidate(ctx context.Context, equipmentID string, next time.Time) error
}

// Clock 当前时间来源
type Clock func() time.Time
