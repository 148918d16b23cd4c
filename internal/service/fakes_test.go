package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"owl-haccp/internal/models"
)

type fakeCCPCatalog struct {
	defs  map[string]*models.CCPDefinition
	err   error
	calls int
	mu    sync.Mutex
}

func (f *fakeCCPCatalog) GetCCPDefinition(ctx context.Context, ccpID string) (*models.CCPDefinition, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	def, ok := f.defs[ccpID]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *def
	return &copied, nil
}

type fakePestCatalog struct {
	standards map[models.Season][]models.PestStandard
	traps     []models.TrapLocation
	replaced  []models.PestStandard
	err       error
}

func (f *fakePestCatalog) GetPestStandards(ctx context.Context, season models.Season) ([]models.PestStandard, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.standards[season], nil
}

func (f *fakePestCatalog) GetTrapLocations(ctx context.Context) ([]models.TrapLocation, error) {
	return f.traps, nil
}

func (f *fakePestCatalog) ReplacePestStandards(ctx context.Context, standards []models.PestStandard) error {
	f.replaced = standards
	return nil
}

type fakeRecordStore struct {
	mu        sync.Mutex
	ccp       map[string]*models.CCPRecord
	pest      map[string]*models.PestControlCheck
	createErr error
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{
		ccp:  make(map[string]*models.CCPRecord),
		pest: make(map[string]*models.PestControlCheck),
	}
}

func (f *fakeRecordStore) CreateCCPRecord(ctx context.Context, record *models.CCPRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copied := *record
	f.ccp[record.ID] = &copied
	return nil
}

func (f *fakeRecordStore) GetCCPRecord(ctx context.Context, recordID string) (*models.CCPRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.ccp[recordID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return r, nil
}

func (f *fakeRecordStore) SetCCPDeviationRef(ctx context.Context, recordID, referenceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.ccp[recordID]
	if !ok {
		return models.ErrNotFound
	}
	r.DeviationRefID = &referenceID
	return nil
}

func (f *fakeRecordStore) VerifyCCPRecord(ctx context.Context, recordID, verifier string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.ccp[recordID]
	if !ok {
		return models.ErrNotFound
	}
	if r.Status == models.RecordStatusVerified {
		return models.ErrRecordVerified
	}
	r.Status = models.RecordStatusVerified
	r.VerifiedBy = &verifier
	r.VerifiedAt = &at
	return nil
}

func (f *fakeRecordStore) CreatePestCheck(ctx context.Context, check *models.PestControlCheck) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copied := *check
	f.pest[check.ID] = &copied
	return nil
}

func (f *fakeRecordStore) GetPestCheck(ctx context.Context, checkID string) (*models.PestControlCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.pest[checkID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return c, nil
}

func (f *fakeRecordStore) SetPestDeviationRef(ctx context.Context, checkID, referenceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.pest[checkID]
	if !ok {
		return models.ErrNotFound
	}
	c.DeviationRefID = &referenceID
	return nil
}

func (f *fakeRecordStore) VerifyPestCheck(ctx context.Context, checkID, verifier string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.pest[checkID]
	if !ok {
		return models.ErrNotFound
	}
	if c.Status == models.RecordStatusVerified {
		return models.ErrRecordVerified
	}
	c.Status = models.RecordStatusVerified
	c.VerifiedBy = &verifier
	c.VerifiedAt = &at
	return nil
}

type fakeCalibrationStore struct {
	records map[string]models.CalibrationRecord
	saved   map[string]models.CalibrationState
	gets    int
}

func newFakeCalibrationStore(records ...models.CalibrationRecord) *fakeCalibrationStore {
	f := &fakeCalibrationStore{
		records: make(map[string]models.CalibrationRecord),
		saved:   make(map[string]models.CalibrationState),
	}
	for _, r := range records {
		f.records[r.EquipmentID] = r
	}
	return f
}

func (f *fakeCalibrationStore) GetCalibrationRecord(ctx context.Context, equipmentID string) (*models.CalibrationRecord, error) {
	f.gets++
	r, ok := f.records[equipmentID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &r, nil
}

func (f *fakeCalibrationStore) SaveCalibrationRecord(ctx context.Context, record *models.CalibrationRecord, status models.CalibrationState) error {
	f.records[record.EquipmentID] = *record
	f.saved[record.EquipmentID] = status
	return nil
}

type fakeStatusCache struct {
	entries     map[string]models.CalibrationStatus
	invalidated []string
	err         error
}

func (f *fakeStatusCache) Get(ctx context.Context, equipmentID string, today time.Time) (*models.CalibrationStatus, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	s, ok := f.entries[equipmentID]
	if !ok {
		return nil, false, nil
	}
	return &s, true, nil
}

func (f *fakeStatusCache) Set(ctx context.Context, status models.CalibrationStatus, today time.Time) error {
	if f.entries == nil {
		f.entries = make(map[string]models.CalibrationStatus)
	}
	f.entries[status.EquipmentID] = status
	return nil
}

func (f *fakeStatusCache) Invalidate(ctx context.Context, equipmentID string, next time.Time) error {
	delete(f.entries, equipmentID)
	f.invalidated = append(f.invalidated, equipmentID)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.DeviationEvent
	ref    string
	err    error
	// partial 为 true 时引用 ID 与 err 同时返回（部分出口成功）
	partial bool
}

func (n *recordingNotifier) OnDeviation(ctx context.Context, event models.DeviationEvent) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	if n.err != nil && !n.partial {
		return "", n.err
	}
	return n.ref, n.err
}

var errBackendDown = errors.New("backend down")
