package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

// In-memory store implementations. Used by tests and by deployments that
// run the engine against an external consumer without a central database.
// Each store holds its records behind its own mutex; keys are scoped by
// tenant so two tenants never see each other's rows.

func scopedKey(tenantID, key string) string { return tenantID + "|" + key }

// MemoryPatientStore keeps patients in a map keyed by tenant + dedup key.
type MemoryPatientStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[string]*models.Patient
}

func NewMemoryPatientStore() *MemoryPatientStore {
	return &MemoryPatientStore{rows: make(map[string]*models.Patient)}
}

func (s *MemoryPatientStore) FindByKey(_ context.Context, tenantID, sourceID, visitID string) (*models.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.rows[scopedKey(tenantID, sourceID+"|"+visitID)]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryPatientStore) ListByVisit(_ context.Context, tenantID, visitID string) ([]*models.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Patient
	for _, p := range s.rows {
		if p.TenantID == tenantID && p.VisitID == visitID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryPatientStore) ListInHospitalByDepartment(_ context.Context, tenantID, department string) ([]*models.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Patient
	for _, p := range s.rows {
		if p.TenantID == tenantID && p.InHospital &&
			(department == "" || strings.EqualFold(p.Department, department)) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryPatientStore) Save(_ context.Context, p *models.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked(p)
	return nil
}

func (s *MemoryPatientStore) SaveAll(_ context.Context, ps []*models.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range ps {
		s.saveLocked(p)
	}
	return nil
}

func (s *MemoryPatientStore) saveLocked(p *models.Patient) {
	if p.ID == 0 {
		s.nextID++
		p.ID = s.nextID
	}
	p.UpdatedAt = time.Now()
	cp := *p
	s.rows[scopedKey(p.TenantID, p.Key())] = &cp
}

func (s *MemoryPatientStore) CountByVisit(_ context.Context, tenantID, visitID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.rows {
		if p.TenantID == tenantID && p.VisitID == visitID {
			n++
		}
	}
	return n, nil
}

// MemoryLabResultStore keeps lab results; inserts only, matching the
// immutability of issued results.
type MemoryLabResultStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[string]*models.LabResult
}

func NewMemoryLabResultStore() *MemoryLabResultStore {
	return &MemoryLabResultStore{rows: make(map[string]*models.LabResult)}
}

func (s *MemoryLabResultStore) FindByKey(_ context.Context, tenantID, patientID, labName string, reportTime *time.Time, resultValue string) (*models.LabResult, error) {
	probe := models.LabResult{PatientID: patientID, LabName: labName, ReportTime: reportTime, ResultValue: resultValue}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[scopedKey(tenantID, probe.Key())]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryLabResultStore) Save(_ context.Context, r *models.LabResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked(r)
	return nil
}

func (s *MemoryLabResultStore) SaveAll(_ context.Context, rs []*models.LabResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rs {
		s.saveLocked(r)
	}
	return nil
}

func (s *MemoryLabResultStore) saveLocked(r *models.LabResult) {
	if r.ID == 0 {
		s.nextID++
		r.ID = s.nextID
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	cp := *r
	s.rows[scopedKey(r.TenantID, r.Key())] = &cp
}

func (s *MemoryLabResultStore) CountByVisit(_ context.Context, tenantID, visitID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.rows {
		if r.TenantID == tenantID && r.VisitID == visitID {
			n++
		}
	}
	return n, nil
}

// MemoryOrderStore keeps orders in a slice: the same dedup key may exist
// several times as long as at most one instance is active.
type MemoryOrderStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   []*models.MedicalOrder
}

func NewMemoryOrderStore() *MemoryOrderStore { return &MemoryOrderStore{} }

func (s *MemoryOrderStore) FindActive(_ context.Context, tenantID, patientID, orderName string, orderDate *time.Time, repeatFlag bool) (*models.MedicalOrder, error) {
	probe := models.MedicalOrder{PatientID: patientID, OrderName: orderName, OrderDate: orderDate, RepeatFlag: repeatFlag}
	want := probe.Key()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.rows {
		if o.TenantID == tenantID && o.Active() && o.Key() == want {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryOrderStore) Save(_ context.Context, o *models.MedicalOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked(o)
	return nil
}

func (s *MemoryOrderStore) SaveAll(_ context.Context, os []*models.MedicalOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range os {
		s.saveLocked(o)
	}
	return nil
}

func (s *MemoryOrderStore) saveLocked(o *models.MedicalOrder) {
	if o.ID != 0 {
		for i, existing := range s.rows {
			if existing.ID == o.ID {
				cp := *o
				s.rows[i] = &cp
				return
			}
		}
	}
	s.nextID++
	o.ID = s.nextID
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	cp := *o
	s.rows = append(s.rows, &cp)
}

func (s *MemoryOrderStore) CountByVisit(_ context.Context, tenantID, visitID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, o := range s.rows {
		if o.TenantID == tenantID && o.VisitID == visitID {
			n++
		}
	}
	return n, nil
}

// MemoryExamResultStore keeps exam reports keyed by examination id.
type MemoryExamResultStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[string]*models.ExamResult
}

func NewMemoryExamResultStore() *MemoryExamResultStore {
	return &MemoryExamResultStore{rows: make(map[string]*models.ExamResult)}
}

func (s *MemoryExamResultStore) FindByExamID(_ context.Context, tenantID, examinationID string) (*models.ExamResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rows[scopedKey(tenantID, examinationID)]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (s *MemoryExamResultStore) Save(_ context.Context, e *models.ExamResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked(e)
	return nil
}

func (s *MemoryExamResultStore) SaveAll(_ context.Context, es []*models.ExamResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range es {
		s.saveLocked(e)
	}
	return nil
}

func (s *MemoryExamResultStore) saveLocked(e *models.ExamResult) {
	if e.ID == 0 {
		s.nextID++
		e.ID = s.nextID
	}
	e.UpdatedAt = time.Now()
	cp := *e
	s.rows[scopedKey(e.TenantID, e.ExaminationID)] = &cp
}

func (s *MemoryExamResultStore) CountByVisit(_ context.Context, tenantID, visitID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.rows {
		if e.TenantID == tenantID && e.VisitID == visitID {
			n++
		}
	}
	return n, nil
}

// MemoryFreeTextStore keeps free-text documents keyed by source table + id.
type MemoryFreeTextStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[string]*models.FreeTextRecord
}

func NewMemoryFreeTextStore() *MemoryFreeTextStore {
	return &MemoryFreeTextStore{rows: make(map[string]*models.FreeTextRecord)}
}

func (s *MemoryFreeTextStore) FindBySource(_ context.Context, tenantID, sourceTable, sourceID string) (*models.FreeTextRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[scopedKey(tenantID, sourceTable+"|"+sourceID)]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryFreeTextStore) Save(_ context.Context, r *models.FreeTextRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked(r)
	return nil
}

func (s *MemoryFreeTextStore) SaveAll(_ context.Context, rs []*models.FreeTextRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rs {
		s.saveLocked(r)
	}
	return nil
}

func (s *MemoryFreeTextStore) saveLocked(r *models.FreeTextRecord) {
	if r.ID == 0 {
		s.nextID++
		r.ID = s.nextID
	}
	r.UpdatedAt = time.Now()
	cp := *r
	s.rows[scopedKey(r.TenantID, r.SourceTable+"|"+r.SourceID)] = &cp
}

func (s *MemoryFreeTextStore) CountByVisit(_ context.Context, tenantID, visitID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.rows {
		if r.TenantID == tenantID && r.VisitID == visitID {
			n++
		}
	}
	return n, nil
}

// MemoryOutcomeLog records outcomes in order of arrival.
type MemoryOutcomeLog struct {
	mu       sync.Mutex
	outcomes []*models.SyncOutcome
}

func NewMemoryOutcomeLog() *MemoryOutcomeLog { return &MemoryOutcomeLog{} }

func (l *MemoryOutcomeLog) Append(_ context.Context, o *models.SyncOutcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *o
	l.outcomes = append(l.outcomes, &cp)
	return nil
}

// Outcomes returns a snapshot of the log.
func (l *MemoryOutcomeLog) Outcomes() []*models.SyncOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*models.SyncOutcome, len(l.outcomes))
	copy(out, l.outcomes)
	return out
}

// NewMemoryStores builds a full in-memory store bundle.
func NewMemoryStores() *Stores {
	return &Stores{
		Patients:   NewMemoryPatientStore(),
		LabResults: NewMemoryLabResultStore(),
		Orders:     NewMemoryOrderStore(),
		Exams:      NewMemoryExamResultStore(),
		FreeText:   NewMemoryFreeTextStore(),
		Outcomes:   NewMemoryOutcomeLog(),
	}
}
