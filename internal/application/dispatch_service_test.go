package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lifeline-ems/service-dispatch/internal/domain"
	"github.com/lifeline-ems/service-dispatch/internal/domain/dispatch"
	"github.com/lifeline-ems/service-dispatch/internal/dto"
	"github.com/lifeline-ems/service-dispatch/internal/events"
	"github.com/lifeline-ems/service-dispatch/internal/geo"
)

// --- Fakes ---

// callLog records cross-collaborator call order for ordering assertions.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) record(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeHospitals struct {
	hospitals    []dto.Hospital
	hospitalsErr error
	ambulances   map[int64][]dto.Ambulance
	ambulanceErr map[int64]error
}

func (f *fakeHospitals) ListBySpecialization(_ context.Context, _ string) ([]dto.Hospital, error) {
	return f.hospitals, f.hospitalsErr
}

func (f *fakeHospitals) ListAmbulances(_ context.Context, hospitalID int64) ([]dto.Ambulance, error) {
	if err := f.ambulanceErr[hospitalID]; err != nil {
		return nil, err
	}
	return f.ambulances[hospitalID], nil
}

type fakeAmbulances struct {
	log             *callLog
	availabilityErr error
	availability    map[int64]bool
}

func (f *fakeAmbulances) SetAvailability(_ context.Context, ambulanceID int64, available bool) error {
	if f.log != nil {
		if available {
			f.log.record("release")
		} else {
			f.log.record("reserve")
		}
	}
	if f.availabilityErr != nil {
		return f.availabilityErr
	}
	if f.availability == nil {
		f.availability = make(map[int64]bool)
	}
	f.availability[ambulanceID] = available
	return nil
}

func (f *fakeAmbulances) SetLocation(_ context.Context, _ int64, _, _ float64) error {
	return nil
}

type fakeRoutes struct {
	responses []dto.RouteResponse
	errs      []error
	calls     int
}

func (f *fakeRoutes) ComputeRoute(_ context.Context, _, _, _, _ float64) (dto.RouteResponse, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return dto.RouteResponse{}, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return dto.RouteResponse{Status: dto.StatusFailure}, nil
}

type fakeCaseRepo struct {
	log     *callLog
	saveErr error

	mu    sync.Mutex
	cases map[uuid.UUID]*dispatch.Case
}

func newFakeCaseRepo(log *callLog) *fakeCaseRepo {
	return &fakeCaseRepo{log: log, cases: make(map[uuid.UUID]*dispatch.Case)}
}

func (f *fakeCaseRepo) Save(_ context.Context, c *dispatch.Case) error {
	if f.log != nil {
		f.log.record("save")
	}
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cases[c.ID()] = c
	return nil
}

func (f *fakeCaseRepo) FindByID(_ context.Context, id uuid.UUID) (*dispatch.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cases[id]
	if !ok {
		return nil, domain.NewNotFoundError("case", id.String())
	}
	return c, nil
}

func (f *fakeCaseRepo) ListAll(_ context.Context, _, _ int) ([]*dispatch.Case, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*dispatch.Case
	for _, c := range f.cases {
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

func (f *fakeCaseRepo) Update(_ context.Context, c *dispatch.Case) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cases[c.ID()] = c
	return nil
}

func (f *fakeCaseRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cases, id)
	return nil
}

func (f *fakeCaseRepo) DeleteAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cases = make(map[uuid.UUID]*dispatch.Case)
	return nil
}

func (f *fakeCaseRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int64)
	for _, c := range f.cases {
		out[c.Status().String()]++
	}
	return out, nil
}

type fakeLauncher struct {
	log      *callLog
	launched []launchedSim
}

type launchedSim struct {
	caseID      uuid.UUID
	ambulanceID int64
	points      []geo.Coordinate
}

func (f *fakeLauncher) Launch(caseID uuid.UUID, ambulanceID int64, points []geo.Coordinate) {
	if f.log != nil {
		f.log.record("launch")
	}
	f.launched = append(f.launched, launchedSim{caseID: caseID, ambulanceID: ambulanceID, points: points})
}

type fakeDispatchPublisher struct {
	opened []events.CaseOpenedEvent
}

func (f *fakeDispatchPublisher) PublishCaseOpened(_ context.Context, evt events.CaseOpenedEvent) {
	f.opened = append(f.opened, evt)
}

// --- Fixtures ---

func ptr(v float64) *float64 { return &v }

func validRequest() dto.EmergencyRequest {
	return dto.EmergencyRequest{
		Latitude:       ptr(3.14),
		Longitude:      ptr(101.69),
		Specialization: "CARDIOLOGY",
	}
}

func happyHospitals() *fakeHospitals {
	return &fakeHospitals{
		hospitals: []dto.Hospital{
			{ID: 3, Name: "General", Latitude: 3.16, Longitude: 101.71, Speciality: "CARDIOLOGY"},
		},
		ambulances: map[int64][]dto.Ambulance{
			3: {
				{ID: 7, DriverName: "Aina", Available: true, Latitude: 3.13, Longitude: 101.68},
				{ID: 8, DriverName: "Ben", Available: false, Latitude: 3.14, Longitude: 101.69},
			},
		},
	}
}

func happyRoutes() *fakeRoutes {
	legA := geo.EncodePolyline([]geo.Coordinate{{Lat: 3.13, Lng: 101.68}, {Lat: 3.14, Lng: 101.69}})
	legB := geo.EncodePolyline([]geo.Coordinate{{Lat: 3.14, Lng: 101.69}, {Lat: 3.16, Lng: 101.71}})
	return &fakeRoutes{
		responses: []dto.RouteResponse{
			{Status: dto.StatusSuccess, Geometry: legA, Distance: 1500, Duration: 180},
			{Status: dto.StatusSuccess, Geometry: legB, Distance: 3000, Duration: 360},
		},
	}
}

type dispatchFixture struct {
	service    *DispatchService
	hospitals  *fakeHospitals
	ambulances *fakeAmbulances
	routes     *fakeRoutes
	repo       *fakeCaseRepo
	launcher   *fakeLauncher
	publisher  *fakeDispatchPublisher
	log        *callLog
}

func newDispatchFixture() *dispatchFixture {
	log := &callLog{}
	f := &dispatchFixture{
		hospitals:  happyHospitals(),
		ambulances: &fakeAmbulances{log: log},
		routes:     happyRoutes(),
		repo:       newFakeCaseRepo(log),
		launcher:   &fakeLauncher{log: log},
		publisher:  &fakeDispatchPublisher{},
		log:        log,
	}
	f.service = NewDispatchService(
		f.hospitals, f.ambulances, f.routes, f.repo, f.launcher, f.publisher, zap.NewNop(),
	)
	return f
}

// --- Tests ---

func TestHandleEmergency_Success(t *testing.T) {
	f := newDispatchFixture()

	result := f.service.HandleEmergency(context.Background(), validRequest())

	assert.Equal(t, dto.StatusSuccess, result.Status)
	assert.Empty(t, result.Reason)
	require.NotNil(t, result.AssignedAmbulance)
	assert.Equal(t, int64(7), result.AssignedAmbulance.ID)
	require.NotNil(t, result.AssignedHospital)
	assert.Equal(t, int64(3), result.AssignedHospital.ID)
	assert.NotEmpty(t, result.RoutePolyline)

	// Merged route drops the duplicated junction point.
	points := geo.DecodePolyline(result.RoutePolyline)
	assert.Len(t, points, 3)
}

func TestHandleEmergency_ReservesBeforePersistAndLaunch(t *testing.T) {
	f := newDispatchFixture()

	result := f.service.HandleEmergency(context.Background(), validRequest())

	require.Equal(t, dto.StatusSuccess, result.Status)
	assert.Equal(t, []string{"reserve", "save", "launch"}, f.log.names())
	assert.False(t, f.ambulances.availability[7])
}

func TestHandleEmergency_PersistsCase(t *testing.T) {
	f := newDispatchFixture()

	result := f.service.HandleEmergency(context.Background(), validRequest())

	require.Equal(t, dto.StatusSuccess, result.Status)
	require.Len(t, f.launcher.launched, 1)
	sim := f.launcher.launched[0]

	c, err := f.repo.FindByID(context.Background(), sim.caseID)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusEnrouteToPatient, c.Status())
	assert.Equal(t, int64(7), c.AssignedAmbulanceID())
	assert.Equal(t, int64(3), c.AssignedHospitalID())
	assert.InDelta(t, 540, c.EstimatedDuration(), 1e-9)
	assert.InDelta(t, 4500, c.EstimatedDistance(), 1e-9)
	assert.Equal(t, result.RoutePolyline, c.RouteGeometry())
}

func TestHandleEmergency_PublishesCaseOpened(t *testing.T) {
	f := newDispatchFixture()

	f.service.HandleEmergency(context.Background(), validRequest())

	require.Len(t, f.publisher.opened, 1)
	evt := f.publisher.opened[0]
	assert.Equal(t, int64(7), evt.AmbulanceID)
	assert.Equal(t, "CARDIOLOGY", evt.Specialization)
}

func TestHandleEmergency_LaunchReceivesMergedPoints(t *testing.T) {
	f := newDispatchFixture()

	f.service.HandleEmergency(context.Background(), validRequest())

	require.Len(t, f.launcher.launched, 1)
	sim := f.launcher.launched[0]
	assert.Equal(t, int64(7), sim.ambulanceID)
	require.Len(t, sim.points, 3)
	assert.InDelta(t, 3.13, sim.points[0].Lat, 1e-5)
	assert.InDelta(t, 3.16, sim.points[2].Lat, 1e-5)
}

func TestHandleEmergency_NoHospitals(t *testing.T) {
	f := newDispatchFixture()
	f.hospitals.hospitals = nil

	result := f.service.HandleEmergency(context.Background(), validRequest())

	assert.Equal(t, dto.StatusFailure, result.Status)
	assert.Contains(t, result.Reason, "No hospital")
	assert.Empty(t, f.log.names())
}

func TestHandleEmergency_HospitalLookupError(t *testing.T) {
	f := newDispatchFixture()
	f.hospitals.hospitalsErr = errors.New("directory unavailable")

	result := f.service.HandleEmergency(context.Background(), validRequest())

	assert.Equal(t, dto.StatusFailure, result.Status)
	assert.Contains(t, result.Reason, "No hospital")
}

func TestHandleEmergency_NoAvailableAmbulances(t *testing.T) {
	f := newDispatchFixture()
	f.hospitals.ambulances[3] = []dto.Ambulance{
		{ID: 8, Available: false, Latitude: 3.14, Longitude: 101.69},
	}

	result := f.service.HandleEmergency(context.Background(), validRequest())

	assert.Equal(t, dto.StatusFailure, result.Status)
	assert.Contains(t, result.Reason, "No available ambulances")
}

func TestHandleEmergency_AmbulanceLookupErrorSkipsHospital(t *testing.T) {
	f := newDispatchFixture()
	f.hospitals.hospitals = append(f.hospitals.hospitals, dto.Hospital{
		ID: 4, Name: "Broken", Latitude: 3.20, Longitude: 101.75, Speciality: "CARDIOLOGY",
	})
	f.hospitals.ambulanceErr = map[int64]error{4: errors.New("timeout")}

	result := f.service.HandleEmergency(context.Background(), validRequest())

	require.Equal(t, dto.StatusSuccess, result.Status)
	assert.Equal(t, int64(3), result.AssignedHospital.ID)
}

func TestHandleEmergency_FirstLegFails(t *testing.T) {
	f := newDispatchFixture()
	f.routes.responses[0] = dto.RouteResponse{Status: dto.StatusFailure}

	result := f.service.HandleEmergency(context.Background(), validRequest())

	assert.Equal(t, dto.StatusFailure, result.Status)
	assert.Contains(t, result.Reason, "Ambulance->Patient")
	assert.Empty(t, f.log.names())
}

func TestHandleEmergency_SecondLegFails(t *testing.T) {
	f := newDispatchFixture()
	f.routes.errs = []error{nil, errors.New("provider down")}

	result := f.service.HandleEmergency(context.Background(), validRequest())

	assert.Equal(t, dto.StatusFailure, result.Status)
	assert.Contains(t, result.Reason, "Patient->Hospital")
	assert.Empty(t, f.log.names())
}

func TestHandleEmergency_ReservationFails(t *testing.T) {
	f := newDispatchFixture()
	f.ambulances.availabilityErr = errors.New("registry unavailable")

	result := f.service.HandleEmergency(context.Background(), validRequest())

	assert.Equal(t, dto.StatusFailure, result.Status)
	assert.Contains(t, result.Reason, "availability")
	assert.Empty(t, f.launcher.launched)
	assert.Equal(t, []string{"reserve"}, f.log.names())
}

func TestHandleEmergency_SaveFailsReleasesAmbulance(t *testing.T) {
	f := newDispatchFixture()
	f.repo.saveErr = errors.New("db down")

	result := f.service.HandleEmergency(context.Background(), validRequest())

	assert.Equal(t, dto.StatusFailure, result.Status)
	assert.Contains(t, result.Reason, "dispatch case")
	assert.Empty(t, f.launcher.launched)
	assert.Equal(t, []string{"reserve", "save", "release"}, f.log.names())
	assert.True(t, f.ambulances.availability[7])
}

func TestHandleEmergency_MissingCoordinates(t *testing.T) {
	f := newDispatchFixture()

	result := f.service.HandleEmergency(context.Background(), dto.EmergencyRequest{
		Specialization: "CARDIOLOGY",
	})

	assert.Equal(t, dto.StatusFailure, result.Status)
	assert.Contains(t, result.Reason, "coordinates")
}

func TestHandleEmergency_CoordinatesOutOfRange(t *testing.T) {
	f := newDispatchFixture()

	result := f.service.HandleEmergency(context.Background(), dto.EmergencyRequest{
		Latitude:       ptr(95),
		Longitude:      ptr(101.69),
		Specialization: "CARDIOLOGY",
	})

	assert.Equal(t, dto.StatusFailure, result.Status)
	assert.Contains(t, result.Reason, "out of range")
}

func TestHandleEmergency_BlankSpecialization(t *testing.T) {
	f := newDispatchFixture()

	result := f.service.HandleEmergency(context.Background(), dto.EmergencyRequest{
		Latitude:  ptr(3.14),
		Longitude: ptr(101.69),
	})

	assert.Equal(t, dto.StatusFailure, result.Status)
	assert.Contains(t, result.Reason, "specialization")
}

func TestHandleEmergency_NilPublisher(t *testing.T) {
	f := newDispatchFixture()
	f.service = NewDispatchService(
		f.hospitals, f.ambulances, f.routes, f.repo, f.launcher, nil, zap.NewNop(),
	)

	result := f.service.HandleEmergency(context.Background(), validRequest())

	assert.Equal(t, dto.StatusSuccess, result.Status)
}
