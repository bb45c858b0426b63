//go:build integration

package main_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/lifeline-ems/service-dispatch/internal/application"
	"github.com/lifeline-ems/service-dispatch/internal/clients"
	"github.com/lifeline-ems/service-dispatch/internal/dto"
	"github.com/lifeline-ems/service-dispatch/internal/events"
	"github.com/lifeline-ems/service-dispatch/internal/geo"
	"github.com/lifeline-ems/service-dispatch/internal/platform/kafka"
	"github.com/lifeline-ems/service-dispatch/internal/repository"
	"github.com/lifeline-ems/service-dispatch/internal/simulation"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_dispatch",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_dispatch sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(&repository.CaseModel{}))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, events.TopicDispatchEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// collaborators fakes the hospital, ambulance and route services over
// httptest servers, with recorded ambulance state.
type collaborators struct {
	Hospital  *httptest.Server
	Ambulance *httptest.Server
	Route     *httptest.Server

	mu           sync.Mutex
	availability map[int64]bool
	locations    map[int64][]geo.Coordinate
}

func (c *collaborators) isAvailable(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.availability[id]
}

func (c *collaborators) locationCount(id int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locations[id])
}

func (c *collaborators) Close() {
	c.Hospital.Close()
	c.Ambulance.Close()
	c.Route.Close()
}

// startCollaborators stands up the collaborating services with one
// CARDIOLOGY hospital owning one available ambulance.
func startCollaborators(t *testing.T) *collaborators {
	t.Helper()
	c := &collaborators{
		availability: map[int64]bool{7: true},
		locations:    make(map[int64][]geo.Coordinate),
	}

	hospitals := []dto.Hospital{
		{ID: 3, Name: "General Hospital", Latitude: 3.16, Longitude: 101.71, Speciality: "CARDIOLOGY", AmbulanceIDs: []int64{7}},
	}

	c.Hospital = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/hospitals/speciality":
			if !strings.EqualFold(r.URL.Query().Get("speciality"), "CARDIOLOGY") {
				_ = json.NewEncoder(w).Encode([]dto.Hospital{})
				return
			}
			_ = json.NewEncoder(w).Encode(hospitals)
		case strings.HasPrefix(r.URL.Path, "/hospitals/by-hospital/"):
			c.mu.Lock()
			ambulances := []dto.Ambulance{
				{ID: 7, DriverName: "Aina", Available: c.availability[7], Latitude: 3.13, Longitude: 101.68},
			}
			c.mu.Unlock()
			_ = json.NewEncoder(w).Encode(ambulances)
		default:
			http.NotFound(w, r)
		}
	}))

	c.Ambulance = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "ambulances" || r.Method != http.MethodPut {
			http.NotFound(w, r)
			return
		}
		var id int64
		_, _ = fmt.Sscanf(parts[1], "%d", &id)

		switch parts[2] {
		case "availability":
			var body struct {
				Available bool `json:"available"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			c.mu.Lock()
			c.availability[id] = body.Available
			c.mu.Unlock()
		case "location":
			var body struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			c.mu.Lock()
			c.locations[id] = append(c.locations[id], geo.Coordinate{Lat: body.Latitude, Lng: body.Longitude})
			c.mu.Unlock()
		default:
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	c.Route = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var originLat, originLng, destLat, destLng float64
		_, _ = fmt.Sscanf(q.Get("originLat"), "%f", &originLat)
		_, _ = fmt.Sscanf(q.Get("originLng"), "%f", &originLng)
		_, _ = fmt.Sscanf(q.Get("destLat"), "%f", &destLat)
		_, _ = fmt.Sscanf(q.Get("destLng"), "%f", &destLng)

		leg := geo.EncodePolyline([]geo.Coordinate{
			{Lat: originLat, Lng: originLng},
			{Lat: destLat, Lng: destLng},
		})
		_ = json.NewEncoder(w).Encode(dto.RouteResponse{
			Status:   dto.StatusSuccess,
			Geometry: leg,
			Distance: 2500,
			Duration: 300,
		})
	}))

	return c
}

// dispatchStack holds the wired-up dispatch service components.
type dispatchStack struct {
	Dispatch *application.DispatchService
	Cases    *application.CaseService
	Repo     *repository.GormCaseRepository
	Manager  *simulation.Manager
	Cleanup  func()
}

// setupDispatchStack wires the full dispatch stack against the containers
// and fake collaborators, with a fast simulation clock.
func setupDispatchStack(t *testing.T, infra *testInfra, collab *collaborators, simCfg simulation.Config) *dispatchStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	caseRepo := repository.NewGormCaseRepository(infra.DB)
	producer := kafka.NewProducer(infra.KafkaBrokers, logger)
	publisher := events.NewPublisher(producer, logger)

	hospitalClient := clients.NewHospitalClient(collab.Hospital.URL)
	ambulanceClient := clients.NewAmbulanceClient(collab.Ambulance.URL)
	routeClient := clients.NewRouteServiceClient(collab.Route.URL)

	manager := simulation.NewManager(simCfg, caseRepo, ambulanceClient, publisher, logger)

	dispatchSvc := application.NewDispatchService(
		hospitalClient, ambulanceClient, routeClient, caseRepo, manager, publisher, logger,
	)
	caseSvc := application.NewCaseService(caseRepo, ambulanceClient, publisher, logger)

	return &dispatchStack{
		Dispatch: dispatchSvc,
		Cases:    caseSvc,
		Repo:     caseRepo,
		Manager:  manager,
		Cleanup: func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = manager.Stop(stopCtx)
			_ = producer.Close()
		},
	}
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}

// waitForCaseStatus polls the cases table until the status matches.
func waitForCaseStatus(t *testing.T, db *gorm.DB, caseID uuid.UUID, expectedStatus string, timeout time.Duration) repository.CaseModel {
	t.Helper()
	var result repository.CaseModel
	require.Eventually(t, func() bool {
		var model repository.CaseModel
		err := db.Where("id = ?", caseID).First(&model).Error
		if err != nil {
			return false
		}
		if model.Status == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "case did not reach status %s", expectedStatus)
	return result
}
