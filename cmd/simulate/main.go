package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/interval"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL     string
	Duration       time.Duration
	Workers        int
	BookingRatio   float64
	LifecycleRatio float64
	ReadRatio      float64
	Day            time.Time
	PatientLimit   int
	PostgresDSN    string
}

type room struct {
	ID       uuid.UUID
	Services []uuid.UUID
}

// DataPool is the master data the workers draw from, plus the
// appointments they created.
type DataPool struct {
	Patients []uuid.UUID
	Doctors  []uuid.UUID
	Rooms    []room

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[len(latencies)*95/100]
	return avg, min, max, p50, p95
}

type Metrics struct {
	Booking   OperationMetrics
	Lifecycle OperationMetrics
	ReadByID  OperationMetrics
	Slots     OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger

	// rejection codes seen on 409, e.g. DOCTOR_BUSY
	codesMu sync.Mutex
	codes   map[string]int
}

func main() {
	_ = godotenv.Load()
	logger := logging.New(getEnv("LOG_LEVEL", "info"), getEnv("APP_ENV", "dev"))

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Str("day", cfg.Day.Format("2006-01-02")).
		Float64("booking", cfg.BookingRatio).
		Float64("lifecycle", cfg.LifecycleRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().
		Int("patients", len(dataPool.Patients)).
		Int("doctors", len(dataPool.Doctors)).
		Int("rooms", len(dataPool.Rooms)).
		Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		codes:  make(map[string]int),
	}

	if err := sim.Run(); err != nil {
		logger.Fatal().Err(err).Msg("simulation failed")
	}
	sim.PrintReport()

	overlaps, err := countOverlaps(context.Background(), pgPool)
	if err != nil {
		logger.Fatal().Err(err).Msg("overlap check")
	}
	if overlaps > 0 {
		logger.Error().Int("pairs", overlaps).Msg("double booking detected")
		os.Exit(1)
	}
	logger.Info().Msg("no overlapping active appointments")
}

func loadConfig() (SimConfig, error) {
	day, err := time.Parse("2006-01-02", getEnv("SIM_DAY", interval.Now().AddDate(0, 0, 1).Format("2006-01-02")))
	if err != nil {
		return SimConfig{}, fmt.Errorf("SIM_DAY: %w", err)
	}

	cfg := SimConfig{
		APIBaseURL:     getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:       getDuration("SIM_DURATION", 30*time.Second),
		Workers:        getInt("SIM_WORKERS", 10),
		BookingRatio:   getFloat("SIM_BOOKING_RATIO", 0.5),
		LifecycleRatio: getFloat("SIM_LIFECYCLE_RATIO", 0.2),
		ReadRatio:      getFloat("SIM_READ_RATIO", 0.3),
		Day:            day,
		PatientLimit:   getInt("SIM_PATIENT_LIMIT", 4000),
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),
	}

	total := cfg.BookingRatio + cfg.LifecycleRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.LifecycleRatio /= total
		cfg.ReadRatio /= total
	}

	if cfg.PostgresDSN == "" {
		return cfg, fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return cfg, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return cfg, fmt.Errorf("SIM_DURATION must be > 0")
	}
	return cfg, nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	var err error
	if dataPool.Patients, err = loadIDs(ctx, pool, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	if dataPool.Doctors, err = loadIDs(ctx, pool, `
		SELECT DISTINCT e.id FROM employees e
		JOIN working_shifts ws ON ws.employee_id = e.id
		WHERE e.role = 'DOCTOR' AND e.active AND ws.shift_date = $1
	`, cfg.Day); err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}

	// only services without specialization or day limits, so a booking
	// can fail on resource contention alone
	rows, err := pool.Query(ctx, `
		SELECT r.id, array_agg(rs.service_id::text)
		FROM rooms r
		JOIN room_services rs ON rs.room_id = r.id
		JOIN dental_services s ON s.id = rs.service_id
		WHERE r.active AND s.active
		  AND cardinality(s.required_specializations) = 0
		  AND s.minimum_preparation_days IS NULL AND s.recovery_days IS NULL
		  AND s.spacing_days IS NULL AND s.max_appointments_per_day IS NULL
		  AND NOT EXISTS (SELECT 1 FROM service_dependencies d WHERE d.service_id = s.id)
		GROUP BY r.id
	`)
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			r   room
			ids []string
		)
		if err := rows.Scan(&r.ID, &ids); err != nil {
			return nil, err
		}
		for _, raw := range ids {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, err
			}
			r.Services = append(r.Services, id)
		}
		dataPool.Rooms = append(dataPool.Rooms, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors on shift %s", cfg.Day.Format("2006-01-02"))
	}
	if len(dataPool.Rooms) == 0 {
		return nil, fmt.Errorf("no rooms with plain services")
	}
	return dataPool, nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// countOverlaps reports pairs of active appointments sharing a doctor or a
// room over intersecting intervals.
func countOverlaps(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b ON a.id < b.id
		  AND (a.doctor_id = b.doctor_id OR a.room_id = b.room_id)
		  AND a.start_time < b.end_time AND b.start_time < a.end_time
		WHERE a.status IN ('SCHEDULED', 'CHECKED_IN', 'IN_PROGRESS')
		  AND b.status IN ('SCHEDULED', 'CHECKED_IN', 'IN_PROGRESS')
	`).Scan(&n)
	return n, err
}

func (s *Simulator) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.config.Workers; i++ {
		workerID := i
		g.Go(func() error {
			s.worker(gctx, workerID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Info().Msg("simulation complete")
	return nil
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.LifecycleRatio:
				s.doLifecycle(ctx, rng)
			default:
				if rng.Intn(2) == 0 {
					s.doReadByID(ctx, rng)
				} else {
					s.doSlots(ctx, rng)
				}
			}
		}
	}
}

// post sends body and reports the status and, on 409, the rejection code.
func (s *Simulator) post(ctx context.Context, path string, body any, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil {
			s.codesMu.Lock()
			s.codes[e.Error]++
			s.codesMu.Unlock()
		}
	case resp.StatusCode < 300 && out != nil:
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, nil
}

func (s *Simulator) get(ctx context.Context, path string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	rm := s.pool.Rooms[rng.Intn(len(s.pool.Rooms))]
	svc := rm.Services[rng.Intn(len(rm.Services))]
	// quarter-hour starts between 08:00 and 15:45 force contention
	start := s.config.Day.Add(8*time.Hour + time.Duration(rng.Intn(32))*15*time.Minute)

	body := map[string]any{
		"patient_id":  s.pool.Patients[rng.Intn(len(s.pool.Patients))].String(),
		"doctor_id":   s.pool.Doctors[rng.Intn(len(s.pool.Doctors))].String(),
		"room_id":     rm.ID.String(),
		"service_ids": []string{svc.String()},
		"start":       start.Format("2006-01-02T15:04"),
	}

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	begin := time.Now()
	status, err := s.post(ctx, "/appointments", body, &created)
	latency := time.Since(begin)

	success := err == nil && status == http.StatusCreated
	if success && created.ID != uuid.Nil {
		s.pool.AddAppointment(created.ID)
	}
	s.metrics.Booking.Record(latency, success, status == http.StatusConflict)
}

func (s *Simulator) doLifecycle(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	steps := []string{"check-in", "start", "complete", "cancel"}
	step := steps[rng.Intn(len(steps))]

	var body any
	if step == "cancel" {
		body = map[string]string{"reason_code": "PATIENT_REQUEST"}
	}

	begin := time.Now()
	status, err := s.post(ctx, fmt.Sprintf("/appointments/%s/%s", apptID, step), body, nil)
	latency := time.Since(begin)

	s.metrics.Lifecycle.Record(latency, err == nil && status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	begin := time.Now()
	status, err := s.get(ctx, "/appointments/"+apptID.String())
	s.metrics.ReadByID.Record(time.Since(begin), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]

	begin := time.Now()
	status, err := s.get(ctx, fmt.Sprintf("/availability/slots?date=%s&doctor_id=%s&duration_minutes=30",
		s.config.Day.Format("2006-01-02"), doctorID))
	s.metrics.Slots.Record(time.Since(begin), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Day: %s\n", s.config.Day.Format("2006-01-02"))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Lifecycle", &s.metrics.Lifecycle)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("Slots", &s.metrics.Slots)

	if len(s.codes) > 0 {
		codes := make([]string, 0, len(s.codes))
		for c := range s.codes {
			codes = append(codes, c)
		}
		sort.Strings(codes)
		fmt.Println("Rejections:")
		for _, c := range codes {
			fmt.Printf("  %-28s %d\n", c, s.codes[c])
		}
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
