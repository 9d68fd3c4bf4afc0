package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careops/smart-scheduling/internal/config"
	"github.com/careops/smart-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	departments, err := seedDepartments(context.Background(), pool)
	if err != nil {
		log.Fatalf("seed departments: %v", err)
	}

	providers, err := seedProviders(context.Background(), pool, cfg, departments, getInt("SEED_PROVIDERS", 40))
	if err != nil {
		log.Fatalf("seed providers: %v", err)
	}

	patients, err := seedPatients(context.Background(), pool, getInt("SEED_PATIENTS", 2000))
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	if err := seedAppointments(context.Background(), pool, cfg, providers, patients, getInt("SEED_APPOINTMENT_DAYS", 10)); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

var departmentNames = []string{
	"General Practice",
	"Cardiology",
	"Dermatology",
	"Orthopedics",
	"Pediatrics",
	"Neurology",
	"Endocrinology",
	"Psychiatry",
}

func seedDepartments(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	log.Printf("seeding %d departments", len(departmentNames))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var ids []uuid.UUID
	for _, name := range departmentNames {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO departments (id, name) VALUES ($1, $2)
		`, id, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, departments []uuid.UUID, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d providers", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var ids []uuid.UUID
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		specialty := specialties[gofakeit.Number(0, len(specialties)-1)]
		department := departments[gofakeit.Number(0, len(departments)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO providers (id, name, department_id, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, name, department, specialty)
		if err != nil {
			return nil, err
		}

		// Give every provider the default working sessions.
		for _, session := range cfg.WorkingSessions {
			_, err := tx.Exec(ctx, `
				INSERT INTO provider_sessions (provider_id, start_minute, end_minute)
				VALUES ($1, $2, $3)
			`, id, session.StartMinute, session.EndMinute)
			if err != nil {
				return nil, err
			}
		}

		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var ids []uuid.UUID
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		email := gofakeit.Email()

		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, email)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

// seedAppointments books a random share of upcoming working-session slots so
// slot generation has real conflicts to route around.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, providers, patients []uuid.UUID, days int) error {
	log.Printf("seeding appointments over %d days", days)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	today := time.Now()
	startDay := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	step := cfg.DefaultDurationMinutes + cfg.BufferMinutes

	total := 0
	for d := 0; d < days; d++ {
		day := startDay.AddDate(0, 0, d)
		if !cfg.IsBusinessDay(day.Weekday()) {
			continue
		}

		for _, provider := range providers {
			for _, session := range cfg.WorkingSessions {
				for minute := session.StartMinute; minute+cfg.DefaultDurationMinutes <= session.EndMinute; minute += step {
					// Roughly a third of slots start out booked.
					if gofakeit.Number(0, 2) != 0 {
						continue
					}

					start := day.Add(time.Duration(minute) * time.Minute)
					end := start.Add(time.Duration(cfg.DefaultDurationMinutes) * time.Minute)
					patient := patients[gofakeit.Number(0, len(patients)-1)]

					_, err := tx.Exec(ctx, `
						INSERT INTO appointments
							(id, patient_id, provider_id, start_time, end_time,
							 status, reason, priority, created_at, updated_at)
						VALUES ($1, $2, $3, $4, $5, 'confirmed', $6, 'routine', now(), now())
					`, uuid.New(), patient, provider, start, end, gofakeit.Sentence(4))
					if err != nil {
						return err
					}
					total++
				}
			}
		}
	}

	log.Printf("seeded %d appointments", total)
	return tx.Commit(ctx)
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
