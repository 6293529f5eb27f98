package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"

	"taskapi/internal/auth"
	"taskapi/internal/config"
	"taskapi/internal/db"
	"taskapi/internal/model"
	"taskapi/internal/repository"
	"taskapi/internal/service"
)

// SeedUser is one fixture record.
type SeedUser struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Tasks    []SeedTask `json:"tasks"`
}

// SeedTask is a task owned by the enclosing SeedUser.
type SeedTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
}

var demoFixture = []SeedUser{
	{
		Email:    "demo@example.com",
		Password: "demo123",
		Tasks: []SeedTask{
			{Title: "Write project README", Description: "Document setup and environment variables", Priority: "high"},
			{Title: "Review pull requests", Priority: "medium", Status: "in_progress"},
			{Title: "Plan sprint", Description: "Collect estimates from the team", Priority: "low", Status: "done"},
		},
	},
	{
		Email:    "alice@example.com",
		Password: "alice123",
		Tasks: []SeedTask{
			{Title: "Renew passport", Priority: "high"},
			{Title: "Buy groceries", Description: "Milk, eggs, coffee"},
		},
	},
}

func main() {
	source := flag.String("source", "", "fixture file path or http(s) URL (built-in demo data when empty)")
	flag.Parse()

	log.Println("Starting seed script...")

	cfg := config.Load()

	gormDB, err := db.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	ctx := context.Background()
	if err := repository.Migrate(ctx, gormDB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	users := demoFixture
	if *source != "" {
		log.Printf("Loading fixture from: %s", *source)
		users, err = loadFixture(*source)
		if err != nil {
			log.Fatalf("Failed to load fixture: %v", err)
		}
	}
	log.Printf("Loaded %d users", len(users))

	store := repository.NewStore(gormDB)
	seeder := &seeder{
		store:  store,
		hasher: auth.NewPasswordHasher(auth.DefaultBcryptCost),
		tasks:  service.NewTaskService(store, nil, nil),
	}

	stats, err := seeder.seed(ctx, users)
	if err != nil {
		log.Fatalf("Failed to seed: %v", err)
	}

	log.Printf("Seed completed successfully!")
	log.Printf("  - New users created: %d", stats.created)
	log.Printf("  - Existing users reused: %d", stats.reused)
	log.Printf("  - Tasks created: %d", stats.tasks)
	if stats.skipped > 0 {
		log.Printf("  - Invalid records skipped: %d", stats.skipped)
	}
}

// loadFixture reads users from a local file or an http(s) URL.
func loadFixture(source string) ([]SeedUser, error) {
	var body []byte
	var err error
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		body, err = fetch(source)
	} else {
		body, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, err
	}

	var users []SeedUser
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return users, nil
}

func fetch(url string) ([]byte, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fixture: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fixture source returned status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

type seedStats struct {
	created, reused, tasks, skipped int
}

type seeder struct {
	store  repository.Store
	hasher *auth.PasswordHasher
	tasks  service.TaskService
}

// seed creates missing users and appends their fixture tasks. Users that
// already exist keep their password.
func (s *seeder) seed(ctx context.Context, users []SeedUser) (seedStats, error) {
	var stats seedStats
	for _, item := range users {
		email := service.NormalizeEmail(item.Email)
		if email == "" || item.Password == "" {
			log.Printf("Skipping user with missing email or password: %q", item.Email)
			stats.skipped++
			continue
		}

		user, err := s.store.FindUserByEmail(ctx, email)
		switch {
		case err == nil:
			stats.reused++
		case errors.Is(err, gorm.ErrRecordNotFound):
			hash, err := s.hasher.Hash(item.Password)
			if err != nil {
				return stats, fmt.Errorf("hash password for %s: %w", email, err)
			}
			user = &model.User{Email: email, PasswordHash: hash}
			if err := s.store.CreateUser(ctx, user); err != nil {
				return stats, fmt.Errorf("create user %s: %w", email, err)
			}
			stats.created++
		default:
			return stats, fmt.Errorf("error checking user %s: %w", email, err)
		}

		for _, t := range item.Tasks {
			_, err := s.tasks.CreateTask(ctx, user.ID, service.TaskInput{
				Title:       t.Title,
				Description: t.Description,
				Priority:    model.TaskPriority(t.Priority),
				Status:      model.TaskStatus(t.Status),
			})
			if err != nil {
				log.Printf("Skipping task %q for %s: %v", t.Title, email, err)
				stats.skipped++
				continue
			}
			stats.tasks++
		}
	}
	return stats, nil
}
