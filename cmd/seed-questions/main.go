package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nefziamine/skill-evaluator/internal/config"
	"github.com/nefziamine/skill-evaluator/internal/database"
	"github.com/nefziamine/skill-evaluator/internal/logger"
	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/nefziamine/skill-evaluator/internal/repository"
	"github.com/nefziamine/skill-evaluator/internal/service"
)

// questionBank is the seed file layout.
type questionBank struct {
	Test      *model.CreateTestRequest      `json:"test"`
	Questions []model.CreateQuestionRequest `json:"questions"`
}

func main() {
	var (
		file    string
		creator string
	)
	flag.StringVar(&file, "file", "seed/questions.json", "Path to the question bank JSON")
	flag.StringVar(&creator, "creator", "admin", "Username that owns the seeded questions and test")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	bank, err := loadBank(file)
	if err != nil {
		log.Fatal().Err(err).Str("file", file).Msg("Failed to read question bank")
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	testRepo := repository.NewTestRepository(pool)

	questionService := service.NewQuestionService(questionRepo)
	testService := service.NewTestService(testRepo, questionRepo, nil, log)

	owner, err := userRepo.GetByUsername(ctx, creator)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Fatal().Str("creator", creator).Msg("Creator not found, run create-user first")
		}
		log.Fatal().Err(err).Msg("Failed to look up creator")
	}

	fmt.Printf("=== Seeding %d questions ===\n", len(bank.Questions))

	ids := make([]int64, 0, len(bank.Questions))
	for i := range bank.Questions {
		req := &bank.Questions[i]
		q, err := questionService.Create(ctx, owner.ID, req)
		if err != nil {
			fmt.Printf("Skipping question %d (%q): %v\n", i+1, req.Text, err)
			continue
		}
		ids = append(ids, q.ID)
		if len(ids)%10 == 0 {
			fmt.Printf("Created %d questions...\n", len(ids))
		}
	}

	fmt.Printf("Created %d/%d questions\n", len(ids), len(bank.Questions))

	if bank.Test == nil || len(ids) == 0 {
		return
	}

	bank.Test.QuestionIDs = ids
	test, err := testService.Create(ctx, owner.ID, bank.Test)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create demo test")
	}
	fmt.Printf("\nSeed completed! Test %q created with ID %d (%d questions, %d minutes)\n",
		test.Title, test.ID, test.QuestionCount, test.DurationMinutes)
}

func loadBank(path string) (*questionBank, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var bank questionBank
	if err := json.Unmarshal(raw, &bank); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(bank.Questions) == 0 {
		return nil, errors.New("question bank is empty")
	}
	return &bank, nil
}
