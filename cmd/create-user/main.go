package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/nefziamine/skill-evaluator/internal/config"
	"github.com/nefziamine/skill-evaluator/internal/database"
	"github.com/nefziamine/skill-evaluator/internal/logger"
	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/nefziamine/skill-evaluator/internal/repository"
	"github.com/nefziamine/skill-evaluator/internal/service"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Initialize Service ────────────────────────────────────────────
	// Registration never touches Redis, so no client is needed here.
	authService := service.NewAuthService(cfg, repository.NewUserRepository(pool), nil)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New User ===")

	username := prompt(reader, "Enter Username: ")
	if username == "" {
		fmt.Println("Error: Username is required")
		return
	}

	email := prompt(reader, "Enter Email: ")
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	fullName := prompt(reader, "Enter Full Name (optional): ")

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println() // Newline after password input
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	role := model.Role(strings.ToUpper(prompt(reader, "Enter Role [ADMIN/RECRUITER/CANDIDATE] (default ADMIN): ")))
	if role == "" {
		role = model.RoleAdmin
	}
	if !role.Valid() {
		fmt.Printf("Error: unknown role %q\n", role)
		return
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	user, err := authService.Register(ctx, &model.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
		FullName: fullName,
	}, role)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create user")
	}

	fmt.Printf("\nSuccess! %s '%s' (%s) created with ID: %d\n", user.Role, user.Username, user.Email, user.ID)
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
