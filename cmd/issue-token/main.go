package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"go.uber.org/zap"

	"github.com/garyjia/purchase-approval/internal/config"
	"github.com/garyjia/purchase-approval/internal/container"
	"github.com/garyjia/purchase-approval/internal/domain/entity"
	"github.com/garyjia/purchase-approval/pkg/jwt"
)

// Prints a bearer token for an existing or newly created user. Operator tooling for local
// testing; the service itself has no login endpoint.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	userID := flag.Int64("user", 0, "ID of the user to issue a token for")
	name := flag.String("name", "", "create a user with this name instead of loading one")
	email := flag.String("email", "", "email of the created user")
	role := flag.String("role", string(entity.RoleRequester), "role of the created user")
	department := flag.Int64("department", 1, "department of the created user")
	flag.Parse()

	if *userID <= 0 && *name == "" {
		log.Fatal("Usage: issue-token [-config path] -user <id> | -name <name> -email <email> [-role r] [-department d]")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := zap.NewNop()
	db, err := container.ProvideDatabase(cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.DB.Close() }()

	repos, err := container.ProvideRepositories(db.DB, logger)
	if err != nil {
		log.Fatalf("Failed to create repositories: %v", err)
	}

	ctx := context.Background()
	var user *entity.User
	if *name != "" {
		user = &entity.User{Name: *name, Email: *email, Role: entity.Role(*role), DepartmentID: *department}
		if !user.Role.IsValid() {
			log.Fatalf("Unknown role %q", *role)
		}
		if err := repos.Users.Create(ctx, user); err != nil {
			log.Fatalf("Failed to create user: %v", err)
		}
		log.Printf("Created user %d (%s)", user.ID, user.Role)
	} else {
		user, err = repos.Users.GetByID(ctx, *userID)
		if err != nil {
			log.Fatalf("Failed to load user: %v", err)
		}
		if user == nil {
			log.Fatalf("User %d does not exist", *userID)
		}
	}

	tokens := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	token, err := tokens.Generate(user.ID, string(user.Role))
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
