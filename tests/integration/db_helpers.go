package integration

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/stationhub/identity/internal/database"
	"github.com/stationhub/identity/internal/models"
	"github.com/stationhub/identity/internal/repositories"
	"github.com/stationhub/identity/pkg/auth"
)

// TestDB manages the PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("identity"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         &database.DB{Pool: pool},
	}, nil
}

// runMigrations executes all goose migrations
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir, err := filepath.Abs("../../migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	goose.SetLogger(log.New(nil, "", 0))

	// Goose needs a database/sql connection
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"revoked_tokens",
		"login_attempts",
		"portal_accounts",
		"verification_requests",
		"invitations",
		"social_links",
		"two_factor_enrollments",
		"emergency_codes",
		"login_challenges",
		"users",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}
	return nil
}

// Repositories bundles every repository built on one test database
type Repositories struct {
	Users         *repositories.UserRepository
	Challenges    *repositories.LoginChallengeRepository
	Emergency     *repositories.EmergencyCodeRepository
	TwoFactor     *repositories.TwoFactorRepository
	SocialLinks   *repositories.SocialLinkRepository
	Invitations   *repositories.InvitationRepository
	Verifications *repositories.VerificationRepository
	Portal        *repositories.PortalAccountRepository
	Revoked       *repositories.TokenRevocationRepository
	LoginAttempts *repositories.LoginAttemptRepository
}

// InitializeRepositories creates all repository instances from the database wrapper
func InitializeRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Users:         repositories.NewUserRepository(db),
		Challenges:    repositories.NewLoginChallengeRepository(db),
		Emergency:     repositories.NewEmergencyCodeRepository(db),
		TwoFactor:     repositories.NewTwoFactorRepository(db),
		SocialLinks:   repositories.NewSocialLinkRepository(db),
		Invitations:   repositories.NewInvitationRepository(db),
		Verifications: repositories.NewVerificationRepository(db),
		Portal:        repositories.NewPortalAccountRepository(db),
		Revoked:       repositories.NewTokenRevocationRepository(db),
		LoginAttempts: repositories.NewLoginAttemptRepository(db),
	}
}

// SeedUser inserts a test user with the given password hashed
func SeedUser(ctx context.Context, repos *Repositories, email, password string) (*models.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return repos.Users.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         "Test User",
		Role:         models.RoleUser,
		UserType:     models.UserTypeCustomer,
		Status:       "active",
	})
}

// SeedAdmin inserts a test admin user
func SeedAdmin(ctx context.Context, repos *Repositories, email, password string) (*models.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return repos.Users.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         "Test Admin",
		Role:         models.RoleAdmin,
		UserType:     models.UserTypeBusiness,
		Status:       "active",
	})
}
