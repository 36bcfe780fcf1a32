package repositories

import "context"

// Repository aggregates the per-domain repository interfaces.
type Repository interface {
	// Registration domain (owned by this service)
	Registration() RegistrationRepository

	// Course catalog (read-only snapshots)
	Course() CourseRepository

	// User domain (read-only except for the student-role grant)
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
