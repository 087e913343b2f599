package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"carprice/internal/domain"
)

const (
	createUserQuery = `
		INSERT INTO users (username, email, first_name, last_name, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	selectUserColumns = `
		SELECT id, username, email, first_name, last_name, password_hash, created_at
		FROM users
	`
	getUserByIDQuery       = selectUserColumns + `WHERE id = $1`
	getUserByUsernameQuery = selectUserColumns + `WHERE username = $1`
	getUserByEmailQuery    = selectUserColumns + `WHERE email = $1`
)

// UserRepository implements domain.UserRepository for PostgreSQL
type UserRepository struct {
	db              *sql.DB
	createStmt      *sql.Stmt
	getByIDStmt     *sql.Stmt
	getByUsernameSt *sql.Stmt
	getByEmailStmt  *sql.Stmt
}

// NewUserRepository creates a new PostgreSQL user repository with prepared statements
func NewUserRepository(db *sql.DB) (*UserRepository, error) {
	r := &UserRepository{db: db}

	var err error
	if r.createStmt, err = db.Prepare(createUserQuery); err != nil {
		return nil, fmt.Errorf("failed to prepare create statement: %w", err)
	}
	if r.getByIDStmt, err = db.Prepare(getUserByIDQuery); err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to prepare get by id statement: %w", err)
	}
	if r.getByUsernameSt, err = db.Prepare(getUserByUsernameQuery); err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to prepare get by username statement: %w", err)
	}
	if r.getByEmailStmt, err = db.Prepare(getUserByEmailQuery); err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to prepare get by email statement: %w", err)
	}

	return r, nil
}

// Close releases the prepared statements
func (r *UserRepository) Close() error {
	var errs []error
	for _, stmt := range []*sql.Stmt{r.createStmt, r.getByIDStmt, r.getByUsernameSt, r.getByEmailStmt} {
		if stmt != nil {
			errs = append(errs, stmt.Close())
		}
	}
	return errors.Join(errs...)
}

// Create inserts a new user into the database
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	err := r.createStmt.QueryRowContext(ctx,
		user.Username,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if IsUniqueViolation(err, "users_username_key") {
			return domain.ErrUsernameExists
		}
		if IsUniqueViolation(err, "users_email_key") {
			return domain.ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(r.getByIDStmt.QueryRowContext(ctx, id))
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return scanUser(r.getByUsernameSt.QueryRowContext(ctx, username))
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.getByEmailStmt.QueryRowContext(ctx, email))
}

func scanUser(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
