package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, subject_id, email, name, avatar, phone, role, is_active, last_login, created_at, updated_at`

func scanUser(row scanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(
		&u.ID, &u.SubjectID, &u.Email, &u.Name, &u.Avatar, &u.Phone,
		&u.Role, &u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...any) (*model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UpsertFromIdentity finds the user mapped to an external subject or creates
// it, refreshing the login timestamp either way. created reports which one
// happened. Profile fields of an existing user are left untouched.
func (r *UserRepository) UpsertFromIdentity(ctx context.Context, u *model.User) (user *model.User, created bool, err error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO users (id, subject_id, email, name, avatar, role, last_login)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (subject_id) DO UPDATE
		   SET last_login = NOW(), updated_at = NOW()
		 RETURNING `+userColumns+`, (xmax = 0)`,
		uuid.New().String(), u.SubjectID, u.Email, u.Name, u.Avatar, u.Role,
	)

	var out model.User
	err = row.Scan(
		&out.ID, &out.SubjectID, &out.Email, &out.Name, &out.Avatar, &out.Phone,
		&out.Role, &out.IsActive, &out.LastLogin, &out.CreatedAt, &out.UpdatedAt, &created,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, false, fmt.Errorf("email %s: %w", u.Email, ErrDuplicate)
		}
		return nil, false, fmt.Errorf("upsert user: %w", err)
	}
	return &out, created, nil
}

// GetByID returns a user or ErrNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetBySubject returns the user mapped to an external subject id.
func (r *UserRepository) GetBySubject(ctx context.Context, subjectID string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE subject_id = $1`, subjectID)
}

// UpdateProfile applies a self-service profile patch.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, p model.UpdateProfileRequest) (*model.User, error) {
	return r.getOne(ctx,
		`UPDATE users SET
			name       = COALESCE($2::text, name),
			phone      = COALESCE($3::text, phone),
			avatar     = COALESCE($4::text, avatar),
			updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, p.Name, p.Phone, p.Avatar,
	)
}

// Update applies an admin patch to any user.
func (r *UserRepository) Update(ctx context.Context, id string, p model.UpdateUserRequest) (*model.User, error) {
	u, err := r.getOne(ctx,
		`UPDATE users SET
			name       = COALESCE($2::text, name),
			email      = COALESCE($3::text, email),
			role       = COALESCE($4::text, role),
			phone      = COALESCE($5::text, phone),
			is_active  = COALESCE($6::boolean, is_active),
			updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, p.Name, p.Email, p.Role, p.Phone, p.IsActive,
	)
	if err != nil && isUniqueViolation(err) {
		return nil, fmt.Errorf("email: %w", ErrDuplicate)
	}
	return u, err
}

// Deactivate soft-deletes a user.
func (r *UserRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET is_active = FALSE, updated_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns one page of users matching the filter, newest first.
func (r *UserRepository) List(ctx context.Context, f model.UserFilter, p model.PageRequest) ([]model.User, int, error) {
	c := &conditions{}
	if f.Role != "" {
		c.add("role = ?", f.Role)
	}
	if f.Search != "" {
		c.add("(name ILIKE ? OR email ILIKE ?)", containsPattern(f.Search))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	limit, args := c.page(p)
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users`+c.where()+` ORDER BY created_at DESC`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
