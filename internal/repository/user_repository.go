package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/meetread/meetread/internal/model"
	"github.com/meetread/meetread/internal/utils"
)

// UserRepo provides persistence for the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,name,email,password_hash,phone_number,profile_image,role,created_at,updated_at"

// Create inserts a user and returns its ID.  The password is hashed
// with bcrypt at the given cost before storage.
func (r *UserRepo) Create(ctx context.Context, name, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role) VALUES (?,?,?,?)",
		name, email, hash, role)
	if err != nil {
		// 1062 = duplicate key on the unique email index
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// UpdateProfile changes the mutable profile fields of a user.  Nil
// pointers leave the corresponding column untouched.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, name *string, phone, image *string) error {
	sets := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if name != nil {
		sets = append(sets, "name=?")
		args = append(args, strings.TrimSpace(*name))
	}
	if phone != nil {
		sets = append(sets, "phone_number=?")
		args = append(args, strings.TrimSpace(*phone))
	}
	if image != nil {
		sets = append(sets, "profile_image=?")
		args = append(args, strings.TrimSpace(*image))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 rows for no-op updates too, so confirm existence.
		var exists uint64
		if err := r.DB.QueryRowContext(ctx, "SELECT id FROM users WHERE id=?", id).Scan(&exists); err == sql.ErrNoRows {
			return ErrUserNotFound
		}
	}
	return nil
}

// List returns all users ordered by creation time, for admin views.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateRole switches a user's role between USER and ADMIN.
func (r *UserRepo) UpdateRole(ctx context.Context, id uint64, role string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET role=? WHERE id=?", role, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user account.  Accounts that still own books or
// have borrow requests are protected by foreign keys; the resulting
// restriction error is reported as ErrConflict.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		// 1451 = cannot delete parent row, foreign key constraint
		if strings.Contains(err.Error(), "1451") {
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

type rowScanner interface{ Scan(dest ...interface{}) error }

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	var phone, image sql.NullString
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &phone, &image, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if phone.Valid {
		p := phone.String
		u.PhoneNumber = &p
	}
	if image.Valid {
		img := image.String
		u.ProfileImage = &img
	}
	return u, nil
}
