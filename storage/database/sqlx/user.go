package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/user"
)

var userOrderingFields = []string{"created_at", "username", "email", "first_name", "last_name", "last_login"}

const userColumns = `id, first_name, last_name, username, email, phone, bio, roles, is_active, profile_photo,
	profile_photo_id, customer_id, password_hash, created_at, updated_at, last_login`

type dbUser struct {
	ID             string         `db:"id"`
	FirstName      string         `db:"first_name"`
	LastName       string         `db:"last_name"`
	Username       null.String    `db:"username"`
	Email          null.String    `db:"email"`
	Phone          null.String    `db:"phone"`
	Bio            string         `db:"bio"`
	Roles          pq.StringArray `db:"roles"`
	IsActive       bool           `db:"is_active"`
	ProfilePhoto   string         `db:"profile_photo"`
	ProfilePhotoID null.String    `db:"profile_photo_id"`
	CustomerID     null.String    `db:"customer_id"`
	PasswordHash   []byte         `db:"password_hash"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
	LastLogin      null.Time      `db:"last_login"`
}

func toDBUser(usr user.User) dbUser {
	return dbUser{
		ID:             usr.ID,
		FirstName:      usr.FirstName,
		LastName:       usr.LastName,
		Username:       nullString(usr.Username),
		Email:          nullString(usr.Email),
		Phone:          nullString(usr.Phone),
		Bio:            usr.Bio,
		Roles:          pq.StringArray(append([]string{}, usr.Roles...)),
		IsActive:       usr.Active(),
		ProfilePhoto:   usr.ProfilePhoto,
		ProfilePhotoID: nullString(usr.ProfilePhotoID),
		CustomerID:     nullString(usr.CustomerID),
		PasswordHash:   usr.PasswordHash,
		CreatedAt:      usr.CreatedAt,
		UpdatedAt:      usr.UpdatedAt,
		LastLogin:      null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()),
	}
}

func (u dbUser) toUser() user.User {
	usr := user.User{
		ID:             u.ID,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Username:       u.Username.String,
		Email:          u.Email.String,
		Phone:          u.Phone.String,
		Bio:            u.Bio,
		Roles:          []string(u.Roles),
		ProfilePhoto:   u.ProfilePhoto,
		ProfilePhotoID: u.ProfilePhotoID.String,
		CustomerID:     u.CustomerID.String,
		PasswordHash:   u.PasswordHash,
		CreatedAt:      u.CreatedAt.UTC(),
		UpdatedAt:      u.UpdatedAt.UTC(),
		LastLogin:      u.LastLogin.Time.UTC(),
	}
	if !u.LastLogin.Valid {
		usr.LastLogin = time.Time{}
	}
	usr.SetActive(u.IsActive)
	return usr
}

func toUsers(rows []dbUser) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users
}

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User) error {
	excluded := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded = append(excluded, usr.ID)
	}

	var rows []struct {
		Username null.String `db:"username"`
		Email    null.String `db:"email"`
	}
	q := `SELECT username, email FROM users WHERE (username = $1 OR email = $2) AND NOT (id::text = ANY($3))`
	if err := repo.db.SelectContext(ctx, &rows, q, nullString(username), nullString(email), pq.Array(excluded)); err != nil {
		return errors.Wrap(err, "selecting users")
	}
	for _, row := range rows {
		if username != "" && row.Username.String == username {
			return user.ErrUsernameExists
		}
		if email != "" && row.Email.String == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = core.NewID()
	q := `INSERT INTO users (` + userColumns + `) VALUES (:id, :first_name, :last_name, :username, :email, :phone,
		:bio, :roles, :is_active, :profile_photo, :profile_photo_id, :customer_id, :password_hash, :created_at,
		:updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, toDBUser(usr)); err != nil {
		return user.User{}, mapUserUniqueViolation(err)
	}
	return usr, nil
}

func mapUserUniqueViolation(err error) error {
	switch {
	case uniqueViolationOn(err, "users_username_key"):
		return user.ErrUsernameExists
	case uniqueViolationOn(err, "users_email_key"):
		return user.ErrEmailExists
	default:
		return err
	}
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		if filter.Search != "" {
			where = append(where, "(first_name ILIKE ? OR last_name ILIKE ? OR username ILIKE ? OR email ILIKE ?)")
			like := "%" + filter.Search + "%"
			args = append(args, like, like, like, like)
		}
		if len(filter.Roles) > 0 {
			where = append(where, "roles && ?")
			args = append(args, pq.Array(filter.Roles))
		}
		if filter.IsActive != nil {
			where = append(where, "is_active = ?")
			args = append(args, *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			where = append(where, "created_at >= ?")
			args = append(args, filter.CreatedFrom)
		}
		if !filter.CreatedTo.IsZero() {
			where = append(where, "created_at <= ?")
			args = append(args, filter.CreatedTo)
		}
	}

	q := "SELECT " + userColumns + " FROM users"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + core.OrderByClause(ordering, userOrderingFields, "created_at ASC")

	var rows []dbUser
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	return toUsers(rows), nil
}

func (repo *userRepository) getUser(ctx context.Context, where string, arg interface{}) (user.User, error) {
	var row dbUser
	q := "SELECT " + userColumns + " FROM users WHERE " + where + " LIMIT 1"
	if err := repo.db.GetContext(ctx, &row, q, arg); err != nil {
		return user.User{}, notFound(err, user.ErrNotFound)
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getUser(ctx, "id::text = $1", id)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, "email = $1", nullString(email))
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	return repo.getUser(ctx, "(username = $1 OR email = $1)", nullString(username))
}

// UpdateUser writes every field but customer_id.
func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE users SET first_name = :first_name, last_name = :last_name, username = :username, email = :email,
		phone = :phone, bio = :bio, roles = :roles, is_active = :is_active, profile_photo = :profile_photo,
		profile_photo_id = :profile_photo_id, password_hash = :password_hash, updated_at = :updated_at,
		last_login = :last_login
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toDBUser(usr))
	if err != nil {
		return user.User{}, mapUserUniqueViolation(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return user.User{}, err
	} else if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) SetCustomerID(ctx context.Context, id, customerID string) error {
	q := "UPDATE users SET customer_id = $1, updated_at = $2 WHERE id::text = $3"
	return execOne(ctx, repo.db, user.ErrNotFound, q, nullString(customerID), time.Now().UTC(), id)
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, "DELETE FROM users WHERE id::text = ANY($1)", pq.Array(ids))
	return errors.Wrap(err, "deleting users")
}

func (repo *userRepository) Follow(ctx context.Context, f user.Follow) error {
	q := `INSERT INTO follows (follower_id, followee_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
	_, err := repo.db.ExecContext(ctx, q, f.FollowerID, f.FolloweeID, f.CreatedAt)
	return errors.Wrap(err, "inserting follow")
}

func (repo *userRepository) Unfollow(ctx context.Context, followerID, followeeID string) error {
	_, err := repo.db.ExecContext(ctx, "DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2", followerID, followeeID)
	return errors.Wrap(err, "deleting follow")
}

func (repo *userRepository) QueryFollowers(ctx context.Context, id string) ([]user.User, error) {
	return repo.queryFollows(ctx, "f.follower_id", "f.followee_id", id)
}

func (repo *userRepository) QueryFollowing(ctx context.Context, id string) ([]user.User, error) {
	return repo.queryFollows(ctx, "f.followee_id", "f.follower_id", id)
}

func (repo *userRepository) queryFollows(ctx context.Context, joinCol, whereCol, id string) ([]user.User, error) {
	var rows []dbUser
	q := "SELECT " + prefixColumns("u", userColumns) + " FROM users u JOIN follows f ON " + joinCol + " = u.id" +
		" WHERE " + whereCol + " = $1 ORDER BY u.username"
	if err := repo.db.SelectContext(ctx, &rows, q, id); err != nil {
		return nil, errors.Wrap(err, "selecting follows")
	}
	return toUsers(rows), nil
}

func (repo *userRepository) SaveOTP(ctx context.Context, otp user.OTP) error {
	q := `INSERT INTO otps (email, code_hash, expires_at, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET code_hash = EXCLUDED.code_hash, expires_at = EXCLUDED.expires_at,
		created_at = EXCLUDED.created_at`
	_, err := repo.db.ExecContext(ctx, q, otp.Email, otp.CodeHash, otp.ExpiresAt, otp.CreatedAt)
	return errors.Wrap(err, "saving otp")
}

func (repo *userRepository) GetOTP(ctx context.Context, email string) (user.OTP, error) {
	var row struct {
		Email     string    `db:"email"`
		CodeHash  []byte    `db:"code_hash"`
		ExpiresAt time.Time `db:"expires_at"`
		CreatedAt time.Time `db:"created_at"`
	}
	q := "SELECT email, code_hash, expires_at, created_at FROM otps WHERE email = $1"
	if err := repo.db.GetContext(ctx, &row, q, email); err != nil {
		return user.OTP{}, notFound(err, user.ErrOTPNotFound)
	}
	return user.OTP{Email: row.Email, CodeHash: row.CodeHash, ExpiresAt: row.ExpiresAt.UTC(), CreatedAt: row.CreatedAt.UTC()}, nil
}

func (repo *userRepository) DeleteOTP(ctx context.Context, email string) error {
	_, err := repo.db.ExecContext(ctx, "DELETE FROM otps WHERE email = $1", email)
	return errors.Wrap(err, "deleting otp")
}

// prefixColumns qualifies each column of a comma separated list with alias.
func prefixColumns(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}
