package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/alumnet/alumnet/core"
	"github.com/alumnet/alumnet/core/user"
)

var userOrderingFields = []string{"created_at", "username", "email", "first_name", "last_name", "last_login"}

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func copyUser(usr user.User) user.User {
	usr.Roles = copyStrings(usr.Roles)
	if usr.IsActive != nil {
		usr.SetActive(*usr.IsActive)
	}
	return usr
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		users = append(users, copyUser(u))
	}
	return users
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	exclUsrsLen := len(excludedUsers)
	if exclUsrsLen > 1 {
		sort.Slice(excludedUsers, func(i, j int) bool { return excludedUsers[i].ID < excludedUsers[j].ID })
	}

	for _, usr := range repo.db.users {
		if isExcluded(usr, excludedUsers, exclUsrsLen) {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	usr.ID = core.NewID()
	repo.db.users[usr.ID] = copyUser(usr)
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.query() {
		if filter == nil || matchesFilter(usr, filter) {
			users = append(users, usr)
		}
	}

	ord := orderBy(ordering, userOrderingFields, core.DBOrdering{Field: "created_at"})
	sortSlice(users, ord, func(i, j int) bool {
		a, b := users[i], users[j]
		switch ord.Field {
		case "username":
			return a.Username < b.Username
		case "email":
			return a.Email < b.Email
		case "first_name":
			return a.FirstName < b.FirstName
		case "last_name":
			return a.LastName < b.LastName
		case "last_login":
			return a.LastLogin.Before(b.LastLogin)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})
	return users, nil
}

func matchesFilter(usr user.User, filter *user.QueryFilter) bool {
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		found := false
		for _, val := range []string{usr.FirstName, usr.LastName, usr.Username, usr.Email} {
			if strings.Contains(strings.ToLower(val), search) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		found := false
		for _, role := range filter.Roles {
			if usr.HasRole(role) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.IsActive != nil && usr.Active() != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return copyUser(usr), nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.db.users {
		if email != "" && usr.Email == email {
			return copyUser(usr), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if username == "" {
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.users {
		if (usr.Username == username) || (usr.Email == username) {
			return copyUser(usr), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	origUsr, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	// customer id is only written by SetCustomerID
	usr.CustomerID = origUsr.CustomerID
	repo.db.users[usr.ID] = copyUser(usr)
	return usr, nil
}

func (repo *userRepository) SetCustomerID(ctx context.Context, id, customerID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	usr, ok := repo.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.CustomerID = customerID
	repo.db.users[id] = usr
	return nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		delete(repo.db.users, id)
		for key := range repo.db.follows {
			if key.follower == id || key.followee == id {
				delete(repo.db.follows, key)
			}
		}
	}
	return nil
}

func (repo *userRepository) Follow(ctx context.Context, f user.Follow) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := followKey{f.FollowerID, f.FolloweeID}
	if _, ok := repo.db.follows[key]; !ok {
		repo.db.follows[key] = f
	}
	return nil
}

func (repo *userRepository) Unfollow(ctx context.Context, followerID, followeeID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	delete(repo.db.follows, followKey{followerID, followeeID})
	return nil
}

func (repo *userRepository) QueryFollowers(ctx context.Context, id string) ([]user.User, error) {
	return repo.queryFollows(func(key followKey) (string, bool) { return key.follower, key.followee == id })
}

func (repo *userRepository) QueryFollowing(ctx context.Context, id string) ([]user.User, error) {
	return repo.queryFollows(func(key followKey) (string, bool) { return key.followee, key.follower == id })
}

func (repo *userRepository) queryFollows(match func(key followKey) (string, bool)) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0)
	for key := range repo.db.follows {
		if otherID, ok := match(key); ok {
			if usr, ok := repo.db.users[otherID]; ok {
				users = append(users, copyUser(usr))
			}
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (repo *userRepository) SaveOTP(ctx context.Context, otp user.OTP) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.otps[otp.Email] = otp
	return nil
}

func (repo *userRepository) GetOTP(ctx context.Context, email string) (user.OTP, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if otp, ok := repo.db.otps[email]; ok {
		return otp, nil
	}
	return user.OTP{}, user.ErrOTPNotFound
}

func (repo *userRepository) DeleteOTP(ctx context.Context, email string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	delete(repo.db.otps, email)
	return nil
}

func isExcluded(usr user.User, excludedUsers []user.User, n int) bool {
	if n <= 0 {
		return false
	}
	idx := sort.Search(n, func(i int) bool { return excludedUsers[i].ID >= usr.ID })
	return idx < n && excludedUsers[idx].ID == usr.ID
}
