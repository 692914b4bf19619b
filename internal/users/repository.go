package users

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Repository defines persistence operations for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Save(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) (bool, error)
}

// GormRepository persists users using a Gorm database connection.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewRepository constructs a Gorm-backed repository implementation.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormRepository{db: db, logger: logger}, nil
}

var _ Repository = (*GormRepository)(nil)

// ErrDuplicateEmail is returned when saving a user whose email belongs to another account.
var ErrDuplicateEmail = eris.New("email already registered")

// GetByID returns the user or nil when not found.
func (r *GormRepository) GetByID(ctx context.Context, id string) (*User, error) {
	var user User
	result := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&user)
	if result.Error != nil {
		r.logError(logrus.Fields{"id": id}, result.Error, "fetching user by id")
		return nil, eris.Wrapf(result.Error, "fetching user: %s", id)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	return &user, nil
}

// GetByEmail looks the user up by normalised email. It returns nil when not found.
func (r *GormRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return nil, eris.New("email is required")
	}

	var user User
	result := r.db.WithContext(ctx).Where("email = ?", normalized).Limit(1).Find(&user)
	if result.Error != nil {
		r.logError(logrus.Fields{"email": normalized}, result.Error, "fetching user by email")
		return nil, eris.Wrapf(result.Error, "fetching user by email: %s", normalized)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	return &user, nil
}

// List returns every user ordered by name.
func (r *GormRepository) List(ctx context.Context) ([]User, error) {
	var users []User

	if err := r.db.WithContext(ctx).Order("name ASC").Order("email ASC").Find(&users).Error; err != nil {
		r.logError(nil, err, "listing users")
		return nil, eris.Wrap(err, "listing users")
	}

	return users, nil
}

// Save inserts or updates the user.
func (r *GormRepository) Save(ctx context.Context, user *User) error {
	if user == nil {
		return eris.New("user is nil")
	}

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Email == "" {
		return eris.New("user email is required")
	}

	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		if eris.Is(err, gorm.ErrDuplicatedKey) {
			return eris.Wrapf(ErrDuplicateEmail, "saving user: %s", user.Email)
		}
		r.logError(logrus.Fields{"email": user.Email}, err, "saving user")
		return eris.Wrapf(err, "saving user: %s", user.Email)
	}

	return nil
}

// Delete removes the user. It reports false when no row matched.
func (r *GormRepository) Delete(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&User{})
	if result.Error != nil {
		r.logError(logrus.Fields{"id": id}, result.Error, "deleting user")
		return false, eris.Wrapf(result.Error, "deleting user: %s", id)
	}

	return result.RowsAffected > 0, nil
}

func (r *GormRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
