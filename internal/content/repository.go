package content

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"parkadmin/app/internal/db"
)

// ErrDuplicate reports a write that collided with a unique index.
var ErrDuplicate = eris.New("record already exists")

// Repository persists content records using a Gorm database connection. Methods take the
// destination or model as a pointer the way gorm does, so one repository serves every
// collection.
type Repository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewRepository constructs a Gorm-backed repository.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*Repository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &Repository{db: db, logger: logger}, nil
}

// FindAll loads every row of dest's table in the given order.
func (r *Repository) FindAll(ctx context.Context, dest any, order string) error {
	query := r.db.WithContext(ctx)
	if order != "" {
		query = query.Order(order)
	}

	if err := query.Find(dest).Error; err != nil {
		r.logError(nil, err, "listing records")
		return eris.Wrap(err, "listing records")
	}

	return nil
}

// FindByID loads the row with id into dest. It reports false when no row matches.
func (r *Repository) FindByID(ctx context.Context, dest any, id string) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(dest)
	if result.Error != nil {
		r.logError(logrus.Fields{"id": id}, result.Error, "fetching record by id")
		return false, eris.Wrapf(result.Error, "fetching record: %s", id)
	}

	return result.RowsAffected > 0, nil
}

// FindByIDs loads every row whose id is in ids. Unknown ids are ignored.
func (r *Repository) FindByIDs(ctx context.Context, dest any, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(dest).Error; err != nil {
		r.logError(logrus.Fields{"ids": ids}, err, "fetching records by id")
		return eris.Wrap(err, "fetching records by id")
	}

	return nil
}

// Exists reports whether a row of model's table has column = value, ignoring the row with
// excludeID.
func (r *Repository) Exists(ctx context.Context, model any, column, value, excludeID string) (bool, error) {
	query := r.db.WithContext(ctx).Model(model).Where(column+" = ?", value)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		r.logError(logrus.Fields{"column": column}, err, "checking for existing record")
		return false, eris.Wrapf(err, "checking %s", column)
	}

	return count > 0, nil
}

// CreateSequenced allocates the next seq of resource, passes it to assign and inserts
// record, all in one transaction.
func (r *Repository) CreateSequenced(ctx context.Context, resource Resource, record any, assign func(seq int64)) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := allocateSeq(tx, resource)
		if err != nil {
			return err
		}
		assign(seq)

		if err := tx.Create(record).Error; err != nil {
			return translate(err)
		}
		return nil
	})
	if err != nil {
		r.logError(logrus.Fields{"resource": string(resource)}, err, "creating sequenced record")
		return eris.Wrapf(err, "creating %s record", resource)
	}

	return nil
}

// Create inserts record.
func (r *Repository) Create(ctx context.Context, record any) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		err = translate(err)
		r.logError(nil, err, "creating record")
		return eris.Wrap(err, "creating record")
	}

	return nil
}

// Update writes every column of record except id, seq and created_at to the row with id.
// It never inserts: a row deleted in the meantime stays deleted and Update reports false.
func (r *Repository) Update(ctx context.Context, record any, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(record).
		Where("id = ?", id).
		Select("*").
		Omit("id", "seq", "created_at").
		Updates(record)
	if result.Error != nil {
		err := translate(result.Error)
		r.logError(logrus.Fields{"id": id}, err, "updating record")
		return false, eris.Wrapf(err, "updating record: %s", id)
	}

	return result.RowsAffected > 0, nil
}

// UpdateColumns changes the named columns of the row with id. It reports false when no row
// matches.
func (r *Repository) UpdateColumns(ctx context.Context, model any, id string, values map[string]any) (bool, error) {
	result := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		err := translate(result.Error)
		r.logError(logrus.Fields{"id": id}, err, "updating record columns")
		return false, eris.Wrapf(err, "updating record: %s", id)
	}

	return result.RowsAffected > 0, nil
}

// DeleteByIDs removes the rows of model's table whose id is in ids.
func (r *Repository) DeleteByIDs(ctx context.Context, model any, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(model)
	if result.Error != nil {
		r.logError(logrus.Fields{"ids": ids}, result.Error, "deleting records")
		return 0, eris.Wrap(result.Error, "deleting records")
	}

	return result.RowsAffected, nil
}

// DeleteCategories removes the categories and detaches them from highlights in one
// transaction.
func (r *Repository) DeleteCategories(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Highlight{}).Where("category_id IN ?", ids).Update("category_id", nil).Error; err != nil {
			return eris.Wrap(err, "detaching highlights from categories")
		}

		result := tx.Where("id IN ?", ids).Delete(&Category{})
		if result.Error != nil {
			return eris.Wrap(result.Error, "deleting categories")
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		r.logError(logrus.Fields{"ids": ids}, err, "deleting categories")
		return 0, err
	}

	return deleted, nil
}

// CategoryNames maps category ids to names.
func (r *Repository) CategoryNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var categories []Category
	if err := r.FindByIDs(ctx, &categories, ids); err != nil {
		return nil, err
	}
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	return names, nil
}

// Ping checks the underlying connection.
func (r *Repository) Ping(ctx context.Context) error {
	return db.Ping(ctx, r.db)
}

func translate(err error) error {
	if eris.Is(err, gorm.ErrDuplicatedKey) {
		return eris.Wrap(ErrDuplicate, err.Error())
	}
	return err
}

func (r *Repository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
