package content

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// allocateSeq reserves the next seq for resource inside tx. The counter row never moves
// backwards, so deleting the newest record does not hand its seq out again, and it is
// raised past the collection maximum if rows were written without it.
//
// tx must hold the database write lock (BEGIN IMMEDIATE); two transactions can then never
// observe the same counter value.
func allocateSeq(tx *gorm.DB, resource Resource) (int64, error) {
	current, err := currentSeq(tx, resource)
	if err != nil {
		return 0, err
	}

	counter := SequenceCounter{Resource: string(resource), Value: current + 1, UpdatedAt: time.Now().UTC()}
	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "resource"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&counter).Error
	if err != nil {
		return 0, eris.Wrapf(err, "storing sequence counter for %s", resource)
	}

	return counter.Value, nil
}

// currentSeq is the larger of the stored counter and the collection's maximum seq.
func currentSeq(tx *gorm.DB, resource Resource) (int64, error) {
	table := resource.table()
	if !resource.Sequenced() || table == "" {
		return 0, eris.Errorf("resource %s has no sequence", resource)
	}

	var maxSeq int64
	if err := tx.Table(table).Select("COALESCE(MAX(seq), 0)").Row().Scan(&maxSeq); err != nil {
		return 0, eris.Wrapf(err, "reading max seq for %s", resource)
	}

	var counter SequenceCounter
	err := tx.Where("resource = ?", string(resource)).Limit(1).Find(&counter).Error
	if err != nil {
		return 0, eris.Wrapf(err, "reading sequence counter for %s", resource)
	}

	return max(counter.Value, maxSeq), nil
}

// PeekSeq returns the seq the next create of resource will receive, barring a concurrent
// create in between. Nothing is reserved.
func (r *Repository) PeekSeq(ctx context.Context, resource Resource) (int64, error) {
	current, err := currentSeq(r.db.WithContext(ctx), resource)
	if err != nil {
		r.logError(logrus.Fields{"resource": string(resource)}, err, "peeking next seq")
		return 0, err
	}
	return current + 1, nil
}
