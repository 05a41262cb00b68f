package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Collection backed by a gorm connection
type Gorm[T any] struct {
	db    *gorm.DB
	key   string
	order string
}

func NewGorm[T any](db *gorm.DB) (self *Gorm[T]) {
	self = new(Gorm[T])
	self.db = db
	self.key = "id"
	self.order = "created_at"
	return
}

// Primary key column
func (self *Gorm[T]) WithKey(column string) *Gorm[T] {
	self.key = column
	return self
}

// Column that reflects insertion order
func (self *Gorm[T]) WithOrder(column string) *Gorm[T] {
	self.order = column
	return self
}

func (self *Gorm[T]) Create(ctx context.Context, v *T) (err error) {
	err = self.db.WithContext(ctx).Create(v).Error
	return translate(err)
}

func (self *Gorm[T]) FindOne(ctx context.Context, key string) (out *T, err error) {
	out = new(T)
	err = self.db.WithContext(ctx).
		Where(map[string]interface{}{self.key: key}).
		Take(out).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return
}

func (self *Gorm[T]) FindMany(ctx context.Context, filter Filter, opts ...Option) (out []*T, err error) {
	q := newQuery(opts)

	tx := self.db.WithContext(ctx).Model(new(T))
	if len(filter) > 0 {
		tx = tx.Where(map[string]interface{}(filter))
	}

	tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: self.order}, Desc: q.descending}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: self.key}, Desc: q.descending})

	if q.limit > 0 {
		tx = tx.Limit(q.limit)
	}

	err = tx.Find(&out).Error
	if err != nil {
		return nil, translate(err)
	}
	return
}

func (self *Gorm[T]) UpdateOne(ctx context.Context, key string, guard Filter, changes Changes) (err error) {
	if len(changes) == 0 {
		return nil
	}

	updates := make(map[string]interface{}, len(changes))
	for column, value := range changes {
		if inc, ok := value.(Increment); ok {
			updates[column] = gorm.Expr(fmt.Sprintf("%s + ?", column), inc.By)
			continue
		}
		updates[column] = value
	}

	tx := self.db.WithContext(ctx).
		Model(new(T)).
		Where(map[string]interface{}{self.key: key})
	if len(guard) > 0 {
		tx = tx.Where(map[string]interface{}(guard))
	}

	tx = tx.Updates(updates)
	if tx.Error != nil {
		return translate(tx.Error)
	}

	if tx.RowsAffected == 0 {
		return self.explainMiss(ctx, key)
	}
	return nil
}

func (self *Gorm[T]) DeleteOne(ctx context.Context, key string, guard Filter) (err error) {
	tx := self.db.WithContext(ctx).
		Where(map[string]interface{}{self.key: key})
	if len(guard) > 0 {
		tx = tx.Where(map[string]interface{}(guard))
	}

	tx = tx.Delete(new(T))
	if tx.Error != nil {
		return translate(tx.Error)
	}

	if tx.RowsAffected == 0 {
		return self.explainMiss(ctx, key)
	}
	return nil
}

// Nothing was affected, either the record is gone or the guard didn't match
func (self *Gorm[T]) explainMiss(ctx context.Context, key string) error {
	_, err := self.FindOne(ctx, key)
	if err != nil {
		return err
	}
	return ErrConflict
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}
