package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/schema"
)

type memoryRecord[T any] struct {
	seq   uint64
	value T
}

// Collection kept in memory. Used in development and tests.
// Understands the same column names as the gorm backend.
type Memory[T any] struct {
	mtx     sync.RWMutex
	key     string
	unique  [][]string
	seq     uint64
	records map[string]*memoryRecord[T]

	// Column name to field index
	columns map[string]int
}

func NewMemory[T any]() (self *Memory[T]) {
	self = new(Memory[T])
	self.key = "id"
	self.records = make(map[string]*memoryRecord[T])
	self.columns = make(map[string]int)

	naming := schema.NamingStrategy{}
	typ := reflect.TypeOf((*T)(nil)).Elem()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		self.columns[naming.ColumnName("", field.Name)] = i
	}
	return
}

// Primary key column
func (self *Memory[T]) WithKey(column string) *Memory[T] {
	self.key = column
	return self
}

// Columns whose values must be unique together
func (self *Memory[T]) WithUnique(columns ...string) *Memory[T] {
	self.unique = append(self.unique, columns)
	return self
}

func (self *Memory[T]) field(v reflect.Value, column string) (out reflect.Value, err error) {
	idx, ok := self.columns[column]
	if !ok {
		return reflect.Value{}, fmt.Errorf("unknown column: %s", column)
	}
	return v.Field(idx), nil
}

func (self *Memory[T]) keyOf(v reflect.Value) (string, error) {
	f, err := self.field(v, self.key)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(f.Interface()), nil
}

func (self *Memory[T]) Create(ctx context.Context, v *T) (err error) {
	if err = ctx.Err(); err != nil {
		return
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()

	self.seq++
	val := reflect.ValueOf(v).Elem()

	// Auto increment integer keys
	keyField, err := self.field(val, self.key)
	if err != nil {
		return
	}
	if keyField.CanInt() && keyField.Int() == 0 {
		keyField.SetInt(int64(self.seq))
	}

	key, err := self.keyOf(val)
	if err != nil {
		return
	}
	if _, exists := self.records[key]; exists {
		return ErrDuplicate
	}

	for _, columns := range self.unique {
		for _, record := range self.records {
			if self.sameColumns(reflect.ValueOf(&record.value).Elem(), val, columns) {
				return ErrDuplicate
			}
		}
	}

	now := time.Now()
	for _, column := range []string{"created_at", "updated_at"} {
		f, err := self.field(val, column)
		if err != nil {
			continue
		}
		if t, ok := f.Interface().(time.Time); ok && t.IsZero() {
			f.Set(reflect.ValueOf(now))
		}
	}

	self.records[key] = &memoryRecord[T]{seq: self.seq, value: *v}
	return nil
}

func (self *Memory[T]) sameColumns(a, b reflect.Value, columns []string) bool {
	for _, column := range columns {
		fa, err := self.field(a, column)
		if err != nil {
			return false
		}
		fb, _ := self.field(b, column)
		if !reflect.DeepEqual(fa.Interface(), fb.Interface()) {
			return false
		}
	}
	return true
}

func (self *Memory[T]) FindOne(ctx context.Context, key string) (out *T, err error) {
	if err = ctx.Err(); err != nil {
		return
	}

	self.mtx.RLock()
	defer self.mtx.RUnlock()

	record, ok := self.records[key]
	if !ok {
		return nil, ErrNotFound
	}

	out = new(T)
	*out = record.value
	return
}

func (self *Memory[T]) FindMany(ctx context.Context, filter Filter, opts ...Option) (out []*T, err error) {
	if err = ctx.Err(); err != nil {
		return
	}
	q := newQuery(opts)

	self.mtx.RLock()
	defer self.mtx.RUnlock()

	matching := make([]*memoryRecord[T], 0)
	for _, record := range self.records {
		var ok bool
		ok, err = self.matches(reflect.ValueOf(&record.value).Elem(), filter)
		if err != nil {
			return nil, err
		}
		if ok {
			matching = append(matching, record)
		}
	}

	sort.Slice(matching, func(i, j int) bool {
		if q.descending {
			return matching[i].seq > matching[j].seq
		}
		return matching[i].seq < matching[j].seq
	})

	if q.limit > 0 && len(matching) > q.limit {
		matching = matching[:q.limit]
	}

	out = make([]*T, 0, len(matching))
	for _, record := range matching {
		v := new(T)
		*v = record.value
		out = append(out, v)
	}
	return
}

func (self *Memory[T]) UpdateOne(ctx context.Context, key string, guard Filter, changes Changes) (err error) {
	if err = ctx.Err(); err != nil {
		return
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()

	record, ok := self.records[key]
	if !ok {
		return ErrNotFound
	}

	// Work on a copy, nothing is stored unless every change applies
	updated := record.value
	val := reflect.ValueOf(&updated).Elem()

	ok, err = self.matches(val, guard)
	if err != nil {
		return
	}
	if !ok {
		return ErrConflict
	}

	for column, change := range changes {
		var f reflect.Value
		f, err = self.field(val, column)
		if err != nil {
			return
		}
		err = assign(f, change)
		if err != nil {
			return fmt.Errorf("column %s: %w", column, err)
		}
	}

	if f, err := self.field(val, "updated_at"); err == nil {
		if _, ok := f.Interface().(time.Time); ok {
			f.Set(reflect.ValueOf(time.Now()))
		}
	}

	record.value = updated
	return nil
}

func (self *Memory[T]) DeleteOne(ctx context.Context, key string, guard Filter) (err error) {
	if err = ctx.Err(); err != nil {
		return
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()

	record, ok := self.records[key]
	if !ok {
		return ErrNotFound
	}

	ok, err = self.matches(reflect.ValueOf(&record.value).Elem(), guard)
	if err != nil {
		return
	}
	if !ok {
		return ErrConflict
	}

	delete(self.records, key)
	return nil
}

func (self *Memory[T]) matches(val reflect.Value, filter Filter) (bool, error) {
	for column, want := range filter {
		f, err := self.field(val, column)
		if err != nil {
			return false, err
		}
		if !equal(f, want) {
			return false, nil
		}
	}
	return true, nil
}

func equal(f reflect.Value, want interface{}) bool {
	if f.Kind() == reflect.Pointer {
		if f.IsNil() {
			return want == nil
		}
		f = f.Elem()
	}
	if want == nil {
		return false
	}

	w := reflect.ValueOf(want)
	if w.Kind() == reflect.Pointer {
		if w.IsNil() {
			return false
		}
		w = w.Elem()
	}

	if w.Type() != f.Type() {
		if w.Kind() != f.Kind() || !w.Type().ConvertibleTo(f.Type()) {
			return false
		}
		w = w.Convert(f.Type())
	}

	// Compare by value, not representation
	switch v := f.Interface().(type) {
	case time.Time:
		return v.Equal(w.Interface().(time.Time))
	case decimal.Decimal:
		return v.Equal(w.Interface().(decimal.Decimal))
	}

	return reflect.DeepEqual(f.Interface(), w.Interface())
}

func assign(f reflect.Value, change interface{}) error {
	if inc, ok := change.(Increment); ok {
		if !f.CanInt() {
			return fmt.Errorf("cannot increment %s", f.Type())
		}
		f.SetInt(f.Int() + int64(inc.By))
		return nil
	}

	if change == nil {
		f.Set(reflect.Zero(f.Type()))
		return nil
	}

	v := reflect.ValueOf(change)

	// Plain value assigned to a nullable column
	if f.Kind() == reflect.Pointer && v.Kind() != reflect.Pointer {
		elem := reflect.New(f.Type().Elem())
		err := assign(elem.Elem(), change)
		if err != nil {
			return err
		}
		f.Set(elem)
		return nil
	}

	switch {
	case v.Type().AssignableTo(f.Type()):
		f.Set(v)
	case v.Kind() == f.Kind() && v.Type().ConvertibleTo(f.Type()):
		f.Set(v.Convert(f.Type()))
	case v.Kind() == reflect.Pointer && v.IsNil():
		f.Set(reflect.Zero(f.Type()))
	default:
		return fmt.Errorf("cannot assign %s to %s", v.Type(), f.Type())
	}
	return nil
}
