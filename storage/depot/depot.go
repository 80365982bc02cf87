// Package depot 持久化车辆与列车编组
//
// Depot 同时维护进程内的身份映射：同一序列号只对应一个车辆对象，同一列车 ID 只对应一个
// 列车对象，归属检查因此在多次加载之间依然成立。
package depot

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"railkit/cache"
	"railkit/domain/consist"
	"railkit/errors"
	"railkit/logging"
	"railkit/storage/database"
	"railkit/storage/database/basic"
)

// Depot 车辆与列车仓储
type Depot struct {
	db     database.IDatabase
	logger logging.Logger

	elements *cache.Cache[consist.Serial, consist.Element]
	trains   *cache.Cache[string, *consist.Train]
}

// Option 仓储选项
type Option func(*Depot)

// WithLogger 指定日志器
func WithLogger(logger logging.Logger) Option {
	return func(d *Depot) { d.logger = logger }
}

// New 创建仓储
//
// 身份映射不设容量与过期：被驱逐的对象若仍被调用方持有，再次加载会得到第二个副本。
func New(db database.IDatabase, opts ...Option) *Depot {
	d := &Depot{
		db:       db,
		logger:   logging.GetLogger(),
		elements: cache.New(cache.Config[consist.Serial, consist.Element]{Name: "rolling_stock"}),
		trains:   cache.New(cache.Config[string, *consist.Train]{Name: "trains"}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.WithFields(logging.String("component", "depot"))
	return d
}

// Migrate 建表，可重复执行
func (d *Depot) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.db.Exec(ctx, stmt); err != nil {
			return errors.WrapDatabaseError(ctx, err, "migrate")
		}
	}
	return nil
}

// RegisterElement 登记新车辆；序列号已存在时返回 CONFLICT
func (d *Depot) RegisterElement(ctx context.Context, e consist.Element) error {
	if e == nil {
		return errors.NewValidationError("车辆不能为空")
	}
	r := recordOf(e)
	_, err := d.db.Exec(ctx,
		`INSERT INTO rolling_stock (`+stockColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.columns()...)
	if err != nil {
		if d.db.Dialect().IsUniqueViolation(err) {
			return errors.WrapError(err, errors.ErrCodeConflict, "车辆已登记").WithContext("serial", r.Serial)
		}
		return errors.WrapDatabaseError(ctx, err, "register element")
	}
	d.elements.Set(e.Serial(), e)
	d.logger.Debug(ctx, "element registered", logging.String("serial", r.Serial), logging.String("kind", r.Kind))
	return nil
}

// Element 按序列号取车辆，同一序列号总是返回同一对象
func (d *Depot) Element(ctx context.Context, serial consist.Serial) (consist.Element, error) {
	return d.elements.GetOrLoad(serial, func() (consist.Element, error) {
		return d.loadElement(ctx, d.db, serial)
	})
}

func (d *Depot) loadElement(ctx context.Context, q database.IExecutor, serial consist.Serial) (consist.Element, error) {
	var r stockRecord
	err := q.QueryRow(ctx, `SELECT `+stockColumns+` FROM rolling_stock WHERE serial = ?`, serial.String()).Scan(r.targets()...)
	if err != nil {
		return nil, errors.WrapDatabaseError(ctx, err, "load element "+serial.String())
	}
	e, err := r.element()
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeDatabase, "车辆记录损坏").WithContext("serial", r.Serial)
	}
	return e, nil
}

// ListElements 按序列号顺序列出车辆；freeOnly 为 true 时只列出未编入任何列车的车辆
func (d *Depot) ListElements(ctx context.Context, freeOnly bool) ([]consist.Element, error) {
	query := `SELECT serial FROM rolling_stock ORDER BY serial`
	if freeOnly {
		query = `SELECT serial FROM rolling_stock WHERE serial NOT IN (SELECT serial FROM composition) ORDER BY serial`
	}
	serials, err := d.scanStrings(ctx, query)
	if err != nil {
		return nil, errors.WrapDatabaseError(ctx, err, "list elements")
	}
	out := make([]consist.Element, 0, len(serials))
	for _, s := range serials {
		serial, err := consist.ParseSerial(s)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeDatabase, "车辆序列号损坏").WithContext("serial", s)
		}
		e, err := d.Element(ctx, serial)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// SaveTrain 以事务整体写入列车序列
//
// 库中版本高于内存版本时返回 CONFLICT，说明内存对象已过期。
func (d *Depot) SaveTrain(ctx context.Context, t *consist.Train) error {
	if t == nil {
		return errors.NewValidationError("列车不能为空")
	}
	if t.Dissolved() {
		return errors.NewTrainDissolvedError(t.ID())
	}
	version, elements := t.Snapshot()

	err := basic.InTx(ctx, d.db, func(tx database.ITransaction) error {
		var stored uint64
		err := tx.QueryRow(ctx, `SELECT version FROM trains WHERE id = ?`, t.ID()).Scan(&stored)
		switch {
		case err == nil:
			if stored > version {
				return errors.NewError(errors.ErrCodeConflict, "列车已被更新").
					WithContext("train_id", t.ID()).
					WithContext("stored_version", stored).
					WithContext("version", version)
			}
			if _, err := tx.Exec(ctx, `UPDATE trains SET version = ?, updated_at = ? WHERE id = ?`,
				version, now(), t.ID()); err != nil {
				return err
			}
		case stderrors.Is(err, sql.ErrNoRows):
			if _, err := tx.Exec(ctx, `INSERT INTO trains (id, version, updated_at) VALUES (?, ?, ?)`,
				t.ID(), version, now()); err != nil {
				return err
			}
		default:
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM composition WHERE train_id = ?`, t.ID()); err != nil {
			return err
		}
		for i, e := range elements {
			_, err := tx.Exec(ctx, `INSERT INTO composition (train_id, position, serial) VALUES (?, ?, ?)`,
				t.ID(), i, e.Serial().String())
			if err != nil {
				if d.db.Dialect().IsUniqueViolation(err) {
					return errors.WrapError(err, errors.ErrCodeAlreadyAssigned, "车辆已在库中属于其他列车").
						WithContext("serial", e.Serial().String())
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.GetErrorCode(err) != errors.ErrCodeInternal {
			return err
		}
		return errors.WrapDatabaseError(ctx, err, "save train "+t.ID())
	}

	for _, e := range elements {
		d.elements.Set(e.Serial(), e)
	}
	d.trains.Set(t.ID(), t)
	d.logger.Debug(ctx, "train saved",
		logging.String("train_id", t.ID()), logging.Int64("version", int64(version)), logging.Int("length", len(elements)))
	return nil
}

// LoadTrain 加载列车，同一 ID 总是返回同一对象
func (d *Depot) LoadTrain(ctx context.Context, id string) (*consist.Train, error) {
	return d.trains.GetOrLoad(id, func() (*consist.Train, error) {
		return d.loadTrain(ctx, id)
	})
}

func (d *Depot) loadTrain(ctx context.Context, id string) (*consist.Train, error) {
	var version uint64
	if err := d.db.QueryRow(ctx, `SELECT version FROM trains WHERE id = ?`, id).Scan(&version); err != nil {
		return nil, errors.WrapDatabaseError(ctx, err, "load train "+id)
	}
	serials, err := d.scanStrings(ctx, `SELECT serial FROM composition WHERE train_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, errors.WrapDatabaseError(ctx, err, "load composition "+id)
	}
	elements := make([]consist.Element, 0, len(serials))
	for _, s := range serials {
		serial, err := consist.ParseSerial(s)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeDatabase, "车辆序列号损坏").WithContext("serial", s)
		}
		e, err := d.Element(ctx, serial)
		if err != nil {
			return nil, err
		}
		elements = append(elements, e)
	}
	t, err := consist.Restore(id, version, elements)
	if err != nil {
		return nil, errors.Wrap(ctx, err, errors.GetErrorCode(err), "列车 "+id+" 无法重建")
	}
	d.logger.Debug(ctx, "train loaded", logging.String("train_id", id), logging.Int("length", len(elements)))
	return t, nil
}

// DeleteTrain 删除列车记录，车辆记录保留
func (d *Depot) DeleteTrain(ctx context.Context, id string) error {
	err := basic.InTx(ctx, d.db, func(tx database.ITransaction) error {
		if _, err := tx.Exec(ctx, `DELETE FROM composition WHERE train_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.Exec(ctx, `DELETE FROM trains WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return errors.NewError(errors.ErrCodeNotFound, "列车不存在").WithContext("train_id", id)
		}
		return nil
	})
	if err != nil {
		if errors.IsNotFound(err) {
			return err
		}
		return errors.WrapDatabaseError(ctx, err, "delete train "+id)
	}
	d.trains.Delete(id)
	return nil
}

// ListTrains 按 ID 顺序返回所有列车 ID
func (d *Depot) ListTrains(ctx context.Context) ([]string, error) {
	ids, err := d.scanStrings(ctx, `SELECT id FROM trains ORDER BY id`)
	if err != nil {
		return nil, errors.WrapDatabaseError(ctx, err, "list trains")
	}
	return ids, nil
}

func (d *Depot) scanStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := d.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (d *Depot) String() string {
	return fmt.Sprintf("depot(%s, %s)", d.elements, d.trains)
}
