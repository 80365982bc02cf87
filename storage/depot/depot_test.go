package depot

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railkit/domain/consist"
	"railkit/errors"
	"railkit/logging"
	"railkit/storage/database"
	"railkit/storage/database/basic"
)

var builtAt = time.Date(2004, 9, 1, 0, 0, 0, 0, time.UTC)

func openDB(t *testing.T) database.IDatabase {
	t.Helper()
	db, err := basic.Open(context.Background(), database.DBConfig{Driver: "sqlite", DSN: "file::memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newDepot(t *testing.T, db database.IDatabase) *Depot {
	t.Helper()
	d := New(db, WithLogger(logging.NewNoopLogger()))
	require.NoError(t, d.Migrate(context.Background()))
	return d
}

func mustLoco(t *testing.T, d *Depot, weight, tractive int) *consist.Locomotive {
	t.Helper()
	l, err := consist.NewLocomotive(consist.RandomSerials(), consist.LocomotiveSpec{
		Attributes: consist.Attributes{
			EmptyWeight: weight, Length: 18500,
			TypeDesignation: "Vectron", Manufacturer: "Siemens", ConstructionDate: builtAt,
		},
		DriveType:     consist.DriveElectric,
		TractivePower: tractive,
	})
	require.NoError(t, err)
	require.NoError(t, d.RegisterElement(context.Background(), l))
	return l
}

func mustWagon(t *testing.T, d *Depot, weight, passengers, goods int) *consist.Wagon {
	t.Helper()
	w, err := consist.NewWagon(consist.RandomSerials(), consist.WagonSpec{
		Attributes: consist.Attributes{
			EmptyWeight: weight, Length: 26400, MaxPassengerCount: passengers, MaxGoodsWeight: goods,
			TypeDesignation: "Bvmz", Manufacturer: "Bombardier", ConstructionDate: builtAt,
		},
		Category: consist.CategoryPassenger,
	})
	require.NoError(t, err)
	require.NoError(t, d.RegisterElement(context.Background(), w))
	return w
}

func TestMigrate_Idempotent(t *testing.T) {
	d := newDepot(t, openDB(t))
	assert.NoError(t, d.Migrate(context.Background()))
}

func TestRegisterElement(t *testing.T) {
	ctx := context.Background()
	d := newDepot(t, openDB(t))
	l := mustLoco(t, d, 80000, 10000)

	got, err := d.Element(ctx, l.Serial())
	require.NoError(t, err)
	assert.Same(t, l, got)

	err = d.RegisterElement(ctx, l)
	assert.True(t, errors.IsErrorCode(err, errors.ErrCodeConflict), "got %v", err)

	_, err = d.Element(ctx, uuid.New())
	assert.True(t, errors.IsNotFound(err))
}

// 新仓储从库中重建的车辆属性与原对象一致，且同一序列号只构造一次
func TestElement_RebuildFromStore(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	d1 := newDepot(t, db)
	l := mustLoco(t, d1, 80000, 10000)
	w := mustWagon(t, d1, 40000, 50, 1000)

	d2 := New(db, WithLogger(logging.NewNoopLogger()))
	gotL, err := d2.Element(ctx, l.Serial())
	require.NoError(t, err)
	gotW, err := d2.Element(ctx, w.Serial())
	require.NoError(t, err)

	require.IsType(t, &consist.Locomotive{}, gotL)
	assert.Equal(t, l.Spec(), gotL.(*consist.Locomotive).Spec())
	assert.Equal(t, 90000, gotL.(*consist.Locomotive).Power())
	require.IsType(t, &consist.Wagon{}, gotW)
	assert.Equal(t, w.Spec(), gotW.(*consist.Wagon).Spec())
	assert.NotSame(t, l, gotL)

	again, err := d2.Element(ctx, l.Serial())
	require.NoError(t, err)
	assert.Same(t, gotL, again)
}

func TestSaveAndLoadTrain(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	d1 := newDepot(t, db)
	l := mustLoco(t, d1, 80000, 10000)
	w1 := mustWagon(t, d1, 40000, 50, 1000)
	w2 := mustWagon(t, d1, 40000, 50, 1000)

	tr, err := consist.NewTrain(l)
	require.NoError(t, err)
	require.NoError(t, tr.AppendElement(w1))
	require.NoError(t, tr.InsertElementAt(w2, 1))
	require.NoError(t, d1.SaveTrain(ctx, tr))

	same, err := d1.LoadTrain(ctx, tr.ID())
	require.NoError(t, err)
	assert.Same(t, tr, same)

	d2 := New(db, WithLogger(logging.NewNoopLogger()))
	loaded, err := d2.LoadTrain(ctx, tr.ID())
	require.NoError(t, err)

	assert.Equal(t, tr.ID(), loaded.ID())
	assert.Equal(t, tr.Version(), loaded.Version())
	assert.Equal(t, tr.Metrics(), loaded.Metrics())
	assert.Empty(t, loaded.PendingEvents())

	want := []consist.Serial{l.Serial(), w2.Serial(), w1.Serial()}
	var got []consist.Serial
	for _, e := range loaded.Elements() {
		got = append(got, e.Serial())
		assert.Same(t, loaded, e.Train())
	}
	assert.Equal(t, want, got)

	_, err = d2.LoadTrain(ctx, "missing")
	assert.True(t, errors.IsNotFound(err))
}

// 库中版本比内存对象新时拒绝覆盖
func TestSaveTrain_StaleVersion(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	d1 := newDepot(t, db)
	l := mustLoco(t, d1, 80000, 10000)
	w := mustWagon(t, d1, 40000, 50, 1000)

	tr, err := consist.NewTrain(l)
	require.NoError(t, err)
	require.NoError(t, d1.SaveTrain(ctx, tr))

	d2 := New(db, WithLogger(logging.NewNoopLogger()))
	stale, err := d2.LoadTrain(ctx, tr.ID())
	require.NoError(t, err)

	require.NoError(t, tr.AppendElement(w))
	require.NoError(t, d1.SaveTrain(ctx, tr))

	err = d2.SaveTrain(ctx, stale)
	assert.True(t, errors.IsErrorCode(err, errors.ErrCodeConflict), "got %v", err)

	reloaded, err := New(db, WithLogger(logging.NewNoopLogger())).LoadTrain(ctx, tr.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())
}

// 同一车辆在库中不能出现在两列列车里
func TestSaveTrain_ElementOwnedInStore(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	d1 := newDepot(t, db)
	l1 := mustLoco(t, d1, 80000, 10000)
	l2 := mustLoco(t, d1, 80000, 10000)
	w := mustWagon(t, d1, 40000, 50, 1000)

	a, err := consist.NewTrain(l1)
	require.NoError(t, err)
	require.NoError(t, a.AppendElement(w))
	require.NoError(t, d1.SaveTrain(ctx, a))

	// 另一个仓储实例看不到内存中的归属
	d2 := New(db, WithLogger(logging.NewNoopLogger()))
	loco, err := d2.Element(ctx, l2.Serial())
	require.NoError(t, err)
	wagon, err := d2.Element(ctx, w.Serial())
	require.NoError(t, err)
	b, err := consist.NewTrain(loco.(*consist.Locomotive))
	require.NoError(t, err)
	require.NoError(t, b.AppendElement(wagon))

	err = d2.SaveTrain(ctx, b)
	assert.True(t, errors.IsAlreadyAssigned(err), "got %v", err)

	ids, err := d1.ListTrains(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID()}, ids)
}

func TestSaveTrain_Dissolved(t *testing.T) {
	d := newDepot(t, openDB(t))
	tr, err := consist.NewTrain(mustLoco(t, d, 80000, 10000))
	require.NoError(t, err)
	tr.Dissolve()

	err = d.SaveTrain(context.Background(), tr)
	assert.True(t, errors.IsTrainDissolved(err))
	assert.True(t, errors.IsValidation(d.SaveTrain(context.Background(), nil)))
}

// 库中首位为车厢的编组无法重建，保留原错误码
func TestLoadTrain_BrokenComposition(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	d := newDepot(t, db)
	w := mustWagon(t, d, 40000, 50, 0)
	l := mustLoco(t, d, 80000, 10000)

	id := uuid.NewString()
	_, err := db.Exec(ctx, `INSERT INTO trains (id, version, updated_at) VALUES (?, ?, ?)`, id, 3, now())
	require.NoError(t, err)
	_, err = db.Exec(ctx, `INSERT INTO composition (train_id, position, serial) VALUES (?, ?, ?), (?, ?, ?)`,
		id, 0, w.Serial().String(), id, 1, l.Serial().String())
	require.NoError(t, err)

	_, err = d.LoadTrain(ctx, id)
	assert.True(t, errors.IsInvalidPlacement(err), "got %v", err)
	assert.Contains(t, err.Error(), id)
	assert.Nil(t, w.Train())
	assert.Nil(t, l.Train())
}

func TestDeleteTrainAndListings(t *testing.T) {
	ctx := context.Background()
	d := newDepot(t, openDB(t))
	l := mustLoco(t, d, 80000, 10000)
	w := mustWagon(t, d, 40000, 50, 1000)
	spare := mustWagon(t, d, 30000, 0, 20000)

	tr, err := consist.NewTrain(l)
	require.NoError(t, err)
	require.NoError(t, tr.AppendElement(w))
	require.NoError(t, d.SaveTrain(ctx, tr))

	all, err := d.ListElements(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	free, err := d.ListElements(ctx, true)
	require.NoError(t, err)
	require.Len(t, free, 1)
	assert.Same(t, spare, free[0])

	tr.Dissolve()
	require.NoError(t, d.DeleteTrain(ctx, tr.ID()))
	assert.True(t, errors.IsNotFound(d.DeleteTrain(ctx, tr.ID())))

	ids, err := d.ListTrains(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	free, err = d.ListElements(ctx, true)
	require.NoError(t, err)
	assert.Len(t, free, 3)
}
