package consist_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"railkit/domain/consist"
)

var testNamespace = uuid.MustParse("6f1c3c2e-6a55-4c1e-9a52-3d0e1f7c9b11")

var builtAt = time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	t       *testing.T
	serials consist.SerialSource
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, serials: consist.HashedSerials(testNamespace)}
}

// loco 创建机车：tractive 为额定牵引功率，passengers/goods 为载客与载货能力
func (f *fixture) loco(weight, tractive, passengers, goods int) *consist.Locomotive {
	f.t.Helper()
	l, err := consist.NewLocomotive(f.serials, consist.LocomotiveSpec{
		Attributes: consist.Attributes{
			EmptyWeight:       weight,
			Length:            19000,
			MaxPassengerCount: passengers,
			MaxGoodsWeight:    goods,
			TypeDesignation:   "BR 101",
			Manufacturer:      "ADtranz",
			ConstructionDate:  builtAt,
		},
		DriveType:     consist.DriveElectric,
		TractivePower: tractive,
	})
	require.NoError(f.t, err)
	return l
}

func (f *fixture) wagon(weight, passengers, goods int) *consist.Wagon {
	f.t.Helper()
	w, err := consist.NewWagon(f.serials, consist.WagonSpec{
		Attributes: consist.Attributes{
			EmptyWeight:       weight,
			Length:            26400,
			MaxPassengerCount: passengers,
			MaxGoodsWeight:    goods,
			TypeDesignation:   "Bpmz 291",
			Manufacturer:      "Siemens",
			ConstructionDate:  builtAt,
		},
		Category: consist.CategoryPassenger,
	})
	require.NoError(f.t, err)
	return w
}

func (f *fixture) train(loco *consist.Locomotive) *consist.Train {
	f.t.Helper()
	tr, err := consist.NewTrain(loco)
	require.NoError(f.t, err)
	return tr
}

// snapshot 记录序列与归属，用于验证失败操作不产生副作用
type snapshot struct {
	serials []consist.Serial
	owners  map[consist.Serial]*consist.Train
	version uint64
}

func takeSnapshot(tr *consist.Train, extra ...consist.Element) snapshot {
	s := snapshot{owners: make(map[consist.Serial]*consist.Train), version: tr.Version()}
	for _, e := range tr.Elements() {
		s.serials = append(s.serials, e.Serial())
		s.owners[e.Serial()] = e.Train()
	}
	for _, e := range extra {
		s.owners[e.Serial()] = e.Train()
	}
	return s
}

func requireUnchanged(t *testing.T, before snapshot, tr *consist.Train, extra ...consist.Element) {
	t.Helper()
	after := takeSnapshot(tr, extra...)
	require.Equal(t, before.serials, after.serials, "sequence changed")
	require.Equal(t, before.owners, after.owners, "owners changed")
	require.Equal(t, before.version, after.version, "version changed")
}

// requireInvariants 检查首位机车、无重复与归属一致
func requireInvariants(t *testing.T, tr *consist.Train) {
	t.Helper()
	elems := tr.Elements()
	require.NotEmpty(t, elems)
	require.Equal(t, consist.KindLocomotive, elems[0].Kind())
	seen := make(map[consist.Serial]bool)
	for _, e := range elems {
		require.False(t, seen[e.Serial()], "duplicate %s", e.Serial())
		seen[e.Serial()] = true
		require.Same(t, tr, e.Train())
	}
}
