package depot

import (
	"fmt"
	"time"

	"railkit/domain/consist"
)

// dateLayout 出厂日期的存储格式
const dateLayout = time.RFC3339

// stockRecord rolling_stock 表的一行
type stockRecord struct {
	Serial           string
	Kind             string
	TypeDesignation  string
	Manufacturer     string
	ConstructionDate string
	EmptyWeight      int
	Length           int
	MaxPassengers    int
	MaxGoods         int
	DriveType        string
	TractivePower    int
	Category         string
}

func (r *stockRecord) columns() []any {
	return []any{
		r.Serial, r.Kind, r.TypeDesignation, r.Manufacturer, r.ConstructionDate,
		r.EmptyWeight, r.Length, r.MaxPassengers, r.MaxGoods,
		r.DriveType, r.TractivePower, r.Category,
	}
}

func (r *stockRecord) targets() []any {
	return []any{
		&r.Serial, &r.Kind, &r.TypeDesignation, &r.Manufacturer, &r.ConstructionDate,
		&r.EmptyWeight, &r.Length, &r.MaxPassengers, &r.MaxGoods,
		&r.DriveType, &r.TractivePower, &r.Category,
	}
}

const stockColumns = `serial, kind, type_designation, manufacturer, construction_date,
	empty_weight, length, max_passengers, max_goods, drive_type, tractive_power, category`

func recordOf(e consist.Element) stockRecord {
	r := stockRecord{
		Serial:           e.Serial().String(),
		Kind:             string(e.Kind()),
		TypeDesignation:  e.TypeDesignation(),
		Manufacturer:     e.Manufacturer(),
		ConstructionDate: e.ConstructionDate().UTC().Format(dateLayout),
		EmptyWeight:      e.EmptyWeight(),
		Length:           e.Length(),
		MaxPassengers:    e.MaxPassengerCount(),
		MaxGoods:         e.MaxGoodsWeight(),
	}
	switch v := e.(type) {
	case *consist.Locomotive:
		r.DriveType = string(v.DriveType())
		r.TractivePower = v.TractivePower()
	case *consist.Wagon:
		r.Category = string(v.Category())
	}
	return r
}

// element 由存储行重建车辆，序列号沿用库中的值
func (r *stockRecord) element() (consist.Element, error) {
	serial, err := consist.ParseSerial(r.Serial)
	if err != nil {
		return nil, err
	}
	built, err := time.Parse(dateLayout, r.ConstructionDate)
	if err != nil {
		return nil, fmt.Errorf("construction date of %s: %w", r.Serial, err)
	}
	attrs := consist.Attributes{
		EmptyWeight:       r.EmptyWeight,
		Length:            r.Length,
		MaxPassengerCount: r.MaxPassengers,
		MaxGoodsWeight:    r.MaxGoods,
		TypeDesignation:   r.TypeDesignation,
		Manufacturer:      r.Manufacturer,
		ConstructionDate:  built,
	}
	switch consist.ElementKind(r.Kind) {
	case consist.KindLocomotive:
		return consist.NewLocomotive(consist.FixedSerial(serial), consist.LocomotiveSpec{
			Attributes:    attrs,
			DriveType:     consist.DriveType(r.DriveType),
			TractivePower: r.TractivePower,
		})
	case consist.KindWagon:
		return consist.NewWagon(consist.FixedSerial(serial), consist.WagonSpec{
			Attributes: attrs,
			Category:   consist.WagonCategory(r.Category),
		})
	default:
		return nil, fmt.Errorf("unknown rolling stock kind %q for %s", r.Kind, r.Serial)
	}
}
