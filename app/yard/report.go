package yard

import (
	"context"
	"fmt"
	"strings"

	"railkit/domain/consist"
)

// ElementSummary 报表中的一行
type ElementSummary struct {
	Position        int                 `json:"position"`
	Serial          string              `json:"serial"`
	Kind            consist.ElementKind `json:"kind"`
	TypeDesignation string              `json:"type_designation"`
	Manufacturer    string              `json:"manufacturer"`
	// Variant 机车为驱动方式，车厢为类别
	Variant string `json:"variant"`
}

// Report 列车报表
type Report struct {
	TrainID  string           `json:"train_id"`
	Version  uint64           `json:"version"`
	Metrics  consist.Metrics  `json:"metrics"`
	Elements []ElementSummary `json:"elements"`
}

// Report 生成列车报表
func (s *Service) Report(ctx context.Context, trainID string) (*Report, error) {
	t, err := s.depot.LoadTrain(ctx, trainID)
	if err != nil {
		return nil, err
	}
	return NewReport(t), nil
}

// NewReport 基于同一快照生成报表
func NewReport(t *consist.Train) *Report {
	version, elements := t.Snapshot()
	r := &Report{
		TrainID:  t.ID(),
		Version:  version,
		Metrics:  consist.ComputeMetrics(elements),
		Elements: make([]ElementSummary, 0, len(elements)),
	}
	for i, e := range elements {
		sum := ElementSummary{
			Position:        i,
			Serial:          e.Serial().String(),
			Kind:            e.Kind(),
			TypeDesignation: e.TypeDesignation(),
			Manufacturer:    e.Manufacturer(),
		}
		switch v := e.(type) {
		case *consist.Locomotive:
			sum.Variant = v.DriveType().String()
		case *consist.Wagon:
			sum.Variant = v.Category().String()
		}
		r.Elements = append(r.Elements, sum)
	}
	return r
}

func (r *Report) String() string {
	var sb strings.Builder
	m := r.Metrics
	fmt.Fprintf(&sb, "Train %s (v%d)\n", r.TrainID, r.Version)
	for _, e := range r.Elements {
		fmt.Fprintf(&sb, "%d : %s %s/%s [%s]\n", e.Position, e.Kind, e.TypeDesignation, e.Manufacturer, e.Variant)
	}
	fmt.Fprintf(&sb, "length=%d empty=%d max=%d power=%d operational=%t conductors=%d\n",
		m.Length, m.EmptyWeight, m.MaxWeight, m.TotalPower, m.Operational, m.RequiredConductors)
	return sb.String()
}
