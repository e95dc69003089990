package replenishment

import (
	"sort"
	"time"
)

// StockLevel is the live stock position of one catalog item.
type StockLevel struct {
	ItemID          int64
	ItemName        string
	Threshold       int64
	AverageRequired int64
	OnHand          int64
}

// Candidate is one line the calculator proposes to order.
type Candidate struct {
	ItemID          int64  `json:"item_id"`
	ItemName        string `json:"item_name"`
	SupplierID      int64  `json:"supplier_id"`
	OnHand          int64  `json:"on_hand"`
	Threshold       int64  `json:"threshold"`
	AverageRequired int64  `json:"average_required"`
	NeededQuantity  int64  `json:"needed_quantity"`
}

// SupplierGroup collects the candidates that go on one order.
type SupplierGroup struct {
	SupplierID int64       `json:"supplier_id"`
	Lines      []Candidate `json:"lines"`
}

// Plan is the outcome of one scan. Items without a supplier are absent.
type Plan struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Groups      []SupplierGroup `json:"groups"`
}

// Candidates flattens the plan in supplier then item order.
func (p Plan) Candidates() []Candidate {
	var out []Candidate
	for _, group := range p.Groups {
		out = append(out, group.Lines...)
	}
	return out
}

// Needed reports the quantity to order for a stock level and whether the
// item qualifies at all. Both conditions must hold: stock is below the
// threshold and below the average requirement.
func Needed(level StockLevel) (int64, bool) {
	if level.OnHand >= level.Threshold {
		return 0, false
	}
	needed := level.AverageRequired - level.OnHand
	if needed <= 0 {
		return 0, false
	}
	return needed, true
}

// Calculate builds the plan from stock levels and the primary supplier of
// each item. Groups are ordered by supplier id and lines by item id.
func Calculate(levels []StockLevel, primary map[int64]int64, now time.Time) Plan {
	bySupplier := make(map[int64][]Candidate)
	for _, level := range levels {
		needed, ok := Needed(level)
		if !ok {
			continue
		}
		supplierID, ok := primary[level.ItemID]
		if !ok {
			continue
		}
		bySupplier[supplierID] = append(bySupplier[supplierID], Candidate{
			ItemID:          level.ItemID,
			ItemName:        level.ItemName,
			SupplierID:      supplierID,
			OnHand:          level.OnHand,
			Threshold:       level.Threshold,
			AverageRequired: level.AverageRequired,
			NeededQuantity:  needed,
		})
	}

	plan := Plan{GeneratedAt: now, Groups: make([]SupplierGroup, 0, len(bySupplier))}
	for supplierID, lines := range bySupplier {
		sort.Slice(lines, func(i, j int) bool { return lines[i].ItemID < lines[j].ItemID })
		plan.Groups = append(plan.Groups, SupplierGroup{SupplierID: supplierID, Lines: lines})
	}
	sort.Slice(plan.Groups, func(i, j int) bool { return plan.Groups[i].SupplierID < plan.Groups[j].SupplierID })
	return plan
}
