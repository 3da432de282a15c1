package orders

import (
	"sort"
	"time"
)

// StockDecrement is one conditional write against the stock ledger: take
// Quantity units from SKUID only while stock >= Quantity and the row still
// carries Version.
type StockDecrement struct {
	SKUID     int64
	Quantity  int
	Available int
	Version   time.Time
}

type StockRestore struct {
	SKUID    int64
	Quantity int
}

// Decrements aggregates cart lines per SKU, sorted by SKU id so every
// writer touches rows in the same order.
func Decrements(lines []CartLine) []StockDecrement {
	idx := make(map[int64]int, len(lines))
	var out []StockDecrement
	for _, l := range lines {
		if i, ok := idx[l.SKU.ID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		idx[l.SKU.ID] = len(out)
		out = append(out, StockDecrement{
			SKUID:     l.SKU.ID,
			Quantity:  l.Quantity,
			Available: l.SKU.Stock,
			Version:   l.SKU.UpdatedAt,
		})
	}
	sortByID(out, func(d StockDecrement) int64 { return d.SKUID })
	return out
}

// Restorations sums snapshot quantities per SKU. Snapshots whose SKU has
// been deleted are skipped.
func Restorations(items []ProductSKUSnapshot) []StockRestore {
	idx := make(map[int64]int, len(items))
	var out []StockRestore
	for _, it := range items {
		if it.SKUID == nil {
			continue
		}
		if i, ok := idx[*it.SKUID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[*it.SKUID] = len(out)
		out = append(out, StockRestore{SKUID: *it.SKUID, Quantity: it.Quantity})
	}
	sortByID(out, func(r StockRestore) int64 { return r.SKUID })
	return out
}

func sortByID[T any](xs []T, id func(T) int64) {
	sort.Slice(xs, func(i, j int) bool { return id(xs[i]) < id(xs[j]) })
}
