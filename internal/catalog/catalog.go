package catalog

import (
	"strings"
	"time"
)

// Catalog is an immutable merged record set with its lookup indices. The
// indices are built together with the record slice, so they never disagree.
type Catalog struct {
	Version  uint64
	LoadedAt time.Time

	records []Record
	byID    map[string]int
	byGroup map[Group][]int
}

// Merge combines record batches by ID. A later batch overrides an earlier one
// (last write wins) while the record keeps the position of its first
// appearance, so merging the same input twice yields the same catalog.
func Merge(batches ...[]Record) *Catalog {
	c := &Catalog{byID: make(map[string]int)}
	for _, batch := range batches {
		for _, rec := range batch {
			if idx, ok := c.byID[rec.ID]; ok {
				c.records[idx] = rec
				continue
			}
			c.byID[rec.ID] = len(c.records)
			c.records = append(c.records, rec)
		}
	}

	c.byGroup = make(map[Group][]int)
	for i, rec := range c.records {
		c.byGroup[rec.Group] = append(c.byGroup[rec.Group], i)
	}
	return c
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// Records returns the records in catalog order. The slice must not be modified.
func (c *Catalog) Records() []Record {
	if c == nil {
		return nil
	}
	return c.records
}

// At returns the record at catalog position i.
func (c *Catalog) At(i int) *Record {
	return &c.records[i]
}

// ByID looks up a record by catalog number.
func (c *Catalog) ByID(id string) (Record, bool) {
	if c == nil {
		return Record{}, false
	}
	idx, ok := c.byID[id]
	if !ok {
		return Record{}, false
	}
	return c.records[idx], true
}

// ByGroup returns the records of one category in catalog order. GroupAll
// returns every record.
func (c *Catalog) ByGroup(g Group) []Record {
	if c == nil {
		return nil
	}
	if g == GroupAll {
		return c.records
	}
	idx := c.byGroup[g]
	out := make([]Record, len(idx))
	for i, j := range idx {
		out[i] = c.records[j]
	}
	return out
}

// EachInGroup calls fn for every record of g in catalog order until fn
// returns false. GroupAll visits every record.
func (c *Catalog) EachInGroup(g Group, fn func(rec *Record) bool) {
	if c == nil {
		return
	}
	if g == GroupAll {
		for i := range c.records {
			if !fn(&c.records[i]) {
				return
			}
		}
		return
	}
	for _, i := range c.byGroup[g] {
		if !fn(&c.records[i]) {
			return
		}
	}
}

// GroupCounts returns the number of records per category.
func (c *Catalog) GroupCounts() map[Group]int {
	counts := make(map[Group]int, len(Groups))
	if c == nil {
		return counts
	}
	for g, idx := range c.byGroup {
		counts[g] = len(idx)
	}
	return counts
}

// EpochRange returns the oldest and newest element-set epochs.
func (c *Catalog) EpochRange() (oldest, newest time.Time) {
	for i, rec := range c.Records() {
		e := rec.Elements.Epoch
		if i == 0 || e.Before(oldest) {
			oldest = e
		}
		if i == 0 || e.After(newest) {
			newest = e
		}
	}
	return oldest, newest
}

// Search returns records whose name, ID, operator, mission or country contains
// q, ignoring case. An empty query returns every record.
func (c *Catalog) Search(q string) []Record {
	return Search(c.Records(), q)
}

// Search filters records by case-insensitive substring match over the
// searchable fields, preserving order.
func Search(records []Record, q string) []Record {
	if q == "" {
		return records
	}
	q = strings.ToLower(q)
	var out []Record
	for _, rec := range records {
		if matches(rec, q) {
			out = append(out, rec)
		}
	}
	return out
}

func matches(rec Record, q string) bool {
	for _, f := range [...]string{rec.Name, rec.ID, rec.Operator, rec.Mission, rec.Country} {
		if f != "" && strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
