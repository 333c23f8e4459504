package main

import (
	"github.com/google/btree"
)

const accumulatorDegree = 8

// RangeV4 holds inclusive bounds of an IPv4 range as host integers.
type RangeV4 struct {
	Start uint32
	End   uint32
}

// RangeV6 holds inclusive bounds of an IPv6 range in network byte order.
type RangeV6 struct {
	Start [16]byte
	End   [16]byte
}

// CountryPool is append-only: ranges keep input order and are never
// deduplicated.
type CountryPool struct {
	Code   string
	PoolV4 []RangeV4
	PoolV6 []RangeV6
}

func (p *CountryPool) Less(than btree.Item) bool {
	return p.Code < than.(*CountryPool).Code
}

// Accumulator maps country codes to pools across every collected source.
// Iteration is in lexicographic order of the code.
type Accumulator struct {
	tree *btree.BTree
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		tree: btree.New(accumulatorDegree),
	}
}

// Pool returns the pool for code, creating an empty one on first use.
func (a *Accumulator) Pool(code string) *CountryPool {
	if item := a.tree.Get(&CountryPool{Code: code}); item != nil {
		return item.(*CountryPool)
	}
	pool := &CountryPool{Code: code}
	a.tree.ReplaceOrInsert(pool)

	return pool
}

// Lookup returns the pool for code without creating it.
func (a *Accumulator) Lookup(code string) (*CountryPool, bool) {
	item := a.tree.Get(&CountryPool{Code: code})
	if item == nil {
		return nil, false
	}
	return item.(*CountryPool), true
}

func (a *Accumulator) Len() int {
	return a.tree.Len()
}

// Ascend calls fn for every pool in code order until fn returns false.
func (a *Accumulator) Ascend(fn func(pool *CountryPool) bool) {
	a.tree.Ascend(func(item btree.Item) bool {
		return fn(item.(*CountryPool))
	})
}

// Codes lists the country codes in emission order.
func (a *Accumulator) Codes() []string {
	codes := make([]string, 0, a.Len())
	a.Ascend(func(pool *CountryPool) bool {
		codes = append(codes, pool.Code)
		return true
	})
	return codes
}
