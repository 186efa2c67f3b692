package layout

import "fmt"

// Plan is the outcome of the crossover search: how many sieving primes are used
// and how many descriptor rows each lane walks.
type Plan struct {
	Scheme        Scheme     `json:"scheme"`
	Requested     int        `json:"requested"`
	PrimeCount    int        `json:"prime_count"`
	RowsPerThread int        `json:"rows_per_thread"`
	Crossovers    Crossovers `json:"crossovers"`
	Iterations    int        `json:"iterations"`
}

// Solve rounds requested down to the lane grid above the scheme prefix, then
// walks up one group at a time until every band holds a row count its delta
// groups divide evenly. At least one row is always planned.
func Solve(requested int, scheme Scheme) (Plan, error) {
	if err := scheme.Validate(); err != nil {
		return Plan{}, err
	}
	prefix := scheme.Prefix()
	c := scheme.Crossovers()
	rows := 1
	if requested > prefix {
		rows = max((requested-prefix)/LaneWidth, 1)
	}
	plan := Plan{Scheme: scheme, Requested: requested, Crossovers: c}
	for ; !c.accepts(rows); rows++ {
		plan.Iterations++
	}
	if rows > MaxRowsPerThread {
		return Plan{}, fmt.Errorf("layout: %d requested primes need %d rows, table holds %d", requested, rows, MaxRowsPerThread)
	}
	plan.RowsPerThread = rows
	plan.PrimeCount = rows*LaneWidth + prefix
	return plan, nil
}

// accepts reports whether rows satisfies the divisibility rule of every band.
func (c Crossovers) accepts(rows int) bool {
	// rows after the first sub-64K row come in groups of 3
	if rows > 1 && (min(rows, c.Below64K)-1)%3 != 0 {
		return false
	}
	// the row straddling 64K is never the last one
	if rows == c.Below64K+1 {
		return false
	}
	if rows > c.Below64K+1 && c.loop64K(rows)%3 != 1 {
		return false
	}
	if rows > c.Below128K+1 && c.loop128K(rows)%4 != 1 {
		return false
	}
	if rows > c.Below1M && c.loop1M(rows)%4 != 1 {
		return false
	}
	return true
}

func (c Crossovers) loop64K(rows int) int {
	return min(rows, c.Below128K+1) - (c.Below64K + 1)
}

func (c Crossovers) loop128K(rows int) int {
	return min(rows, c.Below1M) - (c.Below128K + 1)
}

func (c Crossovers) loop1M(rows int) int { return rows - c.Below1M }

// Validate reports whether p could have been produced by Solve.
func (p Plan) Validate() error {
	if err := p.Scheme.Validate(); err != nil {
		return err
	}
	if p.Crossovers != p.Scheme.Crossovers() {
		return fmt.Errorf("layout: plan crossovers %+v do not match scheme", p.Crossovers)
	}
	if p.RowsPerThread < 1 || p.RowsPerThread > MaxRowsPerThread {
		return fmt.Errorf("layout: rows per thread %d out of range", p.RowsPerThread)
	}
	if p.PrimeCount != p.RowsPerThread*LaneWidth+p.Scheme.Prefix() {
		return fmt.Errorf("layout: prime count %d is off the lane grid for %d rows", p.PrimeCount, p.RowsPerThread)
	}
	if !p.Crossovers.accepts(p.RowsPerThread) {
		return fmt.Errorf("layout: %d rows per thread violate band divisibility", p.RowsPerThread)
	}
	return nil
}

// bandRows splits RowsPerThread across the data bands. Delta regions count
// their dense transition row.
type bandRows struct {
	below64K, straddle64K, delta64K, delta128K, delta1M int
}

func (p Plan) bandRows() bandRows {
	c, r := p.Crossovers, p.RowsPerThread
	b := bandRows{below64K: min(r, c.Below64K)}
	b.straddle64K = min(r, c.Below64K+1) - b.below64K
	if r > c.Below64K+1 {
		b.delta64K = c.loop64K(r)
	}
	if r > c.Below128K+1 {
		b.delta128K = c.loop128K(r)
	}
	if r > c.Below1M {
		b.delta1M = c.loop1M(r)
	}
	return b
}

// PrimeInfoBytes is the exact size of the primeInfo stream Encode produces.
func (p Plan) PrimeInfoBytes() int {
	b := p.bandRows()
	n := prefixPadBytes
	n += b.below64K * LaneWidth * denseSmallBytes
	n += b.straddle64K * LaneWidth * denseBytes
	for _, loop := range []int{b.delta64K, b.delta128K, b.delta1M} {
		if loop > 0 {
			n += LaneWidth*denseBytes + (loop-1)*LaneWidth*deltaBytes
		}
	}
	return n
}

// RowTableBytes is the size of the serialised row descriptor table: four
// descriptor columns followed by a (prime, inverse) pair per sieving prime.
func (p Plan) RowTableBytes() int {
	return (4*MaxRowsPerThread + 2*p.PrimeCount) * 4
}

// LaneGroups is the group count of the per-prime setup kernels: one group per
// data row plus one for the prefix.
func (p Plan) LaneGroups() int { return p.RowsPerThread + 1 }
