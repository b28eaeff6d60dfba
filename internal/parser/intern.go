package parser

// StringIntern deduplicates string cells while a table is built. Category
// columns repeat a handful of values across every row, so sharing the
// backing memory keeps large uploads small.
//
// A StringIntern is owned by one parse and is not safe for concurrent use.
type StringIntern struct {
	pool map[string]string
}

// MaxInternPoolSize stops interning once a column set turns out to be mostly unique.
const MaxInternPoolSize = 100000

// NewStringIntern creates an empty pool.
func NewStringIntern() *StringIntern {
	return &StringIntern{pool: make(map[string]string, 256)}
}

// Intern returns the pooled copy of s, storing s if it is new.
func (si *StringIntern) Intern(s string) string {
	if pooled, ok := si.pool[s]; ok {
		return pooled
	}
	if len(si.pool) >= MaxInternPoolSize {
		return s
	}
	si.pool[s] = s
	return s
}

// Len returns the number of unique strings in the pool.
func (si *StringIntern) Len() int {
	return len(si.pool)
}
