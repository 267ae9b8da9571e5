package srcflags

import "strconv"

// Kind tells how a bucket claimed its files
type Kind int

const (
	// KindSingleton buckets hold one file claimed by identity
	KindSingleton Kind = iota
	// KindClaim buckets hold the files a predicate rule claimed at finalize
	KindClaim
	// KindDefault is the bucket of files no rule claimed
	KindDefault
)

func (k Kind) String() string {
	switch k {
	case KindSingleton:
		return "singleton"
	case KindClaim:
		return "claim"
	case KindDefault:
		return "default"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Bucket is a disjoint group of source files compiled with the same flags
type Bucket struct {
	ID    string
	Kind  Kind
	files []File
	own   *FlagSet

	// rules whose predicate matches the file of a singleton bucket
	matched []*Rule
}

// Files returns the files of the bucket
func (b *Bucket) Files() []File {
	out := make([]File, len(b.files))
	copy(out, b.files)
	return out
}

// Flags returns the extra compiler flags for the bucket. For singleton buckets
// this is the union of the bucket's own flags and the flags of every matching
// rule, read at call time.
func (b *Bucket) Flags() []string {
	if b.Kind != KindSingleton {
		return b.own.Values()
	}
	sets := make([]*FlagSet, 0, len(b.matched)+1)
	sets = append(sets, b.own)
	for _, r := range b.matched {
		sets = append(sets, r.flags)
	}
	return union(sets...)
}

// Rule adds flags to every file its predicate matches
type Rule struct {
	pred  Predicate
	flags *FlagSet
}

// Flags returns the rule's flag set
func (r *Rule) Flags() *FlagSet { return r.flags }
