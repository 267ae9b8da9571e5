// Package srcflags partitions the sources of one compiled component into
// disjoint buckets and computes the extra compiler flags of each bucket.
//
// Rules are recorded during a configuration phase: ForSourceFile claims a
// single file immediately, ForSourceMatching records a predicate that claims
// its files when Finalize runs. Predicate rules also contribute their flags to
// every singleton bucket whose file they match, regardless of which of the two
// was registered first. Finalize assigns the remaining files, in rule
// registration order, and leaves the rest in a default bucket.
//
// An Engine is not safe for concurrent use.
package srcflags

import (
	"fmt"
	"strconv"
)

// Engine owns the source pool and the bucket registry of one component
type Engine struct {
	pool       *Pool
	buckets    []*Bucket
	singletons map[File]*Bucket
	rules      []*Rule
	finalized  bool
}

// New creates an engine over the declared source universe
func New(universe []File) *Engine {
	return &Engine{
		pool:       NewPool(universe),
		singletons: make(map[File]*Bucket),
	}
}

// ForSourceFile returns the flags of the singleton bucket for file, creating
// the bucket on first use.
func (e *Engine) ForSourceFile(file File) (*FlagSet, error) {
	b, err := e.singleton(file)
	if err != nil {
		return nil, err
	}
	return b.own, nil
}

func (e *Engine) singleton(file File) (*Bucket, error) {
	file = Canonical(string(file))
	if b, ok := e.singletons[file]; ok {
		return b, nil
	}
	if e.finalized {
		return nil, fmt.Errorf("%w: cannot add source file %s", ErrAlreadyFinalized, file)
	}

	claimed, err := e.pool.ClaimFile(file)
	if err != nil {
		return nil, err
	}

	b := e.newBucket(KindSingleton, []File{claimed})
	for _, r := range e.rules {
		if r.pred(claimed) {
			b.matched = append(b.matched, r)
		}
	}
	e.singletons[file] = b
	return b, nil
}

// ForSourceMatching registers a predicate rule and returns its flags. The rule
// claims its files at Finalize; until then, and afterwards, its flags also
// apply to every matching singleton bucket.
func (e *Engine) ForSourceMatching(pred Predicate) (*FlagSet, error) {
	if e.finalized {
		return nil, fmt.Errorf("%w: cannot add source rule", ErrAlreadyFinalized)
	}

	r := &Rule{pred: pred, flags: newFlagSet()}
	e.rules = append(e.rules, r)

	for _, b := range e.buckets {
		if b.Kind == KindSingleton && pred(b.files[0]) {
			b.matched = append(b.matched, r)
		}
	}
	return r.flags, nil
}

// Finalize drains the pool into one bucket per rule, in registration order,
// and puts the leftover files into the default bucket. Every flag set is
// frozen afterwards.
func (e *Engine) Finalize() ([]*Bucket, error) {
	if e.finalized {
		return nil, ErrAlreadyFinalized
	}
	e.finalized = true

	for _, r := range e.rules {
		b := e.newBucket(KindClaim, e.pool.Claim(r.pred))
		// claim buckets only ever see their owning rule's flags
		b.own.add(r.flags.items...)
	}
	e.newBucket(KindDefault, e.pool.Remaining())

	for _, b := range e.buckets {
		b.own.freeze()
	}
	for _, r := range e.rules {
		r.flags.freeze()
	}

	return e.Buckets(), nil
}

// Finalized reports whether Finalize has run
func (e *Engine) Finalized() bool { return e.finalized }

// Buckets returns the buckets created so far, in creation order
func (e *Engine) Buckets() []*Bucket {
	out := make([]*Bucket, len(e.buckets))
	copy(out, e.buckets)
	return out
}

// Rules returns the registered predicate rules, in registration order
func (e *Engine) Rules() []*Rule {
	out := make([]*Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Remaining returns the files not claimed by any bucket yet
func (e *Engine) Remaining() []File { return e.pool.Remaining() }

func (e *Engine) newBucket(kind Kind, files []File) *Bucket {
	b := &Bucket{
		ID:    "sources" + strconv.Itoa(len(e.buckets)),
		Kind:  kind,
		files: files,
		own:   newFlagSet(),
	}
	e.buckets = append(e.buckets, b)
	return b
}
