package instagram

import (
	"iggrowth/pkg/logger"
)

// Page is one page of a cursor-paginated listing. An empty NextCursor ends
// the sequence.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// FetchPage fetches the page at the given cursor; the empty cursor means the
// first page.
type FetchPage[T any] func(cursor string) (Page[T], error)

// Pager lazily walks a cursor-paginated listing. It is finite, restartable
// via Reset, and single-goroutine like everything else touching the session.
// A cursor the pager has already seen is treated as a data inconsistency:
// logged, and the sequence ends with what was produced so far.
type Pager[T any] struct {
	fetch  FetchPage[T]
	log    logger.Logger
	buf    []T
	cursor string
	seen   map[string]struct{}
	begun  bool
	done   bool
}

// NewPager creates a pager over fetch
func NewPager[T any](fetch FetchPage[T], log logger.Logger) *Pager[T] {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Pager[T]{fetch: fetch, log: log, seen: make(map[string]struct{})}
}

// Next returns the next item. ok is false once the sequence is exhausted.
func (p *Pager[T]) Next() (item T, ok bool, err error) {
	for len(p.buf) == 0 {
		if p.done {
			return item, false, nil
		}
		if err := p.advance(); err != nil {
			return item, false, err
		}
	}
	item = p.buf[0]
	p.buf = p.buf[1:]
	return item, true, nil
}

// advance fetches the next page into the buffer
func (p *Pager[T]) advance() error {
	page, err := p.fetch(p.cursor)
	if err != nil {
		p.done = true
		return err
	}
	p.begun = true
	p.buf = append(p.buf, page.Items...)

	next := page.NextCursor
	if next == "" {
		p.done = true
		return nil
	}
	if _, repeated := p.seen[next]; repeated {
		p.log.WarnWithFields("pagination cursor repeated, ending sequence", map[string]interface{}{
			"cursor": next,
		})
		p.done = true
		return nil
	}
	p.seen[next] = struct{}{}
	p.cursor = next
	return nil
}

// Collect drains up to limit items (limit <= 0 drains everything)
func (p *Pager[T]) Collect(limit int) ([]T, error) {
	var out []T
	for limit <= 0 || len(out) < limit {
		item, ok, err := p.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		out = append(out, item)
	}
	return out, nil
}

// Each calls fn for every remaining item, stopping early when fn returns
// false
func (p *Pager[T]) Each(fn func(T) bool) error {
	for {
		item, ok, err := p.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if !fn(item) {
			return nil
		}
	}
}

// Reset restarts the sequence from the first page
func (p *Pager[T]) Reset() {
	p.buf = nil
	p.cursor = ""
	p.seen = make(map[string]struct{})
	p.begun = false
	p.done = false
}
