// Package normalize turns a JSON document into a single flat table.
//
// An object becomes one record and an array of objects becomes one record
// per element. Nested objects contribute columns named by their dotted
// path; nested arrays of objects multiply the record's rows, one row per
// element, with every other cell of the record repeated. Arrays of scalars
// and arrays of mixed content are kept whole as a single cell.
//
// When one record holds several nested arrays of objects, the record's rows
// are the cartesian product of them, in document order:
//
//	{"a": [{"x": 1}, {"x": 2}], "b": [{"y": 3}, {"y": 4}]}
//
// yields rows (1,3) (1,4) (2,3) (2,4) under columns a.x and b.y. No nested
// row is ever dropped or paired by position with a row of an unrelated
// array.
package normalize

import (
	"fmt"
	"time"

	"github.com/backyonatan-alt/restable/internal/jsonvalue"
	"github.com/backyonatan-alt/restable/internal/table"
)

// DefaultSeparator joins the keys of a column path.
const DefaultSeparator = "."

// DefaultMaxRows bounds the rows of one table when Options.MaxRows is unset.
const DefaultMaxRows = 100_000

type Options struct {
	Separator string   // defaults to DefaultSeparator
	MaxRows   int      // defaults to DefaultMaxRows
	Observer  Observer // optional
}

// Normalizer is stateless once built and safe for concurrent use.
type Normalizer struct {
	sep      string
	maxRows  int
	observer Observer
}

func New(opts Options) *Normalizer {
	sep := opts.Separator
	if sep == "" {
		sep = DefaultSeparator
	}
	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Normalizer{sep: sep, maxRows: maxRows, observer: opts.Observer}
}

// Normalize flattens v with the default options.
func Normalize(v jsonvalue.Value) (*table.Table, error) {
	return New(Options{}).Normalize(v)
}

// Normalize flattens v into a table. It fails with an *UnsupportedShapeError
// unless v is an object, an empty array or an array of objects, and with a
// *RowLimitError when nested arrays would expand past the row limit.
func (n *Normalizer) Normalize(v jsonvalue.Value) (*table.Table, error) {
	shape := Classify(v)
	n.notify(Event{Type: EventStart, Shape: shape})

	var (
		f   *frame
		err error
	)
	switch {
	case shape == ShapeObject:
		f, err = n.flattenObject(v, "")
	case v.Kind() == jsonvalue.Array && v.Len() == 0:
		f = newFrame(0)
	case shape == ShapeArrayOfObjects:
		f, err = n.flattenRecords(v, "")
	default:
		return nil, &UnsupportedShapeError{Shape: shape, Kind: v.Kind()}
	}
	if err != nil {
		return nil, err
	}

	t := table.New(f.columns, f.rows)
	n.notify(Event{Type: EventEnd, Shape: shape, Rows: t.Len(), Columns: t.Width()})
	return t, nil
}

// flattenRecords stacks the records of an array of objects.
func (n *Normalizer) flattenRecords(arr jsonvalue.Value, prefix string) (*frame, error) {
	f := newFrame(0)
	for _, item := range arr.Items() {
		sub, err := n.flattenObject(item, prefix)
		if err != nil {
			return nil, err
		}
		if total := len(f.rows) + len(sub.rows); total > n.maxRows {
			return nil, &RowLimitError{Path: prefix, Rows: total, Limit: n.maxRows}
		}
		f.stack(sub)
	}
	return f, nil
}

// flattenObject turns one object into one or more rows.
func (n *Normalizer) flattenObject(obj jsonvalue.Value, prefix string) (*frame, error) {
	f := newFrame(1)
	for _, m := range obj.Members() {
		name := n.path(prefix, m.Key)
		var (
			sub *frame
			err error
		)
		switch shape := Classify(m.Value); shape {
		case ShapeScalar, ShapeArrayOfScalars:
			f.broadcast(name, m.Value)
			continue
		case ShapeMixedArray:
			n.notify(Event{Type: EventShape, Path: name, Shape: shape})
			f.broadcast(name, m.Value)
			continue
		case ShapeObject:
			n.notify(Event{Type: EventShape, Path: name, Shape: shape})
			sub, err = n.flattenObject(m.Value, name)
		case ShapeArrayOfObjects:
			n.notify(Event{Type: EventShape, Path: name, Shape: shape})
			sub, err = n.flattenRecords(m.Value, name)
			if err == nil && len(sub.rows) > 1 {
				n.notify(Event{Type: EventRowExpansion, Path: name, Shape: shape, Rows: len(sub.rows)})
			}
		default:
			panic(fmt.Sprintf("normalize: unhandled shape %v at %q", shape, name))
		}
		if err != nil {
			return nil, err
		}
		if total := len(f.rows) * len(sub.rows); total > n.maxRows {
			return nil, &RowLimitError{Path: name, Rows: total, Limit: n.maxRows}
		}
		f.join(sub)
	}
	return f, nil
}

func (n *Normalizer) path(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + n.sep + key
}

func (n *Normalizer) notify(e Event) {
	if n.observer == nil {
		return
	}
	e.Timestamp = time.Now()
	n.observer.OnEvent(e)
}

// frame is a table under construction. Rows may be shorter than columns;
// missing trailing cells are null.
type frame struct {
	columns []string
	index   map[string]int
	rows    [][]jsonvalue.Value
}

func newFrame(rows int) *frame {
	return &frame{
		index: make(map[string]int),
		rows:  make([][]jsonvalue.Value, rows),
	}
}

func (f *frame) column(name string) int {
	if i, ok := f.index[name]; ok {
		return i
	}
	f.index[name] = len(f.columns)
	f.columns = append(f.columns, name)
	return len(f.columns) - 1
}

// broadcast sets column name to v in every row.
func (f *frame) broadcast(name string, v jsonvalue.Value) {
	c := f.column(name)
	for r, row := range f.rows {
		if len(row) <= c {
			grown := make([]jsonvalue.Value, c+1)
			copy(grown, row)
			row = grown
		}
		row[c] = v
		f.rows[r] = row
	}
}

// join combines every row of f with every row of sub, f-row major.
func (f *frame) join(sub *frame) {
	mapping := f.adopt(sub)
	rows := make([][]jsonvalue.Value, 0, len(f.rows)*len(sub.rows))
	for _, base := range f.rows {
		for _, extra := range sub.rows {
			row := make([]jsonvalue.Value, len(f.columns))
			copy(row, base)
			for j, v := range extra {
				row[mapping[j]] = v
			}
			rows = append(rows, row)
		}
	}
	f.rows = rows
}

// stack appends the rows of sub below those of f.
func (f *frame) stack(sub *frame) {
	mapping := f.adopt(sub)
	for _, extra := range sub.rows {
		row := make([]jsonvalue.Value, len(f.columns))
		for j, v := range extra {
			row[mapping[j]] = v
		}
		f.rows = append(f.rows, row)
	}
}

// adopt registers the columns of sub and maps sub's column positions to f's.
func (f *frame) adopt(sub *frame) []int {
	mapping := make([]int, len(sub.columns))
	for j, name := range sub.columns {
		mapping[j] = f.column(name)
	}
	return mapping
}
