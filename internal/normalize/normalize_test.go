package normalize

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/backyonatan-alt/restable/internal/jsonvalue"
	"github.com/backyonatan-alt/restable/internal/table"
)

// flat is a table rendered for comparison: cells as compact JSON.
type flat struct {
	Columns []string
	Rows    [][]string
}

func render(t *table.Table) flat {
	out := flat{Columns: t.Columns(), Rows: [][]string{}}
	for i := 0; i < t.Len(); i++ {
		row := []string{}
		for _, v := range t.Row(i) {
			row = append(row, v.String())
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func mustParse(t *testing.T, s string) jsonvalue.Value {
	t.Helper()
	v, err := jsonvalue.Parse([]byte(s))
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return v
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  flat
	}{
		{
			name:  "flat object",
			input: `{"a": 1, "b": "x"}`,
			want:  flat{Columns: []string{"a", "b"}, Rows: [][]string{{`1`, `"x"`}}},
		},
		{
			name:  "array of flat objects",
			input: `[{"a": 1, "b": 2}, {"a": 3, "b": 4}]`,
			want:  flat{Columns: []string{"a", "b"}, Rows: [][]string{{`1`, `2`}, {`3`, `4`}}},
		},
		{
			name:  "nested object",
			input: `{"a": 1, "c": {"x": 11, "y": 12}}`,
			want:  flat{Columns: []string{"a", "c.x", "c.y"}, Rows: [][]string{{`1`, `11`, `12`}}},
		},
		{
			name:  "row expansion",
			input: `{"a": 1, "c": [{"x": 11}, {"x": 110}]}`,
			want: flat{
				Columns: []string{"a", "c.x"},
				Rows:    [][]string{{`1`, `11`}, {`1`, `110`}},
			},
		},
		{
			name:  "scalar after expansion is broadcast",
			input: `{"c": [{"x": 1}, {"x": 2}], "z": true}`,
			want: flat{
				Columns: []string{"c.x", "z"},
				Rows:    [][]string{{`1`, `true`}, {`2`, `true`}},
			},
		},
		{
			name:  "empty list of records",
			input: `[]`,
			want:  flat{Columns: []string{}, Rows: [][]string{}},
		},
		{
			name:  "empty object is one empty row",
			input: `{}`,
			want:  flat{Columns: []string{}, Rows: [][]string{{}}},
		},
		{
			name:  "nested empty object adds nothing",
			input: `{"a": 1, "meta": {}}`,
			want:  flat{Columns: []string{"a"}, Rows: [][]string{{`1`}}},
		},
		{
			name:  "records with differing keys",
			input: `[{"a": 1}, {"b": 2}, {"a": 3, "c": null}]`,
			want: flat{
				Columns: []string{"a", "b", "c"},
				Rows: [][]string{
					{`1`, `null`, `null`},
					{`null`, `2`, `null`},
					{`3`, `null`, `null`},
				},
			},
		},
		{
			name:  "scalar arrays kept whole and repeated across expanded rows",
			input: `[{"id": 1, "tags": ["a", "b"], "items": [{"n": 1}, {"n": 2}]}, {"id": 2, "tags": [], "items": [{"n": 3}]}]`,
			want: flat{
				Columns: []string{"id", "tags", "items.n"},
				Rows: [][]string{
					{`1`, `["a","b"]`, `1`},
					{`1`, `["a","b"]`, `2`},
					{`2`, `[]`, `3`},
				},
			},
		},
		{
			name:  "mixed arrays pass through",
			input: `{"a": [1, {"x": 2}], "b": [[1, 2], [3]]}`,
			want: flat{
				Columns: []string{"a", "b"},
				Rows:    [][]string{{`[1,{"x":2}]`, `[[1,2],[3]]`}},
			},
		},
		{
			name:  "object inside array inside object",
			input: `{"o": {"list": [{"p": {"q": 1}}, {"p": {"q": 2}}], "k": "v"}}`,
			want: flat{
				Columns: []string{"o.list.p.q", "o.k"},
				Rows:    [][]string{{`1`, `"v"`}, {`2`, `"v"`}},
			},
		},
		{
			name:  "independent nested arrays expand as a product",
			input: `{"id": 7, "a": [{"x": 1}, {"x": 2}], "b": [{"y": "p"}, {"y": "q"}, {"y": "r"}]}`,
			want: flat{
				Columns: []string{"id", "a.x", "b.y"},
				Rows: [][]string{
					{`7`, `1`, `"p"`},
					{`7`, `1`, `"q"`},
					{`7`, `1`, `"r"`},
					{`7`, `2`, `"p"`},
					{`7`, `2`, `"q"`},
					{`7`, `2`, `"r"`},
				},
			},
		},
		{
			name:  "nested records with differing keys",
			input: `{"c": [{"x": 1}, {"y": 2}]}`,
			want: flat{
				Columns: []string{"c.x", "c.y"},
				Rows:    [][]string{{`1`, `null`}, {`null`, `2`}},
			},
		},
		{
			name:  "keys holding the separator",
			input: `{"a.b": 1, "c": {"d.e": 2}}`,
			want: flat{
				Columns: []string{"a.b", "c.d.e"},
				Rows:    [][]string{{`1`, `2`}},
			},
		},
		{
			name:  "number literals are preserved",
			input: `[{"n": 1.50}, {"n": 2e3}]`,
			want: flat{
				Columns: []string{"n"},
				Rows:    [][]string{{`1.50`}, {`2e3`}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(mustParse(t, tt.input))
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if diff := cmp.Diff(tt.want, render(got)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeUnsupportedShape(t *testing.T) {
	tests := []struct {
		input string
		shape Shape
	}{
		{input: `42`, shape: ShapeScalar},
		{input: `"text"`, shape: ShapeScalar},
		{input: `null`, shape: ShapeScalar},
		{input: `[1, 2, 3]`, shape: ShapeArrayOfScalars},
		{input: `[{"a": 1}, 2]`, shape: ShapeMixedArray},
		{input: `[[{"a": 1}]]`, shape: ShapeMixedArray},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Normalize(mustParse(t, tt.input))
			if got != nil {
				t.Errorf("expected no table, got %v", render(got))
			}
			if !errors.Is(err, ErrUnsupportedShape) {
				t.Fatalf("expected ErrUnsupportedShape, got %v", err)
			}
			var shapeErr *UnsupportedShapeError
			if !errors.As(err, &shapeErr) {
				t.Fatalf("expected *UnsupportedShapeError, got %T", err)
			}
			if shapeErr.Shape != tt.shape {
				t.Errorf("shape: got %v want %v", shapeErr.Shape, tt.shape)
			}
		})
	}
}

func TestNormalizeRowLimit(t *testing.T) {
	const siblings = `{"id": 1, "a": [{"x": 1}, {"x": 2}, {"x": 3}], "b": [{"y": 1}, {"y": 2}, {"y": 3}]}`
	tests := []struct {
		name    string
		input   string
		limit   int
		path    string
		rows    int
		wantErr bool
	}{
		{name: "product at limit", input: siblings, limit: 9},
		{name: "product over limit", input: siblings, limit: 8, path: "b", rows: 9, wantErr: true},
		{name: "records over limit", input: `[{"a": 1}, {"a": 2}, {"a": 3}]`, limit: 2, rows: 3, wantErr: true},
		{name: "nested records over limit", input: `{"a": [{"x": 1}, {"x": 2}, {"x": 3}]}`, limit: 2, path: "a", rows: 3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ended bool
			n := New(Options{MaxRows: tt.limit, Observer: ObserverFunc(func(e Event) {
				if e.Type == EventEnd {
					ended = true
				}
			})})
			got, err := n.Normalize(mustParse(t, tt.input))
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Normalize: %v", err)
				}
				if got.Len() != tt.limit {
					t.Errorf("rows: got %d want %d", got.Len(), tt.limit)
				}
				return
			}
			if got != nil || ended {
				t.Errorf("expected no table and no end event")
			}
			if !errors.Is(err, ErrRowLimit) {
				t.Fatalf("expected ErrRowLimit, got %v", err)
			}
			var limitErr *RowLimitError
			if !errors.As(err, &limitErr) {
				t.Fatalf("expected *RowLimitError, got %T", err)
			}
			want := RowLimitError{Path: tt.path, Rows: tt.rows, Limit: tt.limit}
			if diff := cmp.Diff(want, *limitErr); diff != "" {
				t.Errorf("error (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeDefaultRowLimit(t *testing.T) {
	if got := New(Options{}).maxRows; got != DefaultMaxRows {
		t.Errorf("maxRows: got %d want %d", got, DefaultMaxRows)
	}
}

func TestNormalizeIdempotentOnFlatRecords(t *testing.T) {
	inputs := []string{
		`{"a": 1, "b": "x"}`,
		`[{"a": 1, "b": 2}, {"a": 3}]`,
		`{"a": 1, "c": [{"x": 11}, {"x": 110}], "tags": ["t"]}`,
		`{"o": {"list": [{"p": {"q": 1}}, {"p": {"q": 2}}], "k": "v"}}`,
		`{}`,
		`[]`,
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			first, err := Normalize(mustParse(t, input))
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			second, err := Normalize(jsonvalue.ArrayValue(first.Records()...))
			if err != nil {
				t.Fatalf("Normalize records: %v", err)
			}
			if diff := cmp.Diff(render(first), render(second)); diff != "" {
				t.Errorf("not idempotent (-first +second):\n%s", diff)
			}
		})
	}
}

func TestNormalizeSeparator(t *testing.T) {
	n := New(Options{Separator: "__"})
	got, err := n.Normalize(mustParse(t, `{"a": {"b": {"c": 1}}, "d": [{"e": 2}]}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := []string{"a__b__c", "d__e"}
	if diff := cmp.Diff(want, got.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	const input = `{"a": 1, "c": [{"x": 11}, {"x": 110}], "d": {"e": [1, 2]}}`
	v := mustParse(t, input)
	before := v.String()
	if _, err := Normalize(v); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if after := v.String(); after != before {
		t.Errorf("input changed: %s -> %s", before, after)
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestObserverEvents(t *testing.T) {
	rec := &recorder{}
	n := New(Options{Observer: rec})
	if _, err := n.Normalize(mustParse(t, `{"a": 1, "c": [{"x": 1}, {"x": 2}], "m": [1, {}]}`)); err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	type brief struct {
		Type  EventType
		Path  string
		Shape Shape
		Rows  int
	}
	var got []brief
	for _, e := range rec.events {
		if e.Timestamp.IsZero() {
			t.Errorf("event %v has no timestamp", e.Type)
		}
		got = append(got, brief{Type: e.Type, Path: e.Path, Shape: e.Shape, Rows: e.Rows})
	}
	want := []brief{
		{Type: EventStart, Shape: ShapeObject},
		{Type: EventShape, Path: "c", Shape: ShapeArrayOfObjects},
		{Type: EventRowExpansion, Path: "c", Shape: ShapeArrayOfObjects, Rows: 2},
		{Type: EventShape, Path: "m", Shape: ShapeMixedArray},
		{Type: EventEnd, Shape: ShapeObject, Rows: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
	if last := rec.events[len(rec.events)-1]; last.Columns != 3 {
		t.Errorf("end event columns: got %d want 3", last.Columns)
	}
}

func TestNormalizeConcurrent(t *testing.T) {
	n := New(Options{})
	v := mustParse(t, `[{"a": 1, "c": [{"x": 1}, {"x": 2}]}, {"a": 2, "c": [{"x": 3}]}]`)
	want, err := n.Normalize(v)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := n.Normalize(v)
			if err != nil {
				t.Errorf("Normalize: %v", err)
				return
			}
			if !got.Equal(want) {
				t.Errorf("concurrent result differs")
			}
		}()
	}
	wg.Wait()
}

func TestClassify(t *testing.T) {
	tests := []struct {
		input string
		want  Shape
	}{
		{input: `1`, want: ShapeScalar},
		{input: `null`, want: ShapeScalar},
		{input: `{}`, want: ShapeObject},
		{input: `[]`, want: ShapeArrayOfScalars},
		{input: `[1, "a", null, false]`, want: ShapeArrayOfScalars},
		{input: `[{}, {"a": 1}]`, want: ShapeArrayOfObjects},
		{input: `[{}, 1]`, want: ShapeMixedArray},
		{input: `[[1]]`, want: ShapeMixedArray},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Classify(mustParse(t, tt.input)); got != tt.want {
				t.Errorf("got %v want %v", got, tt.want)
			}
		})
	}
}
