package normalize

import (
	"errors"
	"fmt"

	"github.com/backyonatan-alt/restable/internal/jsonvalue"
)

// Shape is the closed set of JSON shapes the normalizer distinguishes.
type Shape int

const (
	ShapeScalar Shape = iota
	ShapeObject
	ShapeArrayOfObjects
	ShapeArrayOfScalars
	ShapeMixedArray
)

func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeObject:
		return "object"
	case ShapeArrayOfObjects:
		return "array_of_objects"
	case ShapeArrayOfScalars:
		return "array_of_scalars"
	case ShapeMixedArray:
		return "mixed_array"
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// Classify returns the shape of v. An empty array is an array of scalars;
// an array holding objects next to anything else, or holding arrays, is
// mixed.
func Classify(v jsonvalue.Value) Shape {
	switch v.Kind() {
	case jsonvalue.Object:
		return ShapeObject
	case jsonvalue.Array:
		items := v.Items()
		if len(items) == 0 {
			return ShapeArrayOfScalars
		}
		objects, scalars := 0, 0
		for _, item := range items {
			switch {
			case item.Kind() == jsonvalue.Object:
				objects++
			case item.IsScalar():
				scalars++
			}
		}
		switch {
		case objects == len(items):
			return ShapeArrayOfObjects
		case scalars == len(items):
			return ShapeArrayOfScalars
		}
		return ShapeMixedArray
	}
	return ShapeScalar
}

// ErrUnsupportedShape matches every *UnsupportedShapeError.
var ErrUnsupportedShape = errors.New("unsupported data shape")

// UnsupportedShapeError reports a top-level value that is neither an object
// nor a non-empty array of objects.
type UnsupportedShapeError struct {
	Shape Shape
	Kind  jsonvalue.Kind
}

func (e *UnsupportedShapeError) Error() string {
	if e.Shape == ShapeScalar {
		return fmt.Sprintf("%v: top-level %s", ErrUnsupportedShape, e.Kind)
	}
	return fmt.Sprintf("%v: top-level %s", ErrUnsupportedShape, e.Shape)
}

func (e *UnsupportedShapeError) Is(target error) bool {
	return target == ErrUnsupportedShape
}

// ErrRowLimit matches every *RowLimitError.
var ErrRowLimit = errors.New("row limit exceeded")

// RowLimitError reports a document whose nested arrays expand past the
// normalizer's row limit. Rows is the count reached at Path.
type RowLimitError struct {
	Path  string
	Rows  int
	Limit int
}

func (e *RowLimitError) Error() string {
	path := e.Path
	if path == "" {
		path = "top level"
	}
	return fmt.Sprintf("%v: %d rows at %s (limit %d)", ErrRowLimit, e.Rows, path, e.Limit)
}

func (e *RowLimitError) Is(target error) bool {
	return target == ErrRowLimit
}
