package dbutils

import "errors"

var (
	//ErrUnknownField is returned when a field name does not exist on the model
	ErrUnknownField = errors.New("dbutils: unknown field")
	//ErrCompositeKey is returned when a single column key is needed but the model or relationship uses several
	ErrCompositeKey = errors.New("dbutils: composite keys are not supported")
	//ErrUnsupportedRelation is returned when a field is not a relationship that can be attached
	ErrUnsupportedRelation = errors.New("dbutils: unsupported relationship")
	//ErrModelMismatch is returned by AttachForeignKeys when the sets do not reference the same model
	ErrModelMismatch = errors.New("dbutils: relationships do not reference the same model")
	//ErrInvalidQuery is returned when a range iteration is requested for a query with an offset or an order
	ErrInvalidQuery = errors.New("dbutils: range iteration does not support offset or order")
	//ErrDoubleIteration is returned when a SkinnyQuery is iterated a second time.
	//Load the rows with List if they need to be reused.
	ErrDoubleIteration = errors.New("dbutils: query has already been iterated, use List to reuse the rows")
	//ErrLenAfterIteration is returned when Len is called on a SkinnyQuery that has already been iterated.
	//Use Count if only the number of rows is needed.
	ErrLenAfterIteration = errors.New("dbutils: Len is not supported after iteration, use Count")
	//ErrInvalidOutput is returned when an output or scan destination can not be set
	ErrInvalidOutput = errors.New("dbutils: invalid output")
)
