package retry

import (
	"errors"

	"goa.design/goa-ai/perr"
)

func isClass[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

func asToolCallError(err error, out **perr.ToolCallError) bool {
	return errors.As(err, out)
}

func asSchemaError(err error, out **perr.SchemaError) bool {
	return errors.As(err, out)
}
