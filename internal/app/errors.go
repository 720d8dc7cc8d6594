package app

import "errors"

var (
	ErrValidation = errors.New("invalid input")
	ErrStorage    = errors.New("storage failure")
	ErrGateway    = errors.New("llm gateway failure")
	ErrNotFound   = errors.New("not found")
)
