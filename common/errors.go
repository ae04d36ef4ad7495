package common

import "errors"

var (
	// ErrConfiguration marks bad arguments, run files and unit strings.
	ErrConfiguration = errors.New("configuration error")
	// ErrInputFormat marks an input dataset missing an expected axis or variable.
	ErrInputFormat = errors.New("input format error")
	// ErrIO marks read and write failures on either dataset.
	ErrIO = errors.New("io error")
)
