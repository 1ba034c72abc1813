package core

import "errors"

var (
	errEmptyName         = errors.New("name must not be empty")
	errNegativeCapacity  = errors.New("available capacity must be non-negative")
	errNegativeCost      = errors.New("cost must be non-negative")
	errNegativeQuantity  = errors.New("requirement must be non-negative")
	errDuplicateResource = errors.New("duplicate resource name")
	errDuplicateProject  = errors.New("duplicate project name")
)
