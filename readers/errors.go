package readers

import (
	"errors"
)

// Spec compilation errors.
var (
	ErrSpecShape            = errors.New("unsupported spec shape")
	ErrAliasArity           = errors.New("single-key alias requires a projection with exactly one key")
	ErrRelationshipMetadata = errors.New("relationship metadata could not be resolved")
	ErrProjectionShape      = errors.New("projector must return a mapping")
)

// Instance access errors.
var (
	ErrUnknownAttribute      = errors.New("unknown attribute")
	ErrFieldNotLoaded        = errors.New("field was not loaded by the query plan")
	ErrRelationshipNotLoaded = errors.New("relationship was not prefetched by the query plan")
	ErrTraverseToMany        = errors.New("cannot traverse a to-many relationship as a single value")
)

// Schema errors.
var (
	ErrUnknownModel  = errors.New("unknown model")
	ErrUnknownField  = errors.New("unknown field")
	ErrInvalidSchema = errors.New("invalid schema")
)

// Execution errors.
var (
	ErrNilDatabaseConnection = errors.New("database connection is nil")
	ErrUnsupportedDialect    = errors.New("unsupported sql dialect")
	ErrBuildingQueryFailed   = errors.New("building query failed")
	ErrQueryingFailed        = errors.New("querying failed")
	ErrScanningDBRowFailed   = errors.New("scanning db row failed")
	ErrStitchingFailed       = errors.New("attaching prefetched instances failed")
	ErrNotFound              = errors.New("no matching instance found")
	ErrMultipleFound         = errors.New("more than one matching instance found")
)
