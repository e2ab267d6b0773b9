package id

import "sync"

// Type selects which generator New and the package-level defaults use.
type Type string

const (
	// TypeUUID represents UUID v4 generator.
	TypeUUID Type = "uuid"

	// TypeSnowflake represents Snowflake ID generator.
	TypeSnowflake Type = "snowflake"

	// TypeULID represents ULID generator.
	TypeULID Type = "ulid"
)

var (
	defaultUUID      *UUIDGenerator
	defaultSnowflake *SnowflakeGenerator
	defaultULID      *ULIDGenerator
	initOnce         sync.Once
)

// initDefaults initializes the package-level default generators.
func initDefaults() {
	initOnce.Do(func() {
		defaultUUID = NewUUIDGenerator()
		defaultSnowflake, _ = NewSnowflakeGenerator()
		defaultULID = NewULIDGenerator()
	})
}

// NewUUID generates a new UUID v4 string.
func NewUUID() string {
	initDefaults()
	return defaultUUID.Generate()
}

// NewSnowflake generates a new Snowflake ID string using node 0. Panics if
// the system clock has moved backward by more than the generator's
// tolerance; callers that need graceful handling should build their own
// SnowflakeGenerator and call GenerateInt64 directly.
func NewSnowflake() string {
	initDefaults()
	v, err := defaultSnowflake.Generate()
	if err != nil {
		panic("id: failed to generate snowflake: " + err.Error())
	}
	return v
}

// NewULID generates a new ULID string.
func NewULID() string {
	initDefaults()
	return defaultULID.Generate()
}

// New generates a new ID using the given generator type, defaulting to
// UUID for an unrecognized type.
func New(t Type) string {
	switch t {
	case TypeSnowflake:
		return NewSnowflake()
	case TypeULID:
		return NewULID()
	default:
		return NewUUID()
	}
}

// Must panics if err is not nil, otherwise returns v. Useful for wrapping
// SnowflakeGenerator.Generate at call sites that treat clock drift as fatal.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
