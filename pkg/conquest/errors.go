package conquest

import "errors"

// Command rejections. None of these are fatal; callers treat them as a
// declined request.
var (
	ErrDuplicateStream   = errors.New("stream to destination already active")
	ErrSelfTarget        = errors.New("cannot send units to self")
	ErrNoUnits           = errors.New("no units available")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientUnits = errors.New("insufficient units")
	ErrBusy              = errors.New("construct is upgrading or converting")
	ErrNoUpgrade         = errors.New("construct type has no upgrade")
	ErrInvalidConversion = errors.New("conversion not allowed")
	ErrUnknownConstruct  = errors.New("unknown construct")
	ErrDuplicateFaction  = errors.New("faction already registered")
	ErrUnknownFaction    = errors.New("unknown faction")
	ErrDuplicateID       = errors.New("construct id already registered")
)

// Catalog validation failures.
var (
	ErrUpgradeCycle = errors.New("upgrade chain contains a cycle")
	ErrUnknownType  = errors.New("unknown construct type")
	ErrInvalidType  = errors.New("invalid construct type")
)

// CatalogError reports which type definition failed validation.
type CatalogError struct {
	Type string
	Err  error
}

func (e *CatalogError) Error() string { return "catalog: " + e.Type + ": " + e.Err.Error() }

func (e *CatalogError) Unwrap() error { return e.Err }
