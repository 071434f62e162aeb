package checkout

import (
	apperrors "github.com/avelora/storefront/pkg/errors"
)

// Validation failures block session creation before any gateway call.
var (
	errNoRequest      = apperrors.InvalidInput("checkout request is required")
	errNoAddress      = apperrors.InvalidInput("a shipping address must be selected")
	errEmptySelection = apperrors.InvalidInput("at least one item must be selected")
	errAlreadyStarted = apperrors.Conflict("checkout session already started")
)
