package service

import "github.com/shelfwise/shelfwise-server/internal/validation"

// validate is the shared validator instance for request validation.
var validate = validation.New()
