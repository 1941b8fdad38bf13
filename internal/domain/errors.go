package domain

import "errors"

// Input errors. Raised before any external call.
var (
	ErrAddressRequired = errors.New("contract address is required")
	ErrInvalidAddress  = errors.New("invalid contract address")
	ErrInvalidMode     = errors.New("invalid analysis mode")
)

// Upstream errors
var (
	ErrExplorer          = errors.New("block explorer request failed")
	ErrSourceNotVerified = errors.New("contract source code not verified")
	ErrNoContractCode    = errors.New("no contract code at address")
)

// Pipeline errors
var (
	ErrNoPragma       = errors.New("no solidity pragma found")
	ErrImportNotFound = errors.New("imported source not found")
	ErrToolFailed     = errors.New("external tool failed")
	ErrNoJSONOutput   = errors.New("no valid JSON output from analyzer")
	ErrInvalidOutput  = errors.New("unparsable analyzer output")
)

// Job and storage errors
var (
	ErrNotFound  = errors.New("not found")
	ErrQueueFull = errors.New("analysis queue is full")
)
