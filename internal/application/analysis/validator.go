package analysis

import (
	"fmt"
	"strings"

	"github.com/aescanero/mythgate/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// Validator validates analysis requests
type Validator struct {
	defaultMode domain.AnalysisMode
}

// NewValidator creates a new request validator
func NewValidator(defaultMode domain.AnalysisMode) *Validator {
	return &Validator{defaultMode: defaultMode}
}

// Validate normalizes req. It never performs I/O.
func (v *Validator) Validate(req domain.AnalysisRequest) (domain.AnalysisRequest, error) {
	address, err := NormalizeAddress(req.Address)
	if err != nil {
		return req, err
	}

	mode, err := domain.ParseAnalysisMode(string(req.Mode), v.defaultMode)
	if err != nil {
		return req, err
	}

	return domain.AnalysisRequest{Address: address, Mode: mode}, nil
}

// NormalizeAddress checks raw is a 0x-prefixed 20-byte hex address and
// returns its checksummed form
func NormalizeAddress(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", domain.ErrAddressRequired
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", fmt.Errorf("%w: %q must start with 0x", domain.ErrInvalidAddress, s)
	}
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidAddress, s)
	}
	return common.HexToAddress(s).Hex(), nil
}
