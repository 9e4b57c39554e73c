package contracts

import (
	"errors"
	"fmt"
	"strings"
)

// Scope partitions every persisted record between production and test
// scenarios. It is a required argument on every repository read and write:
// an empty scope is rejected, so a read path that forgot its filter fails
// closed instead of leaking across partitions.
type Scope string

// ScopeProduction is the partition for live pipeline data.
const ScopeProduction Scope = "production"

const scenarioScopePrefix = "scenario:"

// ErrInvalidScope is returned by repositories when given an empty scope.
var ErrInvalidScope = errors.New("contracts: empty scope")

// ErrNotFound is returned by repositories when the requested record does
// not exist in the given scope.
var ErrNotFound = errors.New("contracts: not found")

// ScenarioScope returns the scope tag for a test scenario.
func ScenarioScope(scenarioID string) Scope {
	return Scope(scenarioScopePrefix + scenarioID)
}

// Valid reports whether the scope carries a partition tag.
func (s Scope) Valid() bool {
	return s == ScopeProduction || strings.HasPrefix(string(s), scenarioScopePrefix)
}

// IsProduction reports whether the scope is the production partition.
func (s Scope) IsProduction() bool {
	return s == ScopeProduction
}

// ScenarioID returns the scenario id for a scenario scope, or "" for
// production.
func (s Scope) ScenarioID() string {
	if s.IsProduction() {
		return ""
	}
	return strings.TrimPrefix(string(s), scenarioScopePrefix)
}

// Validate returns ErrInvalidScope for scopes without a partition tag.
func (s Scope) Validate() error {
	if !s.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidScope, string(s))
	}
	return nil
}
