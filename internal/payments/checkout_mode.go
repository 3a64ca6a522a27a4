package payments

import "strings"

// UseMockCheckout decides whether to skip the provider checkout for an
// order. Modes:
// - "mock": always complete locally
// - "provider" (or "live"): always open the provider checkout
// - "auto" or empty: follow the order's mock_mode flag
func UseMockCheckout(mode string, orderMock bool) bool {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "mock", "fake":
		return true
	case "provider", "live":
		return false
	case "auto", "":
		return orderMock
	default:
		return orderMock
	}
}
