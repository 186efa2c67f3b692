package httpapi

// maxPlanPrimes bounds the budget accepted by GET /plan.
var maxPlanPrimes = 1075000

// SetMaxPlanPrimes overrides the largest budget /plan will solve (<=0 restores the default).
func SetMaxPlanPrimes(n int) {
	if n <= 0 {
		maxPlanPrimes = 1075000
		return
	}
	maxPlanPrimes = n
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
