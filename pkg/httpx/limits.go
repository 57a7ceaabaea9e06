package httpx

import "time"

// Common rate limit profiles for different endpoint types
// These can be overridden via environment variables (see init() below)
var (
	// AuthLimit for login attempts (brute force prevention)
	// Counts failures only: 5 failed attempts per 15 minutes per IP+email
	// Override with: RATELIMIT_AUTH_REQUESTS, RATELIMIT_AUTH_WINDOW_SEC
	AuthLimit = RateLimitConfig{
		Max:            5,
		Window:         15 * time.Minute,
		SkipSuccessful: true,
	}

	// RegistrationLimit for account creation
	// Counts failures only: 3 failed registrations per hour per IP
	// Override with: RATELIMIT_REGISTRATION_REQUESTS, RATELIMIT_REGISTRATION_WINDOW_SEC
	RegistrationLimit = RateLimitConfig{
		Max:            3,
		Window:         time.Hour,
		SkipSuccessful: true,
	}

	// StandardLimit for authenticated write operations
	// Override with: RATELIMIT_STANDARD_REQUESTS, RATELIMIT_STANDARD_WINDOW_SEC
	StandardLimit = RateLimitConfig{
		Max:    100,
		Window: 15 * time.Minute,
	}

	// ReadLimit for read-only endpoints
	// Override with: RATELIMIT_READ_REQUESTS, RATELIMIT_READ_WINDOW_SEC
	ReadLimit = RateLimitConfig{
		Max:    300,
		Window: 15 * time.Minute,
	}

	// AssessmentLimit for assessment submissions (keyed by user, fallback IP)
	// Override with: RATELIMIT_ASSESSMENT_REQUESTS, RATELIMIT_ASSESSMENT_WINDOW_SEC
	AssessmentLimit = RateLimitConfig{
		Max:    50,
		Window: time.Hour,
	}

	// UploadLimit for file uploads
	// Override with: RATELIMIT_UPLOAD_REQUESTS, RATELIMIT_UPLOAD_WINDOW_SEC
	UploadLimit = RateLimitConfig{
		Max:    20,
		Window: time.Hour,
	}

	// SearchLimit for search queries
	// Override with: RATELIMIT_SEARCH_REQUESTS, RATELIMIT_SEARCH_WINDOW_SEC
	SearchLimit = RateLimitConfig{
		Max:    100,
		Window: 15 * time.Minute,
	}

	// GlobalLimit is the outermost per-IP backstop across the whole surface
	// Override with: RATELIMIT_GLOBAL_REQUESTS, RATELIMIT_GLOBAL_WINDOW_SEC
	GlobalLimit = RateLimitConfig{
		Max:    1000,
		Window: 15 * time.Minute,
	}

	// UserLimit is the per-authenticated-user backstop
	// Override with: RATELIMIT_USER_REQUESTS, RATELIMIT_USER_WINDOW_SEC
	UserLimit = RateLimitConfig{
		Max:    500,
		Window: 15 * time.Minute,
	}
)

func init() {
	// Allow overriding rate limits via environment variables (useful for testing)
	AuthLimit = ParseRateLimitFromEnv("AUTH", AuthLimit)
	RegistrationLimit = ParseRateLimitFromEnv("REGISTRATION", RegistrationLimit)
	StandardLimit = ParseRateLimitFromEnv("STANDARD", StandardLimit)
	ReadLimit = ParseRateLimitFromEnv("READ", ReadLimit)
	AssessmentLimit = ParseRateLimitFromEnv("ASSESSMENT", AssessmentLimit)
	UploadLimit = ParseRateLimitFromEnv("UPLOAD", UploadLimit)
	SearchLimit = ParseRateLimitFromEnv("SEARCH", SearchLimit)
	GlobalLimit = ParseRateLimitFromEnv("GLOBAL", GlobalLimit)
	UserLimit = ParseRateLimitFromEnv("USER", UserLimit)
}
