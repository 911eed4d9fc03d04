package httpapi

import "time"

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
// Default remains 1 MiB; image endpoints usually need it raised.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// Per-endpoint worker request timeouts. Zero leaves the router default.
var (
	chatTimeout   = 60 * time.Second
	visionTimeout = 120 * time.Second
	imageTimeout  = 300 * time.Second
)

// SetEndpointTimeouts sets the worker timeouts for chat, vision and image
// requests. Non-positive values keep the current setting.
func SetEndpointTimeouts(chat, vision, image time.Duration) {
	if chat > 0 {
		chatTimeout = chat
	}
	if vision > 0 {
		visionTimeout = vision
	}
	if image > 0 {
		imageTimeout = image
	}
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled          bool
	corsAllowedOrigins   []string
	corsAllowedMethods   []string
	corsAllowedHeaders   []string
	corsAllowCredentials bool
	corsMaxAge           int
)

// SetCORSOptions configures CORS behavior for the gateway.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

// SetCORSCredentials sets Access-Control-Allow-Credentials and the preflight max age.
func SetCORSCredentials(allow bool, maxAgeSeconds int) {
	corsAllowCredentials = allow
	corsMaxAge = maxAgeSeconds
}

// apiKey, when set, is required as a bearer token on /v1 and admin routes.
var apiKey string

// SetAPIKey installs the shared secret. Empty disables the check.
func SetAPIKey(key string) { apiKey = key }

// GatewayRoutes names the aliases the gateway sends fixed endpoints to.
type GatewayRoutes struct {
	// ChatFallback serves chat requests naming gpt or claude models.
	ChatFallback string
	Image        string
	VisionFast   string
	VisionBest   string
}

var defaultRoutes = GatewayRoutes{
	ChatFallback: "vlm-fast",
	Image:        "image-gen",
	VisionFast:   "vlm-fast",
	VisionBest:   "vlm-best",
}

var gatewayRoutes = defaultRoutes

// SetGatewayRoutes overrides the alias routing; empty fields keep defaults.
func SetGatewayRoutes(r GatewayRoutes) {
	if r.ChatFallback == "" {
		r.ChatFallback = defaultRoutes.ChatFallback
	}
	if r.Image == "" {
		r.Image = defaultRoutes.Image
	}
	if r.VisionFast == "" {
		r.VisionFast = defaultRoutes.VisionFast
	}
	if r.VisionBest == "" {
		r.VisionBest = defaultRoutes.VisionBest
	}
	gatewayRoutes = r
}
