// internal/app/system/limits/limits.go
package limits

// Request body size limits.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxJSONBody caps group API request bodies. Payloads are a few ids and
	// short strings; descriptions are the largest field.
	MaxJSONBody = 64 << 10 // 64 KB
)
