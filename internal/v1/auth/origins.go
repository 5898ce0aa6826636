package auth

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/beamcast-io/beamcast/server/go/internal/v1/logging"
)

// GetAllowedOriginsFromEnv reads a comma-separated origin allowlist from the
// named environment variable, e.g.
// ALLOWED_ORIGINS="http://localhost:5173,https://app.beamcast.io".
// When the variable is unset the provided development defaults are used.
func GetAllowedOriginsFromEnv(envVarName string, defaults []string) []string {
	originsStr := os.Getenv(envVarName)
	if originsStr == "" {
		logging.Warn(context.Background(), fmt.Sprintf("%s not set, using default development origins: %s", envVarName, defaults))
		return defaults
	}

	parts := strings.Split(originsStr, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return defaults
	}
	return origins
}
