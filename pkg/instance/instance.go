package instance

import "os"

// GetID identifies this process in logs so replicas can be told apart.
// INSTANCE_ID wins when set (injected by the deployment), then the
// hostname, then a local fallback.
func GetID() string {
	if id := os.Getenv("INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
