package cache

import "fmt"

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

// TrainingLockKey guards model training across replicas.
func TrainingLockKey() string {
	return "risco:lock:training"
}

// ArtifactKey holds the serialized model when artifacts live in Redis.
func ArtifactKey() string {
	return "risco:model:artifact"
}
