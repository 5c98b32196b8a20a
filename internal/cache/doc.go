/*
Package cache manages the Redis connection used by NodeFlow.

Manager is built from config.RedisConfig, pings on construction and can run
a background health check. Its Client backs blackboard.RedisStore, and its
string/JSON helpers back the run cache in front of the history store. All
keys are namespaced with the configured prefix. With TLS enabled the
client uses internal/tlsutil settings. Lookups of absent keys
return ErrCacheMiss.
*/
package cache
