// Package keyring provides the per-user secret storage backing the at-rest
// token codec's master key (token.AccessToken.MarshalAtRest and
// token.UnmarshalAtRest). It substitutes for the
// platform data-protection primitive spec.md §6 calls out (Windows DPAPI):
// on any platform, a 32-byte master secret is generated once and stored in
// the OS credential store via zalando/go-keyring; if no credential store is
// reachable (e.g. a headless Linux box with no secret-service/keyctl), a
// process-lifetime in-memory fallback is used and the caller is warned that
// persistence will not survive a restart.
package keyring

// Provider is the minimal secret-store contract this package needs
// (Name/IsAvailable/Set/Get/Delete).
type Provider interface {
	// Name identifies the backing store for logging/diagnostics.
	Name() string
	// IsAvailable reports whether the backing store can be reached at all,
	// without performing a real Set/Get round trip.
	IsAvailable() bool
	Set(service, key, value string) error
	Get(service, key string) (string, error)
	Delete(service, key string) error
}
