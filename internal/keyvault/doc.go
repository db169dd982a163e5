// Package keyvault manages the gateway's long-lived key material: a
// 256-bit symmetric key and an RSA key pair, generated once per key
// lifetime and persisted to configurable file paths with owner-only
// permissions. Key material is immutable after first initialization;
// rotation is an explicit operation that keeps the previous public key
// available for a configured grace period.
package keyvault
