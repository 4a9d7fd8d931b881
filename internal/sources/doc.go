// Package sources defines where candidate metadata comes from and fans
// queries out across providers with per-source timeouts.
package sources
