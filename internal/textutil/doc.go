// Package textutil normalizes and sanitizes names that become file names or
// remote object keys.
package textutil
