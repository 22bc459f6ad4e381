// Package broadcast fans finished, signed events out to a relay set and
// accounts for how many relays took each one.
package broadcast
