// Package clients provides the general purpose nodes of a telescope model:
// set point signals, the wind load fade-in, load smoothing, merging and rate
// helpers. Subsystem controllers and the plant live in the sub-packages.
package clients
