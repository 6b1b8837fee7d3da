// Package viz renders a live terminal view of a running simulation:
// bus voltage magnitudes scroll as the integrator advances, with the
// network summary alongside.
package viz
