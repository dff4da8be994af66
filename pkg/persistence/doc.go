// Package persistence stores the configuration of a simulated power bridge
// across restarts.
//
// Only objects marked persist in the object dictionary are stored: fan
// configuration, cabinet controller, PM type, topology, groups, offset and
// capabilities. The state is a JSON file replaced atomically on every save.
package persistence
