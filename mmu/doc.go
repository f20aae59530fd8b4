// Package mmu implements the memory management unit of the simulated computer.
//
// The MMU owns a fixed size, byte granular address space. Ranges are handed
// out first-fit, lowest address first, and must be returned with the exact
// start and size they were allocated with. Occupancy is tracked separately
// from the byte contents, so a stored value never doubles as an allocation
// marker.
package mmu
