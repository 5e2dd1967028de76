// Package domain models gridded precipitation products and the records a
// benchmark run compares.
//
// # Grids
//
// A [GriddedField] holds a (time, row, column) [Cube] of precipitation rate
// together with 1-D longitude and latitude arrays shared across time and a
// timestamp per step. Rows follow latitude, columns follow longitude:
//
//	Precip.At(t, i, j)  ↔  (Times[t], Lats[i], Lons[j])
//
// # Restriction
//
// Every dataset of a run receives the same [TimeRange] and the same crop
// (rows 0..Ny, columns 0..Nx). The time range is not checked against the
// timestamps: sources must already be aligned in time.
//
// # Shared grid precondition
//
// [SpatialExtent] and [SpatialLength] are derived once from the reference
// dataset and applied to every dataset for plotting and spectral metrics.
// This is only meaningful when all inputs were regridded to common
// coordinates beforehand, so [NamedDataset.CheckAligned] rejects runs whose
// restricted shapes differ.
//
// # Reference selection
//
// The reference is chosen by label ([SelectReference]); every other record,
// in insertion order, is a candidate.
package domain
