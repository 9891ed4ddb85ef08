// Package asset defines the data model for usdassemble: component kinds,
// the texture slot taxonomy, the scanned component records and the error
// taxonomy shared by every other package.
//
// Records in this package are plain values materialised from a filesystem
// snapshot. They never hold backend handles.
package asset
