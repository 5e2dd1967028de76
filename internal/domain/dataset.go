package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownReference is returned when the reference label is not configured.
var ErrUnknownReference = errors.New("unknown reference dataset")

// DatasetSource names one input file under the data directory.
type DatasetSource struct {
	Label string `toml:"label"`
	File  string `toml:"file"`
}

// NamedDataset maps labels to fields. Insertion order is report order.
type NamedDataset struct {
	order  []string
	fields map[string]GriddedField
}

// NewNamedDataset creates an empty dataset collection.
func NewNamedDataset() *NamedDataset {
	return &NamedDataset{fields: make(map[string]GriddedField)}
}

// Set stores a field. Re-setting an existing label keeps its position.
func (d *NamedDataset) Set(label string, f GriddedField) {
	if _, ok := d.fields[label]; !ok {
		d.order = append(d.order, label)
	}
	d.fields[label] = f
}

// Get returns the field stored under label.
func (d *NamedDataset) Get(label string) (GriddedField, bool) {
	f, ok := d.fields[label]
	return f, ok
}

// Labels returns the labels in insertion order.
func (d *NamedDataset) Labels() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Len returns the number of datasets.
func (d *NamedDataset) Len() int { return len(d.order) }

// Records builds one ForecastRecord per dataset, in insertion order, all
// sharing the given spatial length.
func (d *NamedDataset) Records(length SpatialLength) []ForecastRecord {
	records := make([]ForecastRecord, 0, len(d.order))
	for _, label := range d.order {
		records = append(records, ForecastRecord{
			Label:   label,
			Data:    d.fields[label].Precip,
			XLength: length.X,
			YLength: length.Y,
		})
	}
	return records
}

// SelectReference splits records into the one labelled reference and the
// remaining candidates, preserving order.
func SelectReference(records []ForecastRecord, reference string) (ForecastRecord, []ForecastRecord, error) {
	idx := -1
	for i, r := range records {
		if r.Label == reference {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ForecastRecord{}, nil, fmt.Errorf("%w: %q", ErrUnknownReference, reference)
	}
	candidates := make([]ForecastRecord, 0, len(records)-1)
	candidates = append(candidates, records[:idx]...)
	candidates = append(candidates, records[idx+1:]...)
	return records[idx], candidates, nil
}

// CheckAligned verifies every dataset shares the reference's shape.
func (d *NamedDataset) CheckAligned(reference string) error {
	ref, ok := d.fields[reference]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownReference, reference)
	}
	for _, label := range d.order {
		f := d.fields[label]
		if !f.Precip.SameShape(ref.Precip) {
			return fmt.Errorf("%w: %q has shape %v, %q has %v",
				ErrGridMismatch, label, f.Precip.Shape(), reference, ref.Precip.Shape())
		}
	}
	return nil
}
