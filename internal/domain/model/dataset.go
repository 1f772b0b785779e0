package model

// Dataset is the loaded entity collection. IDs keeps the source document
// order, which drives anchor selection and therefore output determinism.
type Dataset struct {
	IDs      []string
	Profiles map[string]*Profile
}

// NewDataset creates an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{Profiles: make(map[string]*Profile)}
}

// Add appends a profile under id. A repeated id keeps its first position
// and takes the new profile, like a JSON object with a duplicated key.
// Reports whether id was already present.
func (d *Dataset) Add(id string, p *Profile) bool {
	_, exists := d.Profiles[id]
	if !exists {
		d.IDs = append(d.IDs, id)
	}
	d.Profiles[id] = p
	return exists
}

// Len returns the number of distinct identifiers.
func (d *Dataset) Len() int {
	return len(d.IDs)
}

// Anchors returns the identifiers that act as the outer side of the
// pairwise enumeration: the first limit ids, or all of them when limit <= 0.
func (d *Dataset) Anchors(limit int) []string {
	if limit <= 0 || limit >= len(d.IDs) {
		return d.IDs
	}
	return d.IDs[:limit]
}
