package api

// DownloadResponse is the full reference-data graph for one competition,
// keyed by replica-independent identifiers. Devices consume it once before
// going to the field. Slices are ordered so that every parent precedes its
// children.
type DownloadResponse struct {
	Competition Record   `json:"competition"`
	Stages      []Record `json:"stages"`
	Races       []Record `json:"races"`
	Locations   []Record `json:"locations"`
	Athletes    []Record `json:"athletes"`
	Entries     []Record `json:"entries"`
}

// AllRecords returns the bundle flattened in dependency order.
func (d *DownloadResponse) AllRecords() []Record {
	out := make([]Record, 0, 1+len(d.Stages)+len(d.Races)+len(d.Locations)+len(d.Athletes)+len(d.Entries))
	out = append(out, d.Competition)
	out = append(out, d.Stages...)
	out = append(out, d.Races...)
	out = append(out, d.Locations...)
	out = append(out, d.Athletes...)
	out = append(out, d.Entries...)
	return out
}
