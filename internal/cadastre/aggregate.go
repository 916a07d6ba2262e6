package cadastre

// workingOwner accumulates one owner's groups during aggregation. Go maps do
// not preserve insertion order, so ordered key slices ride alongside the maps.
type workingOwner struct {
	result    *OwnerResult
	byAddress map[string]int // complete-address string -> index into result.Properties
	seenRefs  map[string]map[string]bool
}

// Aggregate groups raw property rows into one OwnerResult per distinct owner
// key, and within an owner, one GroupedProperty per distinct normalized
// address. Re-insertion of a parcel already present at an address is
// idempotent for the reference list, but the lot counter counts every raw row
// (multiple legal lots can share one parcel and address). Output order is the
// insertion order of first-seen owner keys.
func Aggregate(rows []PropertyRow) []OwnerResult {
	owners := make(map[string]*workingOwner)
	var order []string

	for _, row := range rows {
		key := row.OwnerKey()

		w, ok := owners[key]
		if !ok {
			w = &workingOwner{
				result: &OwnerResult{
					OwnerKey:     key,
					Siren:        row.Siren,
					Denomination: row.Denomination,
				},
				byAddress: make(map[string]int),
				seenRefs:  make(map[string]map[string]bool),
			}
			owners[key] = w
			order = append(order, key)
		}

		addr := NormalizeAddress(row)
		ref := referenceFromRow(row)

		idx, ok := w.byAddress[addr.Complete]
		if !ok {
			idx = len(w.result.Properties)
			w.result.Properties = append(w.result.Properties, GroupedProperty{Address: addr})
			w.byAddress[addr.Complete] = idx
			w.seenRefs[addr.Complete] = make(map[string]bool)
		}

		gp := &w.result.Properties[idx]
		if !w.seenRefs[addr.Complete][ref.Complete] {
			w.seenRefs[addr.Complete][ref.Complete] = true
			gp.References = append(gp.References, ref)
		}
		gp.LotCount++

		if w.result.Longitude == nil && row.Longitude != nil && row.Latitude != nil {
			w.result.Longitude = row.Longitude
			w.result.Latitude = row.Latitude
		}
	}

	out := make([]OwnerResult, 0, len(order))
	for _, key := range order {
		out = append(out, *owners[key].result)
	}
	return out
}
