package domain

import "strings"

// DeliveryFeeTable maps wilayas to one of two flat delivery fees. Major hubs
// with dense courier coverage get the lower tier, every other known wilaya the
// higher one. Wilaya names are matched case-insensitively after trimming.
type DeliveryFeeTable struct {
	MajorFee    int64
	StandardFee int64
	Major       map[string]bool
	Known       map[string]bool
}

// DefaultMajorWilayas lists the hubs served at the lower delivery tier.
var DefaultMajorWilayas = []string{
	"alger",
	"oran",
	"constantine",
	"blida",
	"setif",
	"annaba",
	"bejaia",
	"tizi ouzou",
}

// DefaultWilayas enumerates the deliverable wilayas.
var DefaultWilayas = []string{
	"adrar", "chlef", "laghouat", "oum el bouaghi", "batna", "bejaia",
	"biskra", "bechar", "blida", "bouira", "tamanrasset", "tebessa",
	"tlemcen", "tiaret", "tizi ouzou", "alger", "djelfa", "jijel",
	"setif", "saida", "skikda", "sidi bel abbes", "annaba", "guelma",
	"constantine", "medea", "mostaganem", "msila", "mascara", "ouargla",
	"oran", "el bayadh", "illizi", "bordj bou arreridj", "boumerdes",
	"el tarf", "tindouf", "tissemsilt", "el oued", "khenchela",
	"souk ahras", "tipaza", "mila", "ain defla", "naama",
	"ain temouchent", "ghardaia", "relizane", "timimoun",
	"bordj badji mokhtar", "ouled djellal", "beni abbes", "in salah",
	"in guezzam", "touggourt", "djanet", "el mghair", "el meniaa",
}

// NewDeliveryFeeTable builds a table with the given fees over the default
// wilaya set.
func NewDeliveryFeeTable(majorFee, standardFee int64) DeliveryFeeTable {
	table := DeliveryFeeTable{
		MajorFee:    majorFee,
		StandardFee: standardFee,
		Major:       make(map[string]bool, len(DefaultMajorWilayas)),
		Known:       make(map[string]bool, len(DefaultWilayas)),
	}
	for _, name := range DefaultWilayas {
		table.Known[name] = true
	}
	for _, name := range DefaultMajorWilayas {
		table.Major[name] = true
		table.Known[name] = true
	}
	return table
}

// NormalizeWilaya canonicalises a wilaya name for lookups.
func NormalizeWilaya(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Fee returns the delivery fee for the wilaya. ok is false for unknown
// wilayas; callers treat that as a validation failure, not a default fee.
func (t DeliveryFeeTable) Fee(wilaya string) (int64, bool) {
	key := NormalizeWilaya(wilaya)
	if key == "" || !t.Known[key] {
		return 0, false
	}
	if t.Major[key] {
		return t.MajorFee, true
	}
	return t.StandardFee, true
}
