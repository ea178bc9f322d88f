package typesys

// Definition names in the standard catalogue.
const (
	DefAmount     = "Amount"
	DefAssetSpec  = "AssetSpec"
	DefAssetTerms = "AssetTerms"
)

// StandardName is the name of the catalogue shipped with this module.
const StandardName = "charter-std"

// Standard returns the catalogue the shipped asset families draw from:
// a 64-bit unsigned amount, the nominal asset descriptor, and the
// issuance terms document.
func Standard() *System {
	s, err := NewSystem(StandardName,
		Def{Name: DefAmount, Shape: "u64"},
		Def{Name: DefAssetSpec, Shape: "struct { ticker ascii(1..8), name ascii(1..40), precision u8 }"},
		Def{Name: DefAssetTerms, Shape: "struct { text ascii(0..65535), media bytes(32)? }"},
	)
	if err != nil {
		// The definitions above are compiled in; a failure here is a bug.
		panic(err)
	}
	return s
}
