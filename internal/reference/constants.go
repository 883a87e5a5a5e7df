package reference

// Category layout and defaults.
const (
	NormalCategory = "normal"
	AdsDir         = "ads"
	ManifestName   = "index.json"

	DefaultNormalThreshold = 0.25
	DefaultThreshold       = 0.25

	DefaultConcurrency = 4
)

// builtinThresholds are the per-advertiser thresholds used when config
// supplies none.
var builtinThresholds = map[string]float64{
	"stake": 0.35,
}
