package devenv

// LiveTestConfig configures the tests that talk to the real portal and
// registry, it lives at dev/.state/easymap_config.json5.
type LiveTestConfig struct {
	Proxy     string  `json:"proxy"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	// the town code the portal is expected to answer with
	TownCode string `json:"town_code"`
}

const LiveTestConfigFile = "easymap_config.json5"
