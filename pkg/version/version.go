package version

// Version is the sift release
const Version = "0.4.0"

// BuildVersion returns the version line printed by `sift version`
func BuildVersion() string {
	return "sift version " + Version
}

// APIVersion returns the bare version number reported by /health
func APIVersion() string {
	return Version
}
