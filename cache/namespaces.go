package cache

// Standard namespaces. Content namespaces partition cached remote payloads
// by resource kind so they can carry different TTLs and be cleared
// independently; NamespacePrefs holds small operational values that are
// exempt from statistics and eviction.
const (
	NamespaceGeneral  = "general"
	NamespaceVideos   = "videos"
	NamespaceChannels = "channels"
	NamespaceLists    = "lists"
	NamespaceMetrics  = "metrics"
	NamespacePrefs    = "prefs"
)

// DefaultNamespaces returns the standard content namespace set, in the
// order scans walk them.
func DefaultNamespaces() []string {
	return []string{
		NamespaceGeneral,
		NamespaceVideos,
		NamespaceChannels,
		NamespaceLists,
		NamespaceMetrics,
	}
}
