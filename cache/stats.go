package cache

// NamespaceStats describes one content namespace: how many entries it
// holds and their total serialized (envelope) size in bytes.
type NamespaceStats struct {
	Namespace string
	Entries   int
	Bytes     int64
}

// Statistics is a point-in-time snapshot across all content namespaces,
// produced by Engine.Stats. Sizes are approximate in the sense that they
// measure the stored envelopes, not the in-memory footprint of decoded
// values; this is the same measure EvictBySize enforces.
type Statistics struct {
	Entries int
	Bytes   int64

	// PerNamespace is ordered the way Options.Namespaces was, one element
	// per content namespace even when empty.
	PerNamespace []NamespaceStats
}
