package render

// GraphemePool interns multi-codepoint clusters for a session
// IDs are stable for the pool lifetime so equal IDs always mean equal clusters
type GraphemePool struct {
	ids      map[string]GraphemeID
	clusters []string // index 0 unused, GraphemeID 0 means none
	widths   []uint8
}

// NewGraphemePool creates an empty pool
func NewGraphemePool() *GraphemePool {
	return &GraphemePool{
		ids:      make(map[string]GraphemeID, 64),
		clusters: make([]string, 1, 64),
		widths:   make([]uint8, 1, 64),
	}
}

// Intern returns the ID for cluster, adding it on first use
func (p *GraphemePool) Intern(cluster string, width int) GraphemeID {
	if id, ok := p.ids[cluster]; ok {
		return id
	}
	id := GraphemeID(len(p.clusters))
	p.clusters = append(p.clusters, cluster)
	p.widths = append(p.widths, uint8(width))
	p.ids[cluster] = id
	return id
}

// Lookup returns the cluster text for id
func (p *GraphemePool) Lookup(id GraphemeID) (string, bool) {
	if p == nil || id == 0 || int(id) >= len(p.clusters) {
		return "", false
	}
	return p.clusters[id], true
}

// Width returns the column width recorded for id, 0 if unknown
func (p *GraphemePool) Width(id GraphemeID) int {
	if p == nil || id == 0 || int(id) >= len(p.widths) {
		return 0
	}
	return int(p.widths[id])
}

// Len returns the number of interned clusters
func (p *GraphemePool) Len() int {
	return len(p.clusters) - 1
}
