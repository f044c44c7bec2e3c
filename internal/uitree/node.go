// Package uitree models the foreign application's UI node tree and the
// candidate-id fallback lookups performed against it.
package uitree

// Node is one element in the foreign UI's view hierarchy. Implementations
// wrap transient handles from the device; callers must Recycle every node
// they obtain, on every exit path, or the foreign UI's handle pool drains.
type Node interface {
	// FindByID returns all descendant nodes carrying the given element
	// identifier. An empty result is the expected outcome for identifiers
	// the current app release no longer uses.
	FindByID(id string) []Node

	// Text returns the node's visible text, empty if it has none.
	Text() string

	// SetText replaces the node's text content.
	SetText(text string) error

	// Click performs the node's click action.
	Click() error

	// Recycle releases the underlying handle. The node must not be used
	// afterwards.
	Recycle()
}

// Locate probes root with each candidate identifier in order and returns
// the nodes found under the first identifier that matches anything. A nil
// result means none of the candidates exist in the tree, not an error;
// the foreign app renames its ids across releases and the candidate list
// exists to absorb exactly that.
func Locate(root Node, candidateIDs []string) []Node {
	if root == nil {
		return nil
	}
	for _, id := range candidateIDs {
		if nodes := root.FindByID(id); len(nodes) > 0 {
			return nodes
		}
	}
	return nil
}

// RecycleAll releases every node in the slice.
func RecycleAll(nodes []Node) {
	for _, n := range nodes {
		if n != nil {
			n.Recycle()
		}
	}
}
