package uitree

// MockNode implements Node for testing. Children are keyed by element
// identifier; lookups and actions are recorded so tests can assert probe
// order, recycling, and mutation behavior.
type MockNode struct {
	TextValue  string
	Children   map[string][]*MockNode
	SetTextErr error
	ClickErr   error
	PanicFind  bool // FindByID panics, exercising per-container tolerance

	Recycled bool
	Lookups  []string
	TextSet  []string
	Clicks   int
}

// NewMockNode creates a leaf MockNode with the given text.
func NewMockNode(text string) *MockNode {
	return &MockNode{TextValue: text}
}

// AddChild registers child under id.
func (m *MockNode) AddChild(id string, child *MockNode) *MockNode {
	if m.Children == nil {
		m.Children = make(map[string][]*MockNode)
	}
	m.Children[id] = append(m.Children[id], child)
	return m
}

// FindByID returns the children registered under id and records the lookup.
func (m *MockNode) FindByID(id string) []Node {
	m.Lookups = append(m.Lookups, id)
	if m.PanicFind {
		panic("mock node: find failure")
	}
	kids := m.Children[id]
	if len(kids) == 0 {
		return nil
	}
	out := make([]Node, len(kids))
	for i, k := range kids {
		out[i] = k
	}
	return out
}

// Text returns the configured text.
func (m *MockNode) Text() string { return m.TextValue }

// SetText records the text, or fails with the configured error.
func (m *MockNode) SetText(text string) error {
	if m.SetTextErr != nil {
		return m.SetTextErr
	}
	m.TextSet = append(m.TextSet, text)
	return nil
}

// Click records the click, or fails with the configured error.
func (m *MockNode) Click() error {
	if m.ClickErr != nil {
		return m.ClickErr
	}
	m.Clicks++
	return nil
}

// Recycle marks the node released.
func (m *MockNode) Recycle() { m.Recycled = true }
