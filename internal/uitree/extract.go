package uitree

import "log"

// Extractor pulls the visible message strings out of an active chat
// screen. ContainerIDs locate the per-message containers, TextIDs the text
// element nested inside each container; both are candidate lists in probe
// order.
type Extractor struct {
	ContainerIDs []string
	TextIDs      []string
}

// Extract returns the visible messages oldest-to-newest, as presented by
// the foreign UI. A failure inside one container skips that container
// only; siblings are still extracted. All node handles acquired here are
// released before returning. The root handle belongs to the caller.
func (e *Extractor) Extract(root Node) []string {
	if root == nil {
		return nil
	}
	containers := Locate(root, e.ContainerIDs)
	if len(containers) == 0 {
		return nil
	}

	var messages []string
	for _, c := range containers {
		if text, ok := e.extractOne(c); ok {
			messages = append(messages, text)
		}
	}
	return messages
}

// extractOne reads the text of a single message container, tolerating a
// misbehaving node implementation. The container and any text nodes it
// yields are recycled on every path.
func (e *Extractor) extractOne(c Node) (text string, ok bool) {
	defer c.Recycle()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("uitree: skipping malformed message container: %v", r)
			text, ok = "", false
		}
	}()

	texts := Locate(c, e.TextIDs)
	if len(texts) == 0 {
		return "", false
	}
	defer RecycleAll(texts)

	t := texts[0].Text()
	if t == "" {
		return "", false
	}
	return t, true
}
