package parser

import "bytes"

var (
	actionOpenMarker  = []byte("<action")
	actionCloseMarker = []byte("</action>")
)

// matchOuterActionClose scans buf for the "</action>" that closes the
// outermost action body, accounting for nested "<action" occurrences so a
// protocol-violating nested action (spec §4.1) is swallowed as literal text
// of the outer body rather than truncating it early. Returns ok=false when
// buf does not yet contain enough data to resolve the match (the caller
// should wait for more input). nestedSeen is set true the first time a
// nested opening marker is observed, regardless of whether resolution
// completes on this call.
func matchOuterActionClose(buf []byte) (bodyEnd, consumedThrough int, nestedSeen bool, ok bool) {
	depth := 1
	cursor := 0
	for depth > 0 {
		rest := buf[cursor:]
		oi := bytes.Index(rest, actionOpenMarker)
		ci := bytes.Index(rest, actionCloseMarker)
		if ci == -1 {
			return 0, 0, nestedSeen, false
		}
		if oi != -1 && oi < ci {
			depth++
			nestedSeen = true
			cursor += oi + len(actionOpenMarker)
			continue
		}
		depth--
		cursor += ci + len(actionCloseMarker)
	}
	return cursor - len(actionCloseMarker), cursor, nestedSeen, true
}
