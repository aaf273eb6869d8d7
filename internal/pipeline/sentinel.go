package pipeline

import "strings"

// silentSentinel is the marker a model reply can emit anywhere in its text
// to mean "I decided not to answer" rather than "answer with this text",
// letting the direct-AI-fallback step collapse to SILENT instead of
// delivering a visible reply. Matching is case-insensitive and looks
// anywhere in the string, mirroring an IsSilentReply check on
// the same token for agent loop replies.
const silentSentinel = "<<silent>>"

// isSilentReply reports whether content contains the silent sentinel
// anywhere, case-insensitively.
func isSilentReply(content string) bool {
	return strings.Contains(strings.ToLower(content), silentSentinel)
}
