package audiocast

import "regexp"

// segmentRef matches segment filename tokens inside a playlist document.
// Transcoder output names segments segment000.ts, segment001.ts, ...
var segmentRef = regexp.MustCompile(`segment\d+\.ts`)

// RewriteSegmentURIs replaces every segment filename token in the playlist
// with the server-routed playback path /play/<id>/<segment>, so the player's
// segment requests come back through this service instead of resolving
// relative to an external base URL. The rewrite is a pure text substitution:
// line structure, tag ordering, and numeric fields are untouched.
func RewriteSegmentURIs(playlist []byte, id AssetID) []byte {
	prefix := []byte("/play/" + string(id) + "/")
	return segmentRef.ReplaceAllFunc(playlist, func(match []byte) []byte {
		out := make([]byte, 0, len(prefix)+len(match))
		out = append(out, prefix...)
		return append(out, match...)
	})
}
