package hls

import (
	"fmt"
	"io"
)

// PlaylistContentType is the MIME type of rendered playlists.
const PlaylistContentType = "application/vnd.apple.mpegurl"

// SegmentContentType is the MIME type of MPEG-TS segment streams.
const SegmentContentType = "video/mp2t"

// WritePlaylist renders a VOD playlist for the given plan. Segment
// URIs are the hexadecimal segment index with a .ts suffix, resolved
// relative to the playlist URL. Rendering is deterministic, so
// repeated requests for the same plan produce byte-identical bodies.
func WritePlaylist(w io.Writer, plan Plan) error {
	if _, err := fmt.Fprintf(w,
		"#EXTM3U\n"+
			"#EXT-X-PLAYLIST-TYPE:VOD\n"+
			"#EXT-X-TARGETDURATION:%v\n"+
			"#EXT-X-VERSION:4\n"+
			"#EXT-X-MEDIA-SEQUENCE:0\n",
		MaxSegmentSeconds,
	); err != nil {
		return err
	}

	for i := 0; i < plan.SegmentCount(); i++ {
		duration := plan[i+1] - plan[i]
		if _, err := fmt.Fprintf(w, "#EXTINF:%.3f,\n%x.ts\n", duration, i); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, "#EXT-X-ENDLIST\n")
	return err
}
