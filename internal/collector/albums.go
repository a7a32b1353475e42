// Per-day album ledger.
//
// Telegram delivers the members of one album as separate messages, and a
// poll can end between two of them, so a later pass may see a fragment of an
// album that an earlier pass already answered. The ledger remembers, per
// media group id, how the album was answered so that later fragments are
// absorbed instead of being treated as a new submission.
//
// Entries are stored in the state.Albums day set as "<group>=<state>":
//
//	<group>=20250101      answered, accepted under that code
//	<group>=-             answered, not accepted (malformed or duplicate)
//	<group>=?<msg>/<thr>/<fp>;<fp>  held: only captionless members seen
//
// A held album keeps the reply target of its first member and the
// fingerprints of every captionless member, so the caption that arrives later
// is classified and recorded with the whole album.
//
// The set only grows within a day, so a group can carry a held entry and a
// later answered entry; the answered entry wins.

package collector

import (
	"sort"
	"strconv"
	"strings"
)

const (
	albumRejected = "-"
	albumHeldMark = "?"
)

// albumEntry is the resolved ledger state of one media group.
type albumEntry struct {
	// Answered is true once the album received its one reply.
	Answered bool
	// Code is the accepted report code; empty when the album was rejected
	// or is still held.
	Code string
	// ReplyTo and ThreadID locate the first captionless member of a held
	// album, used as the target of a deferred malformed warning.
	ReplyTo  int
	ThreadID int
	// Fingerprints of the held members.
	Fingerprints []string
}

// albumLedger maps media group ids to their state for one day.
type albumLedger map[string]albumEntry

// parseAlbumLedger resolves the raw set items into a ledger. Items that do not
// parse are ignored.
func parseAlbumLedger(items map[string]struct{}) albumLedger {
	out := make(albumLedger, len(items))
	for it := range items {
		gid, st, ok := strings.Cut(it, "=")
		if !ok || gid == "" {
			continue
		}
		if held, isHeld := strings.CutPrefix(st, albumHeldMark); isHeld {
			prev, seen := out[gid]
			if seen && prev.Answered {
				continue
			}
			parts := strings.SplitN(held, "/", 3)
			replyTo, err := strconv.Atoi(parts[0])
			if err != nil {
				continue
			}
			e := albumEntry{ReplyTo: replyTo}
			if len(parts) > 1 {
				e.ThreadID, _ = strconv.Atoi(parts[1])
			}
			if seen && prev.ReplyTo < e.ReplyTo {
				e.ReplyTo, e.ThreadID = prev.ReplyTo, prev.ThreadID
			}
			e.Fingerprints = prev.Fingerprints
			if len(parts) > 2 {
				e.Fingerprints = mergeFingerprints(e.Fingerprints, strings.Split(parts[2], ";"))
			}
			out[gid] = e
			continue
		}
		e := albumEntry{Answered: true}
		if st != albumRejected {
			e.Code = st
		}
		out[gid] = e
	}
	return out
}

// answeredItem is the set item recording that gid was answered. An empty code
// records a rejection.
func answeredItem(gid, code string) string {
	if code == "" {
		code = albumRejected
	}
	return gid + "=" + code
}

// heldItem is the set item recording a held album fragment: its reply
// target and its fingerprints. Fingerprints that would break the encoding are
// left out.
func heldItem(gid string, replyTo, threadID int, fps []string) string {
	keep := make([]string, 0, len(fps))
	for _, fp := range fps {
		if fp != "" && !strings.ContainsAny(fp, ",;=") {
			keep = append(keep, fp)
		}
	}
	return gid + "=" + albumHeldMark + strconv.Itoa(replyTo) + "/" + strconv.Itoa(threadID) + "/" + strings.Join(keep, ";")
}

// mergeFingerprints returns the sorted union of a and b without empties.
func mergeFingerprints(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, fp := range append(append([]string(nil), a...), b...) {
		if fp != "" {
			set[fp] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for fp := range set {
		out = append(out, fp)
	}
	sort.Strings(out)
	return out
}

// held returns the ids of albums still waiting for a caption, sorted so that
// deferred warnings go out in a stable order.
func (l albumLedger) held() []string {
	var out []string
	for gid, e := range l {
		if !e.Answered {
			out = append(out, gid)
		}
	}
	sort.Strings(out)
	return out
}
