package store

import "strings"

// Key layout. Every relation lives in the same buntdb keyspace, prefixed
// so AscendRange/AscendGreaterOrEqual over a prefix serves as the relation's
// index:
//
//	q:<id>                                -> Queue JSON               (primary)
//	qn:<name>                             -> <id>                     (unique name index)
//	t:<id>                                -> Target JSON               (primary)
//	tidx:<queue_id>\x1f<hashval>\x1f<id>   -> ""                        (Target by queue+hashval)
//	rn:<queue_id>\x1f<hashval>             -> ""                        (Readynet, primary)
//	rnh:<hashval>\x1f<queue_id>            -> ""                        (Readynet by hashval, reverse index)
//	hm:<hashval>                           -> "<count>"                 (Heatmap)
//	hqc:<hashval>\x1f<queue_id>            -> "<count>"                 (# targets for hashval+queue)
//	j:<id>                                 -> Job JSON                  (primary)
//	jq:<queue_id>\x1f<id>                  -> ""                        (Job by queue)
const sep = "\x1f"

func queueKey(id string) string   { return "q:" + id }
func queueNameKey(n string) string { return "qn:" + n }

func targetKey(id string) string { return "t:" + id }

func targetIdxKey(queueID, hashval, id string) string {
	return "tidx:" + queueID + sep + hashval + sep + id
}
func targetIdxPrefix(queueID, hashval string) string {
	return "tidx:" + queueID + sep + hashval + sep
}

func readynetKey(queueID, hashval string) string {
	return "rn:" + queueID + sep + hashval
}
func readynetQueuePrefix(queueID string) string { return "rn:" + queueID + sep }

func readynetHashKey(hashval, queueID string) string {
	return "rnh:" + hashval + sep + queueID
}
func readynetHashPrefix(hashval string) string { return "rnh:" + hashval + sep }

func heatmapKey(hashval string) string { return "hm:" + hashval }
func heatmapPrefix() string            { return "hm:" }

func hashQueueCountKey(hashval, queueID string) string {
	return "hqc:" + hashval + sep + queueID
}
func hashQueuePrefix(hashval string) string { return "hqc:" + hashval + sep }

func jobKey(id string) string { return "j:" + id }

func jobQueueKey(queueID, id string) string { return "jq:" + queueID + sep + id }
func jobQueuePrefix(queueID string) string  { return "jq:" + queueID + sep }

// lastSegment returns the portion of key after its final separator, used to
// recover an id/queueID from a composite index key while ranging over it.
func lastSegment(key string) string {
	idx := strings.LastIndex(key, sep)
	if idx < 0 {
		return key
	}
	return key[idx+len(sep):]
}

// segmentAt returns the n-th sep-delimited segment of key, not counting the
// "tidx:"/"rn:"/... prefix tag itself (segment 0 is queue_id, 1 is hashval,
// 2 is id, for a tidx key).
func segmentAt(key string, n int) string {
	rest := key
	if idx := strings.Index(rest, ":"); idx >= 0 {
		rest = rest[idx+1:]
	}
	parts := strings.Split(rest, sep)
	if n < 0 || n >= len(parts) {
		return ""
	}
	return parts[n]
}
