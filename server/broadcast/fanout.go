package broadcast

// Split partitions peers into two halves by position. When there is an odd
// number of peers the first half is the larger.
//
// The split is deterministic so the same peers always produce the same
// fan-out tree.
func Split(peers []string) ([]string, []string) {
	mid := (len(peers) + 1) / 2
	return peers[:mid], peers[mid:]
}

// Select returns the peer in the group to send to directly, and the
// remaining peers that peer must forward to. Returns false if the group is
// empty.
func Select(group []string) (string, []string, bool) {
	if len(group) == 0 {
		return "", nil, false
	}
	tail := make([]string, len(group)-1)
	copy(tail, group[1:])
	return group[0], tail, true
}
