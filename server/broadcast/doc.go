// Package broadcast disseminates values recorded by the local node to every
// other node in the cluster.
//
// New values are gossiped along a binary fan-out tree: the node splits its
// peers into two halves and sends the values to the first peer of each half,
// which is responsible for forwarding to the rest of its half. Each gossip
// is acknowledged by the receiver, and retried under a new message ID if the
// acknowledgement isn't received in time.
//
// Since forwarded gossip may still be lost after the first hop is
// acknowledged, the node periodically gossips its entire value set
// (anti-entropy) so every node eventually converges on the same set.
//
// All node state is owned by a single dispatch loop, which processes the
// node's inbox one envelope at a time.
package broadcast
