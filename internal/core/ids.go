package core

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/bwmarrin/snowflake"
)

// newIDNode returns a snowflake node with a random 10-bit node ID. Export IDs
// sort in creation order, which matches the order exports accumulate in.
func newIDNode() (*snowflake.Node, error) {
	var nodeID int64
	if err := binary.Read(rand.Reader, binary.BigEndian, &nodeID); err != nil {
		return nil, err
	}
	return snowflake.NewNode(nodeID & (1<<snowflake.NodeBits - 1))
}
