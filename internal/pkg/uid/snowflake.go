package uid

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
)

// Snowflake generates time-ordered int64 identifiers.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake builds a generator whose node number is read from the
// SNOWFLAKE_NODE environment variable, defaulting to 1. Each instance in a
// deployment must use a distinct node number.
func NewSnowflake() (*Snowflake, error) {
	nodeNum := int64(1)

	if v := os.Getenv("SNOWFLAKE_NODE"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		nodeNum = parsed
	}

	node, err := snowflake.NewNode(nodeNum)
	if err != nil {
		return nil, err
	}

	return &Snowflake{node: node}, nil
}

// Generate returns a new snowflake ID.
func (s *Snowflake) Generate() int64 {
	return s.node.Generate().Int64()
}
