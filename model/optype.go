package model

import "strings"

// OpType identifies the kind of database operation a record measures.
// The numeric codes are persisted in exported result files and must not change.
type OpType int32

const (
	OpTypeUnspecified   OpType = 0
	OpTypeBranchCreate  OpType = 1
	OpTypeBranchConnect OpType = 2
	OpTypeRead          OpType = 3
	OpTypeInsert        OpType = 4
	OpTypeUpdate        OpType = 5
	OpTypeCommit        OpType = 6
)

var opTypeNames = map[OpType]string{
	OpTypeUnspecified:   "UNSPECIFIED",
	OpTypeBranchCreate:  "BRANCH_CREATE",
	OpTypeBranchConnect: "BRANCH_CONNECT",
	OpTypeRead:          "READ",
	OpTypeInsert:        "INSERT",
	OpTypeUpdate:        "UPDATE",
	OpTypeCommit:        "COMMIT",
}

func (o OpType) String() string {
	if name, ok := opTypeNames[o]; ok {
		return name
	}
	return "UNSPECIFIED"
}

// ParseOpType converts an enum name (case-insensitive) into an OpType.
// Unknown names map to OpTypeUnspecified.
func ParseOpType(s string) OpType {
	s = strings.ToUpper(strings.TrimSpace(s))
	for op, name := range opTypeNames {
		if name == s {
			return op
		}
	}
	return OpTypeUnspecified
}
