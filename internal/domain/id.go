package domain

import (
	"strconv"
	"strings"
)

// MakeEventID is the dedupe key of one log: "<chain_id>:<tx_hash>:<log_index>"
func MakeEventID(chainID uint32, txHash string, logIndex uint32) string {
	var b strings.Builder
	b.Grow(len(txHash) + 16)
	b.WriteString(strconv.FormatUint(uint64(chainID), 10))
	b.WriteByte(':')
	b.WriteString(strings.ToLower(txHash))
	b.WriteByte(':')
	b.WriteString(strconv.FormatUint(uint64(logIndex), 10))
	return b.String()
}

// RecordID = "<tx_hash>-<log_index>", used for swap/mint/burn records
func RecordID(txHash string, logIndex uint32) string {
	return strings.ToLower(txHash) + "-" + strconv.FormatUint(uint64(logIndex), 10)
}

// NormalizeAddress lower-cases and trims an 0x address; store ids are always normalized
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
