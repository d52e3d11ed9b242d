package grpc

import "strconv"

func formatSequence(seq uint32) string {
	return strconv.FormatUint(uint64(seq), 10)
}
