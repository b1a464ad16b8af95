package gstsource

import (
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// errorCategory buckets pipeline failures so operators can tell a flaky
// network from a camera speaking the wrong codec.
type errorCategory int

const (
	categoryUnknown errorCategory = iota
	categoryNetwork
	categoryCodec
	categoryAuth
)

func (c errorCategory) String() string {
	switch c {
	case categoryNetwork:
		return "network"
	case categoryCodec:
		return "codec"
	case categoryAuth:
		return "auth"
	default:
		return "unknown"
	}
}

var (
	networkKeywords = []string{
		"could not connect",
		"connection refused",
		"connection reset",
		"timeout",
		"timed out",
		"unreachable",
		"network",
		"no route to host",
		"failed to connect",
	}
	codecKeywords = []string{
		"decode",
		"decoder",
		"no valid frames",
		"negotiated",
		"codec",
		"h264",
		"caps",
	}
	authKeywords = []string{
		"unauthorized",
		"not authorized",
		"401",
		"authentication",
		"forbidden",
	}
)

// classify buckets a bus error message by its text.
func classify(gerr *gst.GError) errorCategory {
	return classifyText(gerr.Error(), gerr.DebugString())
}

// classifyText is the keyword matcher behind classify, split out so it
// can be exercised without a running pipeline. Auth is checked before
// network: "connection refused: 401" is an auth problem, not a link one.
func classifyText(errMsg, debugMsg string) errorCategory {
	text := strings.ToLower(errMsg + " " + debugMsg)
	for _, kw := range authKeywords {
		if strings.Contains(text, kw) {
			return categoryAuth
		}
	}
	for _, kw := range networkKeywords {
		if strings.Contains(text, kw) {
			return categoryNetwork
		}
	}
	for _, kw := range codecKeywords {
		if strings.Contains(text, kw) {
			return categoryCodec
		}
	}
	return categoryUnknown
}
