package clamd

import "strings"

// ParseScanResult classifies a clamd reply. The status is taken from the
// case-insensitive suffix of the reply: "ok", "error" or "found". Anything
// else is StatusUnknown.
func ParseScanResult(raw string) *ScanResult {
	result := &ScanResult{Raw: raw}

	lowered := strings.ToLower(raw)
	switch {
	case strings.HasSuffix(lowered, "ok"):
		result.Status = StatusClean
	case strings.HasSuffix(lowered, "error"):
		result.Status = StatusError
	case strings.HasSuffix(lowered, "found"):
		result.Status = StatusVirusDetected
		result.InfectedFiles = parseInfectedFiles(raw)
	}

	return result
}

// ParseScanResultStrict is like ParseScanResult but returns an
// unknown response error when the reply cannot be classified.
func ParseScanResultStrict(raw string) (*ScanResult, error) {
	result := ParseScanResult(raw)
	if result.Status == StatusUnknown {
		return nil, NewUnknownResponseError(raw)
	}
	return result, nil
}

// parseInfectedFiles splits a FOUND reply into one record per "FOUND" marker.
// A multi-file reply looks like:
//
//	/tmp/a: Eicar-Test-Signature FOUND
//	/tmp/b: Win.Test.EICAR_HDB-1 FOUND
func parseInfectedFiles(raw string) []InfectedFile {
	var files []InfectedFile
	for _, segment := range strings.Split(raw, "FOUND") {
		if segment == "" {
			continue
		}
		trimmed := strings.TrimSpace(segment)
		files = append(files, InfectedFile{
			FileName:  beforeLastColon(trimmed),
			VirusName: afterLastSpace(trimmed),
		})
	}
	return files
}

// beforeLastColon returns s up to its last ':'. A colon at index 0 or no
// colon at all yields "".
func beforeLastColon(s string) string {
	if i := strings.LastIndex(s, ":"); i > 0 {
		return s[:i]
	}
	return ""
}

// afterLastSpace returns s from its last ' ' onwards, space included. A space
// at index 0 or no space at all yields "".
func afterLastSpace(s string) string {
	if i := strings.LastIndex(s, " "); i > 0 {
		return s[i:]
	}
	return ""
}
