package clamd

// ScanStatus is the coarse classification of a scan reply.
type ScanStatus int

const (
	// StatusUnknown means the reply could not be classified.
	StatusUnknown ScanStatus = iota
	// StatusClean means the scan succeeded and nothing was found.
	StatusClean
	// StatusVirusDetected means the scan succeeded and at least one virus was found.
	StatusVirusDetected
	// StatusError means the daemon reported a scan error.
	StatusError
)

// String returns the clamd reply token for the status.
func (s ScanStatus) String() string {
	switch s {
	case StatusClean:
		return "OK"
	case StatusVirusDetected:
		return "FOUND"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ScanResult represents the result of a virus scan.
type ScanResult struct {
	// Raw is the reply text as returned by clamd, without the trailing NUL.
	Raw string
	// Status is the classification of Raw.
	Status ScanStatus
	// InfectedFiles lists the detections. Empty unless Status is StatusVirusDetected.
	InfectedFiles []InfectedFile
}

// IsInfected returns true if the scan found a virus.
func (r *ScanResult) IsInfected() bool {
	return r.Status == StatusVirusDetected
}

// IsClean returns true if the scan found nothing.
func (r *ScanResult) IsClean() bool {
	return r.Status == StatusClean
}

// String returns the raw reply.
func (r *ScanResult) String() string {
	return r.Raw
}

// InfectedFile is one detection reported by clamd.
type InfectedFile struct {
	// FileName is the scanned file name as reported by clamd. Empty when it
	// could not be located in the reply.
	FileName string
	// VirusName is the signature name. It keeps the leading space that
	// separates it from the file name in the reply, e.g. " Eicar-Test-Signature".
	VirusName string
}
