package models

// Station states
const (
	StationIdle          = "idle"
	StationScanning      = "scanning"
	StationDecoding      = "decoding"
	StationCrossChecking = "cross_checking"
	StationCommitting    = "committing"
	StationAdmitted      = "admitted"
	StationDenied        = "denied"
)

// Valid station transitions: from -> []to.
// Committing may fall back to idle only when the ledger is unreachable;
// a scan cannot be cancelled once the check-in transaction is submitted.
var ValidStationTransitions = map[string][]string{
	StationIdle:          {StationScanning},
	StationScanning:      {StationDecoding, StationIdle},
	StationDecoding:      {StationCrossChecking, StationDenied, StationIdle},
	StationCrossChecking: {StationCommitting, StationDenied, StationIdle},
	StationCommitting:    {StationAdmitted, StationDenied, StationIdle},
	StationAdmitted:      {StationIdle},
	StationDenied:        {StationIdle},
}

func IsValidStationTransition(from, to string) bool {
	for _, s := range ValidStationTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StationInFlight reports whether a scan is being verified in state s and
// new captures must be ignored.
func StationInFlight(s string) bool {
	return s == StationCrossChecking || s == StationCommitting
}
