package inventory

// Recorder receives inventory events for metrics.
type Recorder interface {
	ObserveFinalize(source string, status InvoiceStatus, lines int)
	ObservePrune(collection string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveFinalize(string, InvoiceStatus, int) {}
func (nopRecorder) ObservePrune(string)                        {}
